package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name   string
		action DealAction
		from   DealStatus
		want   bool
	}{
		{"join from draft", ActionJoin, DealStatusDraft, true},
		{"join from awaiting_buyer", ActionJoin, DealStatusAwaitingBuyer, true},
		{"join from awaiting_payment", ActionJoin, DealStatusAwaitingPayment, false},
		{"fund from awaiting_payment", ActionFund, DealStatusAwaitingPayment, true},
		{"fund from draft", ActionFund, DealStatusDraft, false},
		{"fund twice", ActionFund, DealStatusInEscrow, false},
		{"deliver from escrow", ActionMarkDelivered, DealStatusInEscrow, true},
		{"deliver before funding", ActionMarkDelivered, DealStatusAwaitingPayment, false},
		{"confirm from delivered", ActionConfirm, DealStatusDelivered, true},
		{"confirm from escrow", ActionConfirm, DealStatusInEscrow, false},
		{"dispute from escrow", ActionDispute, DealStatusInEscrow, true},
		{"dispute from delivered", ActionDispute, DealStatusDelivered, true},
		{"dispute from completed", ActionDispute, DealStatusCompleted, false},
		{"cancel from draft", ActionCancel, DealStatusDraft, true},
		{"cancel from escrow", ActionCancel, DealStatusInEscrow, false},
		{"resolve from disputed", ActionResolve, DealStatusDisputed, true},
		{"resolve from delivered", ActionResolve, DealStatusDelivered, false},
		{"finalize from escrow", ActionFinalize, DealStatusInEscrow, true},
		{"finalize from awaiting_payment", ActionFinalize, DealStatusAwaitingPayment, false},
		{"finalize from completed", ActionFinalize, DealStatusCompleted, false},
		{"admin cancel from disputed", ActionAdminCancel, DealStatusDisputed, true},
		{"admin cancel from refunded", ActionAdminCancel, DealStatusRefunded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.action, tt.from); got != tt.want {
				t.Fatalf("CanTransition(%q, %q) = %v, want %v", tt.action, tt.from, got, tt.want)
			}
		})
	}
}

func TestTerminalStatesHaveNoOutgoingTransitions(t *testing.T) {
	for _, status := range []DealStatus{DealStatusCompleted, DealStatusCancelled, DealStatusRefunded} {
		if !status.IsTerminal() {
			t.Fatalf("expected %q to be terminal", status)
		}
		for action := range dealTransitions {
			if CanTransition(action, status) {
				t.Fatalf("terminal status %q allows action %q", status, action)
			}
		}
	}
}

func TestResolveParticipant(t *testing.T) {
	buyerID := uuid.New()
	sellerID := uuid.New()
	deal := &Deal{BuyerID: &buyerID, SellerID: &sellerID}

	tests := []struct {
		name    string
		profile *Profile
		want    Participant
	}{
		{"buyer slot", &Profile{ID: buyerID, Role: RoleUser}, ParticipantBuyer},
		{"seller slot", &Profile{ID: sellerID, Role: RoleUser}, ParticipantSeller},
		{"stranger", &Profile{ID: uuid.New(), Role: RoleUser}, ParticipantNone},
		{"admin outranks party membership", &Profile{ID: buyerID, Role: RoleAdmin}, ParticipantAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveParticipant(tt.profile, deal); got != tt.want {
				t.Fatalf("ResolveParticipant = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveParticipantWithOpenSlot(t *testing.T) {
	buyerID := uuid.New()
	deal := &Deal{BuyerID: &buyerID}

	if got := ResolveParticipant(&Profile{ID: uuid.New(), Role: RoleUser}, deal); got != ParticipantNone {
		t.Fatalf("expected stranger on half-bound deal to resolve to none, got %v", got)
	}
}
