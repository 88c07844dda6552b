package app

import "testing"

func TestComputeFee(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		feeBps int64
		want   int64
	}{
		{"standard rate on round amount", 10000, 250, 250},
		{"floors the remainder", 10001, 250, 250},
		{"zero rate", 10000, 0, 0},
		{"zero amount", 0, 250, 0},
		{"small amount below one kobo of fee", 30, 250, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := computeFee(tt.amount, tt.feeBps); got != tt.want {
				t.Fatalf("computeFee(%d, %d) = %d, want %d", tt.amount, tt.feeBps, got, tt.want)
			}
		})
	}
}

func TestSellerPayout(t *testing.T) {
	settlement := sellerPayout(10000, 250)
	if settlement.SellerCredit != 9750 {
		t.Fatalf("expected seller credit 9750, got %d", settlement.SellerCredit)
	}
	if settlement.Fee != 250 {
		t.Fatalf("expected fee 250, got %d", settlement.Fee)
	}
	if settlement.BuyerCredit != 0 {
		t.Fatalf("expected no buyer credit, got %d", settlement.BuyerCredit)
	}
}

func TestBuyerRefundIsNeverFeed(t *testing.T) {
	settlement := buyerRefund(10000)
	if settlement.BuyerCredit != 10000 {
		t.Fatalf("expected full refund of 10000, got %d", settlement.BuyerCredit)
	}
	if settlement.Fee != 0 || settlement.SellerCredit != 0 {
		t.Fatalf("refund must not carry fee or seller credit: %+v", settlement)
	}
}

func TestSplitAllocationConservesEveryKobo(t *testing.T) {
	amounts := []int64{1, 99, 100, 10000, 10001, 333333, 1000000007}
	for _, amount := range amounts {
		for pct := 0; pct <= 100; pct++ {
			s := splitAllocation(amount, pct, 250)
			if sum := s.BuyerCredit + s.SellerCredit + s.Fee; sum != amount {
				t.Fatalf("split of %d at %d%% leaks money: buyer=%d seller=%d fee=%d sum=%d",
					amount, pct, s.BuyerCredit, s.SellerCredit, s.Fee, sum)
			}
			if s.BuyerCredit < 0 || s.SellerCredit < 0 || s.Fee < 0 {
				t.Fatalf("split of %d at %d%% produced a negative leg: %+v", amount, pct, s)
			}
		}
	}
}

func TestSplitAllocationEdges(t *testing.T) {
	// 100% to the buyer behaves like a refund: no seller credit, no fee.
	full := splitAllocation(10000, 100, 250)
	if full.BuyerCredit != 10000 || full.SellerCredit != 0 || full.Fee != 0 {
		t.Fatalf("full-buyer split mismatch: %+v", full)
	}

	// 0% to the buyer behaves like a release: fee on the whole amount.
	none := splitAllocation(10000, 0, 250)
	if none.BuyerCredit != 0 || none.SellerCredit != 9750 || none.Fee != 250 {
		t.Fatalf("full-seller split mismatch: %+v", none)
	}
}
