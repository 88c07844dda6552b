/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It holds every SQL statement touching the profiles, deals, and
 * withdrawals tables.
 *
 * Concurrency rules implemented here:
 * - Balances only move under a `SELECT ... FOR UPDATE` row lock inside a
 *   transaction, so concurrent debits on one profile serialize.
 * - Every deal status change is a compare-and-set
 *   (`UPDATE ... WHERE id = $1 AND status = $2`); a concurrent transition
 *   that commits first makes the CAS match zero rows and the loser gets
 *   ErrInvalidDealState with nothing written.
 * - Multi-row settlements (fund, dispute split, withdrawal approval) run in
 *   one transaction so a crash cannot leave one side credited.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/escrowpad/escrow-service/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const profileColumns = `id, auth_user_id, email, full_name, role, balance, bank_name, bank_account_number, bank_account_name, created_at, updated_at`

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(
		&p.ID, &p.AuthUserID, &p.Email, &p.FullName, &p.Role, &p.Balance,
		&p.BankName, &p.BankAccountNumber, &p.BankAccountName,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &p, nil
}

// FindProfileIDByAuthUserID resolves the internal UUID from the identity
// provider's subject id (e.g. "user_abc123").
func (r *PostgresRepository) FindProfileIDByAuthUserID(ctx context.Context, authUserID string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, "SELECT id FROM profiles WHERE auth_user_id = $1", authUserID).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, ErrProfileNotFound
		}
		return uuid.Nil, err
	}
	return id, nil
}

// FindProfileByID retrieves a profile by its internal id.
func (r *PostgresRepository) FindProfileByID(ctx context.Context, profileID uuid.UUID) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	return scanProfile(r.db.QueryRow(ctx, query, profileID))
}

// CreateProfile inserts a profile paired with an external identity at signup.
func (r *PostgresRepository) CreateProfile(ctx context.Context, p *domain.Profile) error {
	query := `
		INSERT INTO profiles (id, auth_user_id, email, full_name, role, balance)
		VALUES ($1, $2, lower(btrim($3)), $4, $5, $6)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query, p.ID, p.AuthUserID, p.Email, p.FullName, p.Role, p.Balance).
		Scan(&p.CreatedAt, &p.UpdatedAt)
}

// DeleteProfile hard-deletes a profile. Admin only; no archival.
func (r *PostgresRepository) DeleteProfile(ctx context.Context, profileID uuid.UUID) error {
	result, err := r.db.Exec(ctx, "DELETE FROM profiles WHERE id = $1", profileID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// ListProfiles returns profiles ordered by creation time, newest first.
func (r *PostgresRepository) ListProfiles(ctx context.Context, limit, offset int) ([]domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(
			&p.ID, &p.AuthUserID, &p.Email, &p.FullName, &p.Role, &p.Balance,
			&p.BankName, &p.BankAccountNumber, &p.BankAccountName,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// SetBankDetails writes bank details once. The WHERE clause refuses the write
// when any bank field is already present, keeping the details immutable.
func (r *PostgresRepository) SetBankDetails(ctx context.Context, profileID uuid.UUID, bankName, accountNumber, accountName string) error {
	query := `
		UPDATE profiles
		SET bank_name = $2, bank_account_number = $3, bank_account_name = $4, updated_at = NOW()
		WHERE id = $1 AND bank_name IS NULL AND bank_account_number IS NULL
	`
	result, err := r.db.Exec(ctx, query, profileID, bankName, accountNumber, accountName)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		// Distinguish a missing profile from an already-set one.
		var exists bool
		if err := r.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM profiles WHERE id = $1)", profileID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrProfileNotFound
		}
		return ErrBankDetailsAlreadySet
	}
	return nil
}

// CreditBalance performs an atomic credit on a profile's balance.
func (r *PostgresRepository) CreditBalance(ctx context.Context, profileID uuid.UUID, amount int64) error {
	result, err := r.db.Exec(ctx,
		"UPDATE profiles SET balance = balance + $1, updated_at = NOW() WHERE id = $2", amount, profileID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// DebitBalance performs an atomic debit on a profile's balance.
func (r *PostgresRepository) DebitBalance(ctx context.Context, profileID uuid.UUID, amount int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := debitLocked(ctx, tx, profileID, amount); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// debitLocked locks the profile row, verifies funds, and applies the debit.
// It must run inside an open transaction.
func debitLocked(ctx context.Context, tx pgx.Tx, profileID uuid.UUID, amount int64) error {
	var balance int64
	err := tx.QueryRow(ctx, "SELECT balance FROM profiles WHERE id = $1 FOR UPDATE", profileID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrProfileNotFound
		}
		return err
	}
	if balance < amount {
		return ErrInsufficientFunds
	}
	_, err = tx.Exec(ctx, "UPDATE profiles SET balance = balance - $1, updated_at = NOW() WHERE id = $2", amount, profileID)
	return err
}

// AdjustBalance applies a signed admin override and returns the new balance.
// A negative delta larger than the balance fails like any other debit.
func (r *PostgresRepository) AdjustBalance(ctx context.Context, profileID uuid.UUID, delta int64) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, "SELECT balance FROM profiles WHERE id = $1 FOR UPDATE", profileID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrProfileNotFound
		}
		return 0, err
	}
	if balance+delta < 0 {
		return 0, ErrInsufficientFunds
	}
	var newBalance int64
	err = tx.QueryRow(ctx,
		"UPDATE profiles SET balance = balance + $1, updated_at = NOW() WHERE id = $2 RETURNING balance",
		delta, profileID).Scan(&newBalance)
	if err != nil {
		return 0, err
	}
	return newBalance, tx.Commit(ctx)
}

const dealColumns = `id, title, description, amount, currency, status, invite_code, buyer_id, seller_id,
	counterparty_email, inspection_period_days, dispute_reason, disputed_by, admin_resolution,
	platform_fee, inspection_notified, created_at, funded_at, delivered_at, disputed_at,
	completed_at, cancelled_at, updated_at`

func scanDeal(row pgx.Row) (*domain.Deal, error) {
	var d domain.Deal
	err := row.Scan(
		&d.ID, &d.Title, &d.Description, &d.Amount, &d.Currency, &d.Status, &d.InviteCode,
		&d.BuyerID, &d.SellerID, &d.CounterpartyEmail, &d.InspectionPeriodDays,
		&d.DisputeReason, &d.DisputedBy, &d.AdminResolution, &d.PlatformFee, &d.InspectionNotified,
		&d.CreatedAt, &d.FundedAt, &d.DeliveredAt, &d.DisputedAt, &d.CompletedAt, &d.CancelledAt, &d.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrDealNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanDealRows(rows pgx.Rows) ([]domain.Deal, error) {
	defer rows.Close()
	var deals []domain.Deal
	for rows.Next() {
		var d domain.Deal
		if err := rows.Scan(
			&d.ID, &d.Title, &d.Description, &d.Amount, &d.Currency, &d.Status, &d.InviteCode,
			&d.BuyerID, &d.SellerID, &d.CounterpartyEmail, &d.InspectionPeriodDays,
			&d.DisputeReason, &d.DisputedBy, &d.AdminResolution, &d.PlatformFee, &d.InspectionNotified,
			&d.CreatedAt, &d.FundedAt, &d.DeliveredAt, &d.DisputedAt, &d.CompletedAt, &d.CancelledAt, &d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

// CreateDeal inserts a new deal record.
func (r *PostgresRepository) CreateDeal(ctx context.Context, d *domain.Deal) error {
	query := `
		INSERT INTO deals (id, title, description, amount, currency, status, invite_code,
			buyer_id, seller_id, counterparty_email, inspection_period_days)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, lower(btrim($10)), $11)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		d.ID, d.Title, d.Description, d.Amount, d.Currency, d.Status, d.InviteCode,
		d.BuyerID, d.SellerID, d.CounterpartyEmail, d.InspectionPeriodDays,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
}

// FindDealByID retrieves a deal by id.
func (r *PostgresRepository) FindDealByID(ctx context.Context, dealID uuid.UUID) (*domain.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE id = $1`
	return scanDeal(r.db.QueryRow(ctx, query, dealID))
}

// FindDealByInviteCode resolves the capability token handed to the counterparty.
func (r *PostgresRepository) FindDealByInviteCode(ctx context.Context, inviteCode string) (*domain.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE invite_code = $1`
	return scanDeal(r.db.QueryRow(ctx, query, inviteCode))
}

// ListDealsForUser returns deals where the user is buyer or seller, newest first.
func (r *PostgresRepository) ListDealsForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanDealRows(rows)
}

// ListDeals returns all deals, optionally filtered by status. Admin surface.
func (r *PostgresRepository) ListDeals(ctx context.Context, status *domain.DealStatus, limit, offset int) ([]domain.Deal, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if status != nil {
		query := `SELECT ` + dealColumns + ` FROM deals WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		rows, err = r.db.Query(ctx, query, *status, limit, offset)
	} else {
		query := `SELECT ` + dealColumns + ` FROM deals ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		rows, err = r.db.Query(ctx, query, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	return scanDealRows(rows)
}

// BindDealParty fills the open buyer or seller slot and advances the status in
// one compare-and-set. The slot nullity check is part of the WHERE clause, so
// two concurrent joins cannot both land.
func (r *PostgresRepository) BindDealParty(ctx context.Context, dealID uuid.UUID, userID uuid.UUID, asBuyer bool, from, to domain.DealStatus) (*domain.Deal, error) {
	slot := "seller_id"
	if asBuyer {
		slot = "buyer_id"
	}
	query := fmt.Sprintf(`
		UPDATE deals
		SET %s = $1, status = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4 AND %s IS NULL
		RETURNING `+dealColumns, slot, slot)
	deal, err := scanDeal(r.db.QueryRow(ctx, query, userID, to, dealID, from))
	if err != nil {
		if errors.Is(err, ErrDealNotFound) {
			// The deal exists but the CAS missed: wrong status or slot already taken.
			existing, findErr := r.FindDealByID(ctx, dealID)
			if findErr != nil {
				return nil, findErr
			}
			if existing.Status != from {
				return nil, ErrInvalidDealState
			}
			return nil, ErrPartySlotTaken
		}
		return nil, err
	}
	return deal, nil
}

// FundDealAtomic debits the buyer and moves the deal into escrow as one
// transaction. The status CAS guarantees at most one successful fund per deal:
// the second of two concurrent calls either loses the row lock and fails the
// balance check, or loses the CAS and fails with ErrInvalidDealState.
func (r *PostgresRepository) FundDealAtomic(ctx context.Context, dealID, buyerID uuid.UUID, amount int64) (*domain.Deal, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := debitLocked(ctx, tx, buyerID, amount); err != nil {
		return nil, err
	}

	query := `
		UPDATE deals
		SET status = $1, funded_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status = $3 AND buyer_id = $4
		RETURNING ` + dealColumns
	deal, err := scanDeal(tx.QueryRow(ctx, query, domain.DealStatusInEscrow, dealID, domain.DealStatusAwaitingPayment, buyerID))
	if err != nil {
		if errors.Is(err, ErrDealNotFound) {
			return nil, ErrInvalidDealState
		}
		return nil, err
	}
	return deal, tx.Commit(ctx)
}

// MarkDealDelivered moves a funded deal to delivered via status CAS.
func (r *PostgresRepository) MarkDealDelivered(ctx context.Context, dealID uuid.UUID) (*domain.Deal, error) {
	query := `
		UPDATE deals
		SET status = $1, delivered_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING ` + dealColumns
	deal, err := scanDeal(r.db.QueryRow(ctx, query, domain.DealStatusDelivered, dealID, domain.DealStatusInEscrow))
	if err != nil {
		if errors.Is(err, ErrDealNotFound) {
			return nil, ErrInvalidDealState
		}
		return nil, err
	}
	return deal, nil
}

// OpenDealDispute escalates an in_escrow or delivered deal.
func (r *PostgresRepository) OpenDealDispute(ctx context.Context, dealID, raisedBy uuid.UUID, reason string) (*domain.Deal, error) {
	query := `
		UPDATE deals
		SET status = $1, dispute_reason = $2, disputed_by = $3, disputed_at = NOW(), updated_at = NOW()
		WHERE id = $4 AND status = ANY($5)
		RETURNING ` + dealColumns
	sources := []string{string(domain.DealStatusInEscrow), string(domain.DealStatusDelivered)}
	deal, err := scanDeal(r.db.QueryRow(ctx, query, domain.DealStatusDisputed, reason, raisedBy, dealID, sources))
	if err != nil {
		if errors.Is(err, ErrDealNotFound) {
			return nil, ErrInvalidDealState
		}
		return nil, err
	}
	return deal, nil
}

// CancelDeal moves an unfunded deal to cancelled via status CAS.
func (r *PostgresRepository) CancelDeal(ctx context.Context, dealID uuid.UUID, from []domain.DealStatus) (*domain.Deal, error) {
	sources := make([]string, len(from))
	for i, s := range from {
		sources[i] = string(s)
	}
	query := `
		UPDATE deals
		SET status = $1, cancelled_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status = ANY($3)
		RETURNING ` + dealColumns
	deal, err := scanDeal(r.db.QueryRow(ctx, query, domain.DealStatusCancelled, dealID, sources))
	if err != nil {
		if errors.Is(err, ErrDealNotFound) {
			return nil, ErrInvalidDealState
		}
		return nil, err
	}
	return deal, nil
}

// SettleDealAtomic applies a terminal allocation (buyer refund and/or seller
// payout) together with the closing status write in a single transaction.
// If either credit fails nothing is committed.
func (r *PostgresRepository) SettleDealAtomic(ctx context.Context, dealID uuid.UUID, params SettlementParams) (*domain.Deal, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	sources := make([]string, len(params.FromStatuses))
	for i, s := range params.FromStatuses {
		sources[i] = string(s)
	}

	// Claim the deal first so the credits below are tied to exactly one
	// successful transition even under concurrent settlement attempts.
	query := `
		UPDATE deals
		SET status = $1,
			platform_fee = $2,
			admin_resolution = COALESCE($3, admin_resolution),
			completed_at = CASE WHEN $1 IN ('completed', 'refunded') THEN NOW() ELSE completed_at END,
			cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END,
			updated_at = NOW()
		WHERE id = $4 AND status = ANY($5)
		RETURNING ` + dealColumns
	deal, err := scanDeal(tx.QueryRow(ctx, query, params.ToStatus, params.PlatformFee, params.Resolution, dealID, sources))
	if err != nil {
		if errors.Is(err, ErrDealNotFound) {
			return nil, ErrInvalidDealState
		}
		return nil, err
	}

	if params.BuyerCredit > 0 {
		if deal.BuyerID == nil {
			return nil, fmt.Errorf("settlement credits a buyer but deal %s has none", dealID)
		}
		if err := creditLocked(ctx, tx, *deal.BuyerID, params.BuyerCredit); err != nil {
			return nil, err
		}
	}
	if params.SellerCredit > 0 {
		if deal.SellerID == nil {
			return nil, fmt.Errorf("settlement credits a seller but deal %s has none", dealID)
		}
		if err := creditLocked(ctx, tx, *deal.SellerID, params.SellerCredit); err != nil {
			return nil, err
		}
	}

	return deal, tx.Commit(ctx)
}

func creditLocked(ctx context.Context, tx pgx.Tx, profileID uuid.UUID, amount int64) error {
	result, err := tx.Exec(ctx,
		"UPDATE profiles SET balance = balance + $1, updated_at = NOW() WHERE id = $2", amount, profileID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// FindInspectionElapsedDeals returns delivered deals whose inspection window
// has passed and that have not yet been flagged for a reminder.
func (r *PostgresRepository) FindInspectionElapsedDeals(ctx context.Context) ([]domain.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals
		WHERE status = $1
		  AND inspection_notified = FALSE
		  AND delivered_at IS NOT NULL
		  AND delivered_at + (inspection_period_days || ' days')::interval <= NOW()`
	rows, err := r.db.Query(ctx, query, domain.DealStatusDelivered)
	if err != nil {
		return nil, err
	}
	return scanDealRows(rows)
}

// MarkInspectionNotified records that the reminder event was published.
func (r *PostgresRepository) MarkInspectionNotified(ctx context.Context, dealID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		"UPDATE deals SET inspection_notified = TRUE, updated_at = NOW() WHERE id = $1", dealID)
	return err
}

const withdrawalColumns = `id, user_id, amount, currency, destination_type, bank_name, bank_account_number,
	bank_account_name, wallet_address, wallet_network, asset_type, status, rejection_reason,
	proof_of_payment, withdrawal_fee, amount_sent, processed_by, created_at, processed_at, updated_at`

func scanWithdrawal(row pgx.Row) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	err := row.Scan(
		&w.ID, &w.UserID, &w.Amount, &w.Currency, &w.DestinationType,
		&w.BankName, &w.BankAccountNo, &w.BankAccountName,
		&w.WalletAddress, &w.WalletNetwork, &w.AssetType,
		&w.Status, &w.RejectionReason, &w.ProofOfPayment,
		&w.WithdrawalFee, &w.AmountSent, &w.ProcessedBy,
		&w.CreatedAt, &w.ProcessedAt, &w.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return &w, nil
}

// CreateWithdrawal inserts a pending withdrawal. The partial unique index on
// (user_id) WHERE status = 'pending' backs the one-pending-per-user rule; a
// unique violation maps to ErrDuplicatePendingWithdrawal.
func (r *PostgresRepository) CreateWithdrawal(ctx context.Context, w *domain.Withdrawal) error {
	query := `
		INSERT INTO withdrawals (id, user_id, amount, currency, destination_type,
			bank_name, bank_account_number, bank_account_name,
			wallet_address, wallet_network, asset_type, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		w.ID, w.UserID, w.Amount, w.Currency, w.DestinationType,
		w.BankName, w.BankAccountNo, w.BankAccountName,
		w.WalletAddress, w.WalletNetwork, w.AssetType, w.Status,
	).Scan(&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicatePendingWithdrawal
		}
		return err
	}
	return nil
}

// FindWithdrawalByID retrieves a withdrawal by id.
func (r *PostgresRepository) FindWithdrawalByID(ctx context.Context, withdrawalID uuid.UUID) (*domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`
	return scanWithdrawal(r.db.QueryRow(ctx, query, withdrawalID))
}

func (r *PostgresRepository) listWithdrawals(ctx context.Context, query string, args ...any) ([]domain.Withdrawal, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var withdrawals []domain.Withdrawal
	for rows.Next() {
		var w domain.Withdrawal
		if err := rows.Scan(
			&w.ID, &w.UserID, &w.Amount, &w.Currency, &w.DestinationType,
			&w.BankName, &w.BankAccountNo, &w.BankAccountName,
			&w.WalletAddress, &w.WalletNetwork, &w.AssetType,
			&w.Status, &w.RejectionReason, &w.ProofOfPayment,
			&w.WithdrawalFee, &w.AmountSent, &w.ProcessedBy,
			&w.CreatedAt, &w.ProcessedAt, &w.UpdatedAt,
		); err != nil {
			return nil, err
		}
		withdrawals = append(withdrawals, w)
	}
	return withdrawals, rows.Err()
}

// ListWithdrawalsForUser returns a user's withdrawals, newest first.
func (r *PostgresRepository) ListWithdrawalsForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	return r.listWithdrawals(ctx, query, userID, limit, offset)
}

// ListPendingWithdrawals returns the admin approval queue, oldest first.
func (r *PostgresRepository) ListPendingWithdrawals(ctx context.Context, limit, offset int) ([]domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE status = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`
	return r.listWithdrawals(ctx, query, domain.WithdrawalStatusPending, limit, offset)
}

// ApproveWithdrawalAtomic re-checks the requester's balance under a row lock,
// debits the gross amount, and finalizes the withdrawal in one transaction.
// The balance may have dropped since request time because nothing is reserved.
func (r *PostgresRepository) ApproveWithdrawalAtomic(ctx context.Context, withdrawalID, adminID uuid.UUID, fee, amountSent int64, proofOfPayment *string) (*domain.Withdrawal, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Lock the withdrawal row to serialize approval against cancel/reject.
	var (
		userID uuid.UUID
		amount int64
		status domain.WithdrawalStatus
	)
	err = tx.QueryRow(ctx,
		"SELECT user_id, amount, status FROM withdrawals WHERE id = $1 FOR UPDATE", withdrawalID).
		Scan(&userID, &amount, &status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	if status != domain.WithdrawalStatusPending {
		return nil, ErrInvalidWithdrawalState
	}

	if err := debitLocked(ctx, tx, userID, amount); err != nil {
		return nil, err
	}

	query := `
		UPDATE withdrawals
		SET status = $1, withdrawal_fee = $2, amount_sent = $3, proof_of_payment = $4,
			processed_by = $5, processed_at = NOW(), updated_at = NOW()
		WHERE id = $6
		RETURNING ` + withdrawalColumns
	withdrawal, err := scanWithdrawal(tx.QueryRow(ctx, query,
		domain.WithdrawalStatusSuccessful, fee, amountSent, proofOfPayment, adminID, withdrawalID))
	if err != nil {
		return nil, err
	}
	return withdrawal, tx.Commit(ctx)
}

// RejectWithdrawal closes a pending withdrawal without touching balances.
func (r *PostgresRepository) RejectWithdrawal(ctx context.Context, withdrawalID, adminID uuid.UUID, reason string) (*domain.Withdrawal, error) {
	query := `
		UPDATE withdrawals
		SET status = $1, rejection_reason = $2, processed_by = $3, processed_at = NOW(), updated_at = NOW()
		WHERE id = $4 AND status = $5
		RETURNING ` + withdrawalColumns
	withdrawal, err := scanWithdrawal(r.db.QueryRow(ctx, query,
		domain.WithdrawalStatusRejected, reason, adminID, withdrawalID, domain.WithdrawalStatusPending))
	if err != nil {
		if errors.Is(err, ErrWithdrawalNotFound) {
			return nil, r.withdrawalStateError(ctx, withdrawalID)
		}
		return nil, err
	}
	return withdrawal, nil
}

// CancelWithdrawal lets the requester withdraw their own pending request.
func (r *PostgresRepository) CancelWithdrawal(ctx context.Context, withdrawalID, userID uuid.UUID) (*domain.Withdrawal, error) {
	query := `
		UPDATE withdrawals
		SET status = $1, processed_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND user_id = $3 AND status = $4
		RETURNING ` + withdrawalColumns
	withdrawal, err := scanWithdrawal(r.db.QueryRow(ctx, query,
		domain.WithdrawalStatusCancelled, withdrawalID, userID, domain.WithdrawalStatusPending))
	if err != nil {
		if errors.Is(err, ErrWithdrawalNotFound) {
			return nil, r.withdrawalStateError(ctx, withdrawalID)
		}
		return nil, err
	}
	return withdrawal, nil
}

// withdrawalStateError distinguishes "row missing" from "CAS missed".
func (r *PostgresRepository) withdrawalStateError(ctx context.Context, withdrawalID uuid.UUID) error {
	var exists bool
	if err := r.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM withdrawals WHERE id = $1)", withdrawalID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrWithdrawalNotFound
	}
	return ErrInvalidWithdrawalState
}
