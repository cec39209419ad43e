package repo

import (
	"context"
	"fmt"

	"productshot/internal/domain"
	"productshot/internal/infra"
	"productshot/internal/sqlinline"
)

// LedgerRepositoryPG implements domain.LedgerRepository on the credit_ledger table.
type LedgerRepositoryPG struct {
	db infra.Transactor
}

func NewLedgerRepository(db infra.Transactor) *LedgerRepositoryPG {
	return &LedgerRepositoryPG{db: db}
}

func (r *LedgerRepositoryPG) Balance(ctx context.Context, userID string) (int64, error) {
	return selectBalance(ctx, r.db, userID)
}

func (r *LedgerRepositoryPG) Append(ctx context.Context, entry *domain.LedgerEntry) error {
	return insertEntry(ctx, r.db, entry)
}

// AppendSpend takes a per-user advisory lock so the balance check and the
// insert see no concurrent writes for that user.
func (r *LedgerRepositoryPG) AppendSpend(ctx context.Context, entry *domain.LedgerEntry) error {
	return r.db.InTx(ctx, func(tx infra.SQLExecutor) error {
		if _, err := tx.Exec(ctx, sqlinline.QLockLedgerUser, entry.UserID); err != nil {
			return fmt.Errorf("lock ledger: %w", err)
		}
		if entry.RefID != "" {
			if _, err := findByRef(ctx, tx, entry.Reason, entry.RefType, entry.RefID); err == nil {
				return domain.ErrAlreadyCharged
			} else if !infra.IsNoRows(err) {
				return err
			}
		}
		balance, err := selectBalance(ctx, tx, entry.UserID)
		if err != nil {
			return err
		}
		if balance+entry.Delta < 0 {
			return &domain.InsufficientCreditsError{Balance: balance, Required: -entry.Delta}
		}
		return insertEntry(ctx, tx, entry)
	})
}

func (r *LedgerRepositoryPG) List(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	rows, err := r.db.Query(ctx, sqlinline.QListLedgerEntries, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []domain.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func (r *LedgerRepositoryPG) FindByRef(ctx context.Context, reason domain.LedgerReason, refType, refID string) (*domain.LedgerEntry, error) {
	entry, err := findByRef(ctx, r.db, reason, refType, refID)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return entry, nil
}

func selectBalance(ctx context.Context, sql infra.SQLExecutor, userID string) (int64, error) {
	var balance int64
	if err := sql.QueryRow(ctx, sqlinline.QSelectLedgerBalance, userID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("select balance: %w", err)
	}
	return balance, nil
}

func insertEntry(ctx context.Context, sql infra.SQLExecutor, entry *domain.LedgerEntry) error {
	row := sql.QueryRow(ctx, sqlinline.QInsertLedgerEntry,
		entry.ID,
		entry.UserID,
		entry.Delta,
		string(entry.Reason),
		entry.RefType,
		entry.RefID,
	)
	if err := row.Scan(&entry.CreatedAt); err != nil {
		if infra.IsUniqueViolation(err) {
			return domain.ErrAlreadyCharged
		}
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func findByRef(ctx context.Context, sql infra.SQLExecutor, reason domain.LedgerReason, refType, refID string) (*domain.LedgerEntry, error) {
	return scanEntry(sql.QueryRow(ctx, sqlinline.QSelectLedgerEntryByRef, string(reason), refType, refID))
}

func scanEntry(row scanner) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	var reason string
	if err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Delta,
		&reason,
		&entry.RefType,
		&entry.RefID,
		&entry.CreatedAt,
	); err != nil {
		return nil, err
	}
	entry.Reason = domain.LedgerReason(reason)
	return &entry, nil
}

var _ domain.LedgerRepository = (*LedgerRepositoryPG)(nil)
