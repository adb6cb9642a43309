package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// LedgerTx bundles the repositories participating in one ledger transaction:
// the subscription upsert, the payment insert, the optional dispute evidence
// and the audit event all commit or roll back together.
type LedgerTx struct {
	Subscriptions *SubscriptionRepository
	Payments      *PaymentRepository
	Disputes      *DisputeEvidenceRepository
	Events        *SubscriptionEventRepository
}

type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// WithinTx runs fn inside a single database transaction. Any error from fn
// rolls the whole unit back.
func (l *Ledger) WithinTx(ctx context.Context, fn func(tx *LedgerTx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}

	ledgerTx := &LedgerTx{
		Subscriptions: NewSubscriptionRepository(tx),
		Payments:      NewPaymentRepository(tx),
		Disputes:      NewDisputeEvidenceRepository(tx),
		Events:        NewSubscriptionEventRepository(tx),
	}

	if err := fn(ledgerTx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("rollback ledger tx after %v: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}
