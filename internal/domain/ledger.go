package domain

import "time"

// LedgerReason classifies a credit ledger entry.
type LedgerReason string

const (
	ReasonSubscriptionReset LedgerReason = "subscription_reset"
	ReasonGenerationSpend   LedgerReason = "generation_spend"
	ReasonBonus             LedgerReason = "bonus"
	ReasonAdminAdjustment   LedgerReason = "admin_adjustment"
	ReasonOveragePurchase   LedgerReason = "overage_purchase"
)

// RefTypeJob marks ledger entries that reference a generation job.
const RefTypeJob = "job"

// ParseLedgerReason validates a raw reason string.
func ParseLedgerReason(raw string) (LedgerReason, bool) {
	switch r := LedgerReason(raw); r {
	case ReasonSubscriptionReset, ReasonGenerationSpend, ReasonBonus, ReasonAdminAdjustment, ReasonOveragePurchase:
		return r, true
	default:
		return "", false
	}
}

// LedgerEntry is an immutable signed credit delta. A user's balance is the
// sum of all their deltas.
type LedgerEntry struct {
	ID        string
	UserID    string
	Delta     int64
	Reason    LedgerReason
	RefType   string
	RefID     string
	CreatedAt time.Time
}
