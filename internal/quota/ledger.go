package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytsort/internal/models"
)

// Status is a snapshot of today's quota consumption.
type Status struct {
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetsAt  time.Time `json:"resetsAt"`
}

// Ledger records unit usage and reports what remains of the daily budget.
//
// Days start at local midnight.
type Ledger struct {
	repo   models.QuotaUsageRepository
	limit  int
	logger *log.Logger
	now    func() time.Time
}

// NewLedger creates a Ledger over repo. A non-positive limit falls back to [DefaultDailyLimit].
func NewLedger(repo models.QuotaUsageRepository, dailyLimit int, logger *log.Logger) *Ledger {
	if dailyLimit <= 0 {
		dailyLimit = DefaultDailyLimit
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Ledger{repo: repo, limit: dailyLimit, logger: logger, now: time.Now}
}

// Limit returns the configured daily budget.
func (l *Ledger) Limit() int { return l.limit }

// Record persists one successful call of op at its unit cost.
func (l *Ledger) Record(ctx context.Context, op string, details map[string]any) error {
	usage := models.NewQuotaUsage(op, Cost(op), details)
	usage.Date = l.now().UTC()

	if err := l.repo.Create(ctx, usage); err != nil {
		return fmt.Errorf("failed to record quota usage: %w", err)
	}

	l.logger.Debug("quota usage recorded", "operation", op, "units", usage.UnitsUsed)
	return nil
}

// Used returns units recorded since local midnight.
func (l *Ledger) Used(ctx context.Context) (int, error) {
	return l.repo.SumSince(ctx, StartOfDay(l.now()))
}

// Remaining returns the unused part of today's budget, never below zero.
func (l *Ledger) Remaining(ctx context.Context) (int, error) {
	used, err := l.Used(ctx)
	if err != nil {
		return 0, err
	}
	return max(l.limit-used, 0), nil
}

// Status reports today's usage and when the budget resets.
func (l *Ledger) Status(ctx context.Context) (Status, error) {
	used, err := l.Used(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Used:      used,
		Remaining: max(l.limit-used, 0),
		Limit:     l.limit,
		ResetsAt:  StartOfDay(l.now()).AddDate(0, 0, 1),
	}, nil
}

// StartOfDay returns midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
