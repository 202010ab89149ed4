package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStoreUnavailable is returned when the usage store cannot be read or
// written. Callers must fail closed: no analysis may proceed when the quota
// cannot be verified.
var ErrStoreUnavailable = errors.New("usage_store_unavailable")

// QuotaExceededError is returned when a fingerprint has used up its daily
// allowance. ResetAt tells the client when the quota rolls over.
type QuotaExceededError struct {
	ResetAt time.Time
}

func (e *QuotaExceededError) Error() string {
	return "daily_quota_exceeded"
}

// UsageRepository tracks per-fingerprint daily usage for quota enforcement.
type UsageRepository interface {
	// CheckAndIncrement records one use for the fingerprint's current UTC day,
	// rejecting with *QuotaExceededError once maxPerDay is reached. The
	// record is left untouched on rejection.
	CheckAndIncrement(ctx context.Context, fp string, maxPerDay int) (*model.UsageStatus, error)
	// PeekUsage reports the current usage without recording anything. It is
	// display-only and fails open: any read problem reports a full remaining
	// quota. The authoritative check happens in CheckAndIncrement.
	PeekUsage(ctx context.Context, fp string, maxPerDay int) *model.UsageStatus
}

type usageRepo struct {
	pool *pgxpool.Pool
}

// NewUsageRepo creates a new UsageRepository.
func NewUsageRepo(pool *pgxpool.Pool) UsageRepository {
	return &usageRepo{pool: pool}
}

// CheckAndIncrement reads the fingerprint's record for today and then
// conditionally writes it. The read and the write are deliberately not
// wrapped in a transaction: concurrent racers on the same fingerprint may
// each observe a pre-increment count and all succeed, overshooting the
// limit by at most the number of racers. The quota is a soft limit.
func (r *usageRepo) CheckAndIncrement(ctx context.Context, fp string, maxPerDay int) (*model.UsageStatus, error) {
	now := time.Now()
	key := dayKey(now)
	resetAt := nextReset(now)

	var count int
	const selectQ = `SELECT count FROM usage_records WHERE fingerprint = $1 AND day_key = $2`
	err := r.pool.QueryRow(ctx, selectQ, fp, key).Scan(&count)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// First use today. The upsert keeps concurrent first uses from
		// erroring on the primary key; both racers count.
		const insertQ = `
			INSERT INTO usage_records (fingerprint, day_key, count)
			VALUES ($1, $2, 1)
			ON CONFLICT (fingerprint, day_key)
			DO UPDATE SET count = usage_records.count + 1, last_used_at = now()
		`
		if _, err := r.pool.Exec(ctx, insertQ, fp, key); err != nil {
			return nil, fmt.Errorf("%w: creating usage record for %s: %v", ErrStoreUnavailable, fp, err)
		}
		return status(1, maxPerDay, resetAt), nil

	case err != nil:
		return nil, fmt.Errorf("%w: reading usage record for %s: %v", ErrStoreUnavailable, fp, err)
	}

	if count >= maxPerDay {
		return nil, &QuotaExceededError{ResetAt: resetAt}
	}

	const updateQ = `
		UPDATE usage_records
		SET count = count + 1, last_used_at = now()
		WHERE fingerprint = $1 AND day_key = $2
	`
	if _, err := r.pool.Exec(ctx, updateQ, fp, key); err != nil {
		return nil, fmt.Errorf("%w: incrementing usage record for %s: %v", ErrStoreUnavailable, fp, err)
	}
	return status(count+1, maxPerDay, resetAt), nil
}

// PeekUsage reads today's count for the fingerprint. Missing records and
// read failures both report zero usage.
func (r *usageRepo) PeekUsage(ctx context.Context, fp string, maxPerDay int) *model.UsageStatus {
	now := time.Now()
	resetAt := nextReset(now)

	var count int
	const q = `SELECT count FROM usage_records WHERE fingerprint = $1 AND day_key = $2`
	if err := r.pool.QueryRow(ctx, q, fp, dayKey(now)).Scan(&count); err != nil {
		return status(0, maxPerDay, resetAt)
	}
	return status(count, maxPerDay, resetAt)
}

// dayKey is the UTC calendar date the quota is keyed on.
func dayKey(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

// nextReset is the next midnight in the server's local zone, shown to users
// as the moment their quota comes back.
func nextReset(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
}

func status(used, maxPerDay int, resetAt time.Time) *model.UsageStatus {
	remaining := maxPerDay - used
	if remaining < 0 {
		remaining = 0
	}
	return &model.UsageStatus{
		Used:      used,
		Remaining: remaining,
		Total:     maxPerDay,
		ResetAt:   resetAt,
	}
}
