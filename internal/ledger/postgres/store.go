package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saha-club/bookingservice/internal/booking/domain"
	"github.com/saha-club/bookingservice/internal/ledger"
	"github.com/saha-club/bookingservice/internal/metrics"
)

// Store persists credit instruments in PostgreSQL. Usage records live in a
// jsonb column keyed by reservation ID, mirroring the in-memory layout, so
// debit idempotency survives restarts.
type Store struct {
	pool *pgxpool.Pool
}

func NewStoreWithPool(pool *pgxpool.Pool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool cannot be nil")
	}
	return &Store{pool: pool}, nil
}

func observe(operation string, start time.Time) {
	metrics.DatabaseQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

const instrumentColumns = `id, user_id, type, total_hours, bonus_hours, used_hours,
	allowed_tiers, daily_cap_hours, per_extra_player_hours, valid_from, valid_until,
	suspended, usage, created_at, updated_at`

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*ledger.CreditInstrument, error) {
	defer observe("get_instrument", time.Now())

	row := s.pool.QueryRow(ctx, `
		SELECT `+instrumentColumns+` FROM credit_instruments WHERE id = $1`, id)
	ci, err := scanInstrument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewNotFoundError("credit instrument", id.String())
	}
	return ci, err
}

func (s *Store) Save(ctx context.Context, ci *ledger.CreditInstrument) error {
	defer observe("save_instrument", time.Now())

	tiers := make([]string, len(ci.AllowedTiers))
	for i, t := range ci.AllowedTiers {
		tiers[i] = string(t)
	}
	usage, err := json.Marshal(ci.Usage)
	if err != nil {
		return fmt.Errorf("failed to marshal usage records: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO credit_instruments (`+instrumentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			used_hours = EXCLUDED.used_hours,
			suspended = EXCLUDED.suspended,
			usage = EXCLUDED.usage,
			updated_at = EXCLUDED.updated_at`,
		ci.ID, ci.UserID, string(ci.Type), ci.TotalHours, ci.BonusHours, ci.UsedHours,
		tiers, ci.DailyCapHours, ci.PerExtraPlayerHours, ci.ValidFrom, ci.ValidUntil,
		ci.Suspended, usage, ci.CreatedAt, ci.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save credit instrument: %w", err)
	}
	return nil
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]*ledger.CreditInstrument, error) {
	defer observe("list_instruments_by_user", time.Now())

	rows, err := s.pool.Query(ctx, `
		SELECT `+instrumentColumns+` FROM credit_instruments
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list instruments by user: %w", err)
	}
	defer rows.Close()

	var result []*ledger.CreditInstrument
	for rows.Next() {
		ci, err := scanInstrument(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ci)
	}
	return result, rows.Err()
}

func scanInstrument(row pgx.Row) (*ledger.CreditInstrument, error) {
	var (
		ci    ledger.CreditInstrument
		typ   string
		tiers []string
		usage []byte
	)
	err := row.Scan(&ci.ID, &ci.UserID, &typ, &ci.TotalHours, &ci.BonusHours,
		&ci.UsedHours, &tiers, &ci.DailyCapHours, &ci.PerExtraPlayerHours,
		&ci.ValidFrom, &ci.ValidUntil, &ci.Suspended, &usage, &ci.CreatedAt, &ci.UpdatedAt)
	if err != nil {
		return nil, err
	}
	ci.Type = ledger.InstrumentType(typ)
	ci.AllowedTiers = make([]domain.PriceTier, len(tiers))
	for i, t := range tiers {
		ci.AllowedTiers[i] = domain.PriceTier(t)
	}
	ci.Usage = make(map[uuid.UUID]ledger.UsageRecord)
	if len(usage) > 0 {
		if err := json.Unmarshal(usage, &ci.Usage); err != nil {
			return nil, fmt.Errorf("failed to unmarshal usage records: %w", err)
		}
	}
	return &ci, nil
}
