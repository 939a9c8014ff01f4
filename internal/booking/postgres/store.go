package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saha-club/bookingservice/internal/booking"
	"github.com/saha-club/bookingservice/internal/booking/domain"
	"github.com/saha-club/bookingservice/internal/metrics"
)

// exclusionViolation is raised by the reservations_no_overlap constraint
// when two live reservations would share a resource window.
const exclusionViolation = "23P01"

// Store is the PostgreSQL-backed persistence layer for reservations and
// the resource catalog.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to PostgreSQL and verifies the connection.
func NewStore(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewStoreWithPool wraps an existing pool.
func NewStoreWithPool(pool *pgxpool.Pool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool cannot be nil")
	}
	return &Store{pool: pool}, nil
}

// Pool exposes the underlying pool for health checks.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Reservations returns the reservation store implementation.
func (s *Store) Reservations() booking.ReservationStore {
	return &reservationStore{pool: s.pool}
}

// Resources returns the resource store implementation.
func (s *Store) Resources() booking.ResourceStore {
	return &resourceStore{pool: s.pool}
}

func observe(operation string, start time.Time) {
	metrics.DatabaseQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

type reservationStore struct {
	pool *pgxpool.Pool
}

const reservationColumns = `id, number, resource_id, user_id, start_time, end_time,
	duration_minutes, player_count, players, status, quote, instrument_id,
	cancellation, created_at, updated_at`

// Create inserts the reservation. The no-overlap exclusion constraint is
// the final arbiter for racing inserts; a violation maps to a slot
// conflict so the caller sees the same error as the in-process check.
func (r *reservationStore) Create(ctx context.Context, res *domain.Reservation) error {
	defer observe("create_reservation", time.Now())

	quote, cancellation, err := marshalReservationJSON(res)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO reservations (`+reservationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		res.ID, res.Number, res.ResourceID, res.UserID, res.StartTime, res.EndTime,
		res.DurationMinutes, res.PlayerCount, res.Players, string(res.Status), quote,
		res.InstrumentID, cancellation, res.CreatedAt, res.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
			return domain.NewSlotConflictError(res.ResourceID, res.StartTime, res.EndTime)
		}
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

func (r *reservationStore) Get(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	defer observe("get_reservation", time.Now())

	row := r.pool.QueryRow(ctx, `
		SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id)
	res, err := scanReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewNotFoundError("reservation", id.String())
	}
	return res, err
}

func (r *reservationStore) Update(ctx context.Context, res *domain.Reservation) error {
	defer observe("update_reservation", time.Now())

	quote, cancellation, err := marshalReservationJSON(res)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE reservations
		SET status = $2, quote = $3, cancellation = $4, updated_at = $5
		WHERE id = $1`,
		res.ID, string(res.Status), quote, cancellation, res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("reservation", res.ID.String())
	}
	return nil
}

func (r *reservationStore) ListLiveOverlapping(ctx context.Context, resourceID string, start, end time.Time) ([]*domain.Reservation, error) {
	defer observe("list_live_overlapping", time.Now())

	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE resource_id = $1
		  AND status IN ('pending_payment', 'confirmed', 'checked_in', 'in_progress')
		  AND start_time < $3 AND end_time > $2
		ORDER BY start_time`,
		resourceID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list overlapping reservations: %w", err)
	}
	return scanReservations(rows)
}

func (r *reservationStore) ListByUser(ctx context.Context, userID string) ([]*domain.Reservation, error) {
	defer observe("list_reservations_by_user", time.Now())

	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE user_id = $1
		ORDER BY start_time DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations by user: %w", err)
	}
	return scanReservations(rows)
}

func (r *reservationStore) ListPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]*domain.Reservation, error) {
	defer observe("list_pending_before", time.Now())

	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE status = 'pending_payment' AND created_at < $1
		ORDER BY created_at`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending reservations: %w", err)
	}
	return scanReservations(rows)
}

func (r *reservationStore) ListConfirmedStartedBefore(ctx context.Context, cutoff time.Time) ([]*domain.Reservation, error) {
	defer observe("list_confirmed_started_before", time.Now())

	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE status = 'confirmed' AND start_time < $1
		ORDER BY start_time`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list confirmed reservations: %w", err)
	}
	return scanReservations(rows)
}

func (r *reservationStore) CountBookedResources(ctx context.Context, start, end time.Time) (int, error) {
	defer observe("count_booked_resources", time.Now())

	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT resource_id) FROM reservations
		WHERE status IN ('pending_payment', 'confirmed', 'checked_in', 'in_progress')
		  AND start_time < $2 AND end_time > $1`,
		start, end).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count booked resources: %w", err)
	}
	return count, nil
}

func marshalReservationJSON(res *domain.Reservation) (quote, cancellation []byte, err error) {
	if res.Quote != nil {
		quote, err = json.Marshal(res.Quote)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal quote: %w", err)
		}
	}
	if res.Cancellation != nil {
		cancellation, err = json.Marshal(res.Cancellation)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal cancellation: %w", err)
		}
	}
	return quote, cancellation, nil
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var (
		res                 domain.Reservation
		status              string
		quote, cancellation []byte
	)
	err := row.Scan(&res.ID, &res.Number, &res.ResourceID, &res.UserID,
		&res.StartTime, &res.EndTime, &res.DurationMinutes, &res.PlayerCount,
		&res.Players, &status, &quote, &res.InstrumentID, &cancellation,
		&res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}
	res.Status = domain.ReservationStatus(status)
	if len(quote) > 0 {
		res.Quote = &domain.PriceQuote{}
		if err := json.Unmarshal(quote, res.Quote); err != nil {
			return nil, fmt.Errorf("failed to unmarshal quote: %w", err)
		}
	}
	if len(cancellation) > 0 {
		res.Cancellation = &domain.CancellationRecord{}
		if err := json.Unmarshal(cancellation, res.Cancellation); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cancellation: %w", err)
		}
	}
	return &res, nil
}

func scanReservations(rows pgx.Rows) ([]*domain.Reservation, error) {
	defer rows.Close()
	var result []*domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, res)
	}
	return result, rows.Err()
}

type resourceStore struct {
	pool *pgxpool.Pool
}

func (r *resourceStore) Get(ctx context.Context, id string) (*domain.Resource, error) {
	defer observe("get_resource", time.Now())

	var (
		res         domain.Resource
		typ, status string
		openAt      *string
		closeAt     *string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, type, status, open_at, close_at
		FROM resources WHERE id = $1`, id).
		Scan(&res.ID, &res.Name, &typ, &status, &openAt, &closeAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewNotFoundError("resource", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	res.Type = domain.ResourceType(typ)
	res.Status = domain.ResourceStatus(status)
	if openAt != nil {
		res.OperatingHours.Open = *openAt
	}
	if closeAt != nil {
		res.OperatingHours.Close = *closeAt
	}
	return &res, nil
}

func (r *resourceStore) List(ctx context.Context) ([]*domain.Resource, error) {
	defer observe("list_resources", time.Now())

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, type, status, open_at, close_at
		FROM resources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	var result []*domain.Resource
	for rows.Next() {
		var (
			res         domain.Resource
			typ, status string
			openAt      *string
			closeAt     *string
		)
		if err := rows.Scan(&res.ID, &res.Name, &typ, &status, &openAt, &closeAt); err != nil {
			return nil, err
		}
		res.Type = domain.ResourceType(typ)
		res.Status = domain.ResourceStatus(status)
		if openAt != nil {
			res.OperatingHours.Open = *openAt
		}
		if closeAt != nil {
			res.OperatingHours.Close = *closeAt
		}
		result = append(result, &res)
	}
	return result, rows.Err()
}

func (r *resourceStore) CountActiveResources(ctx context.Context) (int, error) {
	defer observe("count_active_resources", time.Now())

	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM resources WHERE status = 'active'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active resources: %w", err)
	}
	return count, nil
}
