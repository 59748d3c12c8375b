package triplog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// ErrNoDSN is returned by Open without a connection string.
var ErrNoDSN = errors.New("triplog: database URL required")

// Postgres records trips with a pgx connection pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open connects, pings, and applies the schema.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Postgres, error) {
	if dsn == "" {
		return nil, ErrNoDSN
	}
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("triplog: parse db config: %w", err)
	}
	poolCfg.MaxConns = 4
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("triplog: create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("triplog: ping db: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("triplog: apply schema: %w", err)
	}

	cc := poolCfg.ConnConfig
	logger = logger.With("component", "triplog")
	logger.Info("database connected", "host", cc.Host, "database", cc.Database)
	return &Postgres{pool: pool, logger: logger}, nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Begin(ctx context.Context, trip Trip) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO trips (id, mode, dest_lat, dest_lng, waypoints, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		trip.ID, string(trip.Mode), trip.Destination.Lat, trip.Destination.Lng, trip.Waypoints, trip.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("triplog: insert trip: %w", err)
	}
	return nil
}

func (p *Postgres) Log(ctx context.Context, e Entry) error {
	var lat, lng *float64
	if e.Position != nil {
		lat, lng = &e.Position.Lat, &e.Position.Lng
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO trip_entries (trip_id, kind, at, lat, lng, text)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.TripID, string(e.Kind), e.At, lat, lng, e.Text,
	)
	if err != nil {
		return fmt.Errorf("triplog: insert entry: %w", err)
	}
	return nil
}

func (p *Postgres) End(ctx context.Context, id uuid.UUID, outcome string, at time.Time) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE trips SET ended_at = $2, outcome = $3 WHERE id = $1 AND ended_at IS NULL`,
		id, at, outcome,
	)
	if err != nil {
		return fmt.Errorf("triplog: end trip: %w", err)
	}
	if tag.RowsAffected() == 0 {
		p.logger.Debug("trip already ended or unknown", "trip", id)
	}
	return nil
}

// Recent lists the latest trips with their entry counts.
func (p *Postgres) Recent(ctx context.Context, limit int) ([]TripSummary, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT t.id, t.mode, t.dest_lat, t.dest_lng, t.waypoints, t.started_at, t.ended_at, t.outcome,
		       (SELECT count(*) FROM trip_entries e WHERE e.trip_id = t.id) AS entries
		FROM trips t
		ORDER BY t.started_at DESC
		LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("triplog: query trips: %w", err)
	}
	trips, err := pgx.CollectRows(rows, pgx.RowToStructByName[TripSummary])
	if err != nil {
		return nil, fmt.Errorf("triplog: scan trips: %w", err)
	}
	return trips, nil
}
