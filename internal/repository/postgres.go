package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/yourusername/draftforme-backend/internal/models"
	"github.com/yourusername/draftforme-backend/pkg/cache"
)

type PostgresRepo struct {
	DB *sql.DB
}

func NewPostgresRepo(databaseURL string) (*PostgresRepo, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %v", err)
	}

	log.Printf("[INFO] Successfully connected to PostgreSQL")
	return &PostgresRepo{DB: db}, nil
}

// NewPostgresRepoFromDB wraps an already opened handle.
func NewPostgresRepoFromDB(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

func (r *PostgresRepo) HealthCheck(ctx context.Context) bool {
	return r.DB.PingContext(ctx) == nil
}

func (r *PostgresRepo) Name() string { return "postgres" }

func (r *PostgresRepo) Close() error { return r.DB.Close() }

// RunMigrations runs the schema migrations
func (r *PostgresRepo) RunMigrations() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tier_snapshots (
			region TEXT NOT NULL,
			tier TEXT NOT NULL,
			role TEXT NOT NULL,
			payload JSONB NOT NULL,
			champion_count INT NOT NULL DEFAULT 0,
			fetched_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (region, tier, role)
		);

		CREATE INDEX IF NOT EXISTS idx_tier_snapshots_fetched_at ON tier_snapshots(fetched_at);
	`

	_, err := r.DB.Exec(schema)
	return err
}

// LoadSnapshot returns the last tier list persisted for key. A missing row
// is reported as cache.ErrMiss so callers can treat both stores alike.
func (r *PostgresRepo) LoadSnapshot(ctx context.Context, key models.TierKey) (*models.TierSnapshot, error) {
	query := `SELECT payload, fetched_at FROM tier_snapshots WHERE region = $1 AND tier = $2 AND role = $3`

	var payload []byte
	var fetchedAt time.Time
	err := r.DB.QueryRowContext(ctx, query, key.Region, key.Tier, string(key.Role)).Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", key, err)
	}

	var stats []models.ChampionStat
	if err := json.Unmarshal(payload, &stats); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", key, err)
	}

	return &models.TierSnapshot{
		Region:    key.Region,
		Tier:      key.Tier,
		Role:      key.Role,
		Stats:     stats,
		FetchedAt: fetchedAt,
	}, nil
}

// SaveSnapshot upserts a tier list. Older snapshots never overwrite newer ones.
func (r *PostgresRepo) SaveSnapshot(ctx context.Context, snap *models.TierSnapshot) error {
	payload, err := json.Marshal(snap.Stats)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	query := `INSERT INTO tier_snapshots (region, tier, role, payload, champion_count, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (region, tier, role) DO UPDATE SET
			payload = EXCLUDED.payload,
			champion_count = EXCLUDED.champion_count,
			fetched_at = EXCLUDED.fetched_at,
			updated_at = CURRENT_TIMESTAMP
		WHERE tier_snapshots.fetched_at <= EXCLUDED.fetched_at`
	_, err = r.DB.ExecContext(ctx, query, snap.Region, snap.Tier, string(snap.Role), payload, len(snap.Stats), snap.FetchedAt)
	return err
}

// PruneSnapshots deletes snapshots older than maxAge and returns how many went.
func (r *PostgresRepo) PruneSnapshots(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tier_snapshots WHERE fetched_at < $1`, time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
