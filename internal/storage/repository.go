package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"chain-alerts/internal/scan"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	getCheckpointSQL = `SELECT last_block FROM scan_checkpoint WHERE id = 1;`

	setCheckpointSQL = `INSERT INTO scan_checkpoint (id, last_block, updated_at)
    VALUES (1, $1, now())
    ON CONFLICT (id) DO UPDATE
    SET last_block = EXCLUDED.last_block,
        updated_at = EXCLUDED.updated_at;`

	insertAlertSQL = `INSERT INTO alerts (
        kind,
        sub_label,
        tx_hash,
        block_number,
        amount,
        channel,
        delivered
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    RETURNING id, kind, sub_label, tx_hash, block_number, amount, channel, delivered, created_at;`

	listRecentAlertsSQL = `SELECT
        id,
        kind,
        sub_label,
        tx_hash,
        block_number,
        amount,
        channel,
        delivered,
        created_at
    FROM alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	listAlertsBetweenSQL = `SELECT
        id,
        kind,
        sub_label,
        tx_hash,
        block_number,
        amount,
        channel,
        delivered,
        created_at
    FROM alerts
    WHERE created_at >= $1
      AND created_at < $2
    ORDER BY created_at;`

	deleteAlertsBeforeSQL = `DELETE FROM alerts WHERE created_at < $1;`
)

// AlertAuditStore defines operations for the alert audit trail.
type AlertAuditStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	ListAlertsBetween(ctx context.Context, from, to time.Time) ([]AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// Store aggregates Postgres access: the durable scan checkpoint and the
// alert audit trail.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// Get reads the committed scan checkpoint.
func (s *Store) Get(ctx context.Context) (uint64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var lastBlock int64
	if err := pool.QueryRow(ctx, getCheckpointSQL).Scan(&lastBlock); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, scan.ErrCheckpointNotFound
		}
		return 0, fmt.Errorf("get checkpoint: %w", err)
	}
	if lastBlock <= 0 {
		return 0, scan.ErrCheckpointNotFound
	}
	return uint64(lastBlock), nil
}

// Set commits block as fully processed.
func (s *Store) Set(ctx context.Context, block uint64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, setCheckpointSQL, int64(block)); execErr != nil {
		return fmt.Errorf("set checkpoint: %w", execErr)
	}
	return nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.Kind,
		alert.SubLabel,
		alert.TxHash,
		alert.Block,
		alert.Amount.String(),
		alert.Channel,
		alert.Delivered,
	)

	rec, scanErr := scanAlertRecord(row)
	if scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rec, nil
}

// ListRecentAlerts lists most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	return collectAlerts(rows, limit)
}

// ListAlertsBetween lists alerts within a time window.
func (s *Store) ListAlertsBetween(ctx context.Context, from, to time.Time) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAlertsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list alerts between: %w", queryErr)
	}
	defer rows.Close()

	return collectAlerts(rows, 0)
}

// DeleteAlertsBefore deletes historical alerts.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts before: %w", execErr)
	}
	return nil
}

func collectAlerts(rows pgx.Rows, hint int) ([]AlertRecord, error) {
	alerts := make([]AlertRecord, 0, hint)
	for rows.Next() {
		rec, err := scanAlertRecord(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

func scanAlertRecord(row pgx.Row) (AlertRecord, error) {
	var rec AlertRecord
	var amountStr string
	if err := row.Scan(
		&rec.ID,
		&rec.Kind,
		&rec.SubLabel,
		&rec.TxHash,
		&rec.Block,
		&amountStr,
		&rec.Channel,
		&rec.Delivered,
		&rec.CreatedAt,
	); err != nil {
		return AlertRecord{}, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return AlertRecord{}, fmt.Errorf("parse alert amount: %w", err)
	}
	rec.Amount = amount
	return rec, nil
}

var _ scan.CheckpointStore = (*Store)(nil)
var _ AlertAuditStore = (*Store)(nil)
