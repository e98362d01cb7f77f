package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DeviceStore = (*DeviceStore)(nil)

// DeviceStore implements driven.DeviceStore using PostgreSQL
type DeviceStore struct {
	db *DB
}

// NewDeviceStore creates a new DeviceStore
func NewDeviceStore(db *DB) *DeviceStore {
	return &DeviceStore{db: db}
}

const deviceColumns = `id, user_id, platform, quality, foreground, cadence, last_seen_at, created_at`

// Save creates or updates a device record
func (s *DeviceStore) Save(ctx context.Context, device *domain.Device) error {
	query := `
		INSERT INTO devices (` + deviceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			platform = EXCLUDED.platform,
			quality = EXCLUDED.quality,
			foreground = EXCLUDED.foreground,
			cadence = EXCLUDED.cadence,
			last_seen_at = EXCLUDED.last_seen_at
	`

	_, err := s.db.ExecContext(ctx, query,
		device.ID,
		device.UserID,
		device.Platform,
		string(device.Quality),
		device.Foreground,
		string(device.Cadence),
		device.LastSeenAt,
		device.CreatedAt,
	)
	return err
}

// Get retrieves a device by ID
func (s *DeviceStore) Get(ctx context.Context, id string) (*domain.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1`
	return scanDevice(s.db.QueryRowContext(ctx, query, id))
}

// ListByUser retrieves all devices for a user
func (s *DeviceStore) ListByUser(ctx context.Context, userID string) ([]*domain.Device, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM devices
		WHERE user_id = $1
		ORDER BY last_seen_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDevices(rows)
}

// ListForeground retrieves devices last seen in the foreground, for
// restoring poll timers after a restart.
func (s *DeviceStore) ListForeground(ctx context.Context) ([]*domain.Device, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM devices
		WHERE foreground = TRUE
		ORDER BY last_seen_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDevices(rows)
}

// Delete removes a device
func (s *DeviceStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanDevice(row scanner) (*domain.Device, error) {
	var (
		device  domain.Device
		quality string
		cadence string
	)

	err := row.Scan(
		&device.ID,
		&device.UserID,
		&device.Platform,
		&quality,
		&device.Foreground,
		&cadence,
		&device.LastSeenAt,
		&device.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	device.Quality = domain.NetworkQuality(quality)
	device.Cadence = domain.SyncCadence(cadence)
	return &device, nil
}

func collectDevices(rows *sql.Rows) ([]*domain.Device, error) {
	var devices []*domain.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}
	return devices, rows.Err()
}
