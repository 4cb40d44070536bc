package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fleetkeeper/fleetkeeper/internal/models"
	"github.com/fleetkeeper/fleetkeeper/internal/server/storage"
)

// CreateDevice registers a new device
// Returns ErrDeviceAlreadyExists if device with this id exists
func (s *Storage) CreateDevice(ctx context.Context, device *models.Device) error {
	query := `
		INSERT INTO devices (id, org_id, name, secret_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		device.ID,
		device.OrgID,
		device.Name,
		device.SecretHash,
		device.CreatedAt.Unix(),
	)

	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDeviceAlreadyExists
		}
		return fmt.Errorf("failed to create device: %w", err)
	}

	return nil
}

// GetDevice retrieves a device by id
// Returns ErrDeviceNotFound if device doesn't exist
func (s *Storage) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	query := `
		SELECT id, org_id, name, secret_hash, created_at
		FROM devices
		WHERE id = ?
	`

	device := &models.Device{}
	var createdAt int64

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&device.ID,
		&device.OrgID,
		&device.Name,
		&device.SecretHash,
		&createdAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	device.CreatedAt = time.Unix(createdAt, 0)

	return device, nil
}
