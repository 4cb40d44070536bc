package storage

import (
	"context"

	"github.com/fleetkeeper/fleetkeeper/internal/models"
)

// DeviceStorage defines interface for device enrollment persistence
type DeviceStorage interface {
	// CreateDevice registers a new device
	// Returns ErrDeviceAlreadyExists if device with this id exists
	CreateDevice(ctx context.Context, device *models.Device) error

	// GetDevice retrieves a device by id
	// Returns ErrDeviceNotFound if device doesn't exist
	GetDevice(ctx context.Context, id string) (*models.Device, error)
}
