package driven

import (
	"context"

	"github.com/engram-labs/engram-core/internal/core/domain"
)

// DeviceStore persists device network observations so cadence decisions
// survive an engine restart.
type DeviceStore interface {
	// Save creates or updates a device record
	Save(ctx context.Context, device *domain.Device) error

	// Get retrieves a device by ID
	Get(ctx context.Context, id string) (*domain.Device, error)

	// ListByUser retrieves all devices for a user
	ListByUser(ctx context.Context, userID string) ([]*domain.Device, error)

	// ListForeground retrieves devices last seen in the foreground, for
	// restoring poll timers after a restart
	ListForeground(ctx context.Context) ([]*domain.Device, error)

	// Delete removes a device
	Delete(ctx context.Context, id string) error
}
