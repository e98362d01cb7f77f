package driving

import (
	"context"

	"github.com/engram-labs/engram-core/internal/core/domain"
)

// NetworkReport is one device's observed network transition
type NetworkReport struct {
	Quality    string `json:"quality"`
	Foreground bool   `json:"foreground"`
	Platform   string `json:"platform,omitempty"`
}

// DeviceService ingests device network reports and keeps the per-device
// sync cadence current. Reports drive the adaptive controller; the last
// observation is persisted so cadence decisions survive a restart.
type DeviceService interface {
	// ReportNetwork records a network transition and returns the device
	// with its recomputed cadence
	ReportNetwork(ctx context.Context, userID, deviceID string, report NetworkReport) (*domain.Device, error)

	// GetDevice retrieves one device.
	// Callers only see their own devices.
	GetDevice(ctx context.Context, userID, deviceID string) (*domain.Device, error)

	// ListDevices retrieves a user's devices
	ListDevices(ctx context.Context, userID string) ([]*domain.Device, error)

	// RestoreCadences replays the persisted state of foreground devices
	// into the controller after a restart, so poll timers come back
	// without waiting for the next report
	RestoreCadences(ctx context.Context) (int, error)
}
