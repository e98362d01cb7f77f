package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/engram-labs/engram-core/internal/core/domain"
	"github.com/engram-labs/engram-core/internal/core/ports/driven"
	"github.com/engram-labs/engram-core/internal/core/ports/driving"
	"github.com/engram-labs/engram-core/internal/netwatch"
)

// Ensure deviceService implements DeviceService
var _ driving.DeviceService = (*deviceService)(nil)

// deviceService ingests device network reports. Each report is persisted
// and fed to the adaptive controller, which owns the poll timers.
type deviceService struct {
	deviceStore driven.DeviceStore
	controller  *netwatch.Controller
}

// NewDeviceService creates a new DeviceService
func NewDeviceService(deviceStore driven.DeviceStore, controller *netwatch.Controller) driving.DeviceService {
	return &deviceService{
		deviceStore: deviceStore,
		controller:  controller,
	}
}

// ReportNetwork records a network transition and returns the device with
// its recomputed cadence. Unknown devices are registered on first report.
func (s *deviceService) ReportNetwork(ctx context.Context, userID, deviceID string, report driving.NetworkReport) (*domain.Device, error) {
	quality, err := domain.ParseNetworkQuality(report.Quality)
	if err != nil {
		return nil, fmt.Errorf("network quality %q: %w", report.Quality, err)
	}

	device, err := s.deviceStore.Get(ctx, deviceID)
	switch {
	case err == nil:
		if device.UserID != userID {
			return nil, domain.ErrNotFound
		}
	case errors.Is(err, domain.ErrNotFound):
		device = domain.NewDevice(deviceID, userID, report.Platform)
	default:
		return nil, fmt.Errorf("failed to load device: %w", err)
	}

	device.Observe(quality, report.Foreground)
	if report.Platform != "" {
		device.Platform = report.Platform
	}
	device.Cadence = s.controller.Observe(userID, deviceID, quality, report.Foreground)

	if err := s.deviceStore.Save(ctx, device); err != nil {
		return nil, fmt.Errorf("failed to save device: %w", err)
	}
	return device, nil
}

// GetDevice retrieves one of the caller's devices
func (s *deviceService) GetDevice(ctx context.Context, userID, deviceID string) (*domain.Device, error) {
	device, err := s.deviceStore.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return device, nil
}

// ListDevices retrieves a user's devices
func (s *deviceService) ListDevices(ctx context.Context, userID string) ([]*domain.Device, error) {
	return s.deviceStore.ListByUser(ctx, userID)
}

// RestoreCadences replays persisted foreground observations into the
// controller. Backgrounded devices stay paused and need no replay.
func (s *deviceService) RestoreCadences(ctx context.Context) (int, error) {
	devices, err := s.deviceStore.ListForeground(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list foreground devices: %w", err)
	}

	for _, device := range devices {
		s.controller.Observe(device.UserID, device.ID, device.Quality, device.Foreground)
	}
	return len(devices), nil
}
