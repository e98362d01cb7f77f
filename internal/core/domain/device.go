package domain

import "time"

// NetworkQuality is the client-observed link quality reported by a device
type NetworkQuality string

const (
	NetworkExcellent NetworkQuality = "excellent"
	NetworkGood      NetworkQuality = "good"
	NetworkPoor      NetworkQuality = "poor"
	NetworkOffline   NetworkQuality = "offline"
)

// ParseNetworkQuality validates a quality name from external input
func ParseNetworkQuality(s string) (NetworkQuality, error) {
	switch NetworkQuality(s) {
	case NetworkExcellent, NetworkGood, NetworkPoor, NetworkOffline:
		return NetworkQuality(s), nil
	}
	return "", ErrInvalidInput
}

// SyncCadence is the pull frequency the engine selects for a device
type SyncCadence string

const (
	CadenceContinuous SyncCadence = "continuous"
	CadenceFastPoll   SyncCadence = "fast_poll"
	CadenceSlowPoll   SyncCadence = "slow_poll"
	CadencePaused     SyncCadence = "paused"
)

const (
	FastPollInterval = 30 * time.Second
	SlowPollInterval = 5 * time.Minute
)

// CadenceForQuality maps observed network quality onto a cadence. A
// backgrounded device is paused regardless of quality.
func CadenceForQuality(quality NetworkQuality, foreground bool) SyncCadence {
	if !foreground {
		return CadencePaused
	}
	switch quality {
	case NetworkExcellent:
		return CadenceContinuous
	case NetworkGood:
		return CadenceFastPoll
	case NetworkPoor:
		return CadenceSlowPoll
	default:
		return CadencePaused
	}
}

// PollInterval returns the tick period for polling cadences, or zero for
// continuous and paused.
func (c SyncCadence) PollInterval() time.Duration {
	switch c {
	case CadenceFastPoll:
		return FastPollInterval
	case CadenceSlowPoll:
		return SlowPollInterval
	}
	return 0
}

// Device is one client installation reporting network transitions. The
// engine keeps the last observation so cadence decisions survive a
// restart instead of resuming blindly.
type Device struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Platform   string         `json:"platform"`
	Quality    NetworkQuality `json:"quality"`
	Foreground bool           `json:"foreground"`
	Cadence    SyncCadence    `json:"cadence"`
	LastSeenAt time.Time      `json:"last_seen_at"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewDevice registers a device with an unknown network state
func NewDevice(id, userID, platform string) *Device {
	now := time.Now()
	return &Device{
		ID:         id,
		UserID:     userID,
		Platform:   platform,
		Quality:    NetworkOffline,
		Foreground: false,
		Cadence:    CadencePaused,
		LastSeenAt: now,
		CreatedAt:  now,
	}
}

// Observe records a network transition and recomputes the cadence
func (d *Device) Observe(quality NetworkQuality, foreground bool) {
	d.Quality = quality
	d.Foreground = foreground
	d.Cadence = CadenceForQuality(quality, foreground)
	d.LastSeenAt = time.Now()
}
