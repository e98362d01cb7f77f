package domain

import (
	"testing"
	"time"
)

func TestCadenceForQuality(t *testing.T) {
	tests := []struct {
		name       string
		quality    NetworkQuality
		foreground bool
		expected   SyncCadence
	}{
		{"excellent foreground", NetworkExcellent, true, CadenceContinuous},
		{"good foreground", NetworkGood, true, CadenceFastPoll},
		{"poor foreground", NetworkPoor, true, CadenceSlowPoll},
		{"offline foreground", NetworkOffline, true, CadencePaused},
		{"excellent background", NetworkExcellent, false, CadencePaused},
		{"good background", NetworkGood, false, CadencePaused},
		{"poor background", NetworkPoor, false, CadencePaused},
		{"offline background", NetworkOffline, false, CadencePaused},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CadenceForQuality(tt.quality, tt.foreground); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestSyncCadence_PollInterval(t *testing.T) {
	tests := []struct {
		cadence  SyncCadence
		interval time.Duration
	}{
		{CadenceContinuous, 0},
		{CadenceFastPoll, 30 * time.Second},
		{CadenceSlowPoll, 5 * time.Minute},
		{CadencePaused, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.cadence), func(t *testing.T) {
			if got := tt.cadence.PollInterval(); got != tt.interval {
				t.Errorf("expected %v, got %v", tt.interval, got)
			}
		})
	}
}

func TestDevice_Observe(t *testing.T) {
	d := NewDevice("dev-1", "user-1", "ios")

	if d.Cadence != CadencePaused {
		t.Errorf("expected new device paused, got %s", d.Cadence)
	}

	d.Observe(NetworkGood, true)

	if d.Quality != NetworkGood {
		t.Errorf("expected quality %s, got %s", NetworkGood, d.Quality)
	}
	if d.Cadence != CadenceFastPoll {
		t.Errorf("expected cadence %s, got %s", CadenceFastPoll, d.Cadence)
	}

	// Backgrounding pauses regardless of the last known quality.
	d.Observe(NetworkGood, false)
	if d.Cadence != CadencePaused {
		t.Errorf("expected cadence %s after backgrounding, got %s", CadencePaused, d.Cadence)
	}
}

func TestParseNetworkQuality(t *testing.T) {
	if _, err := ParseNetworkQuality("excellent"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := ParseNetworkQuality("5g"); err != ErrInvalidInput {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
