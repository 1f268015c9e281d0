package model

import (
	"testing"
	"time"
)

func TestKeyRecordLiveAndExpired(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rec := &KeyRecord{Key: "k", HWID: "h", CreatedAt: created, ExpiresAt: created.Add(time.Hour)}

	tests := []struct {
		name        string
		now         time.Time
		wantLive    bool
		wantExpired bool
	}{
		{"before expiry", created.Add(30 * time.Minute), true, false},
		{"exactly at expiry", created.Add(time.Hour), false, false},
		{"after expiry", created.Add(time.Hour + time.Nanosecond), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rec.LiveAt(tt.now); got != tt.wantLive {
				t.Errorf("LiveAt = %v, want %v", got, tt.wantLive)
			}
			if got := rec.ExpiredAt(tt.now); got != tt.wantExpired {
				t.Errorf("ExpiredAt = %v, want %v", got, tt.wantExpired)
			}
		})
	}
}

func TestReasonMessage(t *testing.T) {
	tests := map[string]string{
		"":                  "Key is valid",
		ReasonMissingFields: "Missing key or hwid",
		ReasonNotFound:      "Key not found",
		ReasonHWIDMismatch:  "HWID mismatch",
		ReasonExpired:       "Key expired",
		"something_else":    "something_else",
	}
	for reason, want := range tests {
		if got := ReasonMessage(reason); got != want {
			t.Errorf("ReasonMessage(%q) = %q, want %q", reason, got, want)
		}
	}
}
