package health

import (
	"errors"
	"testing"
	"time"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
		{Status(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.status.String(); got != tt.want {
				t.Errorf("Status.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResultConstructors(t *testing.T) {
	err := errors.New("boom")
	tests := []struct {
		name   string
		result Result
		status Status
	}{
		{"healthy", Healthy("ok"), StatusHealthy},
		{"degraded", Degraded("slow"), StatusDegraded},
		{"unhealthy", Unhealthy("down", err), StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.result.Status != tt.status {
				t.Errorf("Status = %v, want %v", tt.result.Status, tt.status)
			}
			if tt.result.Timestamp.IsZero() {
				t.Error("Timestamp should not be zero")
			}
		})
	}

	if got := Unhealthy("down", err).Error; got != err {
		t.Errorf("Error = %v, want %v", got, err)
	}
}

func TestResult_With(t *testing.T) {
	r := Healthy("ok").
		WithDetails(map[string]any{"dir": "/tmp"}).
		WithDuration(5 * time.Millisecond)

	if r.Details["dir"] != "/tmp" {
		t.Errorf("Details = %v", r.Details)
	}
	if r.Duration != 5*time.Millisecond {
		t.Errorf("Duration = %v, want 5ms", r.Duration)
	}
}
