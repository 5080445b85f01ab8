package cache

import (
	"testing"
	"time"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.Timeout != 5*time.Minute {
		t.Errorf("Timeout = %v, want 5m", p.Timeout)
	}
	if p.EmptyAsMiss {
		t.Error("EmptyAsMiss should be off by default")
	}
}

func TestPolicy_Validate(t *testing.T) {
	if err := (Policy{Timeout: -time.Second}).Validate(); err == nil {
		t.Error("negative timeout should be rejected")
	}
	if err := (Policy{}).Validate(); err != nil {
		t.Errorf("zero policy should be valid, got %v", err)
	}
	if got := (Policy{}).withDefaults().Timeout; got != DefaultTimeout {
		t.Errorf("withDefaults().Timeout = %v, want %v", got, DefaultTimeout)
	}
}

func TestPolicy_Fresh(t *testing.T) {
	p := Policy{Timeout: 10 * time.Second}

	tests := []struct {
		age  time.Duration
		want bool
	}{
		{0, true},
		{10*time.Second - time.Millisecond, true},
		{10 * time.Second, true},
		{10*time.Second + time.Millisecond, false},
		{time.Hour, false},
		{-time.Second, true}, // clock skew: entry from the future
	}

	for _, tt := range tests {
		if got := p.Fresh(tt.age); got != tt.want {
			t.Errorf("Fresh(%v) = %v, want %v", tt.age, got, tt.want)
		}
	}
}

func TestPolicy_Serves(t *testing.T) {
	tests := []struct {
		name  string
		value any
		empty bool
	}{
		{"zero int", 0, true},
		{"int", 3, false},
		{"empty string", "", true},
		{"string", "x", false},
		{"false", false, true},
		{"true", true, false},
		{"empty slice", []int{}, true},
		{"slice", []int{0}, false},
		{"empty map", map[string]int{}, true},
		{"zero float", 0.0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !(Policy{}).Serves(tt.value) {
				t.Error("default policy should serve every value")
			}
			got := (Policy{EmptyAsMiss: true}).Serves(tt.value)
			if got == tt.empty {
				t.Errorf("EmptyAsMiss Serves(%#v) = %v, want %v", tt.value, got, !tt.empty)
			}
		})
	}
}
