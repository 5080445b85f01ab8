package cache

import (
	"fmt"
	"reflect"
	"time"
)

// DefaultTimeout is how long an entry is served after it was written.
const DefaultTimeout = 5 * time.Minute

// Policy configures freshness and hit semantics.
type Policy struct {
	// Timeout is the maximum entry age that is still served.
	// If zero, DefaultTimeout is used.
	Timeout time.Duration

	// EmptyAsMiss treats a stored zero or empty value (0, "", false, empty
	// slice or map) as a miss, so it is recomputed on every call. Off by
	// default: an entry's presence, not its content, decides a hit.
	EmptyAsMiss bool
}

// DefaultPolicy returns the default caching policy.
// Timeout: 5 minutes, EmptyAsMiss: false
func DefaultPolicy() Policy {
	return Policy{
		Timeout:     DefaultTimeout,
		EmptyAsMiss: false,
	}
}

// Validate checks the policy for invalid values.
func (p Policy) Validate() error {
	if p.Timeout < 0 {
		return fmt.Errorf("cache: timeout must not be negative, got %s", p.Timeout)
	}
	return nil
}

// withDefaults fills unset fields.
func (p Policy) withDefaults() Policy {
	if p.Timeout == 0 {
		p.Timeout = DefaultTimeout
	}
	return p
}

// Fresh reports whether an entry of the given age may be served.
// An entry is fresh up to and including the timeout.
func (p Policy) Fresh(age time.Duration) bool {
	return age <= p.Timeout
}

// Serves reports whether a decoded value counts as a hit.
func (p Policy) Serves(v any) bool {
	if !p.EmptyAsMiss {
		return true
	}
	return !isEmpty(reflect.ValueOf(v))
}

func isEmpty(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Map, reflect.String, reflect.Array:
		return v.Len() == 0
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return true
		}
		return isEmpty(v.Elem())
	default:
		return v.IsZero()
	}
}
