package cache

import (
	"context"
	"fmt"
	"reflect"

	"github.com/jonwraymond/diskmemo/observe"
)

// Func is the general memoizable shape: positional and keyword arguments
// travel in a Call.
type Func[R any] func(ctx context.Context, call Call) (R, error)

// WrapOption customizes a wrapped function.
type WrapOption func(*wrapOptions)

type wrapOptions struct {
	id Identity
}

// WithIdentity sets the scope and name used in cache keys instead of the
// ones derived from the function symbol. Use it for closures whose derived
// names would change when surrounding code is edited, for method values, or
// to share entries between functions with the same result type.
//
// A method value wrapped with WithIdentity shares entries across receivers;
// give each receiver its own identity, or pass the receiver as an argument
// that implements Keyable.
func WithIdentity(scope, name string) WrapOption {
	return func(o *wrapOptions) {
		o.id = Identity{Scope: scope, Name: name}
	}
}

// target is what a wrapper resolves once at construction. A non-nil err is
// returned from every call.
type target struct {
	id  Identity
	err error
}

func resolve[R any](fn any, opts []WrapOption) target {
	var o wrapOptions
	for _, opt := range opts {
		opt(&o)
	}

	t := target{id: o.id}
	if t.id == (Identity{}) {
		t.id = FuncIdentity(fn)
		if t.id.IsMethodValue() {
			t.err = fmt.Errorf("%w: method value %s does not identify its receiver; use WithIdentity or pass the receiver as a Keyable argument",
				ErrUnsupportedKeyArgument, t.id)
			return t
		}
	}

	if rt := reflect.TypeFor[R](); containsInterface(rt, 0) {
		t.err = fmt.Errorf("%w: %s contains an interface", ErrUnsupportedResult, rt)
	}
	return t
}

// containsInterface reports whether values of t can hold an interface, at
// any depth the codec would decode into.
func containsInterface(t reflect.Type, depth int) bool {
	if depth > maxNormalizeDepth {
		return false
	}
	switch t.Kind() {
	case reflect.Interface:
		return true
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return containsInterface(t.Elem(), depth+1)
	case reflect.Map:
		return containsInterface(t.Key(), depth+1) || containsInterface(t.Elem(), depth+1)
	default:
		return false
	}
}

// Wrap memoizes fn through c.
//
// On each call the key is derived from fn's identity and the Call. A fresh
// entry is decoded and returned without invoking fn. Otherwise fn runs and a
// successful result is stored; errors from fn are returned and never cached.
//
// If the result cannot be stored, the wrapped function returns the result
// together with an error matching ErrNotCached and the cause (ErrUnencodable
// or ErrStorage). A corrupt entry is returned as ErrCorruptEntry without
// invoking fn; an argument that cannot be normalized is returned as
// ErrUnsupportedKeyArgument, also without invoking fn.
//
// Wrapping a method value without WithIdentity, or a function whose result
// type contains an interface (any, []any, map[string]any), yields a wrapper
// that fails every call with ErrUnsupportedKeyArgument or
// ErrUnsupportedResult respectively.
func Wrap[R any](c *Cacher, fn Func[R], opts ...WrapOption) Func[R] {
	t := resolve[R](fn, opts)
	return func(ctx context.Context, call Call) (R, error) {
		return memoize(ctx, c, t, call, func(ctx context.Context) (R, error) {
			return fn(ctx, call)
		})
	}
}

// Wrap0 memoizes a function without arguments.
func Wrap0[R any](c *Cacher, fn func(context.Context) (R, error), opts ...WrapOption) func(context.Context) (R, error) {
	t := resolve[R](fn, opts)
	return func(ctx context.Context) (R, error) {
		return memoize(ctx, c, t, Call{}, fn)
	}
}

// Wrap1 memoizes a function of one argument.
func Wrap1[A, R any](c *Cacher, fn func(context.Context, A) (R, error), opts ...WrapOption) func(context.Context, A) (R, error) {
	t := resolve[R](fn, opts)
	return func(ctx context.Context, a A) (R, error) {
		return memoize(ctx, c, t, Call{Args: []any{a}}, func(ctx context.Context) (R, error) {
			return fn(ctx, a)
		})
	}
}

// Wrap2 memoizes a function of two arguments.
func Wrap2[A, B, R any](c *Cacher, fn func(context.Context, A, B) (R, error), opts ...WrapOption) func(context.Context, A, B) (R, error) {
	t := resolve[R](fn, opts)
	return func(ctx context.Context, a A, b B) (R, error) {
		return memoize(ctx, c, t, Call{Args: []any{a, b}}, func(ctx context.Context) (R, error) {
			return fn(ctx, a, b)
		})
	}
}

// Wrap3 memoizes a function of three arguments.
func Wrap3[A, B, C, R any](c *Cacher, fn func(context.Context, A, B, C) (R, error), opts ...WrapOption) func(context.Context, A, B, C) (R, error) {
	t := resolve[R](fn, opts)
	return func(ctx context.Context, a A, b B, cc C) (R, error) {
		return memoize(ctx, c, t, Call{Args: []any{a, b, cc}}, func(ctx context.Context) (R, error) {
			return fn(ctx, a, b, cc)
		})
	}
}

// computed is a fresh result plus the outcome of storing it.
type computed[R any] struct {
	value    R
	writeErr error
}

func memoize[R any](ctx context.Context, c *Cacher, t target, call Call, compute func(context.Context) (R, error)) (R, error) {
	var zero R
	if c == nil {
		return zero, ErrNilCacher
	}

	meta := observe.FuncMeta{Scope: t.id.Scope, Name: t.id.Name}
	var res computed[R]

	err := c.mw.Observe(ctx, meta, func(ctx context.Context) (observe.Outcome, error) {
		if t.err != nil {
			return observe.OutcomeError, t.err
		}

		key, err := c.keyer.Key(t.id, call)
		if err != nil {
			return observe.OutcomeError, err
		}

		cached, hit, err := lookup[R](ctx, c, key)
		if err != nil {
			return observe.OutcomeError, err
		}
		if hit {
			res.value = cached
			return observe.OutcomeHit, nil
		}

		res, err = fill(ctx, c, key, meta, compute)
		return observe.OutcomeMiss, err
	})
	if err != nil {
		return res.value, err
	}
	return res.value, res.writeErr
}

// lookup reads the entry for key. A stored null, or an empty value under
// Policy.EmptyAsMiss, is reported as a miss.
func lookup[R any](ctx context.Context, c *Cacher, key string) (R, bool, error) {
	var zero R
	// Decode through a pointer so a stored null is distinguishable from a
	// stored zero value.
	var cached *R
	found, err := c.store.Read(ctx, key, &cached)
	if err != nil || !found || cached == nil {
		return zero, false, err
	}
	if !c.policy.Serves(*cached) {
		return zero, false, nil
	}
	return *cached, true, nil
}

// fill runs compute on a miss and stores its result.
func fill[R any](ctx context.Context, c *Cacher, key string, meta observe.FuncMeta, compute func(context.Context) (R, error)) (computed[R], error) {
	run := func() (computed[R], error) {
		value, err := compute(ctx)
		if err != nil {
			// Don't cache errors
			return computed[R]{value: value}, err
		}
		return computed[R]{value: value, writeErr: c.persist(ctx, key, meta, value)}, nil
	}

	if !c.singleFlight {
		return run()
	}

	// Functions sharing an identity may differ in result type; only calls
	// expecting the same type can share a computation. The first caller's
	// context drives it.
	rt := reflect.TypeFor[R]()
	v, err, _ := c.group.Do(key+"\x00"+rt.String(), func() (any, error) {
		return run()
	})
	res, ok := v.(computed[R])
	if !ok {
		return computed[R]{}, fmt.Errorf("cache: shared call for key %q produced %T, want %s", key, v, rt)
	}
	return res, err
}

// persist stores value under key. Failures are logged and counted; the
// returned error matches ErrNotCached.
func (c *Cacher) persist(ctx context.Context, key string, meta observe.FuncMeta, value any) error {
	err := c.store.Write(ctx, key, value)
	if err == nil {
		return nil
	}

	c.mw.Metrics().RecordWriteError(ctx, meta)
	c.logger.WithFunc(meta).Warn(ctx, "failed to cache result",
		observe.Field{Key: "key", Value: key},
		observe.Field{Key: "error", Value: err},
	)
	return fmt.Errorf("%w: %w", ErrNotCached, err)
}
