package cache

import (
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/diskmemo/health"
	"github.com/jonwraymond/diskmemo/observe"
)

// Config configures a Cacher. The zero value caches under DefaultRoot with
// DefaultTimeout and no telemetry.
type Config struct {
	// Root is the cache directory. Ignored when Store is set.
	// Default: DefaultRoot
	Root string

	// Policy controls freshness and what counts as a hit.
	Policy Policy

	// SingleFlight makes concurrent misses for the same key within this
	// process share one call of the underlying function. It does not
	// coordinate across processes. Default: false
	SingleFlight bool

	// Keyer derives cache keys. Default: DefaultKeyer
	Keyer Keyer

	// Codec encodes stored values. Ignored when Store is set.
	// Default: JSONCodec
	Codec Codec

	// Store overrides the disk store, e.g. with a MemoryStore.
	Store Store

	// Observer supplies tracing, metrics and logging from one provider
	// set, such as one built by observe.NewObserver. When set, Tracer,
	// Metrics and Logger are ignored.
	Observer observe.Observer

	// Telemetry. Nil fields use no-op implementations.
	Tracer  observe.Tracer
	Metrics observe.Metrics
	Logger  observe.Logger

	// Now is the clock used for entry age. Ignored when Store is set.
	// Default: time.Now
	Now func() time.Time
}

// Cacher is a reusable memoization capability: one store, one policy, any
// number of wrapped functions.
type Cacher struct {
	store        Store
	keyer        Keyer
	policy       Policy
	root         string
	singleFlight bool
	group        singleflight.Group
	mw           *observe.Middleware
	logger       observe.Logger
}

// New creates a Cacher. Unless cfg.Store is set, the cache root is created
// if it does not exist; failing to create it is an error.
func New(cfg Config) (*Cacher, error) {
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	policy := cfg.Policy.withDefaults()

	var mw *observe.Middleware
	if cfg.Observer != nil {
		var err error
		if mw, err = observe.MiddlewareFromObserver(cfg.Observer); err != nil {
			return nil, err
		}
		cfg.Logger = mw.Logger()
	} else {
		if cfg.Logger == nil {
			cfg.Logger = observe.NopLogger()
		}
		mw = observe.NewMiddleware(cfg.Tracer, cfg.Metrics, cfg.Logger)
	}
	if cfg.Keyer == nil {
		cfg.Keyer = NewDefaultKeyer()
	}

	c := &Cacher{
		store:        cfg.Store,
		keyer:        cfg.Keyer,
		policy:       policy,
		singleFlight: cfg.SingleFlight,
		mw:           mw,
		logger:       cfg.Logger,
	}

	if c.store == nil {
		disk, err := NewDiskStore(DiskStoreConfig{
			Root:   cfg.Root,
			Policy: policy,
			Codec:  cfg.Codec,
			Logger: cfg.Logger,
			Now:    cfg.Now,
		})
		if err != nil {
			return nil, err
		}
		c.store = disk
		c.root = disk.Root()
	}

	return c, nil
}

// Configure creates a Cacher with the given timeout and defaults for
// everything else.
//
// A zero timeout selects DefaultTimeout; it does not disable serving. To
// always recompute, skip wrapping. A negative timeout is an error.
func Configure(timeout time.Duration) (*Cacher, error) {
	return New(Config{Policy: Policy{Timeout: timeout}})
}

// Store returns the underlying store for direct reads and writes.
func (c *Cacher) Store() Store {
	return c.store
}

// Policy returns the effective policy.
func (c *Cacher) Policy() Policy {
	return c.policy
}

// Key derives the cache key Wrap would use for id and call.
func (c *Cacher) Key(id Identity, call Call) (string, error) {
	return c.keyer.Key(id, call)
}

// HealthChecker returns a checker for the cache root. It returns nil when
// the Cacher was built with a custom Store.
func (c *Cacher) HealthChecker() health.Checker {
	if c.root == "" {
		return nil
	}
	return health.NewRootChecker(c.root)
}
