// Package health reports whether a cache root can serve reads and writes.
//
// A Checker returns a Result with a Status of Healthy, Degraded or
// Unhealthy. RootChecker checks a cache directory:
//
//	checker := health.NewRootChecker(".cache")
//	if res := checker.Check(ctx); res.Status != health.StatusHealthy {
//	    log.Printf("cache root: %s", res.Message)
//	}
package health
