package repository

import "time"

// QueryObserver receives per-query latency observations. The metrics service
// satisfies it; a nil observer disables timing.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// observe feeds the elapsed time of a labelled query to the observer.
// Meant for defer: observe(r.metrics, "user_create", time.Now()).
func observe(obs QueryObserver, label string, start time.Time) {
	if obs != nil {
		obs.ObserveDBQuery(label, time.Since(start))
	}
}
