package batch

import (
	"math"
	"time"
)

// BackoffPolicy derives the poll interval of a batch from its size.
type BackoffPolicy struct {
	// Exponent applied to the item count (seconds = items^Exponent).
	Exponent float64

	// Min and Max bound the resulting interval.
	Min time.Duration
	Max time.Duration
}

// DefaultBackoffPolicy returns items^0.4 seconds bounded to [3s, 300s].
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		Exponent: 0.4,
		Min:      3 * time.Second,
		Max:      300 * time.Second,
	}
}

// SleepInterval returns how long a poller waits between two GETs for a batch
// of nItems inputs. Larger batches take the service longer, so they are
// polled less often. The result is non-decreasing in nItems.
func SleepInterval(nItems int, p BackoffPolicy) time.Duration {
	def := DefaultBackoffPolicy()
	if p.Exponent <= 0 {
		p.Exponent = def.Exponent
	}
	if p.Min <= 0 {
		p.Min = def.Min
	}
	if p.Max < p.Min {
		p.Max = max(def.Max, p.Min)
	}

	n := float64(max(nItems, 0))
	d := time.Duration(math.Floor(math.Pow(n, p.Exponent))) * time.Second

	if d < p.Min {
		return p.Min
	}
	if d > p.Max {
		return p.Max
	}
	return d
}
