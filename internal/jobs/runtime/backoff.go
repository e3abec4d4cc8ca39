package runtime

import "time"

// Backoff returns the delay before a job's next attempt: base doubled per
// completed attempt (base, 2*base, 4*base, ...). attempt is 1-based.
func Backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 2 * time.Second
	}
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > 5*time.Minute {
			return 5 * time.Minute
		}
	}
	return d
}
