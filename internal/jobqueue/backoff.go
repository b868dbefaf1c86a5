package jobqueue

import "time"

// retrySchedule maps attempt count to the delay before the next attempt.
// Attempts beyond the schedule reuse the final entry.
var retrySchedule = []time.Duration{
	1 * time.Minute,
	4 * time.Minute,
	15 * time.Minute,
	60 * time.Minute,
}

// RetryBackoff returns the delay applied after the given failed attempt
// count. The delay grows with the attempt count.
func RetryBackoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if attempts > len(retrySchedule) {
		attempts = len(retrySchedule)
	}
	return retrySchedule[attempts-1]
}
