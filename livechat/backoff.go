package livechat

import "time"

// BackoffDelay returns min(base * 2^attempt, max). Attempt numbers start at
// 1 for the first retry, so with a 1s base and 10s max the sequence is
// 2s, 4s, 8s, 10s, 10s.
func BackoffDelay(base, maxDelay time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		if d >= maxDelay {
			return maxDelay
		}
		d *= 2
	}
	return min(d, maxDelay)
}
