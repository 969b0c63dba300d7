package executor

import (
	"regexp"
	"strconv"
	"time"
)

// Rate-limit signals the wrapped CLI surfaces on stderr. The retry-after
// pattern is checked first so the server hint is captured when present.
var (
	retryAfterPattern = regexp.MustCompile(`(?i)retry[-_ ]after[:=\s]+(\d+)`)
	rateLimitPattern  = regexp.MustCompile(`(?i)rate.?limit|too many requests|\b429\b`)
)

// detectRateLimit reports whether a line carries a rate-limit signal and the
// server retry-after hint if one was included. A signal without a hint
// returns (0, true); the coordinator falls back to its computed window.
func detectRateLimit(line string) (time.Duration, bool) {
	if match := retryAfterPattern.FindStringSubmatch(line); match != nil {
		if secs, err := strconv.Atoi(match[1]); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second, true
		}
		return 0, true
	}
	if rateLimitPattern.MatchString(line) {
		return 0, true
	}
	return 0, false
}
