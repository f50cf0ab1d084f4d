// Package duration parses human-readable session lengths like "1h30m".
package duration

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/humaxai2025/flowmode/internal/domain"
)

var units = []struct {
	letter byte
	value  time.Duration
}{
	{'h', time.Hour},
	{'m', time.Minute},
	{'s', time.Second},
}

// Parse converts text made of unsigned-integer unit tokens (h, m, s, in
// descending order, each at most once) into a duration. Whitespace between
// tokens is ignored. A zero total is accepted.
func Parse(text string) (time.Duration, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, invalid(text, "empty duration")
	}

	var total time.Duration
	next := 0 // index into units of the smallest unit still allowed

	for i := 0; i < len(s); {
		if s[i] == ' ' || s[i] == '\t' {
			i++
			continue
		}

		start := i
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if start == i {
			return 0, invalid(text, fmt.Sprintf("expected digits at offset %d", start))
		}
		digits := s[start:i]

		if i == len(s) {
			return 0, invalid(text, fmt.Sprintf("missing unit after %q", digits))
		}

		letter := byte(unicode.ToLower(rune(s[i])))
		idx := unitIndex(letter)
		if idx < 0 {
			return 0, invalid(text, fmt.Sprintf("unknown unit %q", s[i]))
		}
		if idx < next {
			return 0, invalid(text, fmt.Sprintf("unit %q is duplicated or out of order", s[i]))
		}
		next = idx + 1
		i++

		n, err := strconv.ParseInt(digits, 10, 64)
		if err != nil || n > math.MaxInt64/int64(units[idx].value) {
			return 0, invalid(text, "value out of range")
		}
		part := time.Duration(n) * units[idx].value
		if total > math.MaxInt64-part {
			return 0, invalid(text, "value out of range")
		}
		total += part
	}

	return total, nil
}

// ParseSession parses a top-level session duration, which must be positive.
func ParseSession(text string) (time.Duration, error) {
	d, err := Parse(text)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, invalid(text, "session duration must be greater than zero")
	}
	return d, nil
}

// Format renders d in the canonical form accepted by Parse, e.g. "1h30m".
// Sub-second precision is truncated.
func Format(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}

	var b strings.Builder
	rest := d.Truncate(time.Second)
	for _, u := range units {
		n := rest / u.value
		if n == 0 {
			continue
		}
		rest -= n * u.value
		b.WriteString(strconv.FormatInt(int64(n), 10))
		b.WriteByte(u.letter)
	}
	return b.String()
}

func unitIndex(letter byte) int {
	for i, u := range units {
		if u.letter == letter {
			return i
		}
	}
	return -1
}

func invalid(text, reason string) error {
	return fmt.Errorf("%w %q: %s (use a format like 25m, 1h, 1h30m, 90s)",
		domain.ErrInvalidDuration, text, reason)
}
