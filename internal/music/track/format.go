package track

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Discord rejects embeds whose fields or descriptions exceed these lengths.
const (
	FieldLimit       = 1024
	DescriptionLimit = 4096
)

// FormatDuration renders d as mm:ss, or hh:mm:ss past an hour.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// FormatFriendly renders d as "1 hour, 2 minutes and 3 seconds".
func FormatFriendly(d time.Duration) string {
	total := int(d / time.Second)
	if total <= 0 {
		return "0 seconds"
	}
	h, m, s := total/3600, (total%3600)/60, total%60

	var parts []string
	add := func(n int, unit string) {
		if n == 0 {
			return
		}
		if n != 1 {
			unit += "s"
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, unit))
	}
	add(h, "hour")
	add(m, "minute")
	add(s, "second")

	if len(parts) == 1 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}

// FormatLength renders a track length, using "live" for streams.
func (t Track) FormatLength() string {
	if t.IsStream {
		return "live"
	}
	return FormatDuration(t.Length)
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n-1])) + "…"
}

// FitLines joins lines with newlines, dropping the tail once the result
// would pass limit runes. A trailing "…" marks dropped lines when it fits.
func FitLines(lines []string, limit int) string {
	var b strings.Builder
	used := 0
	for i, line := range lines {
		n := utf8.RuneCountInString(line)
		if i > 0 {
			n++
		}
		if used+n > limit {
			if used+2 <= limit {
				b.WriteString("\n…")
			}
			break
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		used += n
	}
	return b.String()
}
