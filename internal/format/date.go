package format

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// PrettyDate describes t relative to now, e.g. "3 minutes ago" or
// "yesterday". Times in the future or more than four weeks back are
// printed as a date.
func PrettyDate(t, now time.Time) string {
	diff := now.Sub(t)
	days := int(diff / day)

	switch {
	case diff < 0 || days >= 28:
		return t.Format("02 Jan 06")
	case days >= 14:
		return fmt.Sprintf("%d weeks ago", days/7)
	case days >= 7:
		return "1 week ago"
	case days >= 2:
		return fmt.Sprintf("%d days ago", days)
	case days == 1:
		return "yesterday"
	}

	seconds := int(diff / time.Second)
	switch {
	case seconds < 10:
		return "just now"
	case seconds < 60:
		return fmt.Sprintf("%d seconds ago", seconds)
	case seconds < 120:
		return "1 minute ago"
	case seconds < 3600:
		return fmt.Sprintf("%d minutes ago", seconds/60)
	case seconds < 7200:
		return "1 hour ago"
	default:
		return fmt.Sprintf("%d hours ago", seconds/3600)
	}
}
