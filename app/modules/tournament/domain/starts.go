package tournamentdomain

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var startParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// ParseStartsAt reads an organizer's free-text start time such as
// "next saturday at 6pm" relative to now in loc, and returns it in UTC
// truncated to the minute. A nil loc means UTC.
func ParseStartsAt(input string, now time.Time, loc *time.Location) (time.Time, error) {
	text := strings.ToLower(strings.TrimSpace(input))
	if text == "" {
		return time.Time{}, fmt.Errorf("starts_at_text is empty")
	}
	if loc == nil {
		loc = time.UTC
	}
	base := now.In(loc)

	r, err := startParser.Parse(text, base)
	if err != nil {
		return time.Time{}, fmt.Errorf("could not read start time %q: %w", input, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not recognize a start time in %q", input)
	}
	at := r.Time.In(loc).Truncate(time.Minute)
	if !at.After(base) {
		return time.Time{}, fmt.Errorf("start time %s is not in the future", at.Format(time.RFC3339))
	}
	return at.UTC(), nil
}
