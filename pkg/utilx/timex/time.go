package timex

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// DatabaseLayouts are the textual timestamp layouts a database commonly returns.
var DatabaseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimeWithMultipleLayouts parses the time string with the provided layouts or as a numeric timestamp.
func ParseTimeWithMultipleLayouts(s string, layouts ...string) (time.Time, error) {
	// First, try to parse the string as a numeric timestamp
	if timestamp, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(0, timestamp*int64(time.Millisecond)).UTC(), nil
	}

	if len(layouts) == 0 {
		return time.Time{}, errors.Errorf("unable to parse time string %q: no layouts provided", s)
	}

	var errParseTime error

	for _, layout := range layouts {
		parsedTime, err := time.Parse(layout, s)
		if err == nil {
			return parsedTime.UTC(), nil
		}

		errParseTime = errors.WithMessagef(err, "unable to parse time string %q with provided layouts", s)
	}

	return time.Time{}, errParseTime
}

// ParseDatabaseTime parses a textual timestamp returned by a database.
func ParseDatabaseTime(s string) (time.Time, error) {
	return ParseTimeWithMultipleLayouts(s, DatabaseLayouts...)
}
