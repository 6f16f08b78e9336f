package amos

import (
	"fmt"
	"strconv"
	"time"

	errs "amosync/pkg/errors"
)

// TimestampLayout is the layout of image timestamps, e.g. 20160101_000356
const TimestampLayout = "20060102_150405"

// ParseTimestamp converts an image timestamp into a UTC instant
func ParseTimestamp(ts string) (time.Time, error) {
	if len(ts) != len(TimestampLayout) || ts[8] != '_' {
		return time.Time{}, errs.New(errs.ErrorTypeParsing, fmt.Sprintf("malformed timestamp %q", ts))
	}

	var parts [6]int
	spans := [6][2]int{{0, 4}, {4, 6}, {6, 8}, {9, 11}, {11, 13}, {13, 15}}
	for i, s := range spans {
		n, err := strconv.Atoi(ts[s[0]:s[1]])
		if err != nil || n < 0 {
			return time.Time{}, errs.Wrap(errs.ErrorTypeParsing, err, "malformed timestamp %q", ts)
		}
		parts[i] = n
	}

	t := time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], 0, time.UTC)
	// time.Date normalises out-of-range fields, so a mismatch means the input was invalid.
	if t.Format(TimestampLayout) != ts {
		return time.Time{}, errs.New(errs.ErrorTypeParsing, fmt.Sprintf("timestamp %q out of range", ts))
	}
	return t, nil
}

// FormatTimestamp renders t in the image timestamp layout
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
