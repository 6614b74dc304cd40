package cache

import (
	"strconv"
	"strings"
	"time"
)

// BuildUpcomingListKey derives a stable cache key from every listing
// parameter that changes the result set.
func BuildUpcomingListKey(page, limit int, sortBy, sortOrder string, search, location *string, minCap, maxCap *int, from, to *time.Time) string {
	var b strings.Builder

	b.WriteString("events:upcoming:v1")
	b.WriteString(":page=" + strconv.Itoa(page))
	b.WriteString(":limit=" + strconv.Itoa(limit))
	b.WriteString(":sort=" + strings.ToLower(sortBy) + "." + strings.ToLower(sortOrder))

	b.WriteString(":q=")
	if search != nil {
		b.WriteString(strings.ToLower(*search))
	}

	b.WriteString(":loc=")
	if location != nil {
		b.WriteString(strings.ToLower(*location))
	}

	b.WriteString(":cap=")
	if minCap != nil {
		b.WriteString(strconv.Itoa(*minCap))
	}
	b.WriteString("-")
	if maxCap != nil {
		b.WriteString(strconv.Itoa(*maxCap))
	}

	b.WriteString(":from=")
	if from != nil {
		b.WriteString(from.UTC().Format(time.RFC3339Nano))
	}

	b.WriteString(":to=")
	if to != nil {
		b.WriteString(to.UTC().Format(time.RFC3339Nano))
	}

	return b.String()
}
