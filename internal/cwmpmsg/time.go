package cwmpmsg

import "time"

// nowISO renders the current UTC time in the ISO-8601 form the wire
// format uses for CurrentTime/CompleteTime.
func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}

// ISOTime is the exported form, used by the session/rpc packages when
// they need a wire timestamp outside of this package's own builders.
func ISOTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
