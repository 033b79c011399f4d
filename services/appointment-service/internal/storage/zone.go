package storage

import "time"

// zoneOf returns what is persisted beside a request's timestamps so reads can hand
// instants back in the zone the caller used.
func zoneOf(t time.Time) (string, int) {
	_, offset := t.Zone()
	return t.Location().String(), offset
}

func restoreZone(name string, offset int) *time.Location {
	switch name {
	case "", "UTC":
		if offset == 0 {
			return time.UTC
		}
	case "Local":
		return time.Local
	}
	if loc, err := time.LoadLocation(name); err == nil && name != "" {
		return loc
	}
	return time.FixedZone(name, offset)
}
