package profile

import "errors"

var (
	// ErrInvalidSettings wraps every Settings validation failure.
	ErrInvalidSettings = errors.New("invalid profile settings")

	// ErrWaypointIndex is returned by Rename for an index outside the waypoint set.
	ErrWaypointIndex = errors.New("waypoint index out of range")
)
