// Package flock implements the flock director: membership, the shared goal
// and the per-mode goal selection driven by the waypoint gate.
package flock

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/flock/config"
)

// Mode selects how the next goal is chosen. It is fixed for the life of a
// flock.
type Mode uint8

const (
	// ModeLazyFlight draws each goal uniformly inside the boundary.
	ModeLazyFlight Mode = iota
	// ModeWaypoint cycles through a fixed ordered list of goals.
	ModeWaypoint
	// ModeFollowLeader follows a leader that wanders on its own. The gate
	// is not consulted.
	ModeFollowLeader
)

// Configuration errors returned by New.
var (
	ErrUnknownMode = errors.New("unknown flock mode")
	ErrNoWaypoints = errors.New("waypoint mode requires at least one waypoint")
	ErrFlockSize   = errors.New("flock size out of range")
)

func (m Mode) String() string {
	switch m {
	case ModeLazyFlight:
		return config.ModeLazyFlight
	case ModeWaypoint:
		return config.ModeWaypoint
	case ModeFollowLeader:
		return config.ModeFollowLeader
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// Valid reports whether m is one of the defined modes.
func (m Mode) Valid() bool {
	return m <= ModeFollowLeader
}

// ParseMode converts a configuration name into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case config.ModeLazyFlight:
		return ModeLazyFlight, nil
	case config.ModeWaypoint:
		return ModeWaypoint, nil
	case config.ModeFollowLeader:
		return ModeFollowLeader, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}
