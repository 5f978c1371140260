package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/geom"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the flock state at one tick. Vectors are stored as
// coordinate slices so the same format serves 2D and 3D runs.
type Snapshot struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id"`
	Seed    int64  `json:"seed"`

	Tick int32  `json:"tick"`
	Mode string `json:"mode"`
	Dims int    `json:"dims"`

	Origin   []float64 `json:"origin"`
	Boundary []float64 `json:"boundary"`

	Goal      []float64    `json:"goal,omitempty"`
	Waypoints [][]float64  `json:"waypoints,omitempty"`
	Leader    *LeaderState `json:"leader,omitempty"`
	Agents    []AgentState `json:"agents"`
	Bookmark  *Bookmark    `json:"bookmark,omitempty"`
}

// LeaderState holds the leader's pose and current target.
type LeaderState struct {
	Position []float64 `json:"position"`
	Heading  []float64 `json:"heading"`
	Target   []float64 `json:"target"`
	Arrivals int       `json:"arrivals"`
}

// AgentState holds one agent's complete state.
type AgentState struct {
	ID          uint32             `json:"id"`
	Position    []float64          `json:"position"`
	Heading     []float64          `json:"heading"`
	Velocity    []float64          `json:"velocity"`
	Weights     components.Weights `json:"weights"`
	FlockRadius float64            `json:"flock_radius"`
	Speed       float64            `json:"speed"`
}

// Coords flattens v into a coordinate slice.
func Coords[V any](space geom.Space[V], v V) []float64 {
	out := make([]float64, space.Dims())
	for i := range out {
		out[i] = space.Coord(v, i)
	}
	return out
}

// SaveSnapshot writes a snapshot to dir and returns the file path.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%d", snapshot.Tick)
	if snapshot.Bookmark != nil {
		name += "_" + strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
	}
	path := filepath.Join(dir, name+".json")

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}
	return &snapshot, nil
}
