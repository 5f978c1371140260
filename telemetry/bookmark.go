package telemetry

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/flock/config"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkFastCycle BookmarkType = "fast_cycle"
	BookmarkScatter   BookmarkType = "scatter"
	BookmarkRegroup   BookmarkType = "regroup"
	BookmarkStalled   BookmarkType = "stalled"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	RunID       string       `csv:"run_id" json:"run_id"`
	Type        BookmarkType `csv:"type" json:"type"`
	Tick        int32        `csv:"tick" json:"tick"`
	Description string       `csv:"description" json:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector flags notable windows: bursts of goal changes, the flock
// scattering, the flock lining up again, and goals that stop advancing.
type BookmarkDetector struct {
	cfg config.BookmarksConfig
	// Stall detection only applies when the gate drives goal changes.
	gated bool

	// Rolling history (circular buffer)
	history []WindowStats
	idx     int
	full    bool

	disordered bool // polarization fell below the low mark
	quiet      int  // consecutive windows without a goal change
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int, cfg config.BookmarksConfig, gated bool) *BookmarkDetector {
	if historySize < 3 {
		historySize = 3
	}
	return &BookmarkDetector{
		cfg:     cfg,
		gated:   gated,
		history: make([]WindowStats, historySize),
	}
}

// Check analyses the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var out []Bookmark
	for _, check := range []func(WindowStats) *Bookmark{
		bd.checkFastCycle,
		bd.checkScatter,
		bd.checkRegroup,
		bd.checkStalled,
	} {
		if b := check(stats); b != nil {
			b.RunID = stats.RunID
			out = append(out, *b)
		}
	}
	bd.addToHistory(stats)
	return out
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.idx] = stats
	bd.idx = (bd.idx + 1) % len(bd.history)
	if bd.idx == 0 {
		bd.full = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.full {
		return bd.history
	}
	return bd.history[:bd.idx]
}

func (bd *BookmarkDetector) checkFastCycle(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}
	var total int
	for _, h := range history {
		total += h.GoalChanges
	}
	avg := float64(total) / float64(len(history))
	if avg == 0 || stats.GoalChanges < bd.cfg.FastCycle.MinGoalChanges {
		return nil
	}
	if float64(stats.GoalChanges) > avg*bd.cfg.FastCycle.Multiplier {
		return &Bookmark{
			Type:        BookmarkFastCycle,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("%d goal changes is %.1fx average (%.2f)", stats.GoalChanges, float64(stats.GoalChanges)/avg, avg),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkScatter(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}
	spreads := make([]float64, len(history))
	for i, h := range history {
		spreads[i] = h.SpreadP90
	}
	avg, _ := MeanStd(spreads)
	if avg == 0 || stats.SpreadP90 < bd.cfg.Scatter.MinSpread {
		return nil
	}
	if stats.SpreadP90 > avg*bd.cfg.Scatter.Multiplier {
		return &Bookmark{
			Type:        BookmarkScatter,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Spread p90 %.1f is %.1fx average (%.1f)", stats.SpreadP90, stats.SpreadP90/avg, avg),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkRegroup(stats WindowStats) *Bookmark {
	if stats.Polarization < bd.cfg.Regroup.LowPolarization {
		bd.disordered = true
		return nil
	}
	if bd.disordered && stats.Polarization >= bd.cfg.Regroup.HighPolarization {
		bd.disordered = false
		return &Bookmark{
			Type:        BookmarkRegroup,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Polarization recovered to %.2f", stats.Polarization),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkStalled(stats WindowStats) *Bookmark {
	if !bd.gated || bd.cfg.Stalled.Windows <= 0 {
		return nil
	}
	if stats.GoalChanges > 0 {
		bd.quiet = 0
		return nil
	}
	bd.quiet++
	// trigger exactly once per stall
	if bd.quiet == bd.cfg.Stalled.Windows {
		return &Bookmark{
			Type:        BookmarkStalled,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("No goal change for %d windows, mean goal distance %.1f", bd.quiet, stats.GoalDistMean),
		}
	}
	return nil
}
