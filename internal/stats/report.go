package stats

import (
	"context"
	"fmt"
	"io"

	"github.com/verte-zerg/typerace/internal/model"
)

// SessionLister is the history source for reports.
type SessionLister interface {
	ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.SessionAggregate, error)
}

// Report contains precomputed data for stats rendering.
type Report struct {
	Sessions []model.SessionAggregate
	Window   int
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, src SessionLister, cfg model.StatsConfig, window int) (Report, error) {
	sessions, err := src.ListSessions(ctx, cfg)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list sessions: %w", err)
	}
	if cfg.Last > 0 && len(sessions) > cfg.Last {
		sessions = sessions[len(sessions)-cfg.Last:]
	}
	return Report{Sessions: sessions, Window: window}, nil
}

// Render writes the summary and, when table is set, the per-session table.
func (r Report) Render(w io.Writer, table bool) error {
	if err := RenderSummary(w, r.Sessions, r.Window); err != nil {
		return err
	}
	if !table {
		return nil
	}
	return RenderSessionTable(w, r.Sessions)
}
