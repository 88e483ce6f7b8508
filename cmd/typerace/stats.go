package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/typerace/internal/config"
	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/stats"
	"github.com/verte-zerg/typerace/internal/statsui"
	"github.com/verte-zerg/typerace/internal/store"
)

const defaultTrendWindow = 10

var (
	statsMode   string
	statsSince  string
	statsLast   int
	statsWindow int
	statsTable  bool
	statsTUI    bool
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show local race history",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsMode, "mode", "", "mode filter: timer or words")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N sessions")
	cmd.Flags().IntVar(&statsWindow, "window", defaultTrendWindow, "moving average window for the trend")
	cmd.Flags().BoolVar(&statsTable, "table", false, "list every session")
	cmd.Flags().BoolVar(&statsTUI, "tui", false, "browse the history interactively")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	var sinceTime *time.Time
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	cfg := model.StatsConfig{
		Mode:  model.Mode(strings.ToLower(statsMode)),
		Since: sinceTime,
		Last:  statsLast,
	}
	if err := model.Validate(cfg); err != nil {
		return err
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to close db")
		}
	}()

	if statsTUI {
		if err := requireTerminal(); err != nil {
			return err
		}
		program := tea.NewProgram(statsui.NewModel(st, cfg, statsWindow), tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to run stats TUI: %w", err)
		}
		return nil
	}

	report, err := stats.BuildReport(context.Background(), st, cfg, statsWindow)
	if err != nil {
		return err
	}
	return report.Render(cmd.OutOrStdout(), statsTable)
}
