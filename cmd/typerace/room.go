package main

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/typerace/internal/config"
	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/room"
	"github.com/verte-zerg/typerace/internal/session"
	statsPkg "github.com/verte-zerg/typerace/internal/stats"
	"github.com/verte-zerg/typerace/internal/tui"
	"github.com/verte-zerg/typerace/internal/words"
)

var (
	roomPlayerName string
	roomSupplier   string
)

func newRoomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "room",
		Short: "Race other players in a shared room",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRoom(cmd, "")
		},
	}
	cmd.PersistentFlags().StringVar(&roomPlayerName, "name", os.Getenv("USER"), "player name")
	cmd.PersistentFlags().StringVar(&roomSupplier, "supplier", supplierHTTP, "word supplier for extra race text: local, http or nats")

	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Open the lobby ready to create a new room",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRoom(cmd, "")
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "join <room-id>",
		Short: "Open the lobby ready to join an existing room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoom(cmd, args[0])
		},
	})
	return cmd
}

func runRoom(_ *cobra.Command, roomID string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	srv, err := resolveServerConfig(fileCfg.Server)
	if err != nil {
		return err
	}
	supplier := strings.ToLower(roomSupplier)
	if err := model.Validate(struct {
		Supplier string `validate:"oneof=local http nats"`
	}{supplier}); err != nil {
		return err
	}
	if err := requireTerminal(); err != nil {
		return err
	}

	wordList := ""
	if fileCfg.Practice.WordList != nil {
		wordList = *fileCfg.Practice.WordList
	}
	b, err := newBackend(supplier, wordList, srv)
	if err != nil {
		return err
	}
	defer b.Close()

	clock := clockwork.NewRealClock()
	var driver *room.Session
	m := tui.NewRoomModel(func(onChange func()) tui.RoomDriver {
		driver = room.NewSession(room.Config{
			API:          b.api,
			NewTransport: b.newTransport,
			NewWords: func() session.WordSource {
				return words.NewBuffer(b.supplier, model.ContentFlags{}, words.WithClock(clock))
			},
			Clock:      clock,
			OnChange:   func(room.State) { onChange() },
			OnGameOver: logRaceResult,
		})
		return driver
	}, strings.TrimSpace(roomPlayerName), strings.ToUpper(strings.TrimSpace(roomID)))
	defer driver.Close()

	log.Info().Str("transport", srv.Transport).Str("room_id", roomID).Msg("starting room client")
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func logRaceResult(r model.SessionResult) {
	log.Info().
		Str("room_id", r.SessionID).
		Int("correct", r.Correct).
		Int("incorrect", r.Incorrect).
		Float64("wpm", statsPkg.ResultWPM(r)).
		Msg("race finished")
}
