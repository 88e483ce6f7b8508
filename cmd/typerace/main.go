// Package main provides the CLI entrypoint for typerace.
package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/typerace/internal/api"
	"github.com/verte-zerg/typerace/internal/config"
	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/store"
	"github.com/verte-zerg/typerace/internal/tui"
)

const (
	defaultMode      = string(model.ModeTimer)
	defaultDuration  = 30
	defaultWords     = 25
	defaultSupplier  = supplierLocal
	defaultWSURL     = "ws://localhost:8080/ws"
	defaultNATSURL   = "nats://127.0.0.1:4222"
	defaultTransport = "websocket"
)

var (
	debugLogging bool
	logFile      io.Closer

	practiceMode     string
	practiceDuration int
	practiceWords    int
	practicePunct    bool
	practiceNumbers  bool
	practiceSupplier string
	practiceWordList string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "typerace",
		Short:             "Terminal typing races, solo or against friends",
		SilenceUsage:      true,
		SilenceErrors:     false,
		PersistentPreRunE: setupLogging,
		PersistentPostRun: func(*cobra.Command, []string) { closeLogging() },
		RunE:              runPracticeCmd,
	}

	rootCmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "verbose human-readable log file")
	addPracticeFlags(rootCmd)

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newRoomCmd())
	rootCmd.AddCommand(newStatsCmd())

	return rootCmd
}

func addPracticeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&practiceMode, "mode", defaultMode, "race mode: timer or words")
	cmd.Flags().IntVar(&practiceDuration, "duration", defaultDuration, "timer length in seconds")
	cmd.Flags().IntVar(&practiceWords, "words", defaultWords, "word count target")
	cmd.Flags().BoolVar(&practicePunct, "punct", false, "include punctuation")
	cmd.Flags().BoolVar(&practiceNumbers, "numbers", false, "include numbers")
	cmd.Flags().StringVar(&practiceSupplier, "supplier", defaultSupplier, "word supplier: local, http or nats")
	cmd.Flags().StringVar(&practiceWordList, "wordlist", "", "word list file for the local supplier")
}

// setupLogging routes zerolog to a file, since the TUI owns the terminal.
func setupLogging(_ *cobra.Command, _ []string) error {
	path := config.DefaultLogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	logFile = f

	var w io.Writer = f
	level := zerolog.InfoLevel
	if debugLogging {
		w = zerolog.ConsoleWriter{Out: f, NoColor: true, TimeFormat: time.RFC3339}
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}

func closeLogging() {
	if logFile == nil {
		return
	}
	if cerr := logFile.Close(); cerr != nil {
		// Best-effort close.
		_ = cerr
	}
	logFile = nil
}

func runPracticeCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "mode", &practiceMode, fileCfg.Practice.Mode)
	applyIntConfig(cmd, "duration", &practiceDuration, fileCfg.Practice.Duration)
	applyIntConfig(cmd, "words", &practiceWords, fileCfg.Practice.Words)
	applyBoolConfig(cmd, "punct", &practicePunct, fileCfg.Practice.Punctuation)
	applyBoolConfig(cmd, "numbers", &practiceNumbers, fileCfg.Practice.Numbers)
	applyStringConfig(cmd, "supplier", &practiceSupplier, fileCfg.Practice.Supplier)
	applyStringConfig(cmd, "wordlist", &practiceWordList, fileCfg.Practice.WordList)

	cfg := model.Config{
		Mode:     model.Mode(strings.ToLower(practiceMode)),
		Duration: practiceDuration,
		Words:    practiceWords,
		Flags:    model.ContentFlags{Punctuation: practicePunct, Numbers: practiceNumbers},
		Supplier: strings.ToLower(practiceSupplier),
	}
	if err := model.Validate(cfg); err != nil {
		return err
	}
	srv, err := resolveServerConfig(fileCfg.Server)
	if err != nil {
		return err
	}
	if err := requireTerminal(); err != nil {
		return err
	}

	b, err := newBackend(cfg.Supplier, practiceWordList, srv)
	if err != nil {
		return err
	}
	defer b.Close()

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to close db")
		}
	}()

	deps := tui.PracticeDeps{
		Supplier: b.supplier,
		History:  st,
		Clock:    clockwork.NewRealClock(),
	}
	if cfg.Supplier == supplierHTTP {
		deps.Sessions = b.api
		deps.Results = b.api
	}

	log.Info().Str("mode", string(cfg.Mode)).Int("target", cfg.Target()).Str("supplier", cfg.Supplier).Msg("starting practice")
	m := tui.NewPracticeModel(cfg, deps)
	defer m.Close()
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// resolveServerConfig merges file and environment values over the defaults.
func resolveServerConfig(fc config.ServerConfig) (model.ServerConfig, error) {
	srv := model.ServerConfig{
		APIURL:    api.DefaultBaseURL,
		WSURL:     defaultWSURL,
		NATSURL:   defaultNATSURL,
		Transport: defaultTransport,
	}
	setString(&srv.APIURL, fc.APIURL)
	setString(&srv.WSURL, fc.WSURL)
	setString(&srv.NATSURL, fc.NATSURL)
	setString(&srv.Transport, fc.Transport)
	srv.Transport = strings.ToLower(srv.Transport)
	if d := fc.Timeout(); d != nil {
		srv.RequestTimeout = *d
	}
	if err := model.Validate(srv); err != nil {
		return model.ServerConfig{}, err
	}
	return srv, nil
}

func requireTerminal() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("typerace needs an interactive terminal")
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		log.Info().Str("path", path).Msg("wrote config template")
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func setString(target, value *string) {
	if value != nil && strings.TrimSpace(*value) != "" {
		*target = strings.TrimSpace(*value)
	}
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# typerace configuration
# Uncomment a value to enable it. CLI flags override config values.
# TYPERACE_API_URL, TYPERACE_WS_URL, TYPERACE_NATS_URL and TYPERACE_TRANSPORT
# (also read from ./.env) override the [server] section.

[practice]
# mode = %q            # timer or words
# duration = %d             # Timer length in seconds (%d-%d)
# words = %d                # Word target (%d-%d)
# punctuation = false
# numbers = false
# supplier = %q         # local, http or nats
# wordlist = ""             # Word list file for the local supplier

[server]
# api-url = %q
# ws-url = %q
# nats-url = %q
# transport = %q    # websocket or nats
# request-timeout = "10s"
`,
		defaultMode,
		defaultDuration, model.MinDuration, model.MaxDuration,
		defaultWords, model.MinWordCount, model.MaxWordCount,
		defaultSupplier,
		api.DefaultBaseURL,
		defaultWSURL,
		defaultNATSURL,
		defaultTransport,
	)
}
