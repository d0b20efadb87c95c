// cmd/lazycounter/main.go
//
// This is the entry point for the lazycounter CLI.
//
// Flow:
// 1. Resolve the home directory and load config.yaml (+ env, + flags)
// 2. Open the session log under <home>/logs
// 3. Wire bus -> deferred spawner -> state machine -> dispatch loop
// 4. Hand the loop to the TUI (root command) or a script (script command)

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingrea/lazycounter/internal/bus"
	"github.com/kingrea/lazycounter/internal/config"
	"github.com/kingrea/lazycounter/internal/counter"
	"github.com/kingrea/lazycounter/internal/deferred"
	"github.com/kingrea/lazycounter/internal/dispatch"
	"github.com/kingrea/lazycounter/internal/keymap"
	"github.com/kingrea/lazycounter/internal/logging"
	"github.com/kingrea/lazycounter/internal/tui"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	home     string
	delay    time.Duration
	tickRate time.Duration
	verbose  bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "lazycounter",
		Short: "A terminal counter with deferred increments",
		Long: `lazycounter shows a counter you drive from the keyboard.

Immediate keys change the counter right away. Lazy keys schedule the same
change to land after a delay, listing it as pending until it does.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, opts)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.home, "home", "", "Home directory (default: $LAZYCOUNTER_HOME or the user config dir)")
	cmd.PersistentFlags().DurationVar(&opts.delay, "delay", 0, "Override lazy_delay from config")
	cmd.PersistentFlags().DurationVar(&opts.tickRate, "tick-rate", 0, "Override tick_rate from config")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newScriptCmd(opts))
	return cmd
}

// session is one wired-up dispatch pipeline.
type session struct {
	cfg  *config.Config
	log  *logging.Logger
	keys keymap.KeyMap
	bus  *bus.Bus
	loop *dispatch.Loop
}

func newSession(cmd *cobra.Command, opts *rootOptions) (*session, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.LogsDir(), cfg.Settings.LogLevel)
	if err != nil {
		return nil, err
	}
	log.Printf("%s starting in %s", config.AppName, cfg.HomeDir)

	keys := keymap.FromConfig(cfg.Settings.Keys)
	b := bus.New(bus.WithLogger(log.Named("bus")))
	spawner := deferred.New(b.Sender(), cfg.Settings.LazyDelay, deferred.WithLogger(log.Named("deferred")))
	machine := counter.New(spawner, counter.WithLogger(log.Named("counter")))
	loop := dispatch.New(b, keys, machine, dispatch.WithLogger(log.Named("dispatch")))

	return &session{cfg: cfg, log: log, keys: keys, bus: b, loop: loop}, nil
}

// Close tears down the bus and flushes the log.
func (s *session) Close() {
	s.loop.Close()
	_ = s.log.Close()
}

func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	home := opts.home
	if home == "" {
		var err error
		if home, err = config.DefaultHomeDir(); err != nil {
			return nil, err
		}
	}
	if err := config.InitHomeDir(home); err != nil {
		return nil, err
	}
	cfg, err := config.Load(home)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("delay") {
		cfg.Settings.LazyDelay = opts.delay
	}
	if flags.Changed("tick-rate") {
		cfg.Settings.TickRate = opts.tickRate
	}
	if opts.verbose {
		cfg.Settings.LogLevel = "debug"
	}
	if err := cfg.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func runTUI(cmd *cobra.Command, opts *rootOptions) error {
	s, err := newSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.runProgram(ctx, tea.WithAltScreen())
}

// runProgram runs the TUI until quit, failure or cancellation. Only a quit
// key returns nil; a cancelled context is reported once bubbletea has
// restored the terminal.
func (s *session) runProgram(ctx context.Context, opts ...tea.ProgramOption) error {
	app := tui.NewApp(s.loop, s.bus, s.keys,
		tui.WithTickRate(s.cfg.Settings.TickRate),
		tui.WithDelay(s.cfg.Settings.LazyDelay),
		tui.WithHistory(s.cfg.Settings.History),
		tui.WithLogger(s.log.Named("tui")),
	)

	// bubbletea restores the terminal on every exit path, including a
	// cancelled context and a recovered panic.
	p := tea.NewProgram(app, append(opts, tea.WithContext(ctx))...)
	_, runErr := p.Run()
	if err := ctx.Err(); err != nil {
		s.log.Warn("session interrupted", zap.Error(err))
		return fmt.Errorf("interrupted: %w", err)
	}
	if runErr != nil {
		s.log.Error("terminal session failed", zap.Error(runErr))
		return fmt.Errorf("running TUI: %w", runErr)
	}
	if err := app.Err(); err != nil {
		return err
	}
	s.log.Info("session ended", zap.Uint("counter", s.loop.State().Counter))
	return nil
}
