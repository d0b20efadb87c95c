package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/lazycounter/internal/counter"
	"github.com/kingrea/lazycounter/internal/dispatch"
	"github.com/kingrea/lazycounter/internal/keymap"
	"github.com/kingrea/lazycounter/internal/tui"
)

// errScriptEnded is reported when the script runs out before a quit key.
var errScriptEnded = errors.New("script ended without quitting")

// scriptTick wakes the loop without carrying any input.
type scriptTick struct{}

// scriptStep is one input event, emitted after pause.
type scriptStep struct {
	msg   tea.Msg
	pause time.Duration
}

// parseScript turns whitespace separated tokens into input events. A token
// is either a key name ("j", "J", "ctrl+c") or wait=<duration>, which emits
// one tick per tickRate for that long.
func parseScript(script string, tickRate time.Duration) ([]scriptStep, error) {
	if tickRate <= 0 {
		return nil, fmt.Errorf("tick rate must be positive")
	}
	var steps []scriptStep
	for _, tok := range strings.Fields(script) {
		if rest, ok := strings.CutPrefix(tok, "wait="); ok {
			d, err := time.ParseDuration(rest)
			if err != nil {
				return nil, fmt.Errorf("token %q: %w", tok, err)
			}
			if d < 0 {
				return nil, fmt.Errorf("token %q: negative wait", tok)
			}
			for elapsed := time.Duration(0); elapsed < d; elapsed += tickRate {
				steps = append(steps, scriptStep{msg: scriptTick{}, pause: min(tickRate, d-elapsed)})
			}
			continue
		}
		msg, err := keymap.ParseKey(tok)
		if err != nil {
			return nil, fmt.Errorf("token %q: %w", tok, err)
		}
		steps = append(steps, scriptStep{msg: msg})
	}
	return steps, nil
}

// scriptSource feeds pumped steps to the dispatch loop.
type scriptSource struct {
	msgs <-chan tea.Msg
}

func (s scriptSource) Next(ctx context.Context) (tea.Msg, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-s.msgs:
		if !ok {
			return nil, errScriptEnded
		}
		return msg, nil
	}
}

// pump delivers steps in order, honouring each pause. It stops quietly when
// ctx is cancelled because the loop has finished.
func pump(ctx context.Context, steps []scriptStep, out chan<- tea.Msg) error {
	defer close(out)
	for _, st := range steps {
		if st.pause > 0 {
			timer := time.NewTimer(st.pause)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case out <- st.msg:
		}
	}
	return nil
}

// snapshot is the YAML shape printed when a script finishes.
type snapshot struct {
	Counter     uint     `yaml:"counter"`
	Quit        bool     `yaml:"quit"`
	Pending     []string `yaml:"pending"`
	Completions []string `yaml:"completions"`
}

func newSnapshot(st counter.State) snapshot {
	snap := snapshot{
		Counter:     st.Counter,
		Quit:        st.Quit,
		Pending:     []string{},
		Completions: []string{},
	}
	for _, p := range st.Pending {
		snap.Pending = append(snap.Pending, p.String())
	}
	for _, c := range st.Completions {
		snap.Completions = append(snap.Completions, c.String())
	}
	return snap
}

// scriptRun drives a loop from a parsed script and writes the final state.
type scriptRun struct {
	loop   *dispatch.Loop
	keys   keymap.KeyMap
	frame  tui.FrameOptions
	frames bool
	out    io.Writer
}

func (r scriptRun) run(ctx context.Context, steps []scriptStep) error {
	msgs := make(chan tea.Msg)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pump(gctx, steps, msgs)
	})
	g.Go(func() error {
		defer cancel()
		return r.loop.Run(gctx, scriptSource{msgs: msgs}, dispatch.RendererFunc(r.render))
	})
	err := g.Wait()

	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	if encErr := enc.Encode(newSnapshot(r.loop.State())); encErr != nil && err == nil {
		err = encErr
	}
	if closeErr := enc.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func (r scriptRun) render(st counter.State) error {
	if !r.frames {
		return nil
	}
	_, err := fmt.Fprintln(r.out, tui.Frame(st, r.keys, r.frame))
	return err
}

func newScriptCmd(opts *rootOptions) *cobra.Command {
	var frames bool
	cmd := &cobra.Command{
		Use:   "script <tokens>",
		Short: "Run a key script without a terminal and print the final state",
		Long: `Feed a sequence of keys to the counter without opening the terminal UI.

Tokens are key names as configured (j, J, k, K, q, ctrl+c) or wait=<duration>,
which lets deferred actions land. The script must end by quitting.

Example:
  lazycounter script --delay 100ms "J K j wait=300ms q"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			steps, err := parseScript(strings.Join(args, " "), s.cfg.Settings.TickRate)
			if err != nil {
				return err
			}
			r := scriptRun{
				loop: s.loop,
				keys: s.keys,
				frame: tui.FrameOptions{
					History: s.cfg.Settings.History,
					Delay:   s.cfg.Settings.LazyDelay,
				},
				frames: frames,
				out:    cmd.OutOrStdout(),
			}
			return r.run(cmd.Context(), steps)
		},
	}
	cmd.Flags().BoolVar(&frames, "frames", false, "Print a frame after every step")
	return cmd
}
