package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/chatterbox/internal/gate"
	"github.com/abhisek/chatterbox/internal/safety"
	"github.com/abhisek/chatterbox/internal/session"
	"github.com/abhisek/chatterbox/internal/store"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <scenario.yaml>",
	Short: "Replay a scripted session and print each result as JSON",
	Long: "Replay a scripted session on a simulated clock. Waits advance the clock " +
		"instantly, so inactivity prompts and task timeouts fire as they would live.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := loadScenario(args[0])
		if err != nil {
			return err
		}

		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := openStore(cmd, cfg)
		if err != nil {
			return err
		}
		var repo store.EventRepo
		if st != nil {
			defer st.Close()
			repo = st.EventRepo()
		}

		ctx := cmd.Context()
		provider, err := buildProvider(ctx, cfg, repo, logger)
		if err != nil {
			return err
		}

		clock := session.NewManualClock(time.Now())
		factory, err := gate.NewFactory(cfg, provider, logger, gate.WithClock(clock))
		if err != nil {
			return fmt.Errorf("build gate: %w", err)
		}

		pretty, _ := cmd.Flags().GetBool("pretty")
		return runScenario(ctx, sc, factory, clock, newSimWriter(cmd.OutOrStdout(), pretty))
	},
}

func init() {
	simulateCmd.Flags().Bool("pretty", false, "Indent JSON output")
}

type scenario struct {
	Session string `yaml:"session"`
	Steps   []step `yaml:"steps"`
}

// step holds exactly one action. Audio only accompanies Say.
type step struct {
	Card     *safety.CardContext  `yaml:"card"`
	Say      *string              `yaml:"say"`
	Audio    *safety.AudioSignals `yaml:"audio"`
	Choose   string               `yaml:"choose"`
	Wait     time.Duration        `yaml:"wait"`
	Speaking *bool                `yaml:"speaking"`
	Resume   bool                 `yaml:"resume"`
	NewGame  bool                 `yaml:"new_game"`
	End      bool                 `yaml:"end"`
}

func (s step) actions() int {
	n := 0
	for _, set := range []bool{
		s.Card != nil, s.Say != nil, s.Choose != "", s.Wait > 0,
		s.Speaking != nil, s.Resume, s.NewGame, s.End,
	} {
		if set {
			n++
		}
	}
	return n
}

func loadScenario(path string) (scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	return parseScenario(data)
}

func parseScenario(data []byte) (scenario, error) {
	var sc scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return scenario{}, fmt.Errorf("parse scenario: %w", err)
	}
	if len(sc.Steps) == 0 {
		return scenario{}, errors.New("scenario has no steps")
	}
	for i, st := range sc.Steps {
		if n := st.actions(); n != 1 {
			return scenario{}, fmt.Errorf("step %d: want exactly one action, got %d", i+1, n)
		}
		if st.Audio != nil && st.Say == nil {
			return scenario{}, fmt.Errorf("step %d: audio without say", i+1)
		}
		if st.Card != nil && len(st.Card.TargetAnswers) == 0 {
			return scenario{}, fmt.Errorf("step %d: card needs target_answers", i+1)
		}
	}
	return sc, nil
}

// simEvent is one line of simulate output.
type simEvent struct {
	Step   int    `json:"step"`
	Kind   string `json:"kind"`
	Result any    `json:"result,omitempty"`
}

type simWriter struct {
	enc *json.Encoder
	err error
}

func newSimWriter(w io.Writer, pretty bool) *simWriter {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return &simWriter{enc: enc}
}

func (w *simWriter) emit(ev simEvent) {
	if w.err == nil {
		w.err = w.enc.Encode(ev)
	}
}

func runScenario(ctx context.Context, sc scenario, factory *gate.Factory, clock *session.ManualClock, out *simWriter) error {
	sess := factory.NewSession(sc.Session)
	defer sess.End()

	current := 0
	sess.SetInactivityCallback(func(r session.Result) {
		out.emit(simEvent{Step: current, Kind: store.KindInactivity, Result: r})
	})
	sess.SetTaskTimeoutCallback(func(r session.Result) {
		out.emit(simEvent{Step: current, Kind: store.KindTaskTimeout, Result: r})
	})

	for i, st := range sc.Steps {
		current = i + 1
		switch {
		case st.Card != nil:
			sess.SetCurrentCard(*st.Card)
			out.emit(simEvent{Step: current, Kind: "card", Result: st.Card})
		case st.Say != nil:
			r := sess.ProcessChildResponse(ctx, *st.Say, st.Audio)
			out.emit(simEvent{Step: current, Kind: store.KindResponse, Result: r})
		case st.Choose != "":
			out.emit(simEvent{Step: current, Kind: store.KindChoice, Result: sess.HandleChoiceSelection(st.Choose)})
		case st.Wait > 0:
			clock.Advance(st.Wait)
		case st.Speaking != nil:
			if *st.Speaking {
				sess.Gate().Lock()
			} else {
				sess.Gate().Unlock()
			}
		case st.Resume:
			out.emit(simEvent{Step: current, Kind: "resume", Result: map[string]any{
				"resumed": sess.ResumeSession(),
				"phase":   sess.Phase(),
			}})
		case st.NewGame:
			sess.NewGame()
			out.emit(simEvent{Step: current, Kind: "new_game"})
		case st.End:
			sess.End()
		}
		if out.err != nil {
			return fmt.Errorf("write output: %w", out.err)
		}
	}

	out.emit(simEvent{Step: current, Kind: "summary", Result: sess.Summary()})
	return out.err
}
