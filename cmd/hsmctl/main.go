// Command hsmctl validates chart definitions and runs them against a list of
// events.
package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/anggasct/hsm/pkg/core"
	"github.com/anggasct/hsm/pkg/definition"
	"github.com/anggasct/hsm/pkg/machine"
	"github.com/anggasct/hsm/pkg/observers"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := makeHsmctlCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "hsmctl: %v\n", err)
		os.Exit(1)
	}
}

func makeHsmctlCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "hsmctl [command] (flags)",
		Short: "hsmctl validates and runs hierarchical state machine charts.",
		Long: `hsmctl validates and runs hierarchical state machine charts written in YAML or TOML.

Typical usage:
    hsmctl validate --definition player.yaml
    hsmctl run --definition player.yaml --config run.toml play pause seek:position=42 resume
`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	command.AddCommand(makeValidateCommand())
	command.AddCommand(makeRunCommand())
	return command
}

func makeValidateCommand() *cobra.Command {
	var (
		definitionPath string
		structureOnly  bool
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that a chart is well formed and that its callbacks resolve to builtins.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			chart, err := definition.LoadFile(definitionPath)
			if err != nil {
				return err
			}
			if structureOnly {
				fmt.Fprintf(cmd.OutOrStdout(), "ok: %d states\n", len(chart.States()))
				return nil
			}
			root, err := chart.Build(builtinRegistry(zerolog.Nop()))
			if err != nil {
				return err
			}
			tree, err := core.NewHierarchy(root)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d states\n", tree.Len())
			return nil
		},
	}
	cmd.Flags().StringVarP(&definitionPath, "definition", "d", "", "chart definition file (.yaml, .yml or .toml)")
	cmd.Flags().BoolVar(&structureOnly, "structure-only", false, "skip resolving callback names")
	_ = cmd.MarkFlagRequired("definition")
	return cmd
}

func makeRunCommand() *cobra.Command {
	var (
		definitionPath string
		configPath     string
		showMetrics    bool
	)
	cmd := &cobra.Command{
		Use:   "run <event>...",
		Short: "Start a chart, send the given events in order and print each outcome.",
		Long: `Start a chart, send the given events in order and print each outcome.

Events are written as name or name:key=value,key=value.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig(configPath)
			if err != nil {
				return err
			}
			chart, err := definition.LoadFile(definitionPath)
			if err != nil {
				return err
			}
			return runChart(cmd.OutOrStdout(), cmd.ErrOrStderr(), chart, cfg, args, showMetrics)
		},
	}
	cmd.Flags().StringVarP(&definitionPath, "definition", "d", "", "chart definition file (.yaml, .yml or .toml)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "optional TOML run configuration")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "print a metrics summary after the run")
	_ = cmd.MarkFlagRequired("definition")
	return cmd
}

func newLogger(w io.Writer, cfg runConfig) zerolog.Logger {
	if cfg.LogPretty {
		w = zerolog.ConsoleWriter{Out: w, NoColor: true}
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(cfg.LogLevel)
}

func runChart(
	out, logOut io.Writer, chart *definition.Chart, cfg runConfig, args []string, showMetrics bool,
) error {
	logger := newLogger(logOut, cfg)

	opts := []machine.Option{
		machine.WithLogger(logger),
		machine.WithReplayDeferred(cfg.ReplayDeferred),
		machine.WithObserver(observers.NewLoggingObserver(logger)),
	}
	if cfg.Name != "" {
		opts = append(opts, machine.WithName(cfg.Name))
	}
	validation := observers.NewValidationObserver()
	if cfg.Strict {
		validation.Strict()
	}
	opts = append(opts, machine.WithObserver(validation))

	registry := prometheus.NewRegistry()
	if showMetrics {
		metrics, err := observers.NewMetricsObserver(registry)
		if err != nil {
			return err
		}
		opts = append(opts, machine.WithObserver(metrics))
	}

	m, err := chart.NewMachine(builtinRegistry(logger), opts...)
	if err != nil {
		return err
	}

	var errs error
	errs = errors.CombineErrors(errs, m.Start())
	fmt.Fprintf(out, "start: active=%s\n", strings.Join(m.ActiveStates(), "/"))
	for _, arg := range args {
		name, data, err := parseEventArg(arg)
		if err != nil {
			errs = errors.CombineErrors(errs, err)
			break
		}
		outcome, err := m.SendNamed(name, data)
		errs = errors.CombineErrors(errs, err)
		if outcome != nil {
			fmt.Fprintf(out, "%s active=%s\n", outcome, strings.Join(m.ActiveStates(), "/"))
		}
	}
	errs = errors.CombineErrors(errs, m.Stop())

	if showMetrics {
		if err := printMetrics(out, registry); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	if cfg.Strict && validation.HasViolations() {
		errs = errors.CombineErrors(errs, errors.Newf("strict run failed: %s",
			strings.Join(validation.GetViolations(), "; ")))
	}
	return errs
}

// parseEventArg splits "name:key=value,key=value" into an event name and its
// payload.
func parseEventArg(arg string) (string, map[string]any, error) {
	name, rest, hasData := strings.Cut(arg, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, errors.Newf("event %q: missing name", arg)
	}
	if !hasData || strings.TrimSpace(rest) == "" {
		return name, nil, nil
	}
	data := make(map[string]any)
	for _, pair := range strings.Split(rest, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return "", nil, errors.Newf("event %q: malformed pair %q", arg, pair)
		}
		data[key] = strings.TrimSpace(value)
	}
	return name, data, nil
}

// builtinRegistry holds the callbacks charts can reference from the CLI.
func builtinRegistry(logger zerolog.Logger) *definition.Registry {
	reg := definition.NewRegistry()
	_ = reg.RegisterGuard("always", func(_, _ *core.State, _ map[string]any) bool { return true })
	_ = reg.RegisterGuard("never", func(_, _ *core.State, _ map[string]any) bool { return false })
	_ = reg.RegisterAction("log", func(source, target *core.State, data map[string]any) error {
		logger.Info().Str("source", source.Name()).Str("target", target.Name()).
			Interface("data", data).Msg("action")
		return nil
	})
	_ = reg.RegisterCallback("log", func(source, target *core.State, data map[string]any) error {
		ev := logger.Debug()
		if source != nil {
			ev = ev.Str("source", source.Name())
		}
		if target != nil {
			ev = ev.Str("target", target.Name())
		}
		ev.Interface("data", data).Msg("callback")
		return nil
	})
	return reg
}

func printMetrics(w io.Writer, registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return errors.Wrap(err, "gathering metrics")
	}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			var value float64
			switch {
			case metric.GetCounter() != nil:
				value = metric.GetCounter().GetValue()
			case metric.GetHistogram() != nil:
				value = float64(metric.GetHistogram().GetSampleCount())
			default:
				continue
			}
			labels := make([]string, 0, len(metric.GetLabel()))
			for _, l := range metric.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			sort.Strings(labels)
			fmt.Fprintf(w, "%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), value)
		}
	}
	return nil
}
