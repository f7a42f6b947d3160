// Package main is the entry point for the unitsctl binary.
// It converts, composes and inspects units from a unit catalog.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/polisai/polis-units/pkg/catalog"
	"github.com/polisai/polis-units/pkg/config"
	"github.com/polisai/polis-units/pkg/logging"
	"github.com/polisai/polis-units/pkg/telemetry"
	"github.com/polisai/polis-units/pkg/units"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app is the state shared by every subcommand once the root pre-run has
// loaded configuration and the catalog.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	catalog  *catalog.Catalog
	stack    *units.Stack
	metrics  *telemetry.StackMetrics
	shutdown telemetry.ShutdownFunc
}

func newRootCmd() *cobra.Command {
	return newRootCmdFor(&app{})
}

func newRootCmdFor(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "unitsctl",
		Short: "Dimensional analysis from the command line",
		Long: `Convert values between units, re-express units in simpler terms and
inspect the unit catalog.

Example:
  unitsctl convert km mi 42
  unitsctl compose kph
  unitsctl -e spectral convert nm THz 500`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close(cmd.Context())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Path to configuration file (YAML)")
	flags.StringP("log-level", "l", "", "Log level (debug, info, warn, error)")
	flags.String("catalog", "", "Path to an additional unit table (YAML)")
	flags.Int("max-depth", 0, "Composition search depth")
	flags.StringSliceP("equivalencies", "e", nil, "Equivalency sets to apply (e.g. spectral,dimensionless_angles)")
	flags.Bool("no-equivalencies", false, "Disable every equivalency, including enabled ones")

	rootCmd.AddCommand(
		newConvertCmd(a),
		newComposeCmd(a),
		newEquivalentsCmd(a),
		newEquivalentCmd(a),
		newDecomposeCmd(a),
		newStatsCmd(a),
	)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if flags.Changed("log-level") {
		if cfg.Logging.Level, err = flags.GetString("log-level"); err != nil {
			return fmt.Errorf("failed to get log-level flag: %w", err)
		}
		if err := cfg.Logging.Validate(); err != nil {
			return err
		}
	}
	if flags.Changed("catalog") {
		if cfg.Catalog.File, err = flags.GetString("catalog"); err != nil {
			return fmt.Errorf("failed to get catalog flag: %w", err)
		}
		builtin := true
		cfg.Catalog.Builtin = &builtin
	}
	if flags.Changed("max-depth") {
		if cfg.Compose.MaxDepth, err = flags.GetInt("max-depth"); err != nil {
			return fmt.Errorf("failed to get max-depth flag: %w", err)
		}
		if err := cfg.Compose.Validate(); err != nil {
			return err
		}
	}

	a.cfg = cfg
	a.logger = logging.New(cfg.Logging, cmd.ErrOrStderr())
	slog.SetDefault(a.logger)

	a.shutdown, err = telemetry.SetupProvider(cmd.Context(), telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
		SampleRatio: cfg.Telemetry.SampleRatio,
		Catalog:     catalogSource(cfg.Catalog),
	})
	if err != nil {
		return err
	}

	a.catalog, err = catalog.Load(cfg.Catalog)
	if err != nil {
		return err
	}
	a.metrics = telemetry.NewStackMetrics()
	a.stack = a.catalog.NewStack(
		units.WithLogger(a.logger),
		units.WithObserver(a.metrics),
		units.WithComposeDefaults(cfg.Compose.MaxDepth, cfg.Compose.IncludePrefixed),
	)

	a.logger.Debug("catalog loaded",
		"builtin", cfg.Catalog.UseBuiltin(),
		"file", cfg.Catalog.File,
		"units", a.stack.Stats().Units,
	)
	return nil
}

func (a *app) close(ctx context.Context) error {
	if a.shutdown == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return a.shutdown(shutdownCtx)
}

// enterScope applies the equivalency flags as a scope on the stack: -e sets
// are added to the enabled rules, --no-equivalencies clears them. The
// returned release pops the scope again.
func (a *app) enterScope(cmd *cobra.Command) (func(), error) {
	flags := cmd.Flags()

	off, err := flags.GetBool("no-equivalencies")
	if err != nil {
		return nil, fmt.Errorf("failed to get no-equivalencies flag: %w", err)
	}
	sets, err := flags.GetStringSlice("equivalencies")
	if err != nil {
		return nil, fmt.Errorf("failed to get equivalencies flag: %w", err)
	}

	var scope *units.Scope
	switch {
	case off && len(sets) > 0:
		return nil, errors.New("--equivalencies and --no-equivalencies are mutually exclusive")
	case off:
		scope, err = a.stack.SetEnabledEquivalencies()
	case len(sets) > 0:
		rules, rerr := a.catalog.Equivalencies(sets...)
		if rerr != nil {
			return nil, rerr
		}
		scope, err = a.stack.AddEnabledEquivalencies(rules...)
	default:
		return func() {}, nil
	}
	if err != nil {
		return nil, err
	}
	return func() {
		if err := scope.Close(); err != nil {
			a.logger.Warn("failed to close equivalency scope", "error", err)
		}
	}, nil
}

// traced runs fn inside a span named after the subcommand.
func (a *app) traced(cmd *cobra.Command, fn func(ctx context.Context, span trace.Span) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := telemetry.Tracer().Start(ctx, "unitsctl."+cmd.Name())
	defer span.End()

	err := fn(ctx, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logging.WithTrace(ctx, a.logger).Debug("command failed", "command", cmd.Name(), "error", err)
	}
	return err
}

func newConvertCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "convert FROM TO [VALUE...]",
		Short: "Convert values from one unit to another",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.traced(cmd, func(_ context.Context, span trace.Span) error {
				values, err := parseValues(args[2:])
				if err != nil {
					return err
				}
				release, err := a.enterScope(cmd)
				if err != nil {
					return err
				}
				defer release()

				conv, err := a.stack.Converter(units.Name(args[0]), units.Name(args[1]))
				if err != nil {
					return err
				}

				path := telemetry.PathEquivalency
				scale, isScale := conv.Scale()
				switch {
				case conv.IsIdentity():
					path = telemetry.PathIdentity
				case isScale:
					path = telemetry.PathScale
				}
				telemetry.RecordConversionEvent(span, args[0], args[1], path, scale)

				out := cmd.OutOrStdout()
				for _, v := range values {
					fmt.Fprintf(out, "%s %s = %s %s\n", formatFloat(v), args[0], formatFloat(conv.Convert(v)), args[1])
				}
				return nil
			})
		},
	}
}

func newComposeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compose UNIT",
		Short: "Re-express a unit as the simplest products of catalog units",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.traced(cmd, func(_ context.Context, span trace.Span) error {
				release, err := a.enterScope(cmd)
				if err != nil {
					return err
				}
				defer release()

				var opts []units.Option
				vocab, err := cmd.Flags().GetStringSlice("vocabulary")
				if err != nil {
					return fmt.Errorf("failed to get vocabulary flag: %w", err)
				}
				if len(vocab) > 0 {
					resolved := make([]units.Unit, 0, len(vocab))
					for _, name := range vocab {
						u, err := a.stack.UnitOf(units.Name(name))
						if err != nil {
							return err
						}
						resolved = append(resolved, u)
					}
					opts = append(opts, units.WithVocabulary(resolved...))
				}
				if cmd.Flags().Changed("include-prefixed") {
					include, err := cmd.Flags().GetBool("include-prefixed")
					if err != nil {
						return fmt.Errorf("failed to get include-prefixed flag: %w", err)
					}
					opts = append(opts, units.WithIncludePrefixed(include))
				}

				results, err := a.stack.Compose(units.Name(args[0]), opts...)
				if err != nil {
					return err
				}
				span.SetAttributes(attribute.Int("units.compose.results", len(results)))
				return printUnits(cmd.OutOrStdout(), results)
			})
		},
	}
	cmd.Flags().StringSlice("vocabulary", nil, "Restrict results to these units")
	cmd.Flags().Bool("include-prefixed", false, "Allow prefixed units in the results")
	return cmd
}

func newEquivalentsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "equivalents UNIT",
		Short: "List the catalog units a unit converts to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.traced(cmd, func(context.Context, trace.Span) error {
				release, err := a.enterScope(cmd)
				if err != nil {
					return err
				}
				defer release()

				results, err := a.stack.FindEquivalentUnits(units.Name(args[0]))
				if err != nil {
					return err
				}
				return printUnits(cmd.OutOrStdout(), results)
			})
		},
	}
}

func newEquivalentCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "equivalent A B",
		Short: "Report whether two units are convertible",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.traced(cmd, func(context.Context, trace.Span) error {
				release, err := a.enterScope(cmd)
				if err != nil {
					return err
				}
				defer release()

				ok, err := a.stack.IsEquivalent(units.Name(args[0]), units.Name(args[1]))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ok)
				return nil
			})
		},
	}
}

func newDecomposeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "decompose UNIT",
		Short: "Show a unit in terms of irreducible units",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.traced(cmd, func(context.Context, trace.Span) error {
				u, err := a.stack.UnitOf(units.Name(args[0]))
				if err != nil {
					return err
				}
				d, err := u.Decompose()
				if err != nil {
					return err
				}
				id, err := u.PhysicalTypeID()
				if err != nil {
					return err
				}
				label, ok := a.catalog.PhysicalTypes().Label(id)
				if !ok {
					label = "unknown"
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "unit:          %s\n", u)
				fmt.Fprintf(out, "decomposed:    %s\n", d)
				fmt.Fprintf(out, "physical type: %s\n", label)
				return nil
			})
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show catalog statistics, optionally serving them as Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, err := cmd.Flags().GetString("serve")
			if err != nil {
				return fmt.Errorf("failed to get serve flag: %w", err)
			}
			release, err := a.enterScope(cmd)
			if err != nil {
				return err
			}
			defer release()

			stats := a.stack.Stats()
			a.metrics.Update(stats)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "scope depth:      %d\n", stats.Depth)
			fmt.Fprintf(out, "units:            %d\n", stats.Units)
			fmt.Fprintf(out, "non-prefix units: %d\n", stats.NonPrefixUnits)
			fmt.Fprintf(out, "physical types:   %d\n", stats.PhysicalTypes)
			fmt.Fprintf(out, "equivalencies:    %d\n", stats.Equivalencies)
			fmt.Fprintf(out, "aliases:          %d\n", stats.Aliases)
			fmt.Fprintf(out, "equivalency sets: %s\n", strings.Join(a.catalog.EquivalencySets(), ", "))

			if addr == "" {
				return nil
			}
			return a.serveMetrics(cmd.Context(), addr)
		},
	}
	cmd.Flags().String("serve", "", "Serve /metrics on this address until interrupted")
	return cmd
}

func (a *app) serveMetrics(ctx context.Context, addr string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	a.logger.Info("Serving metrics", "addr", addr)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Error during shutdown", "error", err)
	}
	a.logger.Info("Metrics server stopped")
	return nil
}

func catalogSource(cfg config.CatalogConfig) string {
	switch {
	case cfg.File == "":
		return "builtin"
	case cfg.UseBuiltin():
		return "builtin+" + cfg.File
	default:
		return cfg.File
	}
}

func parseValues(args []string) ([]float64, error) {
	if len(args) == 0 {
		return []float64{1}, nil
	}
	values := make([]float64, 0, len(args))
	for _, s := range args {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", s, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func printUnits(w io.Writer, us []units.Unit) error {
	for _, u := range us {
		if _, err := fmt.Fprintln(w, u.String()); err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
