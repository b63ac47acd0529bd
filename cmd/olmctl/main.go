package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sghaida/olm/lifecycle"
	"github.com/sghaida/olm/lifecycle/metrics"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:          "olmctl",
	Short:        "Drive and inspect the object lifecycle protocol",
	Version:      version,
	SilenceUsage: true,
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a lifecycle scenario from a TOML file",
	Long: `Replay executes a scenario of construct / uses / used / destroy / export
steps against a fresh registry and prints the finalize order and the final
registry state. Flags can also be set through OLMCTL_* environment
variables.`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringP("scenario", "s", "",
		"path to the scenario TOML file")
	replayCmd.Flags().String("log-level", "info",
		"log level (trace, debug, info, warn, error, disabled)")
	replayCmd.Flags().String("serve-metrics", "",
		"serve prometheus metrics on this address after the replay (blocks until interrupt)")

	_ = viper.BindPFlag("scenario", replayCmd.Flags().Lookup("scenario"))
	_ = viper.BindPFlag("log_level", replayCmd.Flags().Lookup("log-level"))
	_ = viper.BindPFlag("serve_metrics", replayCmd.Flags().Lookup("serve-metrics"))
	viper.SetEnvPrefix("OLMCTL")
	viper.AutomaticEnv()

	rootCmd.AddCommand(replayCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runReplay(cmd *cobra.Command, _ []string) error {
	path := strings.TrimSpace(viper.GetString("scenario"))
	if path == "" {
		return errors.New("a scenario file is required (--scenario)")
	}

	level, err := zerolog.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).
		Level(level).
		With().Timestamp().Logger()

	sc, err := loadScenario(path)
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	reg := lifecycle.NewRegistry(
		lifecycle.WithLogger(log),
		lifecycle.WithObserver(metrics.New(promReg)),
	)

	rep, err := newEngine(sc, reg, log).run()
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), rep)

	if addr := strings.TrimSpace(viper.GetString("serve_metrics")); addr != "" {
		return serveMetrics(cmd.Context(), addr, promReg, log)
	}
	return nil
}

// serveMetrics exposes the replay's collectors until the process is
// interrupted, so the final counter values can be scraped or curled.
func serveMetrics(ctx context.Context, addr string, g prometheus.Gatherer, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info().Str("addr", addr).Msg("serving metrics, interrupt to exit")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
