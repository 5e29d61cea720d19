package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/ftbuffer/internal/buildinfo"
	"github.com/tphakala/ftbuffer/internal/conf"
	"github.com/tphakala/ftbuffer/internal/logger"
	"github.com/tphakala/ftbuffer/internal/observability"
	"github.com/tphakala/ftbuffer/internal/server"
	"github.com/tphakala/ftbuffer/internal/telemetry"
)

const sentryFlushTimeout = 2 * time.Second

// Command creates the serve command, which runs a buffer server in the
// foreground until interrupted.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a FieldTrip buffer server",
		Long:  "Listen for FieldTrip buffer clients and keep the most recent window of samples and events in memory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx, settings, build)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	b := &settings.Buffer
	cmd.Flags().StringVar(&b.Host, "host", viper.GetString("buffer.host"), "Listen host")
	cmd.Flags().IntVarP(&b.Port, "port", "p", viper.GetInt("buffer.port"), "Listen port")
	cmd.Flags().IntVar(&b.PortSearch, "portsearch", viper.GetInt("buffer.portsearch"), "Further consecutive ports to try when the port is busy")
	cmd.Flags().Float64Var(&b.Window, "window", viper.GetFloat64("buffer.window"), "Seconds of samples to retain")
	cmd.Flags().IntVar(&b.MaxEvents, "maxevents", viper.GetInt("buffer.maxevents"), "Events to retain before evicting the oldest")
	cmd.Flags().BoolVar(&b.KeepAlive, "keepalive", viper.GetBool("buffer.keepalive"), "Keep serving after a client connection faults")
	cmd.Flags().BoolVar(&settings.Telemetry.Enabled, "telemetry", viper.GetBool("telemetry.enabled"), "Enable Prometheus telemetry endpoint")
	cmd.Flags().StringVar(&settings.Telemetry.Listen, "listen", viper.GetString("telemetry.listen"), "Listen address and port of telemetry endpoint")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

// Run starts the buffer server and, when enabled, the telemetry endpoint and
// Sentry reporting. It returns when ctx is cancelled or the server stops on a
// connection fault.
func Run(ctx context.Context, settings *conf.Settings, build *buildinfo.Context) error {
	log := GetLogger()

	if _, err := telemetry.InitSentry(settings, build); err != nil {
		log.Warn("Sentry telemetry unavailable", logger.Error(err))
	}
	defer telemetry.Flush(sentryFlushTimeout)

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("error initializing metrics: %w", err)
	}

	var wg sync.WaitGroup
	quit := make(chan struct{})
	defer func() {
		close(quit)
		wg.Wait()
	}()

	if settings.Telemetry.Enabled {
		endpoint, err := observability.NewEndpoint(settings, metrics)
		if err != nil {
			return err
		}
		if err := endpoint.Start(&wg, quit); err != nil {
			return err
		}
	}

	srv, err := server.New(server.ConfigFromSettings(&settings.Buffer),
		server.WithRecorder(metrics.Buffer))
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	log.Info("FieldTrip buffer ready",
		logger.String("address", srv.Addr().String()),
		logger.String("version", build.Version()),
		logger.String("build_date", build.BuildDate()),
		logger.String("instance_id", build.InstanceID()))

	if err := srv.Serve(ctx); err != nil {
		return fmt.Errorf("buffer server stopped: %w", err)
	}
	return nil
}
