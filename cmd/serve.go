package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/callscore/internal/api"
	"github.com/sells-group/callscore/internal/config"
	"github.com/sells-group/callscore/internal/db"
	"github.com/sells-group/callscore/internal/ingest"
	"github.com/sells-group/callscore/internal/metrics"
	"github.com/sells-group/callscore/internal/monitoring"
	"github.com/sells-group/callscore/internal/notify"
	"github.com/sells-group/callscore/internal/store"
)

var servePort int

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook and dashboard server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort > 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, err := newService(ctx, cfg)
		if err != nil {
			return err
		}
		defer svc.Close()

		return svc.Run(ctx, fmt.Sprintf(":%d", cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// service is the wired server: ingestion core, event fan-out and HTTP
// surface.
type service struct {
	coord   *ingest.Coordinator
	broker  *notify.Broker
	hub     *notify.Hub
	amqp    *notify.AMQPPublisher // nil when disabled
	archive store.Archive         // nil when disabled
	checker *monitoring.Checker   // nil when disabled
	metrics *metrics.Metrics
	handler http.Handler
}

func newService(ctx context.Context, c *config.Config) (*service, error) {
	loc, err := c.Stats.Location()
	if err != nil {
		return nil, err
	}

	m := metrics.New(true)
	analyzer, err := buildAnalyzer(c, m)
	if err != nil {
		return nil, err
	}

	broker := notify.NewBroker(c.Notify.Buffer)
	broker.OnDrop = func(subscriber string) {
		m.DroppedNotification(subscriber)
		zap.L().Warn("notification dropped", zap.String("subscriber", subscriber))
	}
	hub := notify.NewHub(broker, c.Notify.Buffer)
	hub.OnDrop = func() { m.DroppedNotification("websocket_client") }

	archive, err := store.OpenArchive(ctx, c.Archive.Driver, c.Archive.DatabaseURL, db.PoolConfig{MaxConns: c.Archive.MaxConns})
	if err != nil {
		return nil, eris.Wrap(err, "open archive")
	}

	opts := []ingest.Option{ingest.WithBroker(broker), ingest.WithMetrics(m)}
	if archive != nil {
		opts = append(opts, ingest.WithArchive(archive))
	}
	coord := ingest.NewCoordinator(ingest.NewState(loc), analyzer, opts...)

	if archive != nil && c.Archive.RestoreOnStart {
		if _, err := coord.Restore(ctx); err != nil {
			_ = archive.Close()
			return nil, err
		}
	}

	svc := &service{
		coord:   coord,
		broker:  broker,
		hub:     hub,
		archive: archive,
		metrics: m,
	}
	if c.Notify.AMQP.URL != "" {
		svc.amqp = notify.NewAMQPPublisher(notify.AMQPConfig(c.Notify.AMQP))
	}
	if c.Monitoring.Enabled {
		svc.checker = monitoring.NewChecker(
			monitoring.NewCollector(coord.State()),
			monitoring.NewAlerter(c.Monitoring),
			c.Monitoring,
		)
	}

	svc.handler = api.NewRouter(api.Config{
		CORSOrigins:    c.Server.CORSOrigins,
		RateLimitRPS:   c.Server.RateLimitRPS,
		RateLimitBurst: c.Server.RateLimitBurst,
	}, api.Deps{
		Coordinator: coord,
		WebSocket:   hub,
		Metrics:     m.Handler(),
	})
	return svc, nil
}

// Run serves addr until ctx is done, then drains the server and stops the
// subscribers.
func (s *service) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.hub.Run(gctx) })

	if s.amqp != nil {
		sub := s.broker.Subscribe("amqp")
		g.Go(func() error {
			defer s.broker.Unsubscribe(sub)
			return s.amqp.Run(gctx, sub)
		})
	}

	if s.checker != nil {
		g.Go(func() error {
			s.checker.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		zap.L().Info("starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.broker.Close()
		return eris.Wrap(err, "server shutdown")
	})

	return g.Wait()
}

// Close releases the archive and the AMQP connection.
func (s *service) Close() {
	if s.amqp != nil {
		if err := s.amqp.Close(); err != nil {
			zap.L().Warn("close amqp publisher", zap.Error(err))
		}
	}
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			zap.L().Warn("close archive", zap.Error(err))
		}
	}
}
