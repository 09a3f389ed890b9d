package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/analyzer"
	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/exchange"
	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/forwarder"
	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/memory"
	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/trainer"
	pkgch "github.com/RA-CONSULTING/aureon-trading-sub008/pkg/clickhouse"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/config"
	xhttp "github.com/RA-CONSULTING/aureon-trading-sub008/pkg/http"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/logger"
)

// App owns the process lifecycle: it starts the exchange feed, the
// polling analyzer, the trainer loop and the HTTP server, then blocks
// until a shutdown signal and tears everything down in reverse order.
type App struct {
	cfg      *config.Config
	log      *logger.Logger
	analyzer *analyzer.Analyzer
	stream   *exchange.StreamClient
	store    *memory.Store
	trainer  *trainer.Trainer
	fwd      *forwarder.KafkaForwarder
	http     *xhttp.Server
	ch       *pkgch.Client
}

// New assembles the application from already-wired components. Stream,
// forwarder and warehouse client are nil when their config section is
// disabled.
func New(
	cfg *config.Config,
	log *logger.Logger,
	a *analyzer.Analyzer,
	stream *exchange.StreamClient,
	store *memory.Store,
	t *trainer.Trainer,
	fwd *forwarder.KafkaForwarder,
	httpServer *xhttp.Server,
	ch *pkgch.Client,
) *App {
	return &App{
		cfg:      cfg,
		log:      log.With("app"),
		analyzer: a,
		stream:   stream,
		store:    store,
		trainer:  t,
		fwd:      fwd,
		http:     httpServer,
		ch:       ch,
	}
}

// Run starts everything and blocks until SIGINT/SIGTERM.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.stream != nil {
		go func() {
			if err := a.stream.Run(ctx); err != nil {
				a.log.Error("depth stream stopped", logger.Error(err))
			}
		}()
	}

	go a.analyzer.Run(ctx, a.cfg.Symbols)
	a.log.Info("analyzer started",
		logger.Strings("symbols", a.cfg.Symbols),
		logger.Duration("poll_interval", a.cfg.Analyzer.PollInterval),
	)

	go a.trainer.RunPeriodic(ctx, a.cfg.Trainer.Interval)

	if err := a.http.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(cancel)
}

func (a *App) shutdown(cancel context.CancelFunc) error {
	// join the poller before cancelling the shared context: the
	// in-flight cycle (and the classifications it publishes) must
	// complete while Pattern Memory still accepts writes
	a.analyzer.Stop()
	cancel()

	if err := a.http.Stop(context.Background()); err != nil {
		a.log.Error("http shutdown failed", logger.Error(err))
	}
	if a.fwd != nil {
		if err := a.fwd.Close(); err != nil {
			a.log.Error("kafka close failed", logger.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Error("pattern memory close failed", logger.Error(err))
		return err
	}
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.log.Error("clickhouse close failed", logger.Error(err))
		}
	}
	a.log.Info("stopped cleanly")
	return nil
}
