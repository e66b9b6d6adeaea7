// Package realtime implements the long-running pipeline mode: queue
// consumers, device ingress, rule engine, notification dispatch, and the
// HTTP surface, all under one process with graceful shutdown.
package realtime

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Deven-0012/Cloud-281/internal/alert"
	"github.com/Deven-0012/Cloud-281/internal/api"
	"github.com/Deven-0012/Cloud-281/internal/classifier"
	"github.com/Deven-0012/Cloud-281/internal/conf"
	"github.com/Deven-0012/Cloud-281/internal/datastore"
	"github.com/Deven-0012/Cloud-281/internal/logging"
	"github.com/Deven-0012/Cloud-281/internal/notification"
	"github.com/Deven-0012/Cloud-281/internal/observability"
	"github.com/Deven-0012/Cloud-281/internal/queue"
	"github.com/Deven-0012/Cloud-281/internal/storage"
	"github.com/Deven-0012/Cloud-281/internal/worker"
)

// Command returns the realtime subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Run the surveillance pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings)
		},
	}

	cmd.Flags().IntVar(&settings.Queue.Workers, "workers", settings.Queue.Workers, "Number of classification workers")
	cmd.Flags().StringVar(&settings.API.Address, "listen", settings.API.Address, "HTTP listen address")

	return cmd
}

func run(settings *conf.Settings) error {
	logger := logging.ForService("realtime")

	store := datastore.New(settings)
	if store == nil {
		return fmt.Errorf("no database backend enabled")
	}
	if err := store.Open(); err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer store.Close() //nolint:errcheck

	metrics := observability.NewMetrics()

	q := queue.NewMemoryQueue(queue.MemoryQueueConfig{
		BufferSize:        settings.Queue.BufferSize,
		VisibilityTimeout: settings.Queue.VisibilityTimeout,
		MaxReceiveCount:   settings.Queue.MaxReceiveCount,
	})
	defer q.Close() //nolint:errcheck

	audioStore := storage.New(&settings.Storage)
	model := classifier.NewHTTPClassifier(&settings.Classifier)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	var dispatcher *notification.Dispatcher
	var sink alert.Sink
	if settings.Notification.Enabled {
		var err error
		dispatcher, err = notification.NewDispatcher(store, &settings.Notification, metrics)
		if err != nil {
			return fmt.Errorf("building notification dispatcher: %w", err)
		}
		sink = dispatcher
		wg.Add(1)
		go func() {
			defer wg.Done()
			dispatcher.Run(ctx)
		}()
	}

	engine := alert.NewEngine(store, &settings.Engine, sink, metrics)

	// SIGHUP reloads the external rule table without a restart.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for range hup {
			if err := engine.ReloadRules(); err != nil {
				logger.Error("rule reload failed", "error", err)
			}
		}
	}()

	if settings.Queue.MQTT.Enabled {
		ingress := queue.NewMQTTIngress(settings.Queue.MQTT, q)
		if err := ingress.Start(ctx); err != nil {
			return fmt.Errorf("starting device ingress: %w", err)
		}
		defer ingress.Stop()
	}

	w := worker.New(store, q, audioStore, model, engine, settings, metrics)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := w.Run(ctx); err != nil {
			logger.Error("worker pool exited", "error", err)
		}
	}()

	if settings.API.Enabled {
		controller := api.New(settings, store, q, audioStore, metrics)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := controller.Start(ctx); err != nil {
				logger.Error("http server exited", "error", err)
				stop()
			}
		}()
	}

	logger.Info("pipeline started",
		"instance", settings.Main.Name,
		"workers", settings.Queue.Workers,
		"api", settings.API.Enabled)

	<-ctx.Done()
	logger.Info("shutting down")
	wg.Wait()
	return nil
}
