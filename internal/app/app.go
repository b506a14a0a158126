package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cloudpico-positioning/internal/batch"
	"cloudpico-positioning/internal/config"
	"cloudpico-positioning/internal/db"
	"cloudpico-positioning/internal/db/migrate"
	"cloudpico-positioning/internal/httpapi"
	"cloudpico-positioning/internal/instrument"
	"cloudpico-positioning/internal/journal"
	"cloudpico-positioning/internal/mqtt"
	"cloudpico-positioning/internal/relay"
	"cloudpico-positioning/internal/sampler"
	"cloudpico-positioning/internal/supervisor"
)

// Run wires the module and blocks until ctx is canceled or the broker
// connection is lost. A lost connection is returned as an error so the
// process exits and its supervisor restarts it.
func Run(ctx context.Context, cfg config.Config) error {
	logger := slog.Default()
	logger.Info("initializing positioning module",
		"mqtt_broker", cfg.MQTTBroker,
		"mqtt_port", cfg.MQTTPort,
		"mqtt_client_id", cfg.MQTTClientID,
		"mqtt_topic_prefix", cfg.MQTTTopicPrefix,
		"input_channel", cfg.InputChannel,
		"output_channel", cfg.OutputChannel,
		"positioning_channel", cfg.PositioningChannel,
		"tick_interval", cfg.TickInterval,
		"flush_window", cfg.FlushWindow,
		"timestamp_shift", cfg.TimestampShift,
		"instrument", cfg.Instrument,
		"reference_lon", cfg.Reference.Lon,
		"reference_lat", cfg.Reference.Lat,
		"correction_north_ft", cfg.Correction.North,
		"correction_east_ft", cfg.Correction.East,
	)

	inst, err := instrument.New(cfg.Instrument)
	if err != nil {
		return err
	}

	var flushJournal journal.Journal
	if cfg.JournalPath != "" {
		dbConn, err := db.Open(cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := db.Close(dbConn); closeErr != nil {
				logger.Error("db close", "error", closeErr)
			}
		}()
		if err := migrate.Run(dbConn); err != nil {
			return fmt.Errorf("migrate journal: %w", err)
		}
		flushJournal = journal.New(dbConn)
		logger.Info("flush journal enabled", "path", cfg.JournalPath)
	}

	client := mqtt.NewClient(cfg, logger)
	connectCtx, connectCancel := context.WithTimeout(ctx, cfg.MQTTConnectTimeout)
	err = client.Connect(connectCtx)
	connectCancel()
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	defer client.Disconnect()
	logger.Info("module client initialized")

	batchOpts := batch.Options{
		Channel: cfg.PositioningChannel,
		Window:  cfg.FlushWindow,
		Logger:  logger,
	}
	if flushJournal != nil {
		batchOpts.Recorder = flushJournal
	}
	batcher := batch.New(client, batchOpts)

	smp := sampler.New(inst, sampler.Options{
		Reference:      cfg.Reference,
		Correction:     cfg.Correction,
		TimestampShift: cfg.TimestampShift,
	})

	rly := relay.New(client, cfg.OutputChannel, logger)
	if err := client.Subscribe(cfg.InputChannel, rly.Handle); err != nil {
		return err
	}

	sup := supervisor.New(smp, batcher, supervisor.Options{
		Interval: cfg.TickInterval,
		Logger:   logger,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		_ = sup.Run(runCtx)
	}()

	var srv *http.Server
	httpErr := make(chan error, 1)
	if cfg.HTTPAddr != "" {
		deps := httpapi.Deps{MQTT: client, Relay: rly, Batch: batcher, Supervisor: sup}
		if flushJournal != nil {
			deps.Journal = flushJournal
		}
		srv = httpapi.NewServer(cfg.HTTPAddr, httpapi.NewMux(deps))
		go func() {
			logger.Info("http listening", "addr", cfg.HTTPAddr)
			httpErr <- srv.ListenAndServe()
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case err := <-client.Fatal():
		runErr = err
	case err := <-httpErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("positioning module shutting down", "relayed", rly.Count(), "buffered", batcher.Stats().Buffered)

	// Stop ticking first; an in-flight publish completes before the loop exits.
	cancel()
	<-supDone

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", "error", err)
		}
	}

	return runErr
}
