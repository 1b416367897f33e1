package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arpatil-dev/TrackORoute/internal/apiclient"
	"github.com/arpatil-dev/TrackORoute/internal/capture"
	"github.com/arpatil-dev/TrackORoute/internal/config"
	"github.com/arpatil-dev/TrackORoute/internal/lifecycle"
	"github.com/arpatil-dev/TrackORoute/internal/samplestore"
	"github.com/arpatil-dev/TrackORoute/internal/session"
	"github.com/arpatil-dev/TrackORoute/internal/sync"
)

const syncModeKey = "sync_mode"

const (
	foregroundInterval = time.Second
	backgroundInterval = 5 * time.Second
)

var mainRunner = realMain

func main() {
	mainRunner()
}

func realMain() {
	cfg := config.LoadTracker()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)

	if err := Run(context.Background(), cfg, signals); err != nil {
		log.Printf("tracker exited with error: %v", err)
	}
}

// resolveMode prefers the mode persisted from a previous run so a restart
// mid-trip keeps draining the same way it was started.
func resolveMode(ctx context.Context, store *samplestore.Store, fallback string) (sync.Mode, error) {
	saved, err := store.GetSetting(ctx, syncModeKey)
	if err != nil {
		return "", err
	}
	if saved != "" {
		if mode, err := sync.ParseMode(saved); err == nil {
			return mode, nil
		}
	}
	mode, err := sync.ParseMode(fallback)
	if err != nil {
		return "", err
	}
	return mode, store.SetSetting(ctx, syncModeKey, string(mode))
}

// Run starts a capture session and drives it from process signals:
// SIGUSR1 suspends to background capture, SIGUSR2 resumes foreground,
// SIGINT/SIGTERM stop the trip and flush what is buffered.
func Run(ctx context.Context, cfg config.TrackerConfig, signals <-chan os.Signal) error {
	store, err := samplestore.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	mode, err := resolveMode(ctx, store, cfg.SyncMode)
	if err != nil {
		return err
	}

	client := apiclient.New(cfg.APIURL, cfg.Token)
	strategy := sync.New(mode, store, client)

	var sess *session.Session

	coordinator := lifecycle.NewCoordinator(lifecycle.Config{
		Store:     store,
		Strategy:  strategy,
		Deliverer: client,
		Mode:      mode,
		ForegroundSource: func() (capture.Source, error) {
			return capture.NewWalkSource(cfg.OriginLat, cfg.OriginLon, foregroundInterval), nil
		},
		BackgroundSource: func() (capture.Source, error) {
			return capture.NewWalkSource(cfg.OriginLat, cfg.OriginLon, backgroundInterval), nil
		},
		Fetcher: client,
		TripID:  func() string { return sess.TripID() },
		OnReconcile: func(detail apiclient.TripDetail) {
			log.Printf("trip %s reconciled with %d locations", detail.ID, len(detail.Locations))
		},
	})

	sess = session.New(client, store, coordinator, nil, mode, client)
	client.BindTrip(func(context.Context) (string, error) { return sess.TripID(), nil })

	if err := sess.Start(ctx, cfg.TripName); err != nil {
		return err
	}
	log.Printf("tracking trip %s in %s mode", sess.TripID(), mode)

	for {
		var sig os.Signal
		select {
		case sig = <-signals:
		case <-ctx.Done():
			sig = syscall.SIGTERM
		}

		switch sig {
		case syscall.SIGUSR1:
			if err := coordinator.Suspend(ctx); err != nil {
				log.Printf("suspend failed: %v", err)
			} else {
				log.Printf("capture moved to background")
			}
		case syscall.SIGUSR2:
			if err := coordinator.Resume(ctx); err != nil {
				log.Printf("resume failed: %v", err)
			} else {
				log.Printf("capture moved to foreground")
			}
		default:
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := sess.Stop(stopCtx); err != nil {
				log.Printf("stop failed, samples retained locally: %v", err)
				return err
			}
			_ = store.DeleteSetting(stopCtx, syncModeKey)
			log.Printf("trip stopped")
			return nil
		}
	}
}
