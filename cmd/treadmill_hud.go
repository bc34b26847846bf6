package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
	"tinygo.org/x/bluetooth"

	"github.com/lowaak/treadmill-hud/treadmill-hud-app/internal/config"
	"github.com/lowaak/treadmill-hud/treadmill-hud-app/internal/go_func_utils"
	"github.com/lowaak/treadmill-hud/treadmill-hud-app/internal/hud"
	"github.com/lowaak/treadmill-hud/treadmill-hud-app/internal/sensors"
	"github.com/lowaak/treadmill-hud/treadmill-hud-app/internal/store"
	"github.com/lowaak/treadmill-hud/treadmill-hud-app/internal/treadmill"
	"github.com/lowaak/treadmill-hud/treadmill-hud-app/internal/workout"
)

const snapshotPeriod = 5 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// The HUD owns the terminal, so logs go to a rotating file.
	logger := log.New(&lumberjack.Logger{
		Filename:   cfg.LogPath,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     14, // days
	}, "", log.LstdFlags)
	logger.Printf("Main: treadmill-hud starting (simulate=%v)", cfg.Simulate)

	db, err := store.Open(cfg.DBPath, logger)
	must("open database", err)
	defer db.Close()

	engine := workout.NewEngine(db, cfg.EngineConfig(), logger)

	var controller treadmill.Controller
	if cfg.Simulate {
		controller = treadmill.NewSimulated(engine, logger)
	} else {
		// TODO: FTMS treadmill transport; until then hardware runs need
		// --simulate for the belt side while the HR strap is real.
		logger.Printf("Main: no hardware treadmill transport configured, using simulator")
		controller = treadmill.NewSimulated(engine, logger)
	}

	session := treadmill.NewSession(engine, controller, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !cfg.Simulate {
		adapter := bluetooth.DefaultAdapter
		must("enable BLE stack", adapter.Enable())
		hr := sensors.NewHeartRateSource(adapter, engine.UpdateHeartRate, logger)
		if cfg.HeartRateAddress != "" {
			hr.SetAddressFilter(cfg.HeartRateAddress)
		}
		hr.Run(ctx)
	}

	view := hud.NewView(engine, session, db, logger)

	restored := restoreSnapshot(ctx, engine, db, logger)
	startSnapshotSaver(ctx, engine, db, logger)

	if restored {
		view.ShowRestoredWorkout()
	}

	if err := view.Run(); err != nil {
		logger.Printf("Main: UI error: %v", err)
	}

	session.End()
	logger.Printf("Main: shutdown complete")
}

// restoreSnapshot re-enters a crashed workout as Paused. Returns true when a
// snapshot was applied; a stale or unusable snapshot is cleared and ignored.
func restoreSnapshot(ctx context.Context, engine *workout.Engine, db *store.Store, logger *log.Logger) bool {
	st, isPaused, err := db.LoadSnapshot(ctx)
	if err != nil {
		logger.Printf("Main: failed to load snapshot: %v", err)
		return false
	}
	if st == nil {
		return false
	}

	logger.Printf("Main: found execution snapshot for workout %d, restoring", st.WorkoutID)
	if err := engine.RestoreFromPersistedState(ctx, st, isPaused); err != nil {
		logger.Printf("Main: snapshot restore failed (%v), discarding", err)
		if err := db.ClearSnapshot(ctx); err != nil {
			logger.Printf("Main: failed to clear snapshot: %v", err)
		}
		return false
	}
	return true
}

// startSnapshotSaver persists the in-progress execution periodically so a
// crash or power loss can resume close to where it stopped.
func startSnapshotSaver(ctx context.Context, engine *workout.Engine, db *store.Store, logger *log.Logger) {
	go_func_utils.SafeGo(logger, func() {
		ticker := time.NewTicker(snapshotPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st := engine.ExportPersistenceState()
				if st == nil {
					continue
				}
				if err := db.SaveSnapshot(ctx, st, st.IsPaused); err != nil {
					logger.Printf("Main: failed to save snapshot: %v", err)
				}
			}
		}
	})
}

func must(action string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to %s: %v\n", action, err)
		os.Exit(1)
	}
}
