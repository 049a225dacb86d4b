package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/rover.nav/internal/config"
	"github.com/banshee-data/rover.nav/internal/fsutil"
	"github.com/banshee-data/rover.nav/internal/monitoring"
	"github.com/banshee-data/rover.nav/internal/rover/l3worldmap"
	"github.com/banshee-data/rover.nav/internal/rover/l4decision"
	"github.com/banshee-data/rover.nav/internal/rover/monitor"
	"github.com/banshee-data/rover.nav/internal/rover/pipeline"
	sqlite "github.com/banshee-data/rover.nav/internal/rover/storage/sqlite"
	"github.com/banshee-data/rover.nav/internal/timeutil"
	"github.com/banshee-data/rover.nav/internal/version"
)

var (
	sessionDir  = flag.String("session", "", "Recorded session directory containing session.jsonl (required)")
	configFile  = flag.String("config", "", "Tuning config JSON (default: built-in defaults)")
	dbFile      = flag.String("db", "", "SQLite mission database; empty disables persistence")
	resumeID    = flag.String("resume", "", "Continue this mission ID from its latest world map snapshot (requires -db)")
	plotsDir    = flag.String("plots", "", "Directory for mission plots; empty disables plotting")
	listen      = flag.String("listen", "", "Serve the monitor on this address and keep serving after the replay")
	verbose     = flag.Bool("verbose", false, "Enable the per-tick trace log stream")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

var logf = monitoring.Component("rover")

func tracef(format string, v ...interface{}) {
	if *verbose {
		logf(format, v...)
	}
}

// configureLogging routes ops and diag streams to stderr and enables the
// per-tick trace stream only with -verbose.
func configureLogging() {
	var trace io.Writer
	if *verbose {
		trace = os.Stderr
	}
	l3worldmap.SetLogWriters(os.Stderr, os.Stderr, trace)
	l4decision.SetLogWriters(os.Stderr, os.Stderr, trace)
	pipeline.SetLogWriters(os.Stderr, os.Stderr, trace)
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("rover", version.String())
		return
	}
	if *sessionDir == "" {
		log.Fatal("-session is required")
	}
	if *resumeID != "" && *dbFile == "" {
		log.Fatal("-resume requires -db")
	}

	configureLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("rover: %v", err)
	}
}

func loadTuning() (*config.TuningConfig, error) {
	if *configFile == "" {
		return config.EmptyTuningConfig(), nil
	}
	return config.LoadTuningConfig(*configFile)
}

func run(ctx context.Context) error {
	fs := fsutil.OSFileSystem{}

	tuning, err := loadTuning()
	if err != nil {
		return err
	}
	session, err := LoadSession(fs, *sessionDir)
	if err != nil {
		return err
	}
	logf("loaded %d records from %s", len(session.Records), *sessionDir)

	epoch := time.Now()
	clock := timeutil.NewMockClock(epoch)

	var store *sqlite.MissionStore
	var resume *l3worldmap.Snapshot
	missionID := uuid.New().String()
	if *dbFile != "" {
		store, err = sqlite.Open(*dbFile)
		if err != nil {
			return err
		}
		defer store.Close()
		if *resumeID != "" {
			missionID = *resumeID
			if resume, err = resumeMission(store, missionID); err != nil {
				return err
			}
		} else if missionID, err = store.StartMission(epoch, tuning.JSON()); err != nil {
			return err
		}
	}

	rcfg := pipeline.RuntimeConfig{Tuning: tuning, Clock: clock, MissionID: missionID, Resume: resume}
	if store != nil {
		rcfg.Sink = store
	}
	rt, err := pipeline.NewRuntime(rcfg)
	if err != nil {
		return err
	}

	var plotter *monitor.MapPlotter
	if *plotsDir != "" {
		plotter = monitor.NewMapPlotter(fs)
		if err := plotter.Start(filepath.Join(*plotsDir, missionID)); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	serveCtx, stopServe := context.WithCancel(ctx)
	defer func() {
		stopServe()
		wg.Wait()
	}()
	if *listen != "" {
		wcfg := monitor.WebServerConfig{Address: *listen, Source: rt, Plotter: plotter}
		if store != nil {
			wcfg.Decisions = store
		}
		ws := monitor.NewWebServer(wcfg)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ws.Start(serveCtx); err != nil {
				logf("monitor server: %v", err)
			}
		}()
	}

	stats, replayErr := replay(ctx, rt, clock, epoch, session, plotter, os.Stdout)
	final := rt.Close()
	logf("mission %s: %d ticks, %d rejected, %d pickups, %d samples, %.1f%% mapped",
		missionID, stats.Ticks, stats.Rejected, stats.Pickups, final.SamplesCollected, final.MappedPercentage)

	if store != nil {
		if err := store.FinishMission(missionID, clock.Now(), final.SamplesCollected,
			final.MappedPercentage, missionOutcome(stats)); err != nil {
			logf("finish mission: %v", err)
		}
		if counts, err := store.CountSnapshots(missionID); err != nil {
			logf("count snapshots: %v", err)
		} else {
			logf("mission %s snapshots by reason: %v", missionID, counts)
		}
	}

	if plotter != nil {
		plotter.Stop()
		n, err := plotter.GeneratePlots()
		if err != nil {
			logf("generate plots: %v", err)
		} else {
			logf("wrote %d plots to %s", n, filepath.Join(*plotsDir, missionID))
		}
	}

	if replayErr != nil && !errors.Is(replayErr, context.Canceled) {
		return replayErr
	}
	if *listen != "" {
		logf("replay finished; serving monitor on %s until interrupted", *listen)
		<-ctx.Done()
	}
	return nil
}
