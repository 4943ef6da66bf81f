package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/bulkwriter"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/config"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/forgeenrich"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/galog"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/handoff"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/hit"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/stats"
)

const (
	defaultConfigLoc  = `/opt/smartpixl/etc/forge.conf`
	defaultConfigDLoc = `/opt/smartpixl/etc/forge.conf.d`
	appName           = `smartpixl-forge`
)

var exitCtx, exitFn = context.WithCancel(context.Background())

func main() {
	cfg, err := config.LoadForge(defaultConfigLoc, defaultConfigDLoc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	lg, err := galog.NewFile(cfg.Global.Log_File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer lg.Close()
	lg.SetLevel(config.MustLevel(lg, cfg.Global.Log_Level))
	lg.Info("starting", galog.KV("app", appName), galog.KV("listen", cfg.Global.Listen_Endpoint_Name))

	cfgWatcher, err := config.Watch(lg, defaultConfigLoc, defaultConfigDLoc, func() {
		fresh, err := config.LoadForge(defaultConfigLoc, defaultConfigDLoc)
		if err != nil {
			lg.Warn("config reload failed, keeping previous log level", galog.KVErr(err))
			return
		}
		lg.SetLevel(config.MustLevel(lg, fresh.Global.Log_Level))
		lg.Info("log level reloaded from config", galog.KV("level", fresh.Global.Log_Level))
	})
	if err != nil {
		lg.Warn("config watcher unavailable, log level is fixed for this process lifetime", galog.KVErr(err))
	} else {
		defer cfgWatcher.Close()
	}

	st := &stats.Forge{}

	db, err := sql.Open("sqlserver", cfg.Global.Database_Connection_String)
	if err != nil {
		lg.FatalCode(1, "failed to open database connection", galog.KVErr(err))
	}
	defer db.Close()

	// geoStore is left as a nil interface (not a typed nil pointer) when
	// unavailable, since onlineGeo's "store != nil" check would otherwise
	// see a non-nil interface wrapping a nil *BoltGeoStore.
	var geoStore forgeenrich.OnlineGeoStore
	if cfg.Global.BoltDB_Path != "" {
		bgs, err := forgeenrich.NewBoltGeoStore(cfg.Global.BoltDB_Path + ".geocache")
		if err != nil {
			lg.Warn("online geo store unavailable, proceeding without known-address persistence", galog.KVErr(err))
		} else {
			defer bgs.Close()
			geoStore = bgs
		}
	}

	enricher := forgeenrich.New(forgeenrich.Config{
		Log:                   lg,
		BotCatalogPath:        cfg.Global.Bot_Catalog_Path,
		GeoIPCityPath:         cfg.Global.GeoIP_City_DB_Path,
		GeoIPASNPath:          cfg.Global.GeoIP_ASN_DB_Path,
		RDNSServer:            cfg.Global.RDNS_Server,
		OnlineGeoURL:          cfg.Global.Online_Geo_URL,
		OnlineGeoMaxPerMinute: cfg.Global.Online_Geo_Max_Per_Minute,
		OnlineGeoMaxStaleDays: cfg.Global.Online_Geo_Max_Stale_Days,
		OnlineGeoStore:        geoStore,
	})

	writer, err := bulkwriter.New(bulkwriter.Config{
		Log:            lg,
		DB:             db,
		BatchSize:      cfg.Global.Batch_Size,
		DeadLetterPath: cfg.Global.BoltDB_Path + ".deadletter",
		Stats:          st,
	})
	if err != nil {
		lg.FatalCode(1, "failed to start bulk writer", galog.KVErr(err))
	}

	workers := cfg.Global.Worker_Count
	if workers <= 0 {
		workers = 1
	}
	workCh := make(chan hit.Hit, workers*cfg.Global.Batch_Size)
	workerStop := make(chan struct{})
	workerDone := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer func() { workerDone <- struct{}{} }()
			for {
				select {
				case h, ok := <-workCh:
					if !ok {
						return
					}
					enricher.Enrich(&h)
					writer.Enqueue(h)
				case <-workerStop:
					return
				}
			}
		}()
	}

	// A prior, uncleanly-stopped process can leave the socket file behind;
	// net.Listen on an existing path otherwise fails with "address in use".
	_ = os.Remove(cfg.Global.Listen_Endpoint_Name)
	ln, err := net.Listen("unix", cfg.Global.Listen_Endpoint_Name)
	if err != nil {
		lg.FatalCode(1, "failed to listen on handoff endpoint", galog.KV("endpoint", cfg.Global.Listen_Endpoint_Name), galog.KVErr(err))
	}

	receiver := handoff.NewReceiver(lg, ln, cfg.Global.Max_Concurrent_Listeners, cfg.Global.Failover_Directory, func(h hit.Hit) {
		select {
		case workCh <- h:
		case <-workerStop:
		}
	}, st)

	go func() {
		lg.Info("accepting handoff connections", galog.KV("endpoint", cfg.Global.Listen_Endpoint_Name))
		receiver.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-exitCtx.Done():
	}

	lg.Info("shutdown signal received, draining")
	exitFn()
	receiver.Stop()
	close(workerStop)
	for i := 0; i < workers; i++ {
		<-workerDone
	}
	writer.Stop()

	snap := st.Snapshot()
	lg.Info("shutdown complete",
		galog.KV("hitsConsumed", snap.HitsConsumed),
		galog.KV("batchesWritten", snap.BatchesWritten),
		galog.KV("batchesFailed", snap.BatchesFailed),
	)
}
