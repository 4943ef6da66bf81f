package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/behavior"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/config"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/datacenter"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/edgeenrich"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/fingerprint"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/galog"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/geocache"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/handoff"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/hit"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/stats"
)

const (
	defaultConfigLoc  = `/opt/smartpixl/etc/edge.conf`
	defaultConfigDLoc = `/opt/smartpixl/etc/edge.conf.d`
	appName           = `smartpixl-edge`
)

var exitCtx, exitFn = context.WithCancel(context.Background())

func main() {
	cfg, err := config.LoadEdge(defaultConfigLoc, defaultConfigDLoc)
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
	lg.Info("starting", galog.KV("app", appName), galog.KV("bind", cfg.Global.Bind))

	cfgWatcher, err := config.Watch(lg, defaultConfigLoc, defaultConfigDLoc, func() {
		fresh, err := config.LoadEdge(defaultConfigLoc, defaultConfigDLoc)
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

	st := &stats.Edge{}

	dc := datacenter.New(lg, cfg.Global.AWS_Ranges_URL, cfg.Global.GCP_Ranges_URL, cfg.Global.Failover_Directory+"/datacenter_snapshot.json")
	dc.Refresh()
	stopDC := make(chan struct{})
	go dc.Run(cfg.DatacenterRefreshInterval(), stopDC)

	geo := geocache.New(lg, func(ctx context.Context, addr string) (hit.GeoRecord, bool, error) {
		// The edge process has no relational connection, so this store
		// lookup is a stub: every miss resolves to not-found.
		return hit.GeoRecord{}, false, nil
	})

	dial := handoff.UnixDialer(cfg.Global.Endpoint_Name)
	queue := handoff.NewChannel(lg, cfg.Global.Queue_Capacity, dial, cfg.Global.Failover_Directory, st)

	enricher := edgeenrich.New(lg, fingerprint.New(), behavior.New(), dc, geo, queue, st)
	handler := edgeenrich.NewHandler(enricher, lg)

	srv := &http.Server{
		Addr:    cfg.Global.Bind,
		Handler: handler,
	}

	go func() {
		lg.Info("listening", galog.KV("bind", cfg.Global.Bind))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Error("http server exited", galog.KVErr(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-exitCtx.Done():
	}

	lg.Info("shutdown signal received, draining")
	exitFn()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	close(stopDC)
	queue.Stop()

	snap := st.Snapshot()
	lg.Info("shutdown complete", galog.KV("hitsReceived", snap.HitsReceived), galog.KV("hitsDropped", snap.HitsDropped))
}
