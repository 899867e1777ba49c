package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/homedash/presenced/config"
	"github.com/homedash/presenced/logging"
)

func main() {
	cfile := flag.String("config", config.CONFILE, "Path to the configuration file")
	realhw := flag.Bool("real", false, "Use the real hardware instead of the simulation TUI")
	flag.Parse()

	conf, err := config.ReadConfig(*cfile, *realhw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		os.Exit(1)
	}

	// With the simulation TUI, log output is buffered until the log pane
	// is up and takes over.
	lc := conf.Logging
	if err := logging.Init(!conf.RealHW, lc.Level, lc.Format, lc.LogToFile, lc.LogFilePath); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Close()

	ossignal := make(chan os.Signal, 1)
	signal.Notify(ossignal, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	reloadChan := make(chan struct{}, 1)
	watchStop := make(chan struct{})
	defer close(watchStop)
	if err := config.Watch(conf.Configfile, reloadChan, watchStop); err != nil {
		slog.Warn("Config hot reload unavailable", "error", err)
	}

	if conf.Server.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/api/config", config.ConfigHandler(conf.Configfile))
		server := &http.Server{Addr: conf.Server.Listen, Handler: mux}
		go func() {
			slog.Info("Starting runtime config server", "listen", conf.Server.Listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Runtime config server failed", "error", err)
			}
		}()
		defer server.Close()
	}

	app := NewApp(conf, ossignal)
	if err := app.initialise(); err != nil {
		slog.Error("Failed to start", "error", err)
		logging.Close()
		os.Exit(1)
	}

	for {
		select {
		case sig := <-ossignal:
			if sig == syscall.SIGHUP {
				app = reload(app, *cfile, *realhw, ossignal)
				continue
			}
			slog.Info("Exiting on signal", "signal", sig)
			app.shutdown()
			return
		case <-reloadChan:
			app = reload(app, *cfile, *realhw, ossignal)
		}
	}
}

// reload tears the running application down and brings it back up with a
// freshly read configuration. A config file that no longer validates
// keeps the previous configuration.
func reload(app *App, cfile string, realhw bool, ossignal chan os.Signal) *App {
	slog.Info("Reloading configuration...", "file", cfile)

	conf, err := config.ReadConfig(cfile, realhw)
	if err != nil {
		slog.Error("Reload aborted, keeping previous configuration", "error", err)
		return app
	}

	app.shutdown()

	next := NewApp(conf, ossignal)
	if err := next.initialise(); err != nil {
		slog.Error("Failed to restart after reload", "error", err)
		logging.Close()
		os.Exit(1)
	}
	return next
}
