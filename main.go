package main

import (
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/the-lightning-land/wifid/api"
	"github.com/the-lightning-land/wifid/bridge"
	"github.com/the-lightning-land/wifid/manager"
	"github.com/the-lightning-land/wifid/platform"
	"github.com/the-lightning-land/wifid/platform/mock"
	"github.com/the-lightning-land/wifid/platform/wpa"
	// Blank import to set up profiling HTTP handlers.
	_ "net/http/pprof"
)

var (
	// Commit stores the current commit hash of this build. This should be set using -ldflags during compilation.
	Commit string
	// Version stores the version string of this build. This should be set using -ldflags during compilation.
	Version string
	// Date stores the date of this build. This should be set using -ldflags during compilation.
	Date string
)

// platformService is a platform with a lifecycle.
type platformService interface {
	platform.Platform
	Start() error
	Stop() error
}

// wifidMain is the true entry point for wifid. This is required since defers
// created in the top-level scope of a main method aren't executed if os.Exit() is called.
func wifidMain() error {
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)

	// Load CLI configuration and defaults
	cfg, err := loadConfig()
	if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		return nil
	} else if err != nil {
		return errors.Errorf("Failed parsing arguments: %v", err)
	}

	// Set logger into debug mode if called with --debug
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		log.Info("Setting debug mode.")
	}

	log.Debug("Loaded config.")

	// Print version of the daemon
	log.Infof("Version %s (commit %s)", Version, Commit)
	log.Infof("Built on %s", Date)

	// Stop here if only version was requested
	if cfg.ShowVersion {
		return nil
	}

	if cfg.Profiling.Listen != "" {
		go func() {
			log.Infof("Starting profiling server on %v", cfg.Profiling.Listen)
			// Redirect the root path
			http.Handle("/", http.RedirectHandler("/debug/pprof", http.StatusSeeOther))
			// All other handlers are registered on DefaultServeMux through the import of pprof
			err := http.ListenAndServe(cfg.Profiling.Listen, nil)
			if err != nil {
				log.Errorf("Could not run profiler: %v", err)
			}
		}()
	}

	supersede, ok := manager.ParseSupersedePolicy(cfg.Supersede)
	if !ok {
		return errors.Errorf("Unknown supersede policy %v", cfg.Supersede)
	}

	// The platform, which provides the radio, saved networks and link events
	var p platformService

	switch cfg.Net {
	case "wpa":
		p = wpa.New(&wpa.Config{
			Interface: cfg.Wpa.Interface,
			Rfkill:    cfg.Wpa.Rfkill,
			ProbeURL:  cfg.Connectivity.URL,
			Logger:    log.New().WithField("system", "wpa"),
		})

		log.Infof("Created wpa_supplicant platform on %v.", cfg.Wpa.Interface)
	case "mock":
		binding, err := parseBinding(cfg.Mock.Binding)
		if err != nil {
			return err
		}

		p = mock.New(&mock.Config{
			DataDir:     cfg.Mock.DataDir,
			Interface:   cfg.Wpa.Interface,
			Binding:     binding,
			AutoConnect: cfg.Mock.AutoConnect,
			Logger:      log.New().WithField("system", "mock"),
		})

		log.Info("Created a mock platform.")
	default:
		return errors.Errorf("Unknown networking type %v", cfg.Net)
	}

	err = p.Start()
	if err != nil {
		return errors.Errorf("Could not start platform: %v", err)
	}

	defer func() {
		err := p.Stop()
		if err != nil {
			log.Errorf("Could not properly shut down platform: %v", err)
		} else {
			log.Info("Stopped platform.")
		}
	}()

	// The bridge delivers platform events serially
	b := bridge.New(&bridge.Config{
		Platform: p,
		Logger:   log.New().WithField("system", "bridge"),
	})

	err = b.Start()
	if err != nil {
		return errors.Errorf("Could not start bridge: %v", err)
	}

	defer func() {
		err := b.Stop()
		if err != nil {
			log.Errorf("Could not properly stop bridge: %v", err)
		} else {
			log.Info("Stopped bridge.")
		}
	}()

	// central controller for joining networks
	m := manager.New(&manager.Config{
		Platform:       p,
		Bridge:         b,
		BindingEnabled: cfg.Bind,
		ScanDelay:      cfg.ScanDelay,
		Supersede:      supersede,
		Logger:         log.New().WithField("system", "manager"),
	})

	defer func() {
		m.Stop()
		log.Info("Stopped manager.")
	}()

	log.Infof("Created manager.")

	err = m.EnableRadio()
	if err != nil {
		log.Errorf("Could not enable radio: %v", err)
	}

	a := api.New(&api.Config{
		Manager: m,
		Logger:  log.New().WithField("system", "api"),
	})

	defer a.Close()

	log.Infof("Created API")

	l, err := net.Listen("tcp", cfg.Api.Listen)
	if err != nil {
		return errors.Errorf("Could not listen on %v: %v", cfg.Api.Listen, err)
	}

	defer l.Close()

	go func() {
		err := a.Serve(l)
		if err != nil {
			log.Errorf("Api stopped: %v", err)
		}
	}()

	log.Infof("Serving API on %v", l.Addr())

	// Handle interrupt signals correctly
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	sig := <-signals
	log.Info(sig)
	log.Info("Received an interrupt, stopping wifid...")

	// finish with no error
	return nil
}

func parseBinding(s string) (platform.BindingCapability, error) {
	switch s {
	case "none":
		return platform.BindingNone, nil
	case "legacy":
		return platform.BindingLegacy, nil
	case "explicit", "":
		return platform.BindingExplicit, nil
	default:
		return platform.BindingNone, errors.Errorf("Unknown binding capability %v", s)
	}
}

func main() {
	// Call the "real" main in a nested manner so the defers will properly
	// be executed in the case of a graceful shutdown.
	if err := wifidMain(); err != nil {
		log.WithError(err).Println("Failed running wifid.")
		os.Exit(1)
	}
}
