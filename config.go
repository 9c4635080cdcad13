package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/jessevdk/go-flags"
)

const (
	defaultNet             = "wpa"
	defaultInterface       = "wlan0"
	defaultRfkill          = "/dev/rfkill"
	defaultListen          = "localhost:9090"
	defaultScanDelay       = 200 * time.Millisecond
	defaultSupersede       = "replace"
	defaultConnectivityURL = "http://connectivitycheck.gstatic.com/generate_204"
	defaultDataDirname     = "data"
)

type wpaConfig struct {
	Interface string `long:"interface" description:"Wireless interface managed through wpa_supplicant"`
	Rfkill    string `long:"rfkill" description:"Path of the rfkill device switching the radio"`
}

type mockConfig struct {
	DataDir     string `long:"datadir" description:"Directory of the simulated saved network store"`
	Binding     string `long:"binding" description:"Simulated binding capability" choice:"none" choice:"legacy" choice:"explicit"`
	AutoConnect bool   `long:"autoconnect" description:"Simulate link transitions when connecting"`
}

type apiConfig struct {
	Listen string `long:"listen" description:"Address the HTTP api listens on"`
}

type connectivityConfig struct {
	URL string `long:"url" description:"URL fetched through the bound network to check its connectivity"`
}

type profilingConfig struct {
	Listen string `long:"listen" description:"Address the profiling server listens on"`
}

type config struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	Debug       bool   `long:"debug" description:"Start wifid in debug mode"`
	ConfigFile  string `long:"configfile" description:"Path to an INI configuration file"`
	Net         string `long:"net" description:"The networking platform" choice:"wpa" choice:"mock"`

	Bind      bool          `long:"bind" description:"Bind this process to joined networks"`
	ScanDelay time.Duration `long:"scandelay" description:"Delay between the radio coming up and the first scan"`
	Supersede string        `long:"supersede" description:"What a new connection attempt does to a pending one" choice:"replace" choice:"reject"`

	Wpa          *wpaConfig          `group:"wpa" namespace:"wpa"`
	Mock         *mockConfig         `group:"mock" namespace:"mock"`
	Api          *apiConfig          `group:"api" namespace:"api"`
	Connectivity *connectivityConfig `group:"connectivity" namespace:"connectivity"`
	Profiling    *profilingConfig    `group:"profiling" namespace:"profiling"`
}

// loadConfig parses the command line on top of the defaults and, when
// --configfile is given, the INI file it points to. Command line options
// win over the file.
func loadConfig() (*config, error) {
	defaultCfg := func() *config {
		return &config{
			Net:       defaultNet,
			ScanDelay: defaultScanDelay,
			Supersede: defaultSupersede,
			Wpa: &wpaConfig{
				Interface: defaultInterface,
				Rfkill:    defaultRfkill,
			},
			Mock: &mockConfig{
				DataDir: filepath.Join(".", defaultDataDirname),
				Binding: "explicit",
			},
			Api: &apiConfig{
				Listen: defaultListen,
			},
			Connectivity: &connectivityConfig{
				URL: defaultConnectivityURL,
			},
		}
	}

	// Pre-parse the command line to find the config file
	preCfg := defaultCfg()
	_, err := flags.Parse(preCfg)
	if err != nil {
		return nil, err
	}

	if preCfg.ConfigFile == "" {
		return preCfg, nil
	}

	cfg := defaultCfg()
	parser := flags.NewParser(cfg, flags.Default)

	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		if _, ok := err.(*os.PathError); !ok {
			return nil, err
		}
	}

	// Parse the command line again so it overrides the config file
	_, err = parser.Parse()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}
