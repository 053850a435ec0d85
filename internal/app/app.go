package app

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
)

var (
	Version    = "0.3.0"
	ConfigPath string
	Info       = make(map[string]any)

	// Daemon - main process should detach itself, PidFile is optional
	Daemon  bool
	PidFile string
)

const usage = `Usage of camsrc:

  -c, --config     Path to config file or config string as YAML or JSON, support multiple
  -d, --daemon     Run in background
      --pidfile    Path to PID file in daemon mode
  -v, --version    Print version and exit
`

func Init() {
	var config flagConfig
	var version bool

	flag.Var(&config, "config", "")
	flag.Var(&config, "c", "")
	flag.BoolVar(&Daemon, "daemon", false, "")
	flag.BoolVar(&Daemon, "d", false, "")
	flag.StringVar(&PidFile, "pidfile", "", "")
	flag.BoolVar(&version, "version", false, "")
	flag.BoolVar(&version, "v", false, "")

	flag.Usage = func() { fmt.Print(usage) }
	flag.Parse()

	revision, vcsTime := readRevisionTime()

	if version {
		fmt.Printf("camsrc version %s (%s) %s/%s\n", Version, revision, runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	Info["version"] = Version
	Info["revision"] = revision

	initConfig(config)
	initLogger()

	platform := fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
	Logger.Info().Str("version", Version).Str("platform", platform).Str("revision", revision).Msg("camsrc")
	Logger.Debug().Str("version", runtime.Version()).Str("vcs.time", vcsTime).Msg("build")

	if ConfigPath != "" {
		Logger.Info().Str("path", ConfigPath).Msg("config")
	}
}

func readRevisionTime() (revision, vcsTime string) {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if len(setting.Value) > 7 {
					revision = setting.Value[:7]
				} else {
					revision = setting.Value
				}
			case "vcs.time":
				vcsTime = setting.Value
			case "vcs.modified":
				if setting.Value == "true" {
					revision += ".dirty"
				}
			}
		}
	}
	return
}
