package main

import (
	"github.com/camsrc/camsrc/internal/api"
	"github.com/camsrc/camsrc/internal/api/ws"
	"github.com/camsrc/camsrc/internal/app"
	"github.com/camsrc/camsrc/internal/libcamera"
	"github.com/camsrc/camsrc/pkg/shell"
	daemon "github.com/sevlyar/go-daemon"
)

func main() {
	app.Init() // init config and logs

	if app.Daemon {
		cntxt := &daemon.Context{
			PidFileName: app.PidFile,
			PidFilePerm: 0644,
		}

		child, err := cntxt.Reborn()
		if err != nil {
			app.Logger.Fatal().Err(err).Msg("[app] daemon")
		}
		if child != nil {
			app.Logger.Info().Int("pid", child.Pid).Msg("[app] daemon started")
			return
		}
		defer cntxt.Release()
	}

	api.Init() // init HTTP API server
	ws.Init()  // init WebSocket API

	libcamera.Init() // camera manager, sources and their API

	shell.RunUntilSignal()

	libcamera.Close()
}
