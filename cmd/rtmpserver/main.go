// Command rtmpserver is an RTMP server that relays every published stream to the clients playing it.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/torresjeff/rtmpcore/config"
	"github.com/torresjeff/rtmpcore/internal/logger"
	"github.com/torresjeff/rtmpcore/rand"
	"github.com/torresjeff/rtmpcore/relay"
	"go.uber.org/zap"
	"gopkg.in/alecthomas/kingpin.v2"
)

var configPath string

func main() {
	a := kingpin.New(filepath.Base(os.Args[0]), "RTMP relay server")
	a.HelpFlag.Short('h')
	a.Flag("config", "config path (.toml, .yaml or .yml)").Short('c').StringVar(&configPath)
	if _, err := a.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "init flag fail: "+err.Error())
		os.Exit(-1)
	}

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			fmt.Fprintln(os.Stderr, "init config fail: "+err.Error())
			os.Exit(-1)
		}
	}
	log, err := logger.New(cfg.Logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger fail: "+err.Error())
		os.Exit(-1)
	}
	defer log.Sync()

	if err := rand.InitNode(cfg.Server.NodeID); err != nil {
		log.Fatal("init node fail", zap.Error(err))
	}

	server := &Server{
		Config:      cfg.Server,
		Logger:      log,
		Broadcaster: relay.NewBroadcaster(relay.NewRegistry(log), log),
	}
	if err := server.Listen(); err != nil {
		log.Fatal("listen fail", zap.Error(err))
	}
	go func() {
		if err := server.Serve(); err != nil {
			log.Error("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	s := <-quit
	log.Info("shutting down", zap.Stringer("signal", s))
	server.Close()
}
