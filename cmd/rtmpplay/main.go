// Command rtmpplay plays a stream from an RTMP server and reports what it received.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/torresjeff/rtmpcore/config"
	"github.com/torresjeff/rtmpcore/internal/logger"
	"go.uber.org/zap"
	"gopkg.in/alecthomas/kingpin.v2"
)

func main() {
	a := kingpin.New(filepath.Base(os.Args[0]), "RTMP player")
	a.HelpFlag.Short('h')
	rawURL := a.Arg("url", "rtmp://host[:port]/app/streamKey").Required().String()
	duration := a.Flag("duration", "stop playing after this long, 0 plays until the stream ends").Short('d').Duration()
	level := a.Flag("log-level", "log level").Default("info").String()
	if _, err := a.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "init flag fail: "+err.Error())
		os.Exit(-1)
	}

	cfg := config.Default()
	cfg.Logger.Level = *level
	cfg.Logger.Development = true
	log, err := logger.New(cfg.Logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger fail: "+err.Error())
		os.Exit(-1)
	}
	defer log.Sync()

	t, err := parseURL(*rawURL)
	if err != nil {
		log.Fatal("invalid url", zap.Error(err))
	}
	conn, err := net.Dial("tcp", t.Addr)
	if err != nil {
		log.Fatal("dial fail", zap.Error(err))
	}
	defer conn.Close()
	log.Info("connected", zap.String("remote", conn.RemoteAddr().String()))

	// Closing the connection stops the player
	if *duration > 0 {
		time.AfterFunc(*duration, func() { conn.Close() })
	}
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	go func() {
		<-quit
		conn.Close()
	}()

	p, start, err := newPlayer(conn, t, log)
	if err != nil {
		log.Fatal("creating session", zap.Error(err))
	}
	started := time.Now()
	s, err := p.run(start)
	log.Info("played",
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("videoFrames", s.VideoFrames),
		zap.Int("keyFrames", s.KeyFrames),
		zap.Int("audioFrames", s.AudioFrames),
		zap.Int("bytes", s.Bytes),
		zap.Uint32("lastTimestamp", s.LastTimestamp),
		zap.Error(err))
}
