package main

import (
	"context"
	"flag"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"smartgate_go/internal/config"
	"smartgate_go/internal/devicesim"
	"smartgate_go/internal/logging"
)

func main() {
	defaults := config.Default()
	httpAddr := flag.String("http", defaults.SimHTTPAddr, "command surface listen address")
	pushAddr := flag.String("push", defaults.SimPushAddr, "push channel listen address")
	learnTimeout := flag.Duration("learn-timeout", 30*time.Second, "learning mode timeout")
	autoPress := flag.Duration("auto-press", 0, "simulate a remote press on this interval (0 disables)")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	lvl, err := logging.ParseLevel(*level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).
		With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := devicesim.New(*httpAddr, *pushAddr, devicesim.NewDevice(*learnTimeout), log.Logger)
	if *autoPress > 0 {
		go pressLoop(ctx, srv, *autoPress)
	}

	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("simulator stopped")
	}
	log.Info().Msg("simulator stopped")
}

// pressLoop alternates between a fixed remote and a random one so both the
// known-key and learn paths get traffic.
func pressLoop(ctx context.Context, srv *devicesim.Server, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	odd := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		code := uint64(0x5A5A01)
		if odd {
			code = uint64(rand.Intn(1 << 24))
		}
		odd = !odd
		srv.Press(code, 24, 1)
	}
}
