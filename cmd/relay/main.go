package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tcncore/internal/app"
	"tcncore/internal/protocol/report"
	"tcncore/internal/relay"
)

func main() {
	var (
		addr      = flag.String("addr", ":8080", "HTTP listen address")
		maxLength = flag.Uint("max-report-length", report.DefaultMaxLength, "largest accepted report range")
		maxPage   = flag.Int("max-page", 500, "largest page served per fetch")
		logLevel  = flag.String("log-level", "info", "debug, info, warn or error")
		logFormat = flag.String("log-format", "text", "text or json")
	)
	flag.Parse()

	log, err := app.NewLogger(os.Stderr, *logLevel, *logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	srv := relay.NewServer(relay.ServerConfig{
		ListenAddr:               *addr,
		Log:                      log,
		MaxReportLength:          uint32(*maxLength),
		MaxPage:                  *maxPage,
		ReadTimeout:              30 * time.Second,
		WriteTimeout:             30 * time.Second,
		GracefulShutdownDuration: 10 * time.Second,
	})
	srv.RunInBackground()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	srv.Shutdown()
}
