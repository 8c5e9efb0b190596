// Command launcher starts the detection server, waits for it to answer, and
// publishes it through an ngrok tunnel until interrupted.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Tutortoise/object-detection-service/config"
	"github.com/Tutortoise/object-detection-service/logger"
	"github.com/Tutortoise/object-detection-service/supervisor"
)

func main() {
	bootLog := logger.New(logger.Options{Level: "info", Env: os.Getenv("APP_ENV")})
	if err := config.LoadDotEnv(); err != nil {
		bootLog.Fatalf("Error loading .env file: %v", err)
	}

	cfg, err := config.LoadLauncher()
	if err != nil {
		bootLog.Fatalf("Invalid configuration: %v", err)
	}
	log := logger.New(logger.Options{Level: cfg.LogLevel, Env: cfg.Env})

	backend, err := url.Parse(cfg.ServerURL)
	if err != nil {
		log.Fatalf("Invalid server URL %q: %v", cfg.ServerURL, err)
	}

	var opener supervisor.TunnelOpener
	if cfg.TunnelEnabled {
		token := cfg.AuthToken
		if token == "" {
			token, err = promptToken(os.Stdin, os.Stdout)
			if err != nil {
				log.Fatalf("Failed to read ngrok auth token: %v", err)
			}
		}
		opener = supervisor.NgrokOpener(token)
	}

	proc := supervisor.NewExecProcess(os.Stdout, os.Stderr, cfg.Command, cfg.Args...)
	sup := supervisor.New(supervisor.Config{
		Backend:      backend,
		ReadyTimeout: cfg.ReadyTimeout,
		GracePeriod:  cfg.GracePeriod,
	}, proc, supervisor.NewHTTPProbe(cfg.ServerURL), opener, log, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sup.Run(ctx); err != nil {
		log.Errorf("Launcher stopped: %v", err)
		stop()
		os.Exit(1)
	}
	log.Info("Launcher stopped")
}

func promptToken(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Enter ngrok auth token: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", errors.New("auth token is empty")
	}
	return token, nil
}
