// wildtwin runs the fake wildlife monitoring API as a standalone server.
// Point the checker at it with APICHECK_API_URL or an apicheck.yaml target.
package main

import (
	"context"
	"log"

	"github.com/wildwatch/apicheck/internal/wildtwin"
	"github.com/wildwatch/apicheck/pkg/twincore"
)

func main() {
	cfg := twincore.ParseFlags("wildtwin")
	if cfg.Port == 0 {
		cfg.Port = wildtwin.DefaultPort
	}

	srv, err := wildtwin.New(cfg)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}

	srv.Logger.Info("wildtwin ready", "port", cfg.Port, "api", "/api/v1", "admin", "/admin")
	if err := srv.Serve(context.Background()); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
