// Package wildtwin assembles the fake wildlife API: the base server, the
// API routes, the admin plane and the in-memory store.
package wildtwin

import (
	"fmt"
	"os"

	"github.com/wildwatch/apicheck/internal/wildtwin/api"
	"github.com/wildwatch/apicheck/internal/wildtwin/store"
	"github.com/wildwatch/apicheck/pkg/admin"
	"github.com/wildwatch/apicheck/pkg/twincore"
)

// DefaultPort is used when neither --port nor PORT is set.
const DefaultPort = 1080

// Server is a ready-to-serve fake API.
type Server struct {
	*twincore.Twin
	Store *store.MemoryStore
	Auth  *api.Auth
}

// New wires a Server from cfg. The seed file, if any, is loaded and kept so
// /admin/reset restores it.
func New(cfg *twincore.Config) (*Server, error) {
	twin := twincore.New(cfg)
	memStore := store.New()

	auth, err := api.NewAuth(cfg.JWTSecret, memStore.Clock.Now)
	if err != nil {
		return nil, err
	}

	api.NewHandler(memStore, twin.Middleware(), auth, twin.Logger).Routes(twin.Router)

	adminHandler := admin.NewHandler(memStore, twin.Middleware(), memStore.Clock)
	adminHandler.SetConfigProvider(twin)
	adminHandler.Routes(twin.Router)

	if cfg.SeedFile != "" {
		data, err := os.ReadFile(cfg.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("reading seed file: %w", err)
		}
		if err := memStore.SetSeed(data); err != nil {
			return nil, fmt.Errorf("loading seed file %s: %w", cfg.SeedFile, err)
		}
		twin.Logger.Info("loaded seed data", "file", cfg.SeedFile)
	}

	return &Server{Twin: twin, Store: memStore, Auth: auth}, nil
}
