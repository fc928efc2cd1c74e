package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/p2pclaw/hive/internal/consensus"
	"github.com/p2pclaw/hive/internal/events"
	"github.com/p2pclaw/hive/internal/mcp"
	"github.com/p2pclaw/hive/internal/platform/config"
	"github.com/p2pclaw/hive/internal/publish"
	"github.com/p2pclaw/hive/internal/storage/bbolt"
	"github.com/p2pclaw/hive/internal/storage/sqlite"
	"github.com/p2pclaw/hive/internal/warden"
)

type mcpConfig struct {
	MeshDBPath       string `env:"HIVE_MESH_DB" envDefault:"hive-mesh.db"`
	LibraryDBPath    string `env:"HIVE_LIBRARY_DB" envDefault:"hive-library.db"`
	WardenPolicyPath string `env:"HIVE_WARDEN_POLICY"`
	StorageURL       string `env:"HIVE_STORAGE_URL"`
	Tier1URL         string `env:"HIVE_TIER1_URL"`
}

// main starts the MCP server on stdio.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found")
	}
	log.SetPrefix("[MCP] ")

	var cfg mcpConfig
	if err := config.ParseEnv(&cfg); err != nil {
		config.Exitf("load config: %v", err)
	}

	mesh, err := bbolt.Open(cfg.MeshDBPath)
	if err != nil {
		config.Exitf("open mesh store: %v", err)
	}
	defer mesh.Close()

	library, err := sqlite.Open(cfg.LibraryDBPath)
	if err != nil {
		config.Exitf("open library store: %v", err)
	}
	defer library.Close()

	policy := warden.DefaultPolicy()
	if cfg.WardenPolicyPath != "" {
		policy, err = warden.LoadPolicy(cfg.WardenPolicyPath)
		if err != nil {
			config.Exitf("load warden policy: %v", err)
		}
	}

	emitter := events.NewEmitter(library)
	gate := warden.New(policy, mesh, mesh, emitter)

	var coordinator *publish.Coordinator
	if cfg.StorageURL != "" {
		var verifier publish.ProofVerifier
		if cfg.Tier1URL != "" {
			verifier = publish.NewTier1Client(cfg.Tier1URL)
		}
		coordinator = publish.NewCoordinator(publish.NewGatewayClient(cfg.StorageURL), verifier)
	}

	engine := consensus.New(consensus.Deps{
		Submissions: mesh,
		Agents:      mesh,
		Library:     library,
		Warden:      gate,
		Publisher:   coordinator,
		Emitter:     emitter,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mcp.NewServer(engine).Serve(ctx); err != nil {
		config.Exitf("serve mcp: %v", err)
	}
}
