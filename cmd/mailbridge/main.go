package main

import (
	"log"
	"os"
	"strings"

	"github.com/custodia-labs/mailbridge/internal/adapters/driven/roles"
	"github.com/custodia-labs/mailbridge/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/mailbridge/internal/adapters/driving/cli"
	"github.com/custodia-labs/mailbridge/internal/config"
	"github.com/custodia-labs/mailbridge/internal/core/services"
	"github.com/custodia-labs/mailbridge/internal/delivery"
	"github.com/custodia-labs/mailbridge/internal/graph"
	"github.com/custodia-labs/mailbridge/internal/graph/token"
	"github.com/custodia-labs/mailbridge/internal/logger"
	"github.com/custodia-labs/mailbridge/internal/msync"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cli.SetVersion(version)

	cfg, err := config.Load(configPathArg())
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return 1
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Printf("failed to create logger: %v", err)
		return 1
	}
	defer zlog.Sync() //nolint:errcheck

	store, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		zlog.Sugar().Errorf("failed to open store: %v", err)
		return 1
	}
	defer store.Close()

	client := graph.NewClient(cfg.Graph.BaseURL, cfg.Graph.RateLimit(), zlog)
	broker := token.NewBroker(store, zlog)

	syncEngine := msync.NewEngine(store, broker, client, zlog)

	resolver := delivery.NewRegistryResolver(store)
	deliveryEngine := delivery.NewEngine(store, resolver, broker, client, nil,
		delivery.Options{BaseURL: cfg.BaseURL, TrackOpens: cfg.TrackOpens}, zlog)

	roleChecker := roles.NewStaticChecker(cfg.AdminUsers)

	registry := services.NewAccountRegistry(store, zlog)
	admin := services.NewAdminService(store, roleChecker, broker, syncEngine, client, broker, zlog)
	tasks := services.NewTasks(store, broker, syncEngine, deliveryEngine, zlog)

	scheduler, err := services.NewScheduler(tasks, services.Schedule{
		Sync:            cfg.Schedule.Sync,
		Queue:           cfg.Schedule.Queue,
		TokenRefresh:    cfg.Schedule.TokenRefresh,
		LogRetention:    cfg.Schedule.LogRetention,
		CredentialCheck: cfg.Schedule.CredentialCheck,
	}, zlog)
	if err != nil {
		zlog.Sugar().Errorf("failed to build scheduler: %v", err)
		return 1
	}

	cli.SetServices(&cli.Services{
		Registry:  registry,
		Admin:     admin,
		Tasks:     tasks,
		Scheduler: scheduler,
	})

	if err := cli.Execute(); err != nil {
		return 1
	}
	return 0
}

// configPathArg pre-scans the arguments for --config so the file can be
// loaded before the command tree runs.
func configPathArg() string {
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if v, ok := strings.CutPrefix(arg, "--config="); ok {
			return v
		}
	}
	return ""
}
