package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/archgraph/archgraph/pkg/api"
	"github.com/archgraph/archgraph/pkg/cache"
	"github.com/archgraph/archgraph/pkg/engine"
	"github.com/archgraph/archgraph/pkg/hub"
	"github.com/archgraph/archgraph/pkg/llm"
	"github.com/archgraph/archgraph/pkg/router"
	"github.com/archgraph/archgraph/pkg/store"
)

func main() {
	fmt.Println(`{"level":"info","msg":"system_started","component":"archgraph-d"}`)

	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Printf(`{"level":"fatal","msg":"invalid_config","error":"%v"}`+"\n", err)
		os.Exit(1)
	}

	// Snapshot cache
	var snapCache cache.SnapshotCache
	switch cfg.CacheBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		snapCache = cache.NewRedisCache(rdb)
		fmt.Printf(`{"level":"info","msg":"cache_initialized","backend":"redis","addr":"%s"}`+"\n", cfg.RedisAddr)
	default:
		snapCache = cache.NewMemoryCache()
		fmt.Println(`{"level":"info","msg":"cache_initialized","backend":"memory"}`)
	}

	// Graph store + persistence
	st := store.NewStore(snapCache)
	db, err := store.NewGraphDB(cfg.DBPath)
	if err != nil {
		fmt.Printf(`{"level":"fatal","msg":"failed_to_init_db","error":"%v"}`+"\n", err)
		os.Exit(1)
	}
	fmt.Printf(`{"level":"info","msg":"db_initialized","path":"%s"}`+"\n", cfg.DBPath)

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 10*time.Second)
	if g, ok, err := db.Load(loadCtx, cfg.WorkspaceID, cfg.SystemID); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_load_graph","error":"%v"}`+"\n", err)
	} else if ok {
		st.Restore(g)
		fmt.Printf(`{"level":"info","msg":"graph_restored","system_id":"%s","version":%d}`+"\n", g.SystemID, g.Version)
	}
	cancelLoad()

	// Routing rules
	rules := router.DefaultRules()
	if cfg.RulesPath != "" {
		loaded, err := router.LoadRules(cfg.RulesPath)
		if err != nil {
			fmt.Printf(`{"level":"fatal","msg":"failed_to_load_rules","path":"%s","error":"%v"}`+"\n", cfg.RulesPath, err)
			os.Exit(1)
		}
		rules = loaded
		fmt.Printf(`{"level":"info","msg":"rules_loaded","path":"%s","count":%d}`+"\n", cfg.RulesPath, len(rules))
	}

	// Reasoning engine
	var eng llm.Engine
	switch cfg.Engine {
	case "openai":
		eng, err = llm.NewOpenAIEngine(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.Model)
		if err != nil {
			fmt.Printf(`{"level":"fatal","msg":"failed_to_init_engine","error":"%v"}`+"\n", err)
			os.Exit(1)
		}
		fmt.Printf(`{"level":"info","msg":"engine_initialized","kind":"openai","model":"%s"}`+"\n", cfg.Model)
	default:
		eng = llm.NewMockEngine()
		fmt.Println(`{"level":"info","msg":"engine_initialized","kind":"mock"}`)
	}

	// Hub + processor + API
	h := hub.NewHub()
	proc := engine.NewProcessor(engine.Config{
		WorkspaceID:              cfg.WorkspaceID,
		SystemID:                 cfg.SystemID,
		AutoApplySafeCorrections: cfg.AutoCorrect,
	}, st, db, snapCache, router.NewRouter(rules), eng, h)

	server := api.NewServer(proc, st, h, cfg.WorkspaceID, cfg.SystemID, cfg.Addr)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		fmt.Printf(`{"level":"info","msg":"shutdown_initiated","signal":"%s"}`+"\n", sig)
	case err := <-errCh:
		fmt.Printf(`{"level":"fatal","msg":"server_failed","error":"%v"}`+"\n", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_stop_server","error":"%v"}`+"\n", err)
	}

	// Final save so an explicit shutdown never loses the model.
	if err := proc.Save(shutdownCtx); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_save_graph","error":"%v"}`+"\n", err)
	} else {
		fmt.Println(`{"level":"info","msg":"graph_saved"}`)
	}

	if err := db.Close(); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_close_db","error":"%v"}`+"\n", err)
	}

	fmt.Println(`{"level":"info","msg":"shutdown_complete"}`)
}
