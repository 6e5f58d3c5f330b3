package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	defaultAddr      = "127.0.0.1:8090"
	defaultWorkspace = "default"
	defaultSystem    = "Sys.SY.001"
	defaultCache     = "memory"
	defaultRedisAddr = "127.0.0.1:6379"
	defaultEngine    = "mock"
)

type Config struct {
	DBPath      string
	Addr        string
	WorkspaceID string
	SystemID    string

	CacheBackend string
	RedisAddr    string

	Engine        string
	OpenAIKey     string
	OpenAIBaseURL string
	Model         string

	RulesPath   string
	AutoCorrect bool
}

func LoadConfig(args []string) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	defaultDBPath := filepath.Join(cwd, "archgraph.db")

	dbPath := envOrDefault("ARCHGRAPH_DB_PATH", defaultDBPath)
	addr := addrFromEnv(defaultAddr)
	workspace := envOrDefault("ARCHGRAPH_WORKSPACE", defaultWorkspace)
	system := envOrDefault("ARCHGRAPH_SYSTEM", defaultSystem)
	cacheBackend := envOrDefault("ARCHGRAPH_CACHE", defaultCache)
	redisAddr := envOrDefault("ARCHGRAPH_REDIS_ADDR", defaultRedisAddr)
	engine := envOrDefault("ARCHGRAPH_ENGINE", defaultEngine)
	model := os.Getenv("ARCHGRAPH_MODEL")
	rulesPath := os.Getenv("ARCHGRAPH_RULES_PATH")
	autoCorrect := true
	if v := os.Getenv("ARCHGRAPH_AUTO_CORRECT"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ARCHGRAPH_AUTO_CORRECT: %w", err)
		}
		autoCorrect = parsed
	}

	flagSet := flag.NewFlagSet("archgraph-d", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagDB := flagSet.String("db", dbPath, "path to SQLite database")
	flagAddr := flagSet.String("addr", addr, "HTTP listen address")
	flagWorkspace := flagSet.String("workspace", workspace, "workspace identifier")
	flagSystem := flagSet.String("system", system, "system semantic ID")
	flagCache := flagSet.String("cache", cacheBackend, "snapshot cache backend: memory|redis")
	flagRedisAddr := flagSet.String("redis-addr", redisAddr, "redis address when cache=redis")
	flagEngine := flagSet.String("engine", engine, "reasoning engine: mock|openai")
	flagModel := flagSet.String("model", model, "reasoning engine model name")
	flagRules := flagSet.String("rules", rulesPath, "path to routing rules JSON (optional)")
	flagAutoCorrect := flagSet.Bool("auto-correct", autoCorrect, "auto-apply safe validation corrections")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
			return Config{}, err
		}
		return Config{}, err
	}

	config := Config{
		DBPath:        resolvePath(*flagDB, cwd),
		Addr:          strings.TrimSpace(*flagAddr),
		WorkspaceID:   strings.TrimSpace(*flagWorkspace),
		SystemID:      strings.TrimSpace(*flagSystem),
		CacheBackend:  strings.ToLower(strings.TrimSpace(*flagCache)),
		RedisAddr:     strings.TrimSpace(*flagRedisAddr),
		Engine:        strings.ToLower(strings.TrimSpace(*flagEngine)),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("ARCHGRAPH_OPENAI_BASE_URL"),
		Model:         strings.TrimSpace(*flagModel),
		RulesPath:     resolvePath(*flagRules, cwd),
		AutoCorrect:   *flagAutoCorrect,
	}

	if config.Addr == "" {
		return Config{}, errors.New("addr cannot be empty")
	}
	if config.WorkspaceID == "" || config.SystemID == "" {
		return Config{}, errors.New("workspace and system cannot be empty")
	}
	if config.CacheBackend != "memory" && config.CacheBackend != "redis" {
		return Config{}, fmt.Errorf("unsupported cache backend: %s", config.CacheBackend)
	}
	if config.Engine != "mock" && config.Engine != "openai" {
		return Config{}, fmt.Errorf("unsupported reasoning engine: %s", config.Engine)
	}
	if config.Engine == "openai" && config.OpenAIKey == "" {
		return Config{}, errors.New("engine=openai requires OPENAI_API_KEY")
	}

	return config, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func addrFromEnv(fallback string) string {
	if value := os.Getenv("ARCHGRAPH_ADDR"); value != "" {
		return value
	}
	if port := os.Getenv("ARCHGRAPH_PORT"); port != "" {
		return fmt.Sprintf("127.0.0.1:%s", port)
	}
	return fallback
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}
