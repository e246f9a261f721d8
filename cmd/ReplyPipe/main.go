package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/ReplyPipe/internal/api"
	"github.com/BTreeMap/ReplyPipe/internal/assignment"
	"github.com/BTreeMap/ReplyPipe/internal/flow"
	"github.com/BTreeMap/ReplyPipe/internal/gateway"
	"github.com/BTreeMap/ReplyPipe/internal/messaging"
	"github.com/BTreeMap/ReplyPipe/internal/scheduler"
	"github.com/BTreeMap/ReplyPipe/internal/store"
	"github.com/BTreeMap/ReplyPipe/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ReplyPipe state data
	DefaultStateDir = "/var/lib/replypipe"
	// DefaultDBFileName is the SQLite database filename used with -state-dsn=sqlite
	DefaultDBFileName = "replypipe.db"
	// DefaultPort is used when neither API_ADDR nor PORT is set
	DefaultPort = "8080"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags, err := parseCommandLineFlags(config, os.Args[1:])
	if err != nil {
		slog.Error("Failed to parse command line flags", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping ReplyPipe", "api_addr", flags.APIAddr, "production", flags.Production)
	if err := run(ctx, flags); err != nil {
		slog.Error("ReplyPipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("ReplyPipe exited successfully")
}

// Config holds environment configuration. Flags override a subset of it.
type Config struct {
	APIKey     string
	APIURL     string
	Device     string
	APIAddr    string
	WebhookURL string
	Production bool
	StateDSN   string
	RedisURL   string
	StateDir   string
	PrintQR    bool

	SkipChatLabels    []string
	NumbersWhitelist  []string
	NumbersBlacklist  []string
	SkipArchivedChats bool

	EnableAssignment     bool
	AssignOnlyOnline     bool
	SkipTeamRoles        []string
	TeamWhitelist        []string
	TeamBlacklist        []string
	BotLabels            []string
	AssignmentLabels     []string
	RemoveLabelsOnAssign bool

	CacheRefreshCron string
	CacheTTL         time.Duration
	Workers          int
	QueueSize        int
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	elig := flow.DefaultConfig()
	assign := assignment.DefaultConfig()

	config := Config{
		APIKey:     os.Getenv("API_KEY"),
		APIURL:     os.Getenv("API_URL"),
		Device:     os.Getenv("DEVICE"),
		APIAddr:    os.Getenv("API_ADDR"),
		WebhookURL: os.Getenv("WEBHOOK_URL"),
		Production: util.ParseBoolEnv("PRODUCTION", false),
		StateDSN:   os.Getenv("STATE_DSN"),
		RedisURL:   os.Getenv("REDIS_URL"),
		StateDir:   os.Getenv("REPLYPIPE_STATE_DIR"),
		PrintQR:    util.ParseBoolEnv("PRINT_QR", false),

		SkipChatLabels:    util.ParseListEnv("SKIP_CHAT_LABELS", elig.SkipLabels),
		NumbersWhitelist:  util.ParseListEnv("NUMBERS_WHITELIST", elig.NumbersWhitelist),
		NumbersBlacklist:  util.ParseListEnv("NUMBERS_BLACKLIST", elig.NumbersBlacklist),
		SkipArchivedChats: util.ParseBoolEnv("SKIP_ARCHIVED_CHATS", elig.SkipArchivedChats),

		EnableAssignment:     util.ParseBoolEnv("ENABLE_MEMBER_ASSIGNMENT", assign.Enabled),
		AssignOnlyOnline:     util.ParseBoolEnv("ASSIGN_ONLY_ONLINE", assign.OnlyOnline),
		SkipTeamRoles:        util.ParseListEnv("SKIP_TEAM_ROLES", assign.SkipRoles),
		TeamWhitelist:        util.ParseListEnv("TEAM_WHITELIST", assign.Whitelist),
		TeamBlacklist:        util.ParseListEnv("TEAM_BLACKLIST", assign.Blacklist),
		BotLabels:            util.ParseListEnv("BOT_LABELS", assign.BotLabels),
		AssignmentLabels:     util.ParseListEnv("ASSIGNMENT_LABELS", assign.AssignmentLabels),
		RemoveLabelsOnAssign: util.ParseBoolEnv("REMOVE_LABELS_AFTER_ASSIGNMENT", assign.RemoveBotLabels),

		CacheRefreshCron: os.Getenv("CACHE_REFRESH_CRON"),
		CacheTTL:         util.ParseDurationEnv("CACHE_TTL", gateway.DefaultCacheTTL),
		Workers:          util.ParseIntEnv("WORKERS", messaging.DefaultQueueWorkers),
		QueueSize:        util.ParseIntEnv("QUEUE_SIZE", messaging.DefaultQueueSize),
	}

	if config.APIURL == "" {
		config.APIURL = gateway.DefaultBaseURL
	}
	if config.APIAddr == "" {
		port := os.Getenv("PORT")
		if port == "" {
			port = DefaultPort
		}
		config.APIAddr = ":" + port
	}
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
	}
	if config.CacheRefreshCron == "" {
		config.CacheRefreshCron = scheduler.DefaultCacheRefreshSpec
	}

	slog.Debug("environment variables loaded",
		"API_KEY_SET", config.APIKey != "",
		"API_URL", config.APIURL,
		"DEVICE", config.Device,
		"API_ADDR", config.APIAddr,
		"WEBHOOK_URL", config.WebhookURL,
		"PRODUCTION", config.Production,
		"STATE_DSN_SET", config.StateDSN != "",
		"REDIS_URL_SET", config.RedisURL != "",
		"REPLYPIPE_STATE_DIR", config.StateDir)

	return config
}

// parseCommandLineFlags applies command line overrides on top of config.
func parseCommandLineFlags(config Config, args []string) (Config, error) {
	fs := flag.NewFlagSet("ReplyPipe", flag.ContinueOnError)
	fs.StringVar(&config.APIKey, "api-key", config.APIKey, "gateway API key (overrides $API_KEY)")
	fs.StringVar(&config.APIURL, "api-url", config.APIURL, "gateway API base URL (overrides $API_URL)")
	fs.StringVar(&config.Device, "device", config.Device, "gateway device ID (overrides $DEVICE)")
	fs.StringVar(&config.APIAddr, "api-addr", config.APIAddr, "HTTP listen address (overrides $API_ADDR / $PORT)")
	fs.StringVar(&config.WebhookURL, "webhook-url", config.WebhookURL, "public base URL to register the webhook on (overrides $WEBHOOK_URL)")
	fs.BoolVar(&config.Production, "production", config.Production, "register the webhook on startup (overrides $PRODUCTION)")
	fs.StringVar(&config.StateDSN, "state-dsn", config.StateDSN, `conversation store: empty for memory, "sqlite", a SQLite path or a PostgreSQL DSN (overrides $STATE_DSN)`)
	fs.StringVar(&config.RedisURL, "redis-url", config.RedisURL, "Redis URL for the conversation store (overrides $REDIS_URL)")
	fs.StringVar(&config.StateDir, "state-dir", config.StateDir, "state directory for file-backed stores (overrides $REPLYPIPE_STATE_DIR)")
	fs.BoolVar(&config.PrintQR, "print-qr", config.PrintQR, "print a QR code linking to the bot chat on startup")
	fs.StringVar(&config.CacheRefreshCron, "cache-refresh-cron", config.CacheRefreshCron, "cron schedule for team and label cache refresh (overrides $CACHE_REFRESH_CRON)")
	fs.IntVar(&config.Workers, "workers", config.Workers, "background worker count (overrides $WORKERS)")

	if err := fs.Parse(args); err != nil {
		return config, err
	}
	if config.StateDSN == "sqlite" {
		config.StateDSN = filepath.Join(config.StateDir, DefaultDBFileName)
	}
	slog.Debug("flags parsed",
		"device", config.Device,
		"apiAddr", config.APIAddr,
		"production", config.Production,
		"stateDir", config.StateDir,
		"printQR", config.PrintQR,
		"workers", config.Workers)
	return config, nil
}

// buildGatewayOptions constructs gateway client options
func buildGatewayOptions(config Config) []gateway.Option {
	opts := []gateway.Option{gateway.WithAPIKey(config.APIKey)}
	if config.APIURL != "" {
		opts = append(opts, gateway.WithBaseURL(config.APIURL))
	}
	return opts
}

// buildEligibilityConfig maps configuration onto the reply eligibility rules
func buildEligibilityConfig(config Config) flow.Config {
	return flow.Config{
		SkipLabels:        config.SkipChatLabels,
		NumbersWhitelist:  config.NumbersWhitelist,
		NumbersBlacklist:  config.NumbersBlacklist,
		SkipArchivedChats: config.SkipArchivedChats,
	}
}

// buildAssignmentConfig maps configuration onto the handoff rules
func buildAssignmentConfig(config Config) assignment.Config {
	cfg := assignment.DefaultConfig()
	cfg.Enabled = config.EnableAssignment
	cfg.OnlyOnline = config.AssignOnlyOnline
	cfg.SkipRoles = config.SkipTeamRoles
	cfg.Whitelist = config.TeamWhitelist
	cfg.Blacklist = config.TeamBlacklist
	cfg.BotLabels = config.BotLabels
	cfg.AssignmentLabels = config.AssignmentLabels
	cfg.RemoveBotLabels = config.RemoveLabelsOnAssign
	return cfg
}

// buildAPIOptions constructs API server options
func buildAPIOptions(config Config, devicePhone string) []api.Option {
	opts := []api.Option{api.WithAddr(config.APIAddr)}
	if devicePhone != "" {
		opts = append(opts, api.WithDevicePhone(devicePhone))
	}
	return opts
}

// storeKind names the backend selected by the configuration.
func storeKind(config Config) string {
	switch {
	case config.RedisURL != "":
		return "redis"
	case config.StateDSN == "" || config.StateDSN == "memory":
		return "memory"
	default:
		return store.DetectDSNType(config.StateDSN)
	}
}

// stateStore is what the bot needs from a backend.
type stateStore interface {
	store.ConversationStore
	store.DedupRepo
}

// openStore opens the configured conversation store.
func openStore(config Config) (stateStore, error) {
	kind := storeKind(config)
	slog.Debug("Opening conversation store", "kind", kind)
	switch kind {
	case "redis":
		st, err := store.NewRedisStore(store.WithRedisURL(config.RedisURL))
		if err != nil {
			return nil, err
		}
		return st, nil
	case "postgres":
		st, err := store.NewPostgresStore(store.WithPostgresDSN(config.StateDSN))
		if err != nil {
			return nil, err
		}
		return st, nil
	case "sqlite3":
		st, err := store.NewSQLiteStore(store.WithSQLiteDSN(config.StateDSN))
		if err != nil {
			return nil, err
		}
		return st, nil
	case "memory":
		return store.NewInMemoryStore(), nil
	}
	return nil, fmt.Errorf("unsupported store kind %q", kind)
}

// queueOptions constructs background queue options
func queueOptions(config Config) []messaging.QueueOption {
	return []messaging.QueueOption{
		messaging.WithWorkers(config.Workers),
		messaging.WithQueueSize(config.QueueSize),
		messaging.WithTaskTimeout(time.Minute),
	}
}
