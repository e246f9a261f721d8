package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/BTreeMap/ReplyPipe/internal/gateway"
	"github.com/BTreeMap/ReplyPipe/internal/messaging"
	"github.com/BTreeMap/ReplyPipe/internal/models"
	"github.com/BTreeMap/ReplyPipe/internal/scheduler"
)

var configEnvKeys = []string{
	"API_KEY", "API_URL", "DEVICE", "API_ADDR", "PORT", "WEBHOOK_URL", "PRODUCTION",
	"STATE_DSN", "REDIS_URL", "REPLYPIPE_STATE_DIR", "PRINT_QR",
	"SKIP_CHAT_LABELS", "NUMBERS_WHITELIST", "NUMBERS_BLACKLIST", "SKIP_ARCHIVED_CHATS",
	"ENABLE_MEMBER_ASSIGNMENT", "ASSIGN_ONLY_ONLINE", "SKIP_TEAM_ROLES", "TEAM_WHITELIST",
	"TEAM_BLACKLIST", "BOT_LABELS", "ASSIGNMENT_LABELS", "REMOVE_LABELS_AFTER_ASSIGNMENT",
	"CACHE_REFRESH_CRON", "CACHE_TTL", "WORKERS", "QUEUE_SIZE",
}

// clearEnv unsets the configuration variables for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		if old, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, old) })
		}
		os.Unsetenv(key)
	}
}

func TestLoadEnvironmentConfigDefaults(t *testing.T) {
	clearEnv(t)
	config := loadEnvironmentConfig()

	if config.APIURL != gateway.DefaultBaseURL {
		t.Errorf("APIURL = %q, want %q", config.APIURL, gateway.DefaultBaseURL)
	}
	if config.APIAddr != ":"+DefaultPort {
		t.Errorf("APIAddr = %q", config.APIAddr)
	}
	if config.StateDir != DefaultStateDir {
		t.Errorf("StateDir = %q", config.StateDir)
	}
	if config.CacheRefreshCron != scheduler.DefaultCacheRefreshSpec {
		t.Errorf("CacheRefreshCron = %q", config.CacheRefreshCron)
	}
	if config.Workers != messaging.DefaultQueueWorkers {
		t.Errorf("Workers = %d", config.Workers)
	}
	if !reflect.DeepEqual(config.SkipChatLabels, []string{"no-bot"}) {
		t.Errorf("SkipChatLabels = %v", config.SkipChatLabels)
	}
	if !config.SkipArchivedChats || !config.EnableAssignment || !config.RemoveLabelsOnAssign {
		t.Errorf("unexpected boolean defaults: %+v", config)
	}
	if config.Production || config.StateDSN != "" || config.RedisURL != "" {
		t.Errorf("unexpected defaults: %+v", config)
	}
}

func TestLoadEnvironmentConfigOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("BOT_LABELS", "bot, auto")
	t.Setenv("NUMBERS_BLACKLIST", "")
	t.Setenv("ASSIGN_ONLY_ONLINE", "yes")
	t.Setenv("WORKERS", "8")

	config := loadEnvironmentConfig()
	if config.APIAddr != ":9000" {
		t.Errorf("APIAddr = %q, want :9000", config.APIAddr)
	}
	if !reflect.DeepEqual(config.BotLabels, []string{"bot", "auto"}) {
		t.Errorf("BotLabels = %v", config.BotLabels)
	}
	if len(config.NumbersBlacklist) != 0 {
		t.Errorf("blank NUMBERS_BLACKLIST should clear the list, got %v", config.NumbersBlacklist)
	}
	if !config.AssignOnlyOnline || config.Workers != 8 {
		t.Errorf("unexpected overrides: %+v", config)
	}

	t.Setenv("API_ADDR", "127.0.0.1:7000")
	if config := loadEnvironmentConfig(); config.APIAddr != "127.0.0.1:7000" {
		t.Errorf("API_ADDR should win over PORT, got %q", config.APIAddr)
	}
}

func TestParseCommandLineFlags(t *testing.T) {
	base := Config{APIAddr: ":8080", StateDir: "/tmp/rp", Workers: 4}
	config, err := parseCommandLineFlags(base, []string{
		"-api-addr", ":9999", "-device", "abc", "-state-dsn", "sqlite", "-production", "-workers", "2",
	})
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if config.APIAddr != ":9999" || config.Device != "abc" || !config.Production || config.Workers != 2 {
		t.Errorf("flags not applied: %+v", config)
	}
	if want := filepath.Join("/tmp/rp", DefaultDBFileName); config.StateDSN != want {
		t.Errorf("StateDSN = %q, want %q", config.StateDSN, want)
	}

	if _, err := parseCommandLineFlags(base, []string{"-no-such-flag"}); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestStoreKind(t *testing.T) {
	tests := []struct {
		config Config
		want   string
	}{
		{Config{}, "memory"},
		{Config{StateDSN: "memory"}, "memory"},
		{Config{StateDSN: "/var/lib/replypipe/replypipe.db"}, "sqlite3"},
		{Config{StateDSN: "postgres://u:p@localhost/db"}, "postgres"},
		{Config{StateDSN: "host=localhost dbname=rp"}, "postgres"},
		{Config{StateDSN: "/x.db", RedisURL: "redis://localhost:6379/0"}, "redis"},
	}
	for _, tt := range tests {
		if got := storeKind(tt.config); got != tt.want {
			t.Errorf("storeKind(%+v) = %q, want %q", tt.config, got, tt.want)
		}
	}
}

func TestOpenStore(t *testing.T) {
	mem, err := openStore(Config{})
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	mem.Close()

	dsn := filepath.Join(t.TempDir(), "state", DefaultDBFileName)
	sq, err := openStore(Config{StateDSN: dsn})
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	defer sq.Close()
	if _, err := os.Stat(dsn); err != nil {
		t.Errorf("sqlite file not created: %v", err)
	}
}

func TestBuildAssignmentConfig(t *testing.T) {
	config := Config{
		EnableAssignment:     true,
		AssignOnlyOnline:     true,
		SkipTeamRoles:        []string{"supervisor"},
		TeamWhitelist:        []string{"aaaaaaaaaaaaaaaaaaaaaaaa"},
		BotLabels:            []string{"bot"},
		AssignmentLabels:     []string{"human"},
		RemoveLabelsOnAssign: false,
	}
	cfg := buildAssignmentConfig(config)
	if !cfg.Enabled || !cfg.OnlyOnline || cfg.RemoveBotLabels {
		t.Errorf("unexpected flags: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.AssignmentLabels, []string{"human"}) || !reflect.DeepEqual(cfg.SkipRoles, []string{"supervisor"}) {
		t.Errorf("unexpected lists: %+v", cfg)
	}
	if len(cfg.Metadata) == 0 {
		t.Error("assignment metadata rules should be kept")
	}
}

const testDeviceID = "0123456789abcdef01234567"

func onlineDevice() models.Device {
	d := models.Device{ID: testDeviceID, Phone: "+15559990000", Alias: "bot", Status: models.DeviceStatusOperative}
	d.Session.Status = models.SessionStatusOnline
	d.Billing.Subscription.Product = models.ProductInboundOutbound
	return d
}

func TestBootstrap(t *testing.T) {
	gw := gateway.NewMockClient()
	gw.Devices = []models.Device{onlineDevice()}
	config := Config{
		BotLabels:        []string{"bot"},
		AssignmentLabels: []string{"from-bot"},
		Production:       true,
		WebhookURL:       "https://bot.example.com",
	}

	device, dir, err := bootstrap(context.Background(), gw, config)
	if err != nil {
		t.Fatalf("bootstrap error: %v", err)
	}
	if device.ID != testDeviceID || dir.DeviceID() != testDeviceID {
		t.Errorf("device = %s, directory device = %s", device.ID, dir.DeviceID())
	}
	if got := len(gw.CreatedLabels); got != 2 {
		t.Errorf("created %d labels, want 2", got)
	}
	if gw.CallCount("CreateWebhook") != 1 {
		t.Error("expected the webhook to be registered in production")
	}
}

func TestBootstrap_Failures(t *testing.T) {
	offline := onlineDevice()
	offline.Session.Status = "timeout"

	tests := []struct {
		name    string
		devices []models.Device
		config  Config
		want    error
	}{
		{"bad device id", []models.Device{onlineDevice()}, Config{Device: "xyz"}, gateway.ErrInvalidDeviceID},
		{"no device", nil, Config{}, models.ErrMissingDevice},
		{"offline", []models.Device{offline}, Config{}, gateway.ErrDeviceOffline},
		{"unknown member", []models.Device{onlineDevice()}, Config{TeamWhitelist: []string{"ffffffffffffffffffffffff"}}, gateway.ErrUnknownMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := gateway.NewMockClient()
			gw.Devices = tt.devices
			_, _, err := bootstrap(context.Background(), gw, tt.config)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	gw := gateway.NewMockClient()
	gw.Devices = []models.Device{onlineDevice()}
	if _, _, err := bootstrap(context.Background(), gw, Config{Production: true}); err == nil {
		t.Error("expected error when production mode has no webhook URL")
	}
}
