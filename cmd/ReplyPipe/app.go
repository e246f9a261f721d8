package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mdp/qrterminal/v3"

	"github.com/BTreeMap/ReplyPipe/internal/api"
	"github.com/BTreeMap/ReplyPipe/internal/assignment"
	"github.com/BTreeMap/ReplyPipe/internal/flow"
	"github.com/BTreeMap/ReplyPipe/internal/gateway"
	"github.com/BTreeMap/ReplyPipe/internal/lockfile"
	"github.com/BTreeMap/ReplyPipe/internal/messaging"
	"github.com/BTreeMap/ReplyPipe/internal/models"
	"github.com/BTreeMap/ReplyPipe/internal/scheduler"
	"github.com/BTreeMap/ReplyPipe/internal/store"
)

const (
	bootstrapTimeout = 30 * time.Second
	jobTimeout       = 2 * time.Minute
	dedupRetention   = 24 * time.Hour
)

// run validates the gateway account, wires every component and serves until ctx ends.
func run(ctx context.Context, config Config) error {
	gw, err := gateway.NewClient(buildGatewayOptions(config)...)
	if err != nil {
		return fmt.Errorf("please provide a valid gateway API key: %w", err)
	}

	bootCtx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	defer cancel()
	device, dir, err := bootstrap(bootCtx, gw, config)
	if err != nil {
		return err
	}

	if kind := storeKind(config); kind == "sqlite3" {
		lock, err := lockfile.Acquire(filepath.Dir(config.StateDSN))
		if err != nil {
			return err
		}
		defer lock.Release()
	}
	st, err := openStore(config)
	if err != nil {
		return fmt.Errorf("failed to open conversation store: %w", err)
	}
	defer st.Close()

	if config.PrintQR {
		printChatQR(device.Phone)
	}

	queue := messaging.NewTaskQueue(queueOptions(config)...)
	queue.Start(ctx)
	defer queue.Stop()

	sched := scheduler.NewScheduler(jobTimeout)
	if err := registerJobs(sched, config.CacheRefreshCron, dir, st); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	dispatcher := messaging.NewDispatcher(gw, device.ID)
	assigner := assignment.NewAssigner(gw, dir, buildAssignmentConfig(config))
	inbound := messaging.NewInboundHandler(st, flow.NewRouter(st), dispatcher,
		messaging.WithDedup(st),
		messaging.WithEligibility(buildEligibilityConfig(config)),
		messaging.WithAssigner(assigner, queue),
		messaging.WithBotSync(gw, config.BotLabels, messaging.BotStartMetadata()),
	)

	apiOpts := append(buildAPIOptions(config, device.Phone), api.WithUnassigner(assigner))
	server := api.NewServer(inbound, dispatcher, queue, apiOpts...)
	return server.Run(ctx)
}

// bootstrap loads and validates the device, warms the caches, creates missing labels,
// checks configured team members and registers the webhook in production.
func bootstrap(ctx context.Context, gw gateway.Gateway, config Config) (*models.Device, *gateway.Directory, error) {
	device, err := gateway.LoadDevice(ctx, gw, config.Device)
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidDeviceID) {
			return nil, nil, fmt.Errorf("invalid device ID %q, it must be 24 hexadecimal characters: %w", config.Device, err)
		}
		return nil, nil, fmt.Errorf("failed to load gateway device: %w", err)
	}
	if err := gateway.ValidateDevice(device); err != nil {
		return nil, nil, err
	}
	slog.Info("Using gateway device", "id", device.ID, "phone", device.Phone, "alias", device.Alias)

	dir := gateway.NewDirectory(gw, device.ID, config.CacheTTL)
	if err := dir.Refresh(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to load team and labels: %w", err)
	}

	required := append(append([]string{}, config.BotLabels...), config.AssignmentLabels...)
	if created, err := gateway.EnsureLabels(ctx, dir, gw, required); err != nil {
		slog.Error("Failed to create labels", "error", err)
	} else if len(created) > 0 {
		slog.Info("Created chat labels", "labels", strings.Join(created, ", "))
	}

	members, err := dir.Members(ctx, false)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load team members: %w", err)
	}
	cfg := buildAssignmentConfig(config)
	if err := gateway.ValidateMembers(members, cfg.ConfiguredMembers()); err != nil {
		return nil, nil, err
	}

	if config.Production {
		if config.WebhookURL == "" {
			return nil, nil, errors.New("WEBHOOK_URL is required in production mode")
		}
		if _, err := gateway.RegisterWebhook(ctx, gw, config.WebhookURL, device.ID); err != nil {
			return nil, nil, err
		}
	}
	return device, dir, nil
}

// registerJobs schedules the cache warmer and dedup pruning.
func registerJobs(sched *scheduler.Scheduler, refreshSpec string, dir *gateway.Directory, dedup store.DedupRepo) error {
	if err := sched.AddJob("cache-refresh", refreshSpec, func(ctx context.Context) error {
		return dir.Refresh(ctx)
	}); err != nil {
		return err
	}
	return sched.AddJob("dedup-prune", scheduler.DefaultDedupPruneSpec, func(ctx context.Context) error {
		n, err := dedup.PruneInbound(ctx, time.Now().Add(-dedupRetention))
		if err == nil && n > 0 {
			slog.Debug("Pruned inbound dedup records", "count", n)
		}
		return err
	})
}

// printChatQR renders a wa.me link to the bot's number so testers can open the chat.
func printChatQR(phone string) {
	link := "https://wa.me/" + strings.TrimPrefix(phone, "+")
	slog.Info("Scan the QR code to chat with the bot", "link", link)
	qrterminal.GenerateHalfBlock(link, qrterminal.L, os.Stdout)
}
