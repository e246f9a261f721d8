package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/ReplyPipe/internal/metrics"
	"github.com/BTreeMap/ReplyPipe/internal/models"
)

// DefaultCacheTTL is how long team and label reads are served from memory.
const DefaultCacheTTL = 10 * time.Minute

type cached[T any] struct {
	data      []T
	fetchedAt time.Time
}

func (c *cached[T]) fresh(now time.Time, ttl time.Duration) bool {
	return !c.fetchedAt.IsZero() && now.Sub(c.fetchedAt) < ttl
}

// Directory caches the team roster and label list of one device.
type Directory struct {
	gw       Gateway
	deviceID string
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	members cached[models.Member]
	labels  cached[models.Label]
}

// NewDirectory creates a Directory for deviceID. A ttl of zero uses DefaultCacheTTL.
func NewDirectory(gw Gateway, deviceID string, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Directory{gw: gw, deviceID: deviceID, ttl: ttl, now: time.Now}
}

// DeviceID returns the device the directory serves.
func (d *Directory) DeviceID() string {
	return d.deviceID
}

// Members returns the team roster, refetching when the cache expired or force is set.
func (d *Directory) Members(ctx context.Context, force bool) ([]models.Member, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !force && d.members.fresh(d.now(), d.ttl) {
		return d.members.data, nil
	}
	members, err := d.gw.ListTeam(ctx, d.deviceID)
	if err != nil {
		return nil, err
	}
	metrics.CacheRefreshes.WithLabelValues("members").Inc()
	d.members = cached[models.Member]{data: members, fetchedAt: d.now()}
	slog.Debug("Directory.Members: refreshed", "count", len(members))
	return members, nil
}

// Labels returns the device labels, refetching when the cache expired or force is set.
func (d *Directory) Labels(ctx context.Context, force bool) ([]models.Label, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !force && d.labels.fresh(d.now(), d.ttl) {
		return d.labels.data, nil
	}
	labels, err := d.gw.ListLabels(ctx, d.deviceID)
	if err != nil {
		return nil, err
	}
	metrics.CacheRefreshes.WithLabelValues("labels").Inc()
	d.labels = cached[models.Label]{data: labels, fetchedAt: d.now()}
	slog.Debug("Directory.Labels: refreshed", "count", len(labels))
	return labels, nil
}

// Refresh force-reloads both caches.
func (d *Directory) Refresh(ctx context.Context) error {
	if _, err := d.Members(ctx, true); err != nil {
		return err
	}
	_, err := d.Labels(ctx, true)
	return err
}
