package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// BalanceCache holds the latest wallet snapshot and mediates refreshes:
// manual refreshes are rate limited by a cooldown, automatic refreshes are
// debounced so bursts of triggers collapse into one fetch, and an optional
// background ticker keeps the snapshot fresh.
type BalanceCache struct {
	service *Service
	owner   string
	logger  *logrus.Logger

	cooldown time.Duration
	debounce time.Duration

	// now is swappable for tests.
	now func() time.Time

	mu           sync.Mutex
	snapshot     *WalletBalances
	lastManual   time.Time
	pendingTimer *time.Timer
}

// NewBalanceCache creates a cache for the given wallet address.
func NewBalanceCache(service *Service, owner string, cooldown, debounce time.Duration, logger *logrus.Logger) *BalanceCache {
	return &BalanceCache{
		service:  service,
		owner:    owner,
		logger:   logger,
		cooldown: cooldown,
		debounce: debounce,
		now:      time.Now,
	}
}

// Snapshot returns the current cached balances, which may be nil before the
// first successful refresh.
func (c *BalanceCache) Snapshot() *WalletBalances {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Age returns how old the cached snapshot is, or zero when empty.
func (c *BalanceCache) Age() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot == nil {
		return 0
	}
	return c.now().Sub(c.snapshot.FetchedAt)
}

// AgeString renders the snapshot age for display, e.g. "12s ago".
func (c *BalanceCache) AgeString() string {
	c.mu.Lock()
	snapshot := c.snapshot
	c.mu.Unlock()
	if snapshot == nil {
		return "never"
	}
	age := c.now().Sub(snapshot.FetchedAt)
	switch {
	case age < time.Second:
		return "just now"
	case age < time.Minute:
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	}
}

// Refresh performs a user-requested refresh. Requests arriving within the
// cooldown window of the previous one return the cached snapshot untouched.
// On failure the stale snapshot is kept and the error returned.
func (c *BalanceCache) Refresh(ctx context.Context) (*WalletBalances, error) {
	c.mu.Lock()
	if !c.lastManual.IsZero() && c.now().Sub(c.lastManual) < c.cooldown {
		snapshot := c.snapshot
		c.mu.Unlock()
		c.logger.Debug("Manual refresh within cooldown, serving cached snapshot")
		return snapshot, nil
	}
	c.lastManual = c.now()
	c.mu.Unlock()

	return c.fetch(ctx, false)
}

// RefreshSilent refreshes in the background. Errors are logged, never
// surfaced, and the previous snapshot stays in place so transient RPC
// trouble does not blank the display.
func (c *BalanceCache) RefreshSilent(ctx context.Context) *WalletBalances {
	snapshot, err := c.fetch(ctx, true)
	if err != nil {
		return c.Snapshot()
	}
	return snapshot
}

// ScheduleRefresh requests a silent refresh after the debounce delay.
// Repeated calls inside the window collapse into a single fetch, which keeps
// post-transaction refresh storms down to one RPC round.
func (c *BalanceCache) ScheduleRefresh(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pendingTimer != nil {
		c.pendingTimer.Stop()
	}
	c.pendingTimer = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		c.pendingTimer = nil
		c.mu.Unlock()
		c.RefreshSilent(ctx)
	})
}

// StartAutoRefresh refreshes the snapshot every interval until ctx is
// cancelled. An interval of zero disables the loop.
func (c *BalanceCache) StartAutoRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.RefreshSilent(ctx)
			}
		}
	}()
}

func (c *BalanceCache) fetch(ctx context.Context, silent bool) (*WalletBalances, error) {
	snapshot, err := c.service.Discover(ctx, c.owner)
	if err != nil {
		if silent {
			c.logger.WithError(err).Debug("Background refresh failed, keeping stale snapshot")
		} else {
			c.logger.WithError(err).Warn("Balance refresh failed")
		}
		return nil, err
	}

	c.mu.Lock()
	c.snapshot = snapshot
	c.mu.Unlock()
	return snapshot, nil
}
