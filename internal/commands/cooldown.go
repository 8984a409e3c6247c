package commands

import (
	"fmt"
	"sync"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const cooldownUsers = 4096

// Cooldowns allows one call per user per interval. Limiters for users not
// seen in a while are evicted.
type Cooldowns struct {
	clock    clockwork.Clock
	every    time.Duration
	mu       sync.Mutex
	limiters *lru.Cache[discord.UserID, *rate.Limiter]
}

// NewCooldowns creates a Cooldowns. A non-positive every disables it.
func NewCooldowns(clock clockwork.Clock, every time.Duration) (*Cooldowns, error) {
	cache, err := lru.New[discord.UserID, *rate.Limiter](cooldownUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to create cooldown cache: %w", err)
	}
	return &Cooldowns{clock: clock, every: every, limiters: cache}, nil
}

// Allow takes the user's token. When none is left it returns how long
// until the next one.
func (c *Cooldowns) Allow(user discord.UserID) (time.Duration, bool) {
	if c == nil || c.every <= 0 {
		return 0, true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	lim, ok := c.limiters.Get(user)
	if !ok {
		lim = rate.NewLimiter(rate.Every(c.every), 1)
		c.limiters.Add(user, lim)
	}

	now := c.clock.Now()
	r := lim.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return delay, false
	}
	return 0, true
}
