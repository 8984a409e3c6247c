package voice

import (
	"context"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"go.uber.org/zap"
)

// Run ends sessions that have been silent in both directions for longer
// than the idle timeout. It returns when ctx ends.
func (m *Manager) Run(ctx context.Context) {
	interval := m.opts.IdleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}

	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			m.reapIdle(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) reapIdle(ctx context.Context) {
	type idle struct {
		guild discord.GuildID
		sess  *userSession
	}

	now := m.clock.Now()
	var stale []idle

	m.mu.Lock()
	for id, gc := range m.guilds {
		s := gc.session
		if s == nil || s.state != SessionActive || s.speaking {
			continue
		}
		if gc.player != nil && gc.player.IsPlaying() {
			continue
		}
		if now.Sub(s.lastActivity) > m.opts.IdleTimeout {
			stale = append(stale, idle{guild: id, sess: s})
		}
	}
	m.mu.Unlock()

	for _, it := range stale {
		m.logger.Info("Ending idle voice session",
			zap.String("guild_id", it.guild.String()),
			zap.String("user_id", it.sess.user.String()))
		m.endSession(ctx, it.guild, func(s *userSession) bool { return s == it.sess }, 0, "idle")
	}
}
