package voice

import (
	"context"
	"errors"

	"github.com/diamondburned/arikawa/v3/discord"
	"go.uber.org/zap"
)

var ErrNoPTTOwner = errors.New("push-to-talk has no owner")

// PTT returns the current push-to-talk state.
func (m *Manager) PTT() PTTState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ptt
}

// EnablePTT switches push-to-talk mode. Disabling it releases the key.
func (m *Manager) EnablePTT(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ptt.Enabled = enabled
	if !enabled {
		m.releaseLocked()
	}
	m.logger.Info("Push-to-talk mode changed", zap.Bool("enabled", enabled))
}

// SetPTTOwner assigns the one user whose key presses count.
func (m *Manager) SetPTTOwner(guild discord.GuildID, user discord.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.releaseLocked()
	m.ptt.GuildID = guild
	m.ptt.UserID = user
	m.logger.Info("Push-to-talk owner set",
		zap.String("guild_id", guild.String()),
		zap.String("user_id", user.String()))
}

// HandlePTTPress opens the owner's microphone. The bot joins the owner's
// current voice channel if it is not connected, then starts or resumes the
// owner's session. Pressing while the key is already down does nothing,
// as does pressing with push-to-talk disabled.
func (m *Manager) HandlePTTPress(ctx context.Context) error {
	m.mu.Lock()
	if !m.ptt.Enabled || m.ptt.KeyDown {
		m.mu.Unlock()
		return nil
	}
	if !m.ptt.HasOwner() {
		m.mu.Unlock()
		return ErrNoPTTOwner
	}
	m.ptt.KeyDown = true
	guild, user := m.ptt.GuildID, m.ptt.UserID
	m.mu.Unlock()

	if err := m.pressed(ctx, guild, user); err != nil {
		m.mu.Lock()
		m.ptt.KeyDown = false
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	if gc := m.guilds[guild]; gc != nil && gc.session != nil && gc.session.user == user {
		gc.session.speaking = m.ptt.KeyDown
		gc.session.lastActivity = m.clock.Now()
	}
	m.mu.Unlock()
	return nil
}

func (m *Manager) pressed(ctx context.Context, guild discord.GuildID, user discord.UserID) error {
	if !m.IsConnected(guild) {
		channel, ok := m.states.UserVoiceChannel(guild, user)
		if !ok {
			return ErrUserNotInVoice
		}
		if err := m.JoinChannel(ctx, guild, channel); err != nil {
			return err
		}
	}

	adm, err := m.StartSession(ctx, guild, user)
	if err != nil {
		return err
	}
	m.logger.Debug("Push-to-talk pressed", zap.Stringer("admission", adm.Result))
	return nil
}

// HandlePTTRelease closes the owner's microphone. The session stays open
// so the model can answer. Releasing an unpressed key does nothing.
func (m *Manager) HandlePTTRelease() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ptt.Enabled || !m.ptt.KeyDown {
		return
	}
	m.releaseLocked()
	m.logger.Debug("Push-to-talk released")
}

func (m *Manager) releaseLocked() {
	m.ptt.KeyDown = false
	if gc := m.guilds[m.ptt.GuildID]; gc != nil && gc.session != nil && gc.session.user == m.ptt.UserID {
		gc.session.speaking = false
	}
}
