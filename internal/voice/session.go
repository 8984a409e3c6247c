package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-kiara/pkg/audio"
)

// userSession is one user's conversation with the live endpoint. Fields
// are guarded by Manager.mu except live and format, which are set once
// before the session becomes active.
type userSession struct {
	user      discord.UserID
	state     SessionState
	live      LiveSession
	format    LiveFormat
	startedAt time.Time
	cancel    context.CancelFunc

	lastActivity time.Time
	speaking     bool
	ending       bool
	transcript   strings.Builder
}

func (s *userSession) info() SessionInfo {
	return SessionInfo{
		UserID:    s.user,
		State:     s.state,
		StartedAt: s.startedAt,
		Speaking:  s.speaking,
	}
}

// StartSession admits user to the guild's conversation slot. If another
// user holds the slot, user joins the waiting queue. Asking again while
// already holding the slot is a no-op.
func (m *Manager) StartSession(ctx context.Context, guild discord.GuildID, user discord.UserID) (Admission, error) {
	adm, err := m.startSession(ctx, guild, user, false)
	if err != nil && adm.Result == AdmissionFailed && !errors.Is(err, ErrNotConnected) {
		// The slot was released; anyone who queued during the handshake
		// gets a turn.
		m.admitNext(guild)
	}
	return adm, err
}

func (m *Manager) startSession(ctx context.Context, guild discord.GuildID, user discord.UserID, front bool) (Admission, error) {
	log := m.logger.With(zap.String("guild_id", guild.String()), zap.String("user_id", user.String()))

	m.mu.Lock()
	gc := m.guilds[guild]
	if gc == nil || gc.state != Connected {
		m.mu.Unlock()
		admissionsTotal.WithLabelValues(AdmissionFailed.String()).Inc()
		return Admission{Result: AdmissionFailed}, ErrNotConnected
	}

	if s := gc.session; s != nil {
		if s.user == user {
			m.mu.Unlock()
			admissionsTotal.WithLabelValues(AdmissionAlreadyActive.String()).Inc()
			return Admission{Result: AdmissionAlreadyActive}, nil
		}
		pos := gc.enqueueWaiting(user, front)
		m.mu.Unlock()
		admissionsTotal.WithLabelValues(AdmissionQueued.String()).Inc()
		log.Info("Queued for voice session", zap.Int("position", pos))
		return Admission{Result: AdmissionQueued, Position: pos}, nil
	}

	gc.removeWaiting(user)
	sessCtx, cancel := context.WithCancel(m.tasks.Context())
	now := m.clock.Now()
	sess := &userSession{
		user:         user,
		state:        SessionConnecting,
		startedAt:    now,
		lastActivity: now,
		cancel:       cancel,
	}
	gc.session = sess
	m.mu.Unlock()

	log.Info("Starting voice session")
	live, err := m.live.Dial(ctx, LiveRequest{GuildID: guild, UserID: user})

	m.mu.Lock()
	if sess.state == SessionEnded || gc.session != sess || m.guilds[guild] != gc {
		m.mu.Unlock()
		cancel()
		if live != nil {
			_ = live.Close(context.WithoutCancel(ctx))
		}
		admissionsTotal.WithLabelValues(AdmissionFailed.String()).Inc()
		return Admission{Result: AdmissionFailed}, ErrSessionEnded
	}
	if err != nil {
		gc.session = nil
		m.mu.Unlock()
		cancel()
		admissionsTotal.WithLabelValues(AdmissionFailed.String()).Inc()
		log.Warn("Failed to connect live session", zap.Error(err))
		return Admission{Result: AdmissionFailed}, fmt.Errorf("connect live session: %w", err)
	}

	sess.live = live
	sess.format = live.Format()
	sess.state = SessionActive
	gc.sink.AddUser(user)
	m.mu.Unlock()

	sessionsActive.Inc()
	admissionsTotal.WithLabelValues(AdmissionStarted.String()).Inc()
	m.tasks.Go("live", sessCtx, func(ctx context.Context) { m.pumpLive(ctx, gc, sess) })

	log.Info("Voice session started",
		zap.Int("input_rate", sess.format.InputRate),
		zap.Int("output_rate", sess.format.OutputRate))
	return Admission{Result: AdmissionStarted}, nil
}

// TriggerWake starts a session for user, joining the voice channel they
// are in first if the bot is not connected to the guild yet.
func (m *Manager) TriggerWake(ctx context.Context, guild discord.GuildID, user discord.UserID) (Admission, error) {
	if !m.IsConnected(guild) {
		channel, ok := m.states.UserVoiceChannel(guild, user)
		if !ok {
			return Admission{Result: AdmissionFailed}, ErrUserNotInVoice
		}
		if err := m.JoinChannel(ctx, guild, channel); err != nil {
			return Admission{Result: AdmissionFailed}, err
		}
	}
	return m.StartSession(ctx, guild, user)
}

// EndSession ends user's session in the guild and admits the next waiting
// user. If user holds no session but is waiting, they leave the queue.
// It reports whether anything changed.
func (m *Manager) EndSession(ctx context.Context, guild discord.GuildID, user discord.UserID) bool {
	return m.endSession(ctx, guild, func(s *userSession) bool { return s.user == user }, user, "ended")
}

// endSession ends the guild's session if match accepts it. Otherwise user
// is removed from the waiting queue.
func (m *Manager) endSession(ctx context.Context, guild discord.GuildID, match func(*userSession) bool, user discord.UserID, reason string) bool {
	m.mu.Lock()
	gc := m.guilds[guild]
	if gc == nil {
		m.mu.Unlock()
		return false
	}

	s := gc.session
	if s == nil || !match(s) {
		removed := gc.removeWaiting(user)
		m.mu.Unlock()
		return removed
	}
	live := m.closeSessionLocked(gc, s, reason)
	m.mu.Unlock()

	m.closeLive(ctx, live)
	m.admitNext(guild)
	return true
}

// closeSessionLocked ends s and frees the guild's slot. Queued playback is
// left alone so a goodbye finishes playing. The returned live session must
// be closed with closeLive once the lock is released.
func (m *Manager) closeSessionLocked(gc *guildConn, s *userSession, reason string) LiveSession {
	wasActive := s.state == SessionActive
	s.state = SessionEnded
	s.cancel()
	if gc.sink != nil {
		gc.sink.RemoveUser(s.user)
	}
	gc.session = nil
	if wasActive {
		sessionsActive.Dec()
	}

	m.logger.Info("Voice session ended",
		zap.String("guild_id", gc.id.String()),
		zap.String("user_id", s.user.String()),
		zap.String("reason", reason),
		zap.Duration("duration", m.clock.Since(s.startedAt)))
	return s.live
}

func (m *Manager) closeLive(ctx context.Context, live LiveSession) {
	if live == nil {
		return
	}
	if err := live.Close(context.WithoutCancel(ctx)); err != nil {
		m.logger.Debug("Error closing live session", zap.Error(err))
	}
}

// admitNext gives the free slot to the first waiting user still in the
// bot's channel, skipping anyone who left or whose session fails.
func (m *Manager) admitNext(guild discord.GuildID) {
	for {
		m.mu.Lock()
		gc := m.guilds[guild]
		if gc == nil || gc.state != Connected || gc.session != nil || len(gc.waiting) == 0 {
			m.mu.Unlock()
			return
		}
		next := gc.waiting[0]
		gc.waiting = gc.waiting[1:]
		channel := gc.channel
		m.mu.Unlock()

		if ch, ok := m.states.UserVoiceChannel(guild, next); !ok || ch != channel {
			m.logger.Info("Skipping waiting user who left the channel",
				zap.String("guild_id", guild.String()),
				zap.String("user_id", next.String()))
			continue
		}

		adm, err := m.startSession(m.tasks.Context(), guild, next, true)
		if err == nil {
			return
		}
		if errors.Is(err, ErrNotConnected) {
			return
		}
		m.logger.Warn("Could not start session for waiting user",
			zap.String("guild_id", guild.String()),
			zap.String("user_id", next.String()),
			zap.Stringer("result", adm.Result),
			zap.Error(err))
	}
}

// pumpLive routes live events for one session until it ends.
func (m *Manager) pumpLive(ctx context.Context, gc *guildConn, sess *userSession) {
	if m.opts.Greeting != "" {
		if err := sess.live.SendText(ctx, m.opts.Greeting); err != nil {
			m.logger.Warn("Failed to send greeting", zap.Error(err))
		}
	}

	events := sess.live.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() == nil {
					m.logger.Info("Live session closed by remote",
						zap.String("guild_id", gc.id.String()),
						zap.String("user_id", sess.user.String()))
					m.endSession(context.WithoutCancel(ctx), gc.id,
						func(s *userSession) bool { return s == sess }, 0, "remote closed")
				}
				return
			}
			m.handleLiveEvent(ctx, gc, sess, ev)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) handleLiveEvent(ctx context.Context, gc *guildConn, sess *userSession, ev LiveEvent) {
	switch e := ev.(type) {
	case AudioResponse:
		pcm, err := audio.LiveToDiscord(e.PCM, sess.format.OutputRate)
		if err != nil {
			m.logger.Warn("Failed to convert live audio", zap.Error(err))
			return
		}
		m.touch(sess)
		gc.player.Enqueue(pcm)

	case TextResponse:
		m.mu.Lock()
		sess.transcript.WriteString(e.Text)
		sess.transcript.WriteByte(' ')
		text := sess.transcript.String()
		phrase, matched := m.detector.Match(text)
		schedule := matched && !sess.ending && sess.state == SessionActive
		if schedule {
			sess.ending = true
		}
		m.mu.Unlock()

		m.logger.Debug("Live transcript", zap.String("text", e.Text))
		if schedule {
			m.logger.Info("End phrase heard, closing session",
				zap.String("guild_id", gc.id.String()),
				zap.String("user_id", sess.user.String()),
				zap.String("phrase", phrase),
				zap.Duration("grace", m.opts.EndGrace))
			m.tasks.Go("end-grace", ctx, func(ctx context.Context) {
				if !sleep(ctx, m.clock, m.opts.EndGrace) {
					return
				}
				m.endSession(context.WithoutCancel(ctx), gc.id,
					func(s *userSession) bool { return s == sess }, 0, "end phrase")
			})
		}

	case TurnComplete:
		m.mu.Lock()
		sess.transcript.Reset()
		m.mu.Unlock()

	case Interrupted:
		dropped := gc.player.Flush()
		m.logger.Debug("Model interrupted, flushed playback", zap.Int("dropped_bytes", dropped))
	}
}

// forwardAudio sends an inbound chunk to the session's live endpoint. With
// push-to-talk enabled only the owner's audio passes, and only while the
// key is down.
func (m *Manager) forwardAudio(ctx context.Context, guild discord.GuildID, chunk AudioChunk) {
	m.mu.Lock()
	gc := m.guilds[guild]
	if gc == nil || gc.session == nil {
		m.mu.Unlock()
		return
	}
	sess := gc.session
	if sess.user != chunk.UserID || sess.state != SessionActive {
		m.mu.Unlock()
		return
	}
	if m.ptt.Enabled && !(m.ptt.KeyDown && m.ptt.GuildID == guild && m.ptt.UserID == chunk.UserID) {
		m.mu.Unlock()
		return
	}
	sess.lastActivity = m.clock.Now()
	live, format := sess.live, sess.format
	m.mu.Unlock()

	pcm, err := audio.DiscordToLive(chunk.PCM, format.InputRate)
	if err != nil {
		m.logger.Warn("Failed to convert inbound audio", zap.Error(err))
		return
	}
	if err := live.SendAudio(ctx, pcm); err != nil && ctx.Err() == nil {
		m.logger.Debug("Failed to send audio to live session", zap.Error(err))
	}
}

// onSpeakingStarted wakes a session for a user who starts talking, when
// voice-activity wake is on and push-to-talk is off.
func (m *Manager) onSpeakingStarted(guild discord.GuildID, user discord.UserID) {
	m.mu.Lock()
	wake := m.opts.WakeOnSpeech && !m.ptt.Enabled && !m.closed
	if gc := m.guilds[guild]; gc != nil && gc.session != nil && gc.session.user == user {
		gc.session.lastActivity = m.clock.Now()
		wake = false
	}
	m.mu.Unlock()

	if !wake {
		return
	}
	m.tasks.Go("wake", nil, func(ctx context.Context) {
		if _, err := m.StartSession(ctx, guild, user); err != nil {
			m.logger.Debug("Voice wake did not start a session",
				zap.String("guild_id", guild.String()),
				zap.String("user_id", user.String()),
				zap.Error(err))
		}
	})
}

func (m *Manager) touch(sess *userSession) {
	m.mu.Lock()
	sess.lastActivity = m.clock.Now()
	m.mu.Unlock()
}
