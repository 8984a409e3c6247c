package voice

import (
	"sync"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const sinkBuffer = 256

// Sink receives every decoded frame in a guild. It tracks who is speaking
// and forwards frames only for users in its active set.
type Sink struct {
	logger     *zap.Logger
	clock      clockwork.Clock
	silenceGap time.Duration

	mu        sync.Mutex
	active    map[discord.UserID]struct{}
	lastHeard map[discord.UserID]time.Time
	closed    bool

	events  chan SinkEvent
	dropped int
}

// NewSink creates a Sink. A user is reported as speaking again once no
// frame has arrived from them for silenceGap.
func NewSink(logger *zap.Logger, clock clockwork.Clock, silenceGap time.Duration) *Sink {
	return &Sink{
		logger:     logger,
		clock:      clock,
		silenceGap: silenceGap,
		active:     make(map[discord.UserID]struct{}),
		lastHeard:  make(map[discord.UserID]time.Time),
		events:     make(chan SinkEvent, sinkBuffer),
	}
}

// Events delivers sink output. It is closed by Close.
func (s *Sink) Events() <-chan SinkEvent {
	return s.events
}

// AddUser starts forwarding the user's audio.
func (s *Sink) AddUser(user discord.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[user] = struct{}{}
}

// RemoveUser stops forwarding the user's audio.
func (s *Sink) RemoveUser(user discord.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, user)
	delete(s.lastHeard, user)
}

// IsActive reports whether the user's audio is being forwarded.
func (s *Sink) IsActive(user discord.UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[user]
	return ok
}

// Write handles one inbound frame. It never blocks: if the consumer falls
// behind, events are dropped.
func (s *Sink) Write(frame InboundFrame) {
	now := s.clock.Now()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	last, known := s.lastHeard[frame.UserID]
	s.lastHeard[frame.UserID] = now
	_, forward := s.active[frame.UserID]

	if !known || now.Sub(last) > s.silenceGap {
		s.emitLocked(SpeakingStarted{UserID: frame.UserID})
	}
	if forward {
		s.emitLocked(AudioChunk{UserID: frame.UserID, PCM: frame.PCM})
	}
	s.mu.Unlock()
}

func (s *Sink) emitLocked(ev SinkEvent) {
	select {
	case s.events <- ev:
	default:
		s.dropped++
		if s.dropped%50 == 1 {
			s.logger.Warn("Sink consumer is behind, dropping events", zap.Int("dropped", s.dropped))
		}
	}
}

// Close stops the sink and closes Events. Safe to call more than once.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	clear(s.active)
	clear(s.lastHeard)
	close(s.events)
}
