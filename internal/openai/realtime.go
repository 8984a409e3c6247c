package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	openairt "github.com/WqyJh/go-openai-realtime"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-kiara/internal/voice"
	"github.com/Raikerian/go-discord-kiara/pkg/audio"
)

// Voices accepted by the Realtime API.
var Voices = []string{"alloy", "ash", "ballad", "coral", "echo", "sage", "shimmer", "verse"}

func resolveVoice(name string) openairt.Voice {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, v := range Voices {
		if v == name {
			return openairt.Voice(v)
		}
	}
	return openairt.VoiceShimmer
}

var realtimeFormat = voice.LiveFormat{
	InputRate:  audio.RealtimeInputRate,
	OutputRate: audio.LiveOutputRate,
}

// RealtimeOptions configures every realtime session.
type RealtimeOptions struct {
	APIKey       string
	Model        string
	Voice        string
	Instructions string
}

// RealtimeDialer opens OpenAI Realtime sessions.
type RealtimeDialer struct {
	client *openairt.Client
	logger *zap.Logger
	opts   RealtimeOptions
}

// NewRealtimeDialer creates a RealtimeDialer.
func NewRealtimeDialer(logger *zap.Logger, opts RealtimeOptions) *RealtimeDialer {
	return &RealtimeDialer{
		client: openairt.NewClient(opts.APIKey),
		logger: logger.Named("openai_realtime"),
		opts:   opts,
	}
}

// Dial connects and configures a realtime session.
func (d *RealtimeDialer) Dial(ctx context.Context, req voice.LiveRequest) (voice.LiveSession, error) {
	d.logger.Info("Connecting to OpenAI Realtime API",
		zap.String("model", d.opts.Model),
		zap.String("guild_id", req.GuildID.String()),
		zap.String("user_id", req.UserID.String()))

	conn, err := d.client.Connect(ctx, openairt.WithModel(d.opts.Model))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to OpenAI Realtime: %w", err)
	}

	err = conn.SendMessage(ctx, sessionUpdate(d.opts))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to configure session: %w", err)
	}

	return newRealtimeSession(&rtConn{conn: conn}, d.logger.With(zap.String("user_id", req.UserID.String()))), nil
}

func sessionUpdate(opts RealtimeOptions) *openairt.SessionUpdateEvent {
	return &openairt.SessionUpdateEvent{
		Session: openairt.ClientSession{
			Modalities:        []openairt.Modality{openairt.ModalityText, openairt.ModalityAudio},
			Instructions:      opts.Instructions,
			Voice:             resolveVoice(opts.Voice),
			InputAudioFormat:  openairt.AudioFormatPcm16,
			OutputAudioFormat: openairt.AudioFormatPcm16,
			InputAudioTranscription: &openairt.InputAudioTranscription{
				Model: openai.Whisper1,
			},
		},
	}
}

// realtimeConn is the part of *openairt.Conn a session uses.
type realtimeConn interface {
	Send(ctx context.Context, event openairt.ClientEvent) error
	Read(ctx context.Context) (openairt.ServerEvent, error)
	Close() error
}

type rtConn struct {
	conn *openairt.Conn
}

func (c *rtConn) Send(ctx context.Context, event openairt.ClientEvent) error {
	return c.conn.SendMessage(ctx, event)
}

func (c *rtConn) Read(ctx context.Context) (openairt.ServerEvent, error) {
	return c.conn.ReadMessage(ctx)
}

func (c *rtConn) Close() error {
	return c.conn.Close()
}

type realtimeSession struct {
	conn   realtimeConn
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	writeMu   sync.Mutex
	events    chan voice.LiveEvent
	closed    atomic.Bool
	closeOnce sync.Once
}

func newRealtimeSession(conn realtimeConn, logger *zap.Logger) *realtimeSession {
	ctx, cancel := context.WithCancel(context.Background())
	s := &realtimeSession{
		conn:   conn,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		events: make(chan voice.LiveEvent, 64),
	}
	go s.readLoop()
	return s
}

func (s *realtimeSession) Format() voice.LiveFormat { return realtimeFormat }

func (s *realtimeSession) Events() <-chan voice.LiveEvent { return s.events }

func (s *realtimeSession) SendAudio(ctx context.Context, pcm []byte) error {
	return s.send(ctx, &openairt.InputAudioBufferAppendEvent{
		Audio: base64.StdEncoding.EncodeToString(pcm),
	})
}

// SendText asks the model to respond now, with text as the instructions
// for that one response.
func (s *realtimeSession) SendText(ctx context.Context, text string) error {
	return s.send(ctx, &openairt.ResponseCreateEvent{
		Response: openairt.ResponseCreateParams{
			Modalities:   []openairt.Modality{openairt.ModalityText, openairt.ModalityAudio},
			Instructions: text,
		},
	})
}

func (s *realtimeSession) send(ctx context.Context, event openairt.ClientEvent) error {
	if s.closed.Load() {
		return voice.ErrSessionEnded
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.Send(ctx, event)
}

func (s *realtimeSession) Close(context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
		err = s.conn.Close()
	})
	return err
}

func (s *realtimeSession) readLoop() {
	defer close(s.events)

	for {
		event, err := s.conn.Read(s.ctx)
		if err != nil {
			if !s.closed.Load() {
				s.logger.Warn("OpenAI Realtime read failed", zap.Error(err))
			}
			return
		}

		if e, ok := event.(openairt.ErrorEvent); ok {
			s.logger.Warn("OpenAI Realtime error", zap.String("message", e.Error.Message))
			continue
		}

		ev, ok := s.translate(event)
		if !ok {
			continue
		}
		select {
		case s.events <- ev:
		case <-s.ctx.Done():
			return
		}
	}
}

// translate maps a server event onto a live event. Speech started by the
// user during a response is reported as an interruption.
func (s *realtimeSession) translate(event openairt.ServerEvent) (voice.LiveEvent, bool) {
	switch e := event.(type) {
	case openairt.ResponseAudioDeltaEvent:
		if e.Delta == "" {
			return nil, false
		}
		pcm, err := base64.StdEncoding.DecodeString(e.Delta)
		if err != nil {
			s.logger.Error("Failed to decode audio delta", zap.Error(err))
			return nil, false
		}
		return voice.AudioResponse{PCM: pcm}, true

	case openairt.ResponseAudioTranscriptDoneEvent:
		return voice.TextResponse{Text: e.Transcript}, e.Transcript != ""

	case openairt.ConversationItemInputAudioTranscriptionCompletedEvent:
		s.logger.Debug("User transcript", zap.String("transcript", e.Transcript))
		return nil, false

	case openairt.InputAudioBufferSpeechStartedEvent:
		return voice.Interrupted{}, true

	case openairt.ResponseDoneEvent:
		if u := e.Response.Usage; u != nil {
			s.logger.Debug("Response completed",
				zap.Int("input_tokens", u.InputTokens),
				zap.Int("output_tokens", u.OutputTokens))
		}
		return voice.TurnComplete{}, true
	}
	return nil, false
}
