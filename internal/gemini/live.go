package gemini

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/Raikerian/go-discord-kiara/internal/voice"
	"github.com/Raikerian/go-discord-kiara/pkg/audio"
)

// Voices are the prebuilt voice names offered for live sessions.
var Voices = []string{
	"Puck", "Charon", "Kore", "Fenrir", "Aoede",
	"Leda", "Orus", "Zephyr", "Nova", "Stella",
}

// DefaultVoice is used when the configured voice is unknown.
const DefaultVoice = "Kore"

// ResolveVoice returns the canonical spelling of name, or DefaultVoice.
func ResolveVoice(name string) string {
	for _, v := range Voices {
		if strings.EqualFold(v, name) {
			return v
		}
	}
	return DefaultVoice
}

var liveFormat = voice.LiveFormat{
	InputRate:  audio.GeminiInputRate,
	OutputRate: audio.LiveOutputRate,
}

// LiveOptions configures every live session.
type LiveOptions struct {
	Model        string
	Voice        string
	SystemPrompt string
}

// LiveDialer opens Gemini Live sessions.
type LiveDialer struct {
	client *Client
	logger *zap.Logger
	opts   LiveOptions
}

// NewLiveDialer creates a LiveDialer. An unknown voice falls back to
// DefaultVoice.
func NewLiveDialer(client *Client, logger *zap.Logger, opts LiveOptions) *LiveDialer {
	logger = logger.Named("gemini_live")
	if resolved := ResolveVoice(opts.Voice); resolved != opts.Voice {
		logger.Warn("Unknown live voice, using default",
			zap.String("voice", opts.Voice),
			zap.String("default", resolved))
		opts.Voice = resolved
	}
	return &LiveDialer{client: client, logger: logger, opts: opts}
}

// Dial connects a live session for req.
func (d *LiveDialer) Dial(ctx context.Context, req voice.LiveRequest) (voice.LiveSession, error) {
	client, err := d.client.get(ctx)
	if err != nil {
		return nil, err
	}
	session, err := client.Live.Connect(ctx, d.opts.Model, connectConfig(d.opts))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Gemini Live: %w", err)
	}

	d.logger.Info("Connected to Gemini Live",
		zap.String("model", d.opts.Model),
		zap.String("voice", d.opts.Voice),
		zap.String("guild_id", req.GuildID.String()),
		zap.String("user_id", req.UserID.String()))

	return newLiveSession(session, d.logger.With(zap.String("user_id", req.UserID.String()))), nil
}

// connectConfig asks for spoken answers plus a transcript of them; native
// audio models reject a TEXT response modality.
func connectConfig(opts LiveOptions) *genai.LiveConnectConfig {
	cfg := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: opts.Voice},
			},
		},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
	if opts.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(opts.SystemPrompt, genai.RoleUser)
	}
	return cfg
}

// liveConn is the part of *genai.Session a liveSession uses.
type liveConn interface {
	SendRealtimeInput(input genai.LiveRealtimeInput) error
	Receive() (*genai.LiveServerMessage, error)
	Close() error
}

type liveSession struct {
	conn   liveConn
	logger *zap.Logger

	// The websocket allows one writer at a time.
	sendMu sync.Mutex

	events    chan voice.LiveEvent
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
}

func newLiveSession(conn liveConn, logger *zap.Logger) *liveSession {
	s := &liveSession{
		conn:   conn,
		logger: logger,
		events: make(chan voice.LiveEvent, 64),
		done:   make(chan struct{}),
	}
	go s.receive()
	return s
}

func (s *liveSession) Format() voice.LiveFormat { return liveFormat }

func (s *liveSession) Events() <-chan voice.LiveEvent { return s.events }

func (s *liveSession) SendAudio(_ context.Context, pcm []byte) error {
	return s.send(genai.LiveRealtimeInput{
		Audio: &genai.Blob{
			Data:     pcm,
			MIMEType: fmt.Sprintf("audio/pcm;rate=%d", liveFormat.InputRate),
		},
	})
}

func (s *liveSession) SendText(_ context.Context, text string) error {
	return s.send(genai.LiveRealtimeInput{Text: text})
}

func (s *liveSession) send(input genai.LiveRealtimeInput) error {
	if s.closed.Load() {
		return voice.ErrSessionEnded
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.conn.SendRealtimeInput(input)
}

// Close closes the websocket. The receive loop then closes Events.
func (s *liveSession) Close(context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

func (s *liveSession) receive() {
	defer close(s.events)

	for {
		msg, err := s.conn.Receive()
		if err != nil {
			if !s.closed.Load() {
				s.logger.Warn("Gemini Live receive failed", zap.Error(err))
			}
			return
		}
		if msg != nil && msg.GoAway != nil {
			s.logger.Info("Gemini Live is closing the session soon")
		}
		for _, ev := range translate(msg) {
			select {
			case s.events <- ev:
			case <-s.done:
				return
			}
		}
	}
}

// translate maps one server message onto live events, interruption first
// and turn completion last.
func translate(msg *genai.LiveServerMessage) []voice.LiveEvent {
	if msg == nil || msg.ServerContent == nil {
		return nil
	}
	sc := msg.ServerContent

	var out []voice.LiveEvent
	if sc.Interrupted {
		out = append(out, voice.Interrupted{})
	}
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part == nil || part.Thought {
				continue
			}
			if b := part.InlineData; b != nil && len(b.Data) > 0 && strings.HasPrefix(b.MIMEType, "audio/") {
				out = append(out, voice.AudioResponse{PCM: b.Data})
			}
			if part.Text != "" {
				out = append(out, voice.TextResponse{Text: part.Text})
			}
		}
	}
	if t := sc.OutputTranscription; t != nil && t.Text != "" {
		out = append(out, voice.TextResponse{Text: t.Text})
	}
	if sc.TurnComplete {
		out = append(out, voice.TurnComplete{})
	}
	return out
}
