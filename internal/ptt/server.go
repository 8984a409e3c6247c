package ptt

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-kiara/internal/voice"
)

var controlRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kiara_control_requests_total",
		Help: "Requests served by the local control server.",
	},
	[]string{"method", "path", "status"},
)

func init() {
	prometheus.MustRegister(controlRequests)
}

// StatusSource reports voice state for the status endpoint.
type StatusSource interface {
	Status(guild discord.GuildID) voice.GuildStatus
	PTT() voice.PTTState
}

// Server is the local control HTTP server. It is meant for a key hook
// running on the same machine and binds to loopback by default.
type Server struct {
	logger *zap.Logger
	bridge *Bridge
	status StatusSource
	engine *gin.Engine
	http   *http.Server
}

// NewServer builds the gin engine and its http.Server. Nothing listens
// until Start.
func NewServer(logger *zap.Logger, addr string, bridge *Bridge, status StatusSource) *Server {
	s := &Server{
		logger: logger.Named("control"),
		bridge: bridge,
		status: status,
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())
	r.GET("/healthz", s.healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/ptt/:action", s.ptt)
	r.GET("/ptt", s.pttState)
	r.GET("/voice/status", s.voiceStatus)
	s.engine = r

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the engine for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.http.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("Control server listening", zap.String("addr", ln.Addr().String()))

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Control server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := c.Writer.Status()
		controlRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
		s.logger.Debug("Control request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type pttRequest struct {
	Key string `json:"key"`
}

// ptt accepts POST /ptt/press and /ptt/release. The key comes from the
// JSON body or the "key" query parameter.
func (s *Server) ptt(c *gin.Context) {
	var pressed bool
	switch c.Param("action") {
	case "press":
		pressed = true
	case "release":
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown action"})
		return
	}

	var req pttRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
	}
	if req.Key == "" {
		req.Key = c.Query("key")
	}
	if NormalizeKey(req.Key) != s.bridge.Key() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key does not match the configured push-to-talk key"})
		return
	}

	if !s.bridge.Submit(Event{Key: req.Key, Pressed: pressed}) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "busy"})
		return
	}
	c.Status(http.StatusAccepted)
}

func (s *Server) pttState(c *gin.Context) {
	st := s.status.PTT()
	c.JSON(http.StatusOK, gin.H{
		"enabled":  st.Enabled,
		"guild_id": st.GuildID.String(),
		"user_id":  st.UserID.String(),
		"key_down": st.KeyDown,
		"key":      s.bridge.Key(),
	})
}

type sessionJSON struct {
	UserID    string    `json:"user_id"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"started_at"`
	Speaking  bool      `json:"speaking"`
}

type statusJSON struct {
	GuildID    string       `json:"guild_id"`
	ChannelID  string       `json:"channel_id,omitempty"`
	State      string       `json:"state"`
	Session    *sessionJSON `json:"session,omitempty"`
	Waiting    []string     `json:"waiting"`
	BufferedMS int64        `json:"buffered_ms"`
}

func (s *Server) voiceStatus(c *gin.Context) {
	sf, err := discord.ParseSnowflake(c.Query("guild_id"))
	if err != nil || !sf.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "guild_id is required"})
		return
	}

	st := s.status.Status(discord.GuildID(sf))
	out := statusJSON{
		GuildID:    st.GuildID.String(),
		State:      st.State.String(),
		Waiting:    make([]string, 0, len(st.Waiting)),
		BufferedMS: st.Buffered.Milliseconds(),
	}
	if st.ChannelID.IsValid() {
		out.ChannelID = st.ChannelID.String()
	}
	if sess := st.Session; sess != nil {
		out.Session = &sessionJSON{
			UserID:    sess.UserID.String(),
			State:     sess.State.String(),
			StartedAt: sess.StartedAt,
			Speaking:  sess.Speaking,
		}
	}
	for _, u := range st.Waiting {
		out.Waiting = append(out.Waiting, u.String())
	}
	c.JSON(http.StatusOK, out)
}
