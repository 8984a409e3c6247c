package ptt

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Raikerian/go-discord-kiara/internal/voice"
)

type fakeStatus struct {
	status voice.GuildStatus
	ptt    voice.PTTState
}

func (f *fakeStatus) Status(guild discord.GuildID) voice.GuildStatus {
	st := f.status
	st.GuildID = guild
	return st
}

func (f *fakeStatus) PTT() voice.PTTState { return f.ptt }

func newTestServer(t *testing.T, status *fakeStatus) (*Server, *Bridge) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	b := NewBridge(zaptest.NewLogger(t), &mockController{}, "num 3")
	return NewServer(zaptest.NewLogger(t), "127.0.0.1:0", b, status), b
}

func do(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthzAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, &fakeStatus{})

	w := do(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "kiara_control_requests_total")
}

func TestPTTEndpoint(t *testing.T) {
	s, b := newTestServer(t, &fakeStatus{})

	w := do(s, http.MethodPost, "/ptt/press", `{"key":"numpad3"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = do(s, http.MethodPost, "/ptt/release?key=kp3", "")
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = do(s, http.MethodPost, "/ptt/press", `{"key":"f1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, http.MethodPost, "/ptt/toggle", `{"key":"num 3"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(s, http.MethodPost, "/ptt/press", `{"key":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	require.Len(t, b.events, 2)
	assert.Equal(t, Event{Key: "numpad3", Pressed: true}, <-b.events)
	assert.Equal(t, Event{Key: "kp3", Pressed: false}, <-b.events)
}

func TestPTTEndpointBusy(t *testing.T) {
	s, b := newTestServer(t, &fakeStatus{})
	for range bridgeBuffer {
		b.Submit(Event{Key: "num 3", Pressed: true})
	}

	w := do(s, http.MethodPost, "/ptt/press?key=num+3", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPTTState(t *testing.T) {
	s, _ := newTestServer(t, &fakeStatus{ptt: voice.PTTState{Enabled: true, GuildID: 1, UserID: 2, KeyDown: true}})

	w := do(s, http.MethodGet, "/ptt", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"enabled":true,"guild_id":"1","user_id":"2","key_down":true,"key":"num 3"}`, w.Body.String())
}

func TestVoiceStatus(t *testing.T) {
	started := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s, _ := newTestServer(t, &fakeStatus{status: voice.GuildStatus{
		ChannelID: 20,
		State:     voice.Connected,
		Session:   &voice.SessionInfo{UserID: 7, State: voice.SessionActive, StartedAt: started},
		Waiting:   []discord.UserID{8, 9},
		Buffered:  1500 * time.Millisecond,
	}})

	w := do(s, http.MethodGet, "/voice/status", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, http.MethodGet, "/voice/status?guild_id=10", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got statusJSON
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "10", got.GuildID)
	assert.Equal(t, "20", got.ChannelID)
	assert.Equal(t, "connected", got.State)
	require.NotNil(t, got.Session)
	assert.Equal(t, "7", got.Session.UserID)
	assert.Equal(t, "active", got.Session.State)
	assert.True(t, started.Equal(got.Session.StartedAt))
	assert.Equal(t, []string{"8", "9"}, got.Waiting)
	assert.Equal(t, int64(1500), got.BufferedMS)
}
