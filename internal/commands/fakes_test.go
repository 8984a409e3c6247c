package commands

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/utils/json"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Raikerian/go-discord-kiara/internal/store"
	"github.com/Raikerian/go-discord-kiara/internal/voice"
)

const (
	testApp     = discord.AppID(900)
	testGuild   = discord.GuildID(77)
	testChannel = discord.ChannelID(500)
	alice       = discord.UserID(1001)
	bob         = discord.UserID(1002)
	botUser     = discord.UserID(4242)
)

// fakeResponder records everything a command sends to Discord.
type fakeResponder struct {
	mu        sync.Mutex
	responses []api.InteractionResponse
	edits     []api.EditInteractionResponseData
	editFiles [][]byte
	sent      map[discord.ChannelID][]api.SendMessageData
	created   []api.CreateChannelData
	channels  []discord.Channel

	sendErr   error
	createErr error
	nextID    discord.ChannelID
}

func newFakeResponder() *fakeResponder {
	return &fakeResponder{sent: make(map[discord.ChannelID][]api.SendMessageData), nextID: 9000}
}

func (f *fakeResponder) RespondInteraction(_ discord.InteractionID, _ string, resp api.InteractionResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeResponder) EditInteractionResponse(_ discord.AppID, _ string, data api.EditInteractionResponseData) (*discord.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, file := range data.Files {
		b, _ := io.ReadAll(file.Reader)
		f.editFiles = append(f.editFiles, b)
	}
	f.edits = append(f.edits, data)
	return &discord.Message{}, nil
}

func (f *fakeResponder) FollowUpInteraction(discord.AppID, string, api.InteractionResponseData) (*discord.Message, error) {
	return &discord.Message{}, nil
}

func (f *fakeResponder) SendMessageComplex(ch discord.ChannelID, data api.SendMessageData) (*discord.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent[ch] = append(f.sent[ch], data)
	return &discord.Message{ChannelID: ch}, nil
}

func (f *fakeResponder) Channels(discord.GuildID) ([]discord.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]discord.Channel(nil), f.channels...), nil
}

func (f *fakeResponder) CreateChannel(guild discord.GuildID, data api.CreateChannelData) (*discord.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	f.created = append(f.created, data)
	ch := discord.Channel{ID: f.nextID, GuildID: guild, Name: data.Name, Type: data.Type}
	f.channels = append(f.channels, ch)
	return &ch, nil
}

func (f *fakeResponder) Me() (*discord.User, error) {
	return &discord.User{ID: botUser, Username: "Kiara", Bot: true}, nil
}

func (f *fakeResponder) lastResponse(t *testing.T) api.InteractionResponse {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.responses)
	return f.responses[len(f.responses)-1]
}

func (f *fakeResponder) lastEdit(t *testing.T) api.EditInteractionResponseData {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.edits)
	return f.edits[len(f.edits)-1]
}

func responseText(resp api.InteractionResponse) string {
	if resp.Data == nil || resp.Data.Content == nil {
		return ""
	}
	return resp.Data.Content.Val
}

func editContent(data api.EditInteractionResponseData) string {
	if data.Content == nil {
		return ""
	}
	return data.Content.Val
}

func isEphemeral(resp api.InteractionResponse) bool {
	return resp.Data != nil && resp.Data.Flags&discord.EphemeralMessage != 0
}

// interaction builds a guild slash command event from user.
func interaction(user discord.UserID, name string, opts ...discord.CommandInteractionOption) (*gateway.InteractionCreateEvent, *discord.CommandInteraction) {
	data := &discord.CommandInteraction{Name: name, Options: opts}
	e := &gateway.InteractionCreateEvent{InteractionEvent: discord.InteractionEvent{
		ID:        1,
		AppID:     testApp,
		ChannelID: testChannel,
		GuildID:   testGuild,
		Token:     "token",
		Data:      data,
		Member:    &discord.Member{User: discord.User{ID: user, Username: "Alice Smith"}},
	}}
	return e, data
}

func strOpt(name, value string) discord.CommandInteractionOption {
	raw, _ := json.Marshal(value)
	return discord.CommandInteractionOption{Type: discord.StringOptionType, Name: name, Value: raw}
}

func intOpt(name string, value int) discord.CommandInteractionOption {
	raw, _ := json.Marshal(value)
	return discord.CommandInteractionOption{Type: discord.IntegerOptionType, Name: name, Value: raw}
}

func boolOpt(name string, value bool) discord.CommandInteractionOption {
	raw, _ := json.Marshal(value)
	return discord.CommandInteractionOption{Type: discord.BooleanOptionType, Name: name, Value: raw}
}

func snowflakeOpt(typ discord.CommandOptionType, name string, id discord.Snowflake) discord.CommandInteractionOption {
	raw, _ := json.Marshal(id.String())
	return discord.CommandInteractionOption{Type: typ, Name: name, Value: raw}
}

func sub(name string, opts ...discord.CommandInteractionOption) discord.CommandInteractionOption {
	return discord.CommandInteractionOption{Type: discord.SubcommandOptionType, Name: name, Options: opts}
}

func newTestStore(t *testing.T, clock clockwork.Clock) *store.Store {
	t.Helper()

	db, err := store.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, store.AutoMigrate(db))

	s, err := store.New(db, zaptest.NewLogger(t), clock, store.UserSettings{
		Model:       "gemini-3-pro-image-preview",
		Quality:     "1K",
		AspectRatio: "1:1",
		Style:       "none",
	})
	require.NoError(t, err)
	return s
}

func testClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC))
}

// fakeVoice is a scripted VoiceController.
type fakeVoice struct {
	mu        sync.Mutex
	status    voice.GuildStatus
	ptt       voice.PTTState
	joinErr   error
	leaveErr  error
	wake      voice.Admission
	wakeErr   error
	ended     bool
	joined    []discord.ChannelID
	wakeCalls int
}

func (f *fakeVoice) JoinChannel(_ context.Context, guild discord.GuildID, channel discord.ChannelID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, channel)
	if f.joinErr != nil {
		return f.joinErr
	}
	f.status = voice.GuildStatus{GuildID: guild, ChannelID: channel, State: voice.Connected}
	return nil
}

func (f *fakeVoice) LeaveChannel(context.Context, discord.GuildID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.leaveErr != nil {
		return f.leaveErr
	}
	f.status = voice.GuildStatus{}
	return nil
}

func (f *fakeVoice) TriggerWake(context.Context, discord.GuildID, discord.UserID) (voice.Admission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wakeCalls++
	return f.wake, f.wakeErr
}

func (f *fakeVoice) EndSession(context.Context, discord.GuildID, discord.UserID) bool {
	return f.ended
}

func (f *fakeVoice) IsConnected(discord.GuildID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status.State == voice.Connected
}

func (f *fakeVoice) Status(discord.GuildID) voice.GuildStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeVoice) PTT() voice.PTTState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ptt
}

func (f *fakeVoice) EnablePTT(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ptt.Enabled = enabled
}

func (f *fakeVoice) SetPTTOwner(guild discord.GuildID, user discord.UserID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ptt.GuildID = guild
	f.ptt.UserID = user
}

// fakeStates maps users to voice channels.
type fakeStates map[discord.UserID]discord.ChannelID

func (s fakeStates) UserVoiceChannel(_ discord.GuildID, user discord.UserID) (discord.ChannelID, bool) {
	ch, ok := s[user]
	return ch, ok
}
