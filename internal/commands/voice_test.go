package commands

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Raikerian/go-discord-kiara/internal/voice"
)

const (
	loungeVC = discord.ChannelID(700)
	otherVC  = discord.ChannelID(701)
)

func newVoiceTest(t *testing.T, states fakeStates) (*VoiceCommand, *fakeVoice, *fakeResponder) {
	t.Helper()
	fv := &fakeVoice{}
	return newVoiceCommand(zaptest.NewLogger(t), testClock(), fv, states, "F13"), fv, newFakeResponder()
}

func runVoice(t *testing.T, cmd *VoiceCommand, s *fakeResponder, user discord.UserID, opt discord.CommandInteractionOption) {
	t.Helper()
	e, data := interaction(user, "voice", opt)
	require.NoError(t, cmd.Execute(context.Background(), s, e, data))
}

func TestVoice_Join(t *testing.T) {
	t.Run("NotInVoice", func(t *testing.T) {
		cmd, fv, s := newVoiceTest(t, fakeStates{})
		runVoice(t, cmd, s, alice, sub("join"))

		assert.Equal(t, "You need to be in a voice channel first!", responseText(s.lastResponse(t)))
		assert.Empty(t, fv.joined)
	})

	t.Run("Joins", func(t *testing.T) {
		cmd, fv, s := newVoiceTest(t, fakeStates{alice: loungeVC})
		runVoice(t, cmd, s, alice, sub("join"))

		assert.Equal(t, api.DeferredMessageInteractionWithSource, s.responses[0].Type)
		assert.Equal(t, []discord.ChannelID{loungeVC}, fv.joined)
		embed := (*s.lastEdit(t).Embeds)[0]
		assert.Equal(t, "🎤 Kiara joined voice!", embed.Title)
		assert.Contains(t, embed.Description, "<#700>")
		assert.Empty(t, embed.Fields)
	})

	t.Run("JoinsWithPushToTalk", func(t *testing.T) {
		cmd, fv, s := newVoiceTest(t, fakeStates{bob: loungeVC})
		fv.ptt.Enabled = true
		runVoice(t, cmd, s, bob, sub("join"))

		assert.Equal(t, bob, fv.ptt.UserID)
		assert.Equal(t, testGuild, fv.ptt.GuildID)
		embed := (*s.lastEdit(t).Embeds)[0]
		require.Len(t, embed.Fields, 1)
		assert.Contains(t, embed.Fields[0].Value, "F13")
	})

	t.Run("Fails", func(t *testing.T) {
		cmd, fv, s := newVoiceTest(t, fakeStates{alice: loungeVC})
		fv.joinErr = fmt.Errorf("%w: timeout", voice.ErrJoinFailed)
		runVoice(t, cmd, s, alice, sub("join"))

		assert.Equal(t, "Failed to join the voice channel. Check my Connect and Speak permissions!", editContent(s.lastEdit(t)))
	})
}

func TestVoice_Leave(t *testing.T) {
	cmd, fv, s := newVoiceTest(t, fakeStates{})
	fv.leaveErr = voice.ErrNotConnected
	runVoice(t, cmd, s, alice, sub("leave"))
	assert.Equal(t, "I'm not in a voice channel!", responseText(s.lastResponse(t)))

	fv.leaveErr = nil
	runVoice(t, cmd, s, alice, sub("leave"))
	assert.Equal(t, "👋 Left the voice channel. Talk to you later!", responseText(s.lastResponse(t)))
}

func TestVoice_Talk(t *testing.T) {
	t.Run("NotInVoice", func(t *testing.T) {
		cmd, fv, s := newVoiceTest(t, fakeStates{})
		runVoice(t, cmd, s, alice, sub("talk"))
		assert.Equal(t, "Join a voice channel first, or use `/voice join`!", responseText(s.lastResponse(t)))

		fv.status = voice.GuildStatus{GuildID: testGuild, ChannelID: loungeVC, State: voice.Connected}
		runVoice(t, cmd, s, alice, sub("talk"))
		assert.Equal(t, "You need to be in the voice channel!", responseText(s.lastResponse(t)))
		assert.Zero(t, fv.wakeCalls)
	})

	t.Run("DifferentChannel", func(t *testing.T) {
		cmd, fv, s := newVoiceTest(t, fakeStates{alice: otherVC})
		fv.status = voice.GuildStatus{GuildID: testGuild, ChannelID: loungeVC, State: voice.Connected}
		runVoice(t, cmd, s, alice, sub("talk"))

		assert.Equal(t, "I'm in <#700>. Come join me there!", responseText(s.lastResponse(t)))
		assert.Zero(t, fv.wakeCalls)
	})

	t.Run("Started", func(t *testing.T) {
		cmd, fv, s := newVoiceTest(t, fakeStates{alice: loungeVC})
		fv.wake = voice.Admission{Result: voice.AdmissionStarted}
		runVoice(t, cmd, s, alice, sub("talk"))

		assert.Equal(t, 1, fv.wakeCalls)
		embed := (*s.lastEdit(t).Embeds)[0]
		assert.Equal(t, "🎤 Kiara is listening!", embed.Title)
		assert.Contains(t, embed.Description, alice.Mention())
	})

	t.Run("Queued", func(t *testing.T) {
		cmd, fv, s := newVoiceTest(t, fakeStates{bob: loungeVC})
		fv.status = voice.GuildStatus{
			GuildID:   testGuild,
			ChannelID: loungeVC,
			State:     voice.Connected,
			Session:   &voice.SessionInfo{UserID: alice, State: voice.SessionActive},
		}
		fv.wake = voice.Admission{Result: voice.AdmissionQueued, Position: 2}
		runVoice(t, cmd, s, bob, sub("talk"))

		assert.Equal(t, "Please wait, I'm currently talking to <@1001>. You're #2 in the queue!", editContent(s.lastEdit(t)))
	})

	t.Run("JoinFails", func(t *testing.T) {
		cmd, fv, s := newVoiceTest(t, fakeStates{alice: loungeVC})
		fv.wakeErr = voice.ErrConnectionNotReady
		runVoice(t, cmd, s, alice, sub("talk"))

		assert.Contains(t, editContent(s.lastEdit(t)), "Failed to join the voice channel")
	})
}

func TestVoice_End(t *testing.T) {
	cmd, fv, s := newVoiceTest(t, fakeStates{})
	runVoice(t, cmd, s, alice, sub("end"))
	assert.Equal(t, "You don't have a conversation with me right now.", responseText(s.lastResponse(t)))

	fv.ended = true
	runVoice(t, cmd, s, alice, sub("end"))
	assert.Equal(t, "✅ Conversation ended!", responseText(s.lastResponse(t)))
}

func TestVoice_Status(t *testing.T) {
	cmd, fv, s := newVoiceTest(t, fakeStates{})
	fv.status = voice.GuildStatus{
		GuildID:   testGuild,
		ChannelID: loungeVC,
		State:     voice.Connected,
		Session: &voice.SessionInfo{
			UserID:    alice,
			State:     voice.SessionActive,
			StartedAt: testClock().Now().Add(-90 * time.Second),
		},
		Waiting: []discord.UserID{bob},
	}
	fv.ptt = voice.PTTState{Enabled: true, GuildID: testGuild, UserID: alice}
	runVoice(t, cmd, s, alice, sub("status"))

	resp := s.lastResponse(t)
	assert.False(t, isEphemeral(resp))
	embed := (*resp.Data.Embeds)[0]
	assert.Equal(t, "🟢 Connected to <#700>", embedField(t, embed, "Connection"))
	assert.Equal(t, "Talking to <@1001> for 1m30s", embedField(t, embed, "Active session"))
	assert.Equal(t, "1. <@1002>", embedField(t, embed, "Queue"))
	assert.Equal(t, "On (`F13`, owner <@1001>)", embedField(t, embed, "Push-to-talk"))
}

func TestVoice_PTT(t *testing.T) {
	cmd, fv, s := newVoiceTest(t, fakeStates{})

	runVoice(t, cmd, s, alice, sub("ptt"))
	assert.Contains(t, responseText(s.lastResponse(t)), "**off**")

	runVoice(t, cmd, s, bob, sub("ptt", boolOpt("enabled", true)))
	assert.True(t, fv.ptt.Enabled)
	assert.Equal(t, bob, fv.ptt.UserID)
	assert.Equal(t, "Push-to-talk is **on**. Hold `F13` to speak. Owner: <@1002>.", responseText(s.lastResponse(t)))

	runVoice(t, cmd, s, bob, sub("ptt", boolOpt("enabled", false)))
	assert.False(t, fv.ptt.Enabled)
}

func TestVoice_RequiresGuild(t *testing.T) {
	cmd, _, s := newVoiceTest(t, fakeStates{})
	e, data := interaction(alice, "voice", sub("status"))
	e.GuildID = 0
	require.NoError(t, cmd.Execute(context.Background(), s, e, data))
	assert.Equal(t, "This only works in a server!", responseText(s.lastResponse(t)))
}
