package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Raikerian/go-discord-kiara/internal/store"
)

const (
	alice = discord.UserID(1001)
	bob   = discord.UserID(1002)
	guild = discord.GuildID(77)
)

var defaults = store.UserSettings{
	Model:       "gemini-3-pro-image-preview",
	Quality:     "1K",
	AspectRatio: "1:1",
	Style:       "none",
}

func newStore(t *testing.T) (*store.Store, *clockwork.FakeClock) {
	t.Helper()

	db, err := store.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, store.AutoMigrate(db))

	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 14, 23, 30, 0, 0, time.UTC))
	s, err := store.New(db, zaptest.NewLogger(t), clock, defaults)
	require.NoError(t, err)
	return s, clock
}

func TestSettings_DefaultsThenSaved(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	got, err := s.Settings(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(alice), got.UserID)
	assert.Equal(t, "1K", got.Quality)
	assert.Equal(t, "none", got.Style)

	got.Quality = "4K"
	got.Style = "anime"
	require.NoError(t, s.SaveSettings(ctx, got))

	got.AspectRatio = "16:9"
	require.NoError(t, s.SaveSettings(ctx, got), "second save updates the same row")

	again, err := s.Settings(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "4K", again.Quality)
	assert.Equal(t, "anime", again.Style)
	assert.Equal(t, "16:9", again.AspectRatio)

	other, err := s.Settings(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, "1K", other.Quality)
}

func TestUsage_CountsPerUTCDay(t *testing.T) {
	s, clock := newStore(t)
	ctx := context.Background()

	n, err := s.DailyUsage(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, n)

	for want := 1; want <= 3; want++ {
		n, err = s.IncrementUsage(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	n, err = s.DailyUsage(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.DailyUsage(ctx, bob)
	require.NoError(t, err)
	assert.Zero(t, n, "usage is per user")

	clock.Advance(time.Hour) // past midnight UTC
	n, err = s.DailyUsage(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, n, "counter resets on a new day")

	n, err = s.IncrementUsage(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	total, err := s.TotalGenerations(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
}

func TestReferences_Slots(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	for i := 1; i <= store.MaxReferences; i++ {
		slot, err := s.AddReference(ctx, alice, []byte{byte(i)}, "image/png", "ref.png")
		require.NoError(t, err)
		assert.Equal(t, i, slot)
	}

	_, err := s.AddReference(ctx, alice, []byte{9}, "image/png", "full.png")
	assert.ErrorIs(t, err, store.ErrReferencesFull)

	require.NoError(t, s.SaveReference(ctx, alice, 2, []byte{42}, "image/jpeg", "swap.jpg"))
	require.NoError(t, s.DeleteReference(ctx, alice, 4))

	refs, err := s.References(ctx, alice)
	require.NoError(t, err)
	require.Len(t, refs, 4)
	assert.Equal(t, []int{1, 2, 3, 5}, []int{refs[0].Slot, refs[1].Slot, refs[2].Slot, refs[3].Slot})
	assert.Equal(t, []byte{42}, refs[1].Data)
	assert.Equal(t, "image/jpeg", refs[1].MIMEType)

	slot, err := s.AddReference(ctx, alice, []byte{4}, "image/png", "again.png")
	require.NoError(t, err)
	assert.Equal(t, 4, slot, "lowest free slot is reused")

	assert.ErrorIs(t, s.SaveReference(ctx, alice, 0, nil, "", ""), store.ErrInvalidSlot)
	assert.ErrorIs(t, s.SaveReference(ctx, alice, 6, nil, "", ""), store.ErrInvalidSlot)
	assert.ErrorIs(t, s.DeleteReference(ctx, alice, 6), store.ErrInvalidSlot)

	removed, err := s.ClearReferences(ctx, alice)
	require.NoError(t, err)
	assert.EqualValues(t, 5, removed)

	refs, err = s.References(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestUserChannel(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	_, ok, err := s.UserChannel(ctx, alice, guild)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SaveUserChannel(ctx, alice, guild, 500))
	require.NoError(t, s.SaveUserChannel(ctx, alice, guild, 501))

	ch, ok, err := s.UserChannel(ctx, alice, guild)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, discord.ChannelID(501), ch)

	_, ok, err = s.UserChannel(ctx, alice, guild+1)
	require.NoError(t, err)
	assert.False(t, ok, "mapping is per guild")
}
