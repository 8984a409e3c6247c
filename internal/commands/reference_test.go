package commands

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Raikerian/go-discord-kiara/internal/store"
)

type fakeFetcher struct {
	data     []byte
	mimeType string
	err      error
	urls     []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, string, error) {
	f.urls = append(f.urls, url)
	return f.data, f.mimeType, f.err
}

const attachmentID = discord.AttachmentID(3333)

// addInteraction builds /reference add with one resolved attachment.
func addInteraction(user discord.UserID, contentType string, slot int) (*gateway.InteractionCreateEvent, *discord.CommandInteraction) {
	opts := []discord.CommandInteractionOption{
		snowflakeOpt(discord.AttachmentOptionType, "image", discord.Snowflake(attachmentID)),
	}
	if slot > 0 {
		opts = append(opts, intOpt("slot", slot))
	}
	e, data := interaction(user, "reference", sub("add", opts...))
	data.Resolved.Attachments = map[discord.AttachmentID]discord.Attachment{
		attachmentID: {
			ID:          attachmentID,
			Filename:    "me.png",
			ContentType: contentType,
			URL:         "https://cdn.discordapp.com/attachments/me.png",
		},
	}
	return e, data
}

func newReferenceTest(t *testing.T) (*ReferenceCommand, *store.Store, *fakeFetcher) {
	t.Helper()
	st := newTestStore(t, testClock())
	fetcher := &fakeFetcher{data: make([]byte, 2048), mimeType: "image/png"}
	cmd := NewReferenceCommand(zaptest.NewLogger(t), st, fetcher).(*ReferenceCommand)
	return cmd, st, fetcher
}

func TestReference_Add(t *testing.T) {
	cmd, st, fetcher := newReferenceTest(t)
	ctx := context.Background()

	s := newFakeResponder()
	e, data := addInteraction(alice, "image/png", 0)
	require.NoError(t, cmd.Execute(ctx, s, e, data))

	assert.True(t, isEphemeral(s.responses[0]))
	assert.Equal(t, "📷 Saved **me.png** to slot 1.", editContent(s.lastEdit(t)))
	assert.Equal(t, []string{"https://cdn.discordapp.com/attachments/me.png"}, fetcher.urls)

	refs, err := st.References(ctx, alice)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "image/png", refs[0].MIMEType)

	e, data = addInteraction(alice, "image/png", 4)
	require.NoError(t, cmd.Execute(ctx, s, e, data))
	assert.Equal(t, "📷 Saved **me.png** to slot 4.", editContent(s.lastEdit(t)))
}

func TestReference_AddRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("NotAnImage", func(t *testing.T) {
		cmd, _, fetcher := newReferenceTest(t)
		s := newFakeResponder()
		e, data := addInteraction(alice, "application/pdf", 0)
		require.NoError(t, cmd.Execute(ctx, s, e, data))

		assert.Equal(t, "That file isn't an image.", responseText(s.lastResponse(t)))
		assert.Empty(t, fetcher.urls)
	})

	t.Run("SlotsFull", func(t *testing.T) {
		cmd, st, _ := newReferenceTest(t)
		for range store.MaxReferences {
			_, err := st.AddReference(ctx, alice, []byte("x"), "image/png", "x.png")
			require.NoError(t, err)
		}

		s := newFakeResponder()
		e, data := addInteraction(alice, "image/png", 0)
		require.NoError(t, cmd.Execute(ctx, s, e, data))
		assert.Contains(t, editContent(s.lastEdit(t)), "All 5 slots are in use")
	})

	t.Run("InvalidSlot", func(t *testing.T) {
		cmd, _, _ := newReferenceTest(t)
		s := newFakeResponder()
		e, data := addInteraction(alice, "image/png", 9)
		require.NoError(t, cmd.Execute(ctx, s, e, data))
		assert.Equal(t, "Slot must be between 1 and 5.", editContent(s.lastEdit(t)))
	})

	t.Run("DownloadFails", func(t *testing.T) {
		cmd, st, fetcher := newReferenceTest(t)
		fetcher.err = errors.New("connection reset")

		s := newFakeResponder()
		e, data := addInteraction(alice, "image/png", 0)
		require.NoError(t, cmd.Execute(ctx, s, e, data))
		assert.Contains(t, editContent(s.lastEdit(t)), "couldn't download")

		refs, err := st.References(ctx, alice)
		require.NoError(t, err)
		assert.Empty(t, refs)
	})
}

func TestReference_ListDeleteClear(t *testing.T) {
	cmd, st, _ := newReferenceTest(t)
	ctx := context.Background()

	s := newFakeResponder()
	e, data := interaction(alice, "reference", sub("list"))
	require.NoError(t, cmd.Execute(ctx, s, e, data))
	assert.Contains(t, responseText(s.lastResponse(t)), "no reference images")

	require.NoError(t, st.SaveReference(ctx, alice, 2, make([]byte, 4096), "image/png", "two.png"))
	require.NoError(t, st.SaveReference(ctx, alice, 5, make([]byte, 1024), "image/jpeg", "five.jpg"))

	e, data = interaction(alice, "reference", sub("list"))
	require.NoError(t, cmd.Execute(ctx, s, e, data))
	embed := (*s.lastResponse(t).Data.Embeds)[0]
	assert.Equal(t, "📷 References (2/5)", embed.Title)
	assert.Contains(t, embed.Description, "`2` two.png (4 KB)")
	assert.Contains(t, embed.Description, "`5` five.jpg (1 KB)")

	e, data = interaction(alice, "reference", sub("delete", intOpt("slot", 2)))
	require.NoError(t, cmd.Execute(ctx, s, e, data))
	assert.Equal(t, "🗑️ Slot 2 cleared.", responseText(s.lastResponse(t)))

	e, data = interaction(alice, "reference", sub("clear"))
	require.NoError(t, cmd.Execute(ctx, s, e, data))
	assert.Equal(t, "🗑️ Removed 1 reference image(s).", responseText(s.lastResponse(t)))

	refs, err := st.References(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png; charset=binary")
			_, _ = w.Write([]byte("png"))
		case "/doc.txt":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("hello"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	f := NewHTTPFetcher()
	ctx := context.Background()

	data, mimeType, err := f.Fetch(ctx, srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)
	assert.Equal(t, "image/png", mimeType)

	_, _, err = f.Fetch(ctx, srv.URL+"/doc.txt")
	assert.ErrorIs(t, err, errNotImage)

	_, _, err = f.Fetch(ctx, srv.URL+"/missing")
	assert.ErrorContains(t, err, "status 404")
}
