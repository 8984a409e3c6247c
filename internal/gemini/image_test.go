package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/Raikerian/go-discord-kiara/internal/imagegen"
)

func TestImageFromResponse(t *testing.T) {
	t.Run("first inline image wins", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []*genai.Part{
					{Text: "here you go"},
					{InlineData: &genai.Blob{Data: []byte("png-1"), MIMEType: "image/png"}},
					{InlineData: &genai.Blob{Data: []byte("png-2"), MIMEType: "image/png"}},
				}},
			}},
		}

		img, err := imageFromResponse(resp)
		require.NoError(t, err)
		assert.Equal(t, []byte("png-1"), img.Data)
		assert.Equal(t, "image/png", img.MIMEType)
	})

	t.Run("blocked prompt", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
		}

		_, err := imageFromResponse(resp)
		assert.ErrorIs(t, err, imagegen.ErrSafetyBlocked)
		assert.Equal(t, imagegen.KindSafety, imagegen.Classify(err))
	})

	t.Run("safety finish reason", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
		}

		_, err := imageFromResponse(resp)
		assert.ErrorIs(t, err, imagegen.ErrSafetyBlocked)
	})

	t.Run("text only", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				FinishReason: genai.FinishReasonStop,
				Content:      &genai.Content{Parts: []*genai.Part{{Text: "I can't draw that"}}},
			}},
		}

		_, err := imageFromResponse(resp)
		assert.ErrorIs(t, err, imagegen.ErrNoImage)
	})

	t.Run("nil response", func(t *testing.T) {
		_, err := imageFromResponse(nil)
		assert.ErrorIs(t, err, imagegen.ErrNoImage)
	})
}

func TestBuildContent_ReferencesFirst(t *testing.T) {
	content := buildContent(imagegen.Request{
		Prompt: "make it blue",
		References: []imagegen.Reference{
			{Data: []byte("a"), MIMEType: "image/jpeg"},
			{Data: []byte("b")},
		},
	})

	require.Len(t, content.Parts, 3)
	assert.Equal(t, genai.RoleUser, content.Role)
	assert.Equal(t, "image/jpeg", content.Parts[0].InlineData.MIMEType)
	assert.Equal(t, "image/png", content.Parts[1].InlineData.MIMEType)
	assert.Equal(t, "make it blue", content.Parts[2].Text)
}

func TestBuildConfig(t *testing.T) {
	cfg := buildConfig(imagegen.Request{AspectRatio: "16:9", Quality: "2K"})
	assert.Equal(t, []string{"IMAGE"}, cfg.ResponseModalities)
	require.NotNil(t, cfg.ImageConfig)
	assert.Equal(t, "16:9", cfg.ImageConfig.AspectRatio)
	assert.Equal(t, "2K", cfg.ImageConfig.ImageSize)

	assert.Nil(t, buildConfig(imagegen.Request{}).ImageConfig)
}
