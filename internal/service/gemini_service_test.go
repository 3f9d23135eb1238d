package service

import (
	"context"
	"lms_backend/internal/config"
	"lms_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiServiceWithoutAPIKey(t *testing.T) {
	svc := NewGeminiService(context.Background(), &config.GeminiConfig{})
	assert.False(t, svc.Available())

	ctx := context.Background()

	_, err := svc.ExtractTextFromFile(ctx, []byte("data"), "application/pdf")
	assert.ErrorIs(t, err, util.ErrMissingAPIKey)

	_, err = svc.GenerateCourseMetadata(ctx, "内容")
	assert.ErrorIs(t, err, util.ErrMissingAPIKey)

	_, err = svc.GenerateQuiz(ctx, "内容")
	assert.ErrorIs(t, err, util.ErrMissingAPIKey)

	_, err = svc.GeneratePodcast(ctx, "内容")
	assert.ErrorIs(t, err, util.ErrMissingAPIKey)

	_, _, err = svc.GenerateDiagram(ctx, "内容")
	assert.ErrorIs(t, err, util.ErrMissingAPIKey)

	_, err = svc.GenerateVideo(ctx, "内容")
	assert.ErrorIs(t, err, util.ErrMissingAPIKey)
}

func TestGenerateVideoRequiresPaidTier(t *testing.T) {
	// 免费Key直接拦截，不发起任何远程调用
	svc := NewGeminiService(context.Background(), &config.GeminiConfig{
		APIKey:   "test-key",
		PaidTier: false,
	})
	require.True(t, svc.Available())

	_, err := svc.GenerateVideo(context.Background(), "内容")
	assert.ErrorIs(t, err, util.ErrPaidTierRequired)
}

func TestExtractTextUnsupportedMedia(t *testing.T) {
	svc := NewGeminiService(context.Background(), &config.GeminiConfig{APIKey: "test-key"})
	require.True(t, svc.Available())

	_, err := svc.ExtractTextFromFile(context.Background(), []byte("bin"), "application/zip")
	assert.ErrorIs(t, err, util.ErrUnsupportedMedia)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "你好", truncateRunes("你好世界", 2))
	assert.Equal(t, "short", truncateRunes("short", 100))
	assert.Equal(t, "", truncateRunes("", 10))
}
