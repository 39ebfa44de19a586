package bootstrap

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthshield-ai/internal/app"
	"healthshield-ai/internal/config"
	"healthshield-ai/internal/model"
	"healthshield-ai/internal/platform/logger"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("CONFIG_FILE", "does-not-exist.toml")
	t.Setenv("ENV_FILE", "does-not-exist.env")
	t.Setenv("METADATA_DRIVER", "memory")
	t.Setenv("STORAGE_MODE", "memory")
	t.Setenv("VECTOR_PROVIDER", "memory")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("LLM_API_KEY", "")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestNewInMemoryWiring(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(t), logger.Nop())
	require.NoError(t, err)

	assert.Nil(t, a.DB)
	assert.Nil(t, a.MQConn)
	assert.NotNil(t, a.LocalDispatcher)
	assert.Empty(t, a.HealthChecks())

	doc, err := a.DocumentService.Upload(context.Background(), app.UploadInput{
		OwnerID:  "u1",
		Name:     "policy.pdf",
		MimeType: model.MimePDF,
		Folder:   "policy",
		Data:     base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 stream\n(x) Tj\nendstream")),
	})
	require.NoError(t, err)

	docs, err := a.DocumentService.ListDocuments(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.ID, docs[0].ID)

	assert.NoError(t, a.Close(context.Background()))
}

func TestSafetySettingsSkipsBlankThresholds(t *testing.T) {
	settings := SafetySettings(config.SafetyConfig{
		Harassment:       "BLOCK_ONLY_HIGH",
		DangerousContent: "BLOCK_MEDIUM_AND_ABOVE",
	})
	require.Len(t, settings, 2)
	assert.Equal(t, "HARM_CATEGORY_HARASSMENT", settings[0].Category)
	assert.Equal(t, "BLOCK_ONLY_HIGH", settings[0].Threshold)
	assert.Equal(t, "HARM_CATEGORY_DANGEROUS_CONTENT", settings[1].Category)
}
