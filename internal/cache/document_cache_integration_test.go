package cache

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthshield-ai/internal/model"
	"healthshield-ai/internal/platform/logger"
	redisClient "healthshield-ai/internal/platform/redis"
)

func TestDocumentCacheRedisRoundTrip(t *testing.T) {
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("RUN_REDIS_INTEGRATION")), "true") {
		t.Skip("set RUN_REDIS_INTEGRATION=true to run redis integration tests")
	}
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		addr = "127.0.0.1:6379"
	}

	ctx := context.Background()
	client, err := redisClient.New(ctx, logger.Nop(), redisClient.Config{Addr: addr})
	if err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}
	defer client.Close()

	c := NewDocumentCache(client, time.Minute)
	owner := fmt.Sprintf("it-%d", time.Now().UnixNano())
	defer client.Del(ctx, c.versionKey(owner))

	_, version, ok, err := c.GetDocuments(ctx, owner)
	require.NoError(t, err)
	assert.False(t, ok)

	docs := []model.Document{{
		ID:          "d1",
		OwnerID:     owner,
		Name:        "policy.pdf",
		MimeType:    model.MimePDF,
		Size:        42,
		FolderClass: model.FolderPolicy,
		StorageKey:  owner + "/d1-policy.pdf",
		UploadedAt:  time.Now().UTC().Truncate(time.Second),
	}}
	require.NoError(t, c.SetDocuments(ctx, owner, version, docs))

	got, _, ok, err := c.GetDocuments(ctx, owner)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, docs, got)

	require.NoError(t, c.DeleteDocuments(ctx, owner))
	_, next, ok, err := c.GetDocuments(ctx, owner)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, next, version)

	// a listing read before the invalidation lands on the old version
	require.NoError(t, c.SetDocuments(ctx, owner, version, docs))
	_, _, ok, err = c.GetDocuments(ctx, owner)
	require.NoError(t, err)
	assert.False(t, ok)
	client.Del(ctx, c.listKey(owner, version))
}
