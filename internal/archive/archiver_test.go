package archive_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mochatech1725/scholarship-scraper2/internal/archive"
	"github.com/mochatech1725/scholarship-scraper2/internal/config"
	"github.com/mochatech1725/scholarship-scraper2/internal/logger"
)

func TestNew_DisabledReturnsNop(t *testing.T) {
	sink, err := archive.New(config.MinIOConfig{}, logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, archive.Nop{}, sink)
	assert.NoError(t, sink.Put(context.Background(), archive.Object{Body: []byte("x")}))
}

func TestNew_EnabledBuildsArchiver(t *testing.T) {
	sink, err := archive.New(config.MinIOConfig{
		Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "raw",
	}, logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &archive.Archiver{}, sink)
}

func TestObjectKey(t *testing.T) {
	at := time.Date(2026, 10, 16, 23, 0, 0, 0, time.UTC)
	key := archive.ObjectKey(archive.Object{
		Source: "College Board!", URL: "https://example.org/list?page=2",
		ContentType: "text/html; charset=utf-8", FetchedAt: at,
	})
	assert.True(t, strings.HasPrefix(key, "college-board/2026-10-16/"), key)
	assert.True(t, strings.HasSuffix(key, ".html"), key)

	again := archive.ObjectKey(archive.Object{
		Source: "College Board!", URL: "https://example.org/list?page=2",
		ContentType: "text/html", FetchedAt: at,
	})
	assert.Equal(t, key, again, "stable for the same url and day")

	jsonKey := archive.ObjectKey(archive.Object{Source: "", URL: "u", ContentType: "application/json", FetchedAt: at})
	assert.True(t, strings.HasPrefix(jsonKey, "unknown/"))
	assert.True(t, strings.HasSuffix(jsonKey, ".json"))
}
