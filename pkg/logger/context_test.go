package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionfolder/pkg/logger"
)

type reqIDKey struct{}

func TestSessionIDExtractor(t *testing.T) {
	t.Parallel()
	buf := &bytes.Buffer{}
	log := logger.New(
		logger.WithOutput(buf),
		logger.WithContextExtractors(logger.SessionIDExtractor()),
	)

	ctx := logger.WithSessionID(context.Background(), "s1")
	log.With("component", "test").InfoContext(ctx, "with session")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "s1", entry["session_id"])
	assert.Equal(t, "test", entry["component"])

	buf.Reset()
	log.InfoContext(context.Background(), "without session")
	entry = nil
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, "session_id")
}

func TestSessionIDFromContext(t *testing.T) {
	t.Parallel()
	_, ok := logger.SessionIDFromContext(context.Background())
	assert.False(t, ok)

	_, ok = logger.SessionIDFromContext(logger.WithSessionID(context.Background(), ""))
	assert.False(t, ok)

	id, ok := logger.SessionIDFromContext(logger.WithSessionID(context.Background(), "abc"))
	assert.True(t, ok)
	assert.Equal(t, "abc", id)
}

func TestStringExtractor(t *testing.T) {
	t.Parallel()
	buf := &bytes.Buffer{}
	get := func(ctx context.Context) string {
		v, _ := ctx.Value(reqIDKey{}).(string)
		return v
	}
	log := logger.New(
		logger.WithOutput(buf),
		logger.WithContextExtractors(logger.StringExtractor("request_id", get), nil),
	)

	log.InfoContext(context.WithValue(context.Background(), reqIDKey{}, "req-1"), "hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry["request_id"])
}
