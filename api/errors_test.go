package api_test

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/scratchspace/api"
)

func TestError_UnwrapsToSentinel(t *testing.T) {
	err := api.NewError(api.ErrCodeLeak, "transient workspace leak").
		WithContext("issued", 33)

	assert.True(t, errors.Is(err, api.ErrLeak))
	assert.False(t, errors.Is(err, api.ErrPoolClosed))
	assert.Contains(t, err.Error(), "issued:33")

	wrapped := fmt.Errorf("acquire: %w", err)
	assert.Equal(t, api.ErrCodeLeak, api.CodeOf(wrapped))
	assert.Equal(t, api.ErrCodeInternal, api.CodeOf(errors.New("boom")))
	assert.Equal(t, api.ErrCodeOK, api.CodeOf(nil))
}

func TestError_NoContextMessage(t *testing.T) {
	err := &api.Error{Code: api.ErrCodeInternal, Message: "plain"}
	assert.Equal(t, "plain", err.Error())
	assert.Nil(t, err.Unwrap())
	assert.Equal(t, "internal", err.Code.String())
}

func TestSlogAdapter_With(t *testing.T) {
	var buf bytes.Buffer
	logger := api.NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	logger.With("component", "pool").Warn("idle set full", "capacity", 2)

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, "component=pool")
	assert.Contains(t, out, "capacity=2")
	assert.Contains(t, out, "level=WARN")
}

func TestNopLogger(t *testing.T) {
	var l api.Logger = api.NopLogger{}
	l.Info("ignored", "k", "v")
	_, ok := l.With("k", "v").(api.NopLogger)
	assert.True(t, ok)
}
