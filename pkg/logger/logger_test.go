package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestNewWithWriter_Fields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithWriter(&buf, Config{Level: slog.LevelInfo},
		FieldExtractor(BroadcastID),
		FieldExtractor(ContactID),
		nil,
	)

	ctx := WithField(context.Background(), BroadcastID, int64(42))
	log.InfoContext(ctx, "broadcast sent", slog.Int("count", 3))

	rec := decode(t, &buf)
	assert.Equal(t, "broadcast sent", rec["msg"])
	assert.EqualValues(t, 42, rec[BroadcastID])
	assert.EqualValues(t, 3, rec["count"])
	assert.NotContains(t, rec, ContactID)
}

func TestNewWithWriter_Level(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithWriter(&buf, Config{Level: slog.LevelWarn})

	log.Info("hidden")
	assert.Zero(t, buf.Len())

	log.Warn("shown")
	assert.Equal(t, "shown", decode(t, &buf)["msg"])
}

func TestDecorator_WithAttrsAndGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithWriter(&buf, Config{}, FieldExtractor(EmailID)).
		With(slog.String("component", "webhook"))

	ctx := WithField(context.Background(), EmailID, "e-1")
	log.InfoContext(ctx, "activity appended")

	rec := decode(t, &buf)
	assert.Equal(t, "webhook", rec["component"])
	assert.Equal(t, "e-1", rec[EmailID])
}

type recordingHandler struct {
	err     error
	level   slog.Level
	records []slog.Record
}

func (h *recordingHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }
func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.records = append(h.records, r)
	return h.err
}
func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func TestMultiHandler(t *testing.T) {
	t.Parallel()

	boom := errors.New("sink down")
	all := &recordingHandler{level: slog.LevelDebug, err: boom}
	errorsOnly := &recordingHandler{level: slog.LevelError}
	log := slog.New(newMultiHandler(all, errorsOnly))

	log.Info("one")
	log.Error("two")

	assert.Len(t, all.records, 2)
	assert.Len(t, errorsOnly.records, 1)
	assert.True(t, newMultiHandler(all, errorsOnly).Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, newMultiHandler(errorsOnly).Enabled(context.Background(), slog.LevelWarn))

	err := newMultiHandler(all, errorsOnly).Handle(context.Background(), slog.NewRecord(all.records[0].Time, slog.LevelError, "x", 0))
	require.ErrorIs(t, err, boom)
	assert.Len(t, errorsOnly.records, 2)
}

func TestNewNope(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { NewNope().Error("ignored") })
}
