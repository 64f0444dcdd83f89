package log

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}

func TestLoggerLevelRoundTrip(t *testing.T) {
	l := NewNop()
	l.SetLevel(LevelError)
	assert.Equal(t, LevelError, l.GetLevel())
	l.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, l.GetLevel())
}

func TestToZapFieldsKeepsKeys(t *testing.T) {
	fields := toZapFields(
		String("s", "v"),
		Int("i", 1),
		Uint64("u", 2),
		Float32("f", 1.5),
		Bool("b", true),
		Duration("d", time.Second),
		Strings("ss", []string{"a"}),
		Error(errors.New("boom")),
		Any("a", struct{}{}),
	)
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.Key
	}
	assert.Equal(t, []string{"s", "i", "u", "f", "b", "d", "ss", "error", "a"}, keys)
}

func TestNopLoggerIsUsable(t *testing.T) {
	var l Log = NewNop()
	l = l.Named("graphics").With(String("k", "v")).WithContext(context.Background())
	l.Info("hello", Int("n", 1))
	l.Debug("debug")
	l.Warn("warn")
	l.Error("error", Error(nil))
}
