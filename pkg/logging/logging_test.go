package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-kit/kit/log/level"
	"github.com/stretchr/testify/assert"
)

type countingLogger struct {
	n int
}

func (l *countingLogger) Log(...interface{}) error {
	l.n++
	return nil
}

func TestAllowLevel(t *testing.T) {
	cases := map[string]int{"debug": 4, "INFO": 3, "warn": 2, "error": 1, "none": 0, "bogus": 3}
	for s, want := range cases {
		sink := &countingLogger{}
		logger := level.NewFilter(sink, AllowLevel(s))
		level.Debug(logger).Log("msg", "d")
		level.Info(logger).Log("msg", "i")
		level.Warn(logger).Log("msg", "w")
		level.Error(logger).Log("msg", "e")
		assert.Equal(t, want, sink.n, "level %q", s)
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info")

	level.Debug(logger).Log("msg", "hidden")
	level.Info(logger).Log("msg", "shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 1)
	assert.Contains(t, lines[0], "level=info")
	assert.Contains(t, lines[0], "msg=shown")
	assert.Contains(t, lines[0], "ts=")
	assert.Contains(t, lines[0], "caller=")
}
