package logging

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	})
	return &buf
}

func TestLogger_UsesRequestIDFromContext(t *testing.T) {
	buf := captureLog(t)

	ctx := WithRequestID(context.Background(), "rid-42")
	NewLogger(ctx).LogInfof("save_diagram", "page_id=%s", "123")

	assert.Equal(t, "[info] request_id=rid-42 operation=save_diagram page_id=123\n", buf.String())
}

func TestLogger_UnknownRequestID(t *testing.T) {
	buf := captureLog(t)

	NewLogger(context.Background()).LogError("cleanup", errors.New("boom"))

	assert.Equal(t, "[error] request_id=unknown operation=cleanup error=boom\n", buf.String())
}

func TestRequestID_NilContext(t *testing.T) {
	assert.Equal(t, "", RequestID(nil))
}
