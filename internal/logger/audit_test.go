package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogAppendsBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "llm.log")
	audit := NewAuditLog(path, Discard())

	audit.Write("ollama:qwen3:4b", "PROMPT", "hello")
	audit.Write("ollama:qwen3:4b", "RESPONSE", "{\"decisions\": []}\n")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)

	assert.Equal(t, 2, strings.Count(text, auditRule))
	assert.Contains(t, text, "PROMPT\nhello\n")
	assert.Contains(t, text, "RESPONSE\n{\"decisions\": []}\n")
	assert.Less(t, strings.Index(text, "PROMPT"), strings.Index(text, "RESPONSE"))
}

func TestAuditLogDisabled(t *testing.T) {
	var nilAudit *AuditLog
	assert.NotPanics(t, func() { nilAudit.Write("x", "PROMPT", "body") })

	empty := NewAuditLog("", Discard())
	assert.NotPanics(t, func() { empty.Write("x", "PROMPT", "body") })
	assert.Equal(t, "", nilAudit.Path())
}

func TestAuditLogWriteFailureIsSwallowed(t *testing.T) {
	dir := t.TempDir()
	// a directory cannot be opened for appending
	audit := NewAuditLog(dir, Discard())
	assert.NotPanics(t, func() { audit.Write("x", "PROMPT", "body") })
}
