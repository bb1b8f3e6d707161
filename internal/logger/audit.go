package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const auditRule = "================================================================================"

// AuditLog appends language-model prompts, responses and reasoning traces to
// a plain-text file. A nil *AuditLog or an empty path disables auditing.
type AuditLog struct {
	mu     sync.Mutex
	path   string
	logger *Logger
}

func NewAuditLog(path string, log *Logger) *AuditLog {
	return &AuditLog{path: path, logger: log}
}

func (a *AuditLog) Path() string {
	if a == nil {
		return ""
	}
	return a.path
}

// Write appends one block: a timestamped header line, the body and a rule.
// Failures are logged as warnings and never returned.
func (a *AuditLog) Write(source, kind, body string) {
	if a == nil || a.path == "" {
		return
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] [%s] %s\n", time.Now().UTC().Format(time.RFC3339), source, kind))
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(auditRule)
	b.WriteString("\n")

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.appendBlock(b.String()); err != nil && a.logger != nil {
		a.logger.Warn("write audit log", "path", a.path, "error", err)
	}
}

func (a *AuditLog) appendBlock(block string) error {
	if dir := filepath.Dir(a.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create audit dir: %w", err)
		}
	}
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(block); err != nil {
		return fmt.Errorf("append audit block: %w", err)
	}
	return nil
}
