package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileName is the log file created inside the logs directory.
const FileName = "lazycounter.log"

// Logger writes structured JSON lines to logs/lazycounter.log so users can
// inspect a session after the alternate screen is gone. The terminal itself
// belongs to the TUI, so nothing is written to stdout or stderr.
type Logger struct {
	*zap.Logger
	SessionID string
	file      *os.File
}

// New creates (or reuses) the log file under logsDir.
func New(logsDir, level string) (*Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	path := filepath.Join(logsDir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), lvl)

	session := uuid.New().String()
	return &Logger{
		Logger:    zap.New(core).With(zap.String("session", session)),
		SessionID: session,
		file:      f,
	}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Close flushes buffered entries and releases the file handle.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = l.Logger.Sync()
	return l.file.Close()
}

// Printf writes a single free-form info line.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil || l.Logger == nil {
		return
	}
	l.Logger.Info(strings.TrimRight(fmt.Sprintf(format, args...), "\n"))
}
