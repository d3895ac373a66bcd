// Package seslog implements the per-session plaintext logger from
// spec.md §4.B: a byte-capped file (tail preserved across opens) fed
// through a zap core so session logs and process logs share one
// structured-record encoding.
package seslog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultMaxBytes is the default cap from spec.md §4.B (5 MiB).
const DefaultMaxBytes = 5 * 1024 * 1024

var levelNames = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
}

// Logger is a session-scoped log sink.
type Logger struct {
	mu      sync.Mutex
	file    *os.File
	zl      *zap.Logger
	warned  bool
	closed  bool
}

// Open opens <dataRoot>/logs/<sessionID>.log, truncating to the last
// maxBytes bytes (keeping the tail) if it already exceeds that size.
// maxBytes <= 0 disables the cap.
func Open(dataRoot, sessionID string, maxBytes int64) (*Logger, error) {
	dir := filepath.Join(dataRoot, "logs")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("prepare log dir: %w", err)
	}
	path := filepath.Join(dir, sessionID+".log")

	if maxBytes > 0 {
		if err := truncateKeepTail(path, maxBytes); err != nil {
			return nil, err
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open session log: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(encCfg)
	core := zapcore.NewCore(encoder, zapcore.AddSync(f), zapcore.DebugLevel)
	zl := zap.New(core)

	return &Logger{file: f, zl: zl}, nil
}

// truncateKeepTail rewrites path (if it exists and exceeds maxBytes) to
// contain only its last maxBytes bytes.
func truncateKeepTail(path string, maxBytes int64) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat session log: %w", err)
	}
	if info.Size() <= maxBytes {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open session log for truncation: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(info.Size()-maxBytes, 0); err != nil {
		return fmt.Errorf("seek session log: %w", err)
	}
	tail := make([]byte, maxBytes)
	n, err := f.Read(tail)
	if err != nil && n == 0 {
		return fmt.Errorf("read session log tail: %w", err)
	}

	tmp := path + ".tail-tmp"
	if err := os.WriteFile(tmp, tail[:n], 0o600); err != nil {
		return fmt.Errorf("write truncated session log: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace session log: %w", err)
	}
	return nil
}

// Log writes one record at the given level. Unknown level strings
// downgrade to info and emit a single one-time warning.
func (l *Logger) Log(level, msg string, fields ...zap.Field) {
	l.mu.Lock()
	lvl, ok := levelNames[level]
	if !ok {
		lvl = zapcore.InfoLevel
		if !l.warned {
			l.warned = true
			l.mu.Unlock()
			l.zl.Warn("unknown log level, downgrading to info", zap.String("requested_level", level))
			l.mu.Lock()
		}
	}
	l.mu.Unlock()

	if ce := l.zl.Check(lvl, msg); ce != nil {
		ce.Write(fields...)
	}
}

// Close flushes and releases the underlying file handle.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	_ = l.zl.Sync()
	return l.file.Close()
}
