package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Logger is the structured logger handed to ledger components.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithContext(ctx context.Context) Logger
}

// Config mirrors the server's log section. The zero value logs info and
// above as JSON to stderr.
type Config struct {
	Level     string // debug, info, warn or error; empty means info
	Format    string // json or text; empty means json
	Output    io.Writer
	AddSource bool
}

// level is shared by every logger built here so a reload applies at once.
var level = new(slog.LevelVar)

var levels = []struct {
	name  string
	level slog.Level
}{
	{"debug", slog.LevelDebug},
	{"info", slog.LevelInfo},
	{"warn", slog.LevelWarn},
	{"error", slog.LevelError},
}

// ParseLevel maps a level name to its slog level. "warning" is accepted
// for warn and the empty string means info.
func ParseLevel(name string) (slog.Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "":
		return slog.LevelInfo, nil
	case "warning":
		name = "warn"
	}
	for _, l := range levels {
		if l.name == name {
			return l.level, nil
		}
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// New builds a logger from cfg and makes cfg.Level the shared level.
func New(cfg Config) (Logger, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := handlerOptions(cfg.AddSource)

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		h = slog.NewJSONHandler(out, opts)
	case "text", "console":
		h = slog.NewTextHandler(out, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	level.Set(lvl)
	return &slogLogger{logger: slog.New(h), ctx: context.Background()}, nil
}

// SetLevel changes the shared level. Unknown names leave it untouched.
func SetLevel(name string) error {
	lvl, err := ParseLevel(name)
	if err != nil {
		return err
	}
	level.Set(lvl)
	return nil
}

// Level reports the shared level by name.
func Level() string {
	cur := level.Level()
	for _, l := range levels {
		if l.level == cur {
			return l.name
		}
	}
	return cur.String()
}

func handlerOptions(addSource bool) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level:     level,
		AddSource: addSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return redactSensitive(a)
		},
	}
}

type slogLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

func (l *slogLogger) Debug(msg string, args ...any) { l.logger.DebugContext(l.ctx, msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.logger.InfoContext(l.ctx, msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.logger.WarnContext(l.ctx, msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.logger.ErrorContext(l.ctx, msg, args...) }

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{logger: l.logger.With(args...), ctx: l.ctx}
}

func (l *slogLogger) WithContext(ctx context.Context) Logger {
	return &slogLogger{logger: l.logger, ctx: ctx}
}

// Slog exposes the *slog.Logger behind l for components such as raft
// and the HTTP server that take one directly.
func Slog(l Logger) *slog.Logger {
	if sl, ok := l.(*slogLogger); ok {
		return sl.logger
	}
	return slog.Default()
}

// FromSlog wraps a *slog.Logger. A nil argument wraps slog.Default().
func FromSlog(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{logger: l, ctx: context.Background()}
}

var defaultLogger atomic.Pointer[slogLogger]

func init() {
	defaultLogger.Store(&slogLogger{
		logger: slog.New(slog.NewJSONHandler(os.Stderr, handlerOptions(false))),
		ctx:    context.Background(),
	})
}

// SetDefault replaces the process-wide logger returned by Default and
// used by L when the context carries none.
func SetDefault(l Logger) {
	if sl, ok := l.(*slogLogger); ok {
		defaultLogger.Store(sl)
	}
}

// Default returns the process-wide logger.
func Default() Logger {
	return defaultLogger.Load()
}

// Ledger attribute keys. Every component logs ledger identities under
// these names so one query follows a license across write, reconcile
// and access logs.
const (
	KeyCaller     = "caller"
	KeyOwner      = "owner"
	KeyToken      = "token_id"
	KeySeq        = "seq"
	KeyApp        = "app_id"
	KeyCredential = "credential_id"
)

type hexer interface{ Hex() string }

// Caller is the authenticated principal of a request or command.
func Caller(addr hexer) slog.Attr { return slog.String(KeyCaller, addr.Hex()) }

// Owner is the address holding a license.
func Owner(addr hexer) slog.Attr { return slog.String(KeyOwner, addr.Hex()) }

// Token is a license id.
func Token(id uint64) slog.Attr { return slog.Uint64(KeyToken, id) }

// Seq is a ledger event sequence number.
func Seq(seq uint64) slog.Attr { return slog.Uint64(KeySeq, seq) }

// App is an application id.
func App(app string) slog.Attr { return slog.String(KeyApp, app) }

// Credential is an access credential id.
func Credential(id string) slog.Attr { return slog.String(KeyCredential, id) }
