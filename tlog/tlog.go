// Package tlog is the leveled console logger used throughout tgl-go.
//
// It mirrors the Logger/LogHandler split the teacher client used
// (mtproto.go called m.log.Info/Debug/Warn/Error with printf-style
// arguments) so every package in this module logs the same way.
package tlog

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "?"
	}
}

// LogHandler receives already-formatted log lines. Hosts implement this to
// redirect logging; SimpleLogHandler is the default.
type LogHandler interface {
	LogMessage(level Level, message string)
}

// Logger is the printf-style façade every package logs through.
type Logger struct {
	Hnd LogHandler
	Min Level
}

func New(hnd LogHandler) Logger {
	return Logger{Hnd: hnd, Min: LevelDebug}
}

func (l Logger) log(level Level, format string, args ...interface{}) {
	if level < l.Min || l.Hnd == nil {
		return
	}
	l.Hnd.LogMessage(level, fmt.Sprintf(format, args...))
}

func (l Logger) Debug(format string, args ...interface{}) { l.log(LevelDebug, format, args...) }
func (l Logger) Info(format string, args ...interface{})  { l.log(LevelInfo, format, args...) }
func (l Logger) Warn(format string, args ...interface{})  { l.log(LevelWarn, format, args...) }

// Error logs err alongside a contextual message, matching the teacher's
// Logger{log}.Error(err, "message") call shape.
func (l Logger) Error(err error, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	l.log(LevelError, "%s", msg)
}

// SimpleLogHandler writes colorized, timestamped lines to stderr.
type SimpleLogHandler struct{}

var levelColor = map[Level]*color.Color{
	LevelDebug: color.New(color.FgHiBlack),
	LevelInfo:  color.New(color.FgCyan),
	LevelWarn:  color.New(color.FgYellow, color.Bold),
	LevelError: color.New(color.FgRed, color.Bold),
}

func (SimpleLogHandler) LogMessage(level Level, message string) {
	c, ok := levelColor[level]
	if !ok {
		c = color.New()
	}
	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(os.Stderr, "%s %s\n", ts, c.Sprintf("[%-5s] %s", level, message))
}

// NoopLogHandler discards every message; useful in tests.
type NoopLogHandler struct{}

func (NoopLogHandler) LogMessage(Level, string) {}
