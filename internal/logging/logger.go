// Package logging is a small leveled logger with lipgloss-styled level tags.
package logging

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Logger is the leveled logging surface used across flip.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	// With returns a logger that prefixes every line, e.g. a connection id.
	With(prefix string) Logger
}

// Level controls verbosity.
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
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel accepts debug, info, warn/warning and error, case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "", "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Level tag colors. The send UI draws from the same palette.
var (
	ColorDebug = lipgloss.Color("#A0AEC0")
	ColorInfo  = lipgloss.Color("#7D56F4")
	ColorWarn  = lipgloss.Color("#FFA500")
	ColorError = lipgloss.Color("#E53E3E")
)

type tags struct {
	debug, info, warn, err string
}

type stdLogger struct {
	lvl    Level
	l      *log.Logger
	tags   *tags
	prefix string
}

// New writes timestamped lines to w. Colors are used only when w is a terminal.
func New(w io.Writer, level Level) Logger {
	r := lipgloss.NewRenderer(w)
	tag := func(name string, color lipgloss.Color) string {
		return r.NewStyle().Foreground(color).Bold(true).Width(5).Render(name)
	}
	return &stdLogger{
		lvl: level,
		l:   log.New(w, "", log.LstdFlags),
		tags: &tags{
			debug: tag("DEBUG", ColorDebug),
			info:  tag("INFO", ColorInfo),
			warn:  tag("WARN", ColorWarn),
			err:   tag("ERROR", ColorError),
		},
	}
}

// Discard drops everything.
func Discard() Logger {
	return New(io.Discard, LevelError+1)
}

func (l *stdLogger) logf(level Level, tag, format string, args ...any) {
	if level < l.lvl {
		return
	}
	l.l.Printf(tag+" "+l.prefix+format, args...)
}

func (l *stdLogger) With(prefix string) Logger {
	c := *l
	c.prefix = l.prefix + "[" + prefix + "] "
	return &c
}

func (l *stdLogger) Debugf(format string, args ...any) {
	l.logf(LevelDebug, l.tags.debug, format, args...)
}
func (l *stdLogger) Infof(format string, args ...any) { l.logf(LevelInfo, l.tags.info, format, args...) }
func (l *stdLogger) Warnf(format string, args ...any) { l.logf(LevelWarn, l.tags.warn, format, args...) }
func (l *stdLogger) Errorf(format string, args ...any) {
	l.logf(LevelError, l.tags.err, format, args...)
}
