// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package transpose

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/joeycumines/logiface"
)

// Logger is the structured logger used throughout the engine for
// saturation transitions, rollback folding, finalize-watermark bumps, and
// waker dedup decisions. It is a thin alias over logiface's generic
// Logger, parameterized with this package's minimal Event implementation,
// mirroring how go-eventloop exposes a package-level Logger interface
// (logging.go) but delegating the actual field/level machinery to the
// logiface facade rather than a bespoke LogEntry type.
type Logger = *logiface.Logger[*logEvent]

// logEvent is the minimal logiface.Event implementation backing Logger. It
// accumulates a level and an ordered list of string-keyed fields, which
// the writer built in NewLogger then renders as a single log line.
type logEvent struct {
	logiface.UnimplementedEvent
	level  logiface.Level
	fields []logField
	msg    string
}

type logField struct {
	key string
	val string
}

func (e *logEvent) Level() logiface.Level {
	if e == nil {
		return logiface.LevelDisabled
	}
	return e.level
}

func (e *logEvent) AddField(key string, val any) {
	e.fields = append(e.fields, logField{key, fmt.Sprintf("%v", val)})
}

func (e *logEvent) AddString(key string, val string) bool {
	e.fields = append(e.fields, logField{key, val})
	return true
}

func (e *logEvent) AddInt(key string, val int) bool {
	e.fields = append(e.fields, logField{key, fmt.Sprintf("%d", val)})
	return true
}

func (e *logEvent) AddInt64(key string, val int64) bool {
	e.fields = append(e.fields, logField{key, fmt.Sprintf("%d", val)})
	return true
}

func (e *logEvent) AddUint64(key string, val uint64) bool {
	e.fields = append(e.fields, logField{key, fmt.Sprintf("%d", val)})
	return true
}

func (e *logEvent) AddBool(key string, val bool) bool {
	e.fields = append(e.fields, logField{key, fmt.Sprintf("%t", val)})
	return true
}

func (e *logEvent) AddError(err error) bool {
	if err == nil {
		return false
	}
	e.fields = append(e.fields, logField{"error", err.Error()})
	return true
}

func (e *logEvent) AddMessage(msg string) bool {
	e.msg = msg
	return true
}

var eventPool = sync.Pool{New: func() any { return new(logEvent) }}

func newLogEvent(level logiface.Level) *logEvent {
	e := eventPool.Get().(*logEvent)
	e.level = level
	e.fields = e.fields[:0]
	e.msg = ""
	return e
}

func releaseLogEvent(e *logEvent) { eventPool.Put(e) }

// NewLogger builds a Logger writing line-oriented, key=value formatted
// output at level or above to w. Passing nil uses os.Stderr.
func NewLogger(w io.Writer, level logiface.Level) Logger {
	if w == nil {
		w = os.Stderr
	}
	return logiface.New[*logEvent](
		logiface.WithLevel[*logEvent](level),
		logiface.WithEventFactory[*logEvent](logiface.NewEventFactoryFunc(newLogEvent)),
		logiface.WithEventReleaser[*logEvent](logiface.NewEventReleaserFunc(releaseLogEvent)),
		logiface.WithWriter[*logEvent](logiface.NewWriterFunc(func(e *logEvent) error {
			line := fmt.Sprintf("level=%s", e.level)
			if e.msg != "" {
				line += fmt.Sprintf(" msg=%q", e.msg)
			}
			for _, f := range e.fields {
				line += fmt.Sprintf(" %s=%s", f.key, f.val)
			}
			_, err := fmt.Fprintln(w, line)
			return err
		})),
	)
}
