/*
 * Copyright 2018 The Trickster Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package logging provides the leveled key=value logger used throughout wikiserv
package logging

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/wikiserv/wikiserv/pkg/appinfo"
	"github.com/wikiserv/wikiserv/pkg/observability/logging/level"
	"github.com/wikiserv/wikiserv/pkg/observability/logging/options"

	"github.com/go-kit/log"
	gkl "github.com/go-kit/log/level"
	"github.com/go-stack/stack"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const modulePrefix = "github.com/wikiserv/wikiserv/"

var _ Logger = &logger{}

// Logger is the leveled logger interface used by wikiserv packages
type Logger interface {
	SetLogLevel(level.Level)
	Level() level.Level
	Close()
	//
	Log(logLevel level.Level, event string, detail Pairs)
	Debug(event string, detail Pairs)
	Info(event string, detail Pairs)
	Warn(event string, detail Pairs)
	Error(event string, detail Pairs)
	Fatal(code int, event string, detail Pairs)
	//
	LogOnce(logLevel level.Level, key, event string, detail Pairs) bool
	DebugOnce(key, event string, detail Pairs) bool
	InfoOnce(key, event string, detail Pairs) bool
	WarnOnce(key, event string, detail Pairs) bool
	ErrorOnce(key, event string, detail Pairs) bool
	//
	HasLoggedOnce(logLevel level.Level, key string) bool
}

// Pairs represents a key=value pair that helps to describe a log event
type Pairs map[string]any

type logger struct {
	base     log.Logger
	filtered log.Logger
	closer   io.Closer
	level    level.Level
	levelID  level.ID
	mtx      sync.RWMutex

	onceMutex      sync.Mutex
	onceRanEntries map[string]struct{}
}

// New returns a Logger for the provided logging options. When a log file is
// configured, the returned Logger writes to a rotated file distinguished from
// other instances by the instance id.
func New(o *options.Options, instanceID int) Logger {
	if o == nil {
		o = options.New()
	}
	var wr io.Writer
	if o.LogFile == "" {
		wr = os.Stdout
	} else {
		logFile := o.LogFile
		if instanceID > 0 {
			logFile = strings.Replace(logFile, ".log",
				"."+strconv.Itoa(instanceID)+".log", 1)
		}
		wr = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    256,  // megabytes
			MaxBackups: 80,   // 256 megs @ 80 backups is 20GB of Logs
			MaxAge:     7,    // days
			Compress:   true, // Compress Rolled Backups
		}
	}
	return newLogger(wr, level.Level(o.LogLevel))
}

// NoopLogger returns a Logger that discards everything
func NoopLogger() Logger {
	return newLogger(io.Discard, level.Error)
}

// StreamLogger returns a Logger that writes to the provided writer
func StreamLogger(w io.Writer, logLevel level.Level) Logger {
	return newLogger(w, logLevel)
}

// ConsoleLogger returns a Logger that writes to stdout
func ConsoleLogger(logLevel level.Level) Logger {
	return newLogger(os.Stdout, logLevel)
}

func newLogger(w io.Writer, logLevel level.Level) *logger {
	name := appinfo.Name
	if name == "" {
		name = "wikiserv"
	}
	l := &logger{
		base: log.With(log.NewLogfmtLogger(log.NewSyncWriter(w)),
			"time", log.DefaultTimestampUTC,
			"app", name,
		),
		onceRanEntries: make(map[string]struct{}),
	}
	if c, ok := w.(io.Closer); ok && c != nil && w != os.Stdout {
		l.closer = c
	}
	l.SetLogLevel(logLevel)
	return l
}

func (l *logger) SetLogLevel(logLevel level.Level) {
	logLevel = level.Level(strings.ToLower(string(logLevel)))
	id := level.GetID(logLevel)
	if id == 0 {
		logLevel, id = level.Info, level.InfoID
	}
	var opt gkl.Option
	switch id {
	case level.DebugID:
		opt = gkl.AllowDebug()
	case level.WarnID:
		opt = gkl.AllowWarn()
	case level.ErrorID, level.FatalID:
		opt = gkl.AllowError()
	default:
		opt = gkl.AllowInfo()
	}
	l.mtx.Lock()
	l.level = logLevel
	l.levelID = id
	l.filtered = gkl.NewFilter(l.base, opt)
	l.mtx.Unlock()
}

func (l *logger) Level() level.Level {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	return l.level
}

func (l *logger) Close() {
	if l.closer != nil {
		l.closer.Close()
	}
}

func (l *logger) Log(logLevel level.Level, event string, detail Pairs) {
	l.mtx.RLock()
	fl := l.filtered
	l.mtx.RUnlock()
	kv := keyvals(event, detail)
	switch level.GetID(logLevel) {
	case level.DebugID:
		gkl.Debug(fl).Log(kv...)
	case level.WarnID:
		gkl.Warn(fl).Log(kv...)
	case level.ErrorID:
		gkl.Error(fl).Log(kv...)
	case level.FatalID:
		// go-kit/log/level does not support Fatal, so it bypasses the filter
		l.base.Log(append([]any{"level", "fatal"}, kv...)...)
	default:
		gkl.Info(fl).Log(kv...)
	}
}

func (l *logger) Debug(event string, detail Pairs) {
	l.Log(level.Debug, event, detail)
}

func (l *logger) Info(event string, detail Pairs) {
	l.Log(level.Info, event, detail)
}

func (l *logger) Warn(event string, detail Pairs) {
	l.Log(level.Warn, event, detail)
}

func (l *logger) Error(event string, detail Pairs) {
	l.Log(level.Error, event, detail)
}

// Fatal sends a "FATAL" event to the Logger and exits the program with the
// provided exit code. A negative code logs without exiting.
func (l *logger) Fatal(code int, event string, detail Pairs) {
	l.Log(level.Fatal, event, detail)
	if code >= 0 {
		l.Close()
		os.Exit(code)
	}
}

func onceKey(logLevel level.Level, key string) string {
	return string(logLevel) + "." + key
}

// LogOnce logs the event only once per key and level. It returns true if this
// invocation was the first, and thus sent to the Logger.
func (l *logger) LogOnce(logLevel level.Level, key, event string, detail Pairs) bool {
	key = onceKey(logLevel, key)
	l.onceMutex.Lock()
	if _, ok := l.onceRanEntries[key]; ok {
		l.onceMutex.Unlock()
		return false
	}
	l.onceRanEntries[key] = struct{}{}
	l.onceMutex.Unlock()
	l.Log(logLevel, event, detail)
	return true
}

func (l *logger) DebugOnce(key, event string, detail Pairs) bool {
	return l.LogOnce(level.Debug, key, event, detail)
}

func (l *logger) InfoOnce(key, event string, detail Pairs) bool {
	return l.LogOnce(level.Info, key, event, detail)
}

func (l *logger) WarnOnce(key, event string, detail Pairs) bool {
	return l.LogOnce(level.Warn, key, event, detail)
}

func (l *logger) ErrorOnce(key, event string, detail Pairs) bool {
	return l.LogOnce(level.Error, key, event, detail)
}

func (l *logger) HasLoggedOnce(logLevel level.Level, key string) bool {
	l.onceMutex.Lock()
	defer l.onceMutex.Unlock()
	_, ok := l.onceRanEntries[onceKey(logLevel, key)]
	return ok
}

// keyvals flattens the event and its details into go-kit key/value order:
// the caller site and event first, then the detail keys sorted by name.
func keyvals(event string, detail Pairs) []any {
	kv := make([]any, 0, (len(detail)*2)+4)
	kv = append(kv, "caller", callerSite(), "event", event)
	for _, k := range slices.Sorted(maps.Keys(detail)) {
		v := detail[k]
		if err, ok := v.(error); ok && err != nil {
			v = err.Error()
		}
		kv = append(kv, k, v)
	}
	return kv
}

// callerSite returns the first frame outside of the logging packages,
// relative to the module root.
func callerSite() string {
	for _, c := range stack.Trace().TrimRuntime() {
		fn := c.Frame().Function
		if strings.Contains(fn, "/pkg/observability/logging") {
			continue
		}
		return strings.TrimPrefix(fmt.Sprintf("%+v", c), modulePrefix)
	}
	return "unknown"
}
