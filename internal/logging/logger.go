/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package logging implements the module subsystem's tracing collaborator:
// warning/error/trace emission whose lifetime is bound to a single
// subsystem instance, not to the process.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pterm/pterm"
)

func init() {
	pterm.Info = *pterm.Info.WithPrefix(pterm.Prefix{
		Text:  "INFO",
		Style: pterm.NewStyle(pterm.FgBlue),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)

	pterm.Warning = *pterm.Warning.WithPrefix(pterm.Prefix{
		Text:  "WARN",
		Style: pterm.NewStyle(pterm.FgYellow),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)

	pterm.Error = *pterm.Error.WithPrefix(pterm.Prefix{
		Text:  "ERROR",
		Style: pterm.NewStyle(pterm.FgRed),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)

	pterm.Debug = *pterm.Debug.WithPrefix(pterm.Prefix{
		Text:  "TRACE",
		Style: pterm.NewStyle(pterm.FgCyan),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)
}

// Level is the severity of a tracing message.
type Level int

const (
	LevelTrace Level = iota
	LevelInfo
	LevelWarn
	LevelError
	// LevelSilent discards every message; used by tests that don't want
	// pterm writing to stdout.
	LevelSilent
)

// Logger is the subsystem's tracing collaborator. One Logger is owned by
// each context root; its lifetime is the context's lifetime.
type Logger struct {
	mu     sync.RWMutex
	level  Level
	out    io.Writer
	silent bool
}

// New returns a Logger emitting LevelInfo and above through pterm's
// package-level printers (stdout by default); the out field is not used
// for output.
func New() *Logger {
	return &Logger{level: LevelInfo, out: os.Stderr}
}

// NewSilent returns a Logger that discards every message. Tests use this to
// keep pterm output out of `go test -v` logs.
func NewSilent() *Logger {
	return &Logger{level: LevelSilent, silent: true, out: io.Discard}
}

// SetLevel changes the minimum level this logger emits.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) enabled(level Level) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return !l.silent && level >= l.level
}

// Tracef emits a trace-level message (finest-grained; suspension points,
// lock acquisition/release, FSM state transitions).
func (l *Logger) Tracef(format string, args ...any) {
	if !l.enabled(LevelTrace) {
		return
	}
	pterm.Debug.Println(fmt.Sprintf(format, args...))
}

// Infof emits an informational message.
func (l *Logger) Infof(format string, args ...any) {
	if !l.enabled(LevelInfo) {
		return
	}
	pterm.Info.Println(fmt.Sprintf(format, args...))
}

// Warnf emits a warning: used for non-fatal candidate validation failures
// and commit-phase stragglers, none of which abort the batch.
func (l *Logger) Warnf(format string, args ...any) {
	if !l.enabled(LevelWarn) {
		return
	}
	pterm.Warning.Println(fmt.Sprintf(format, args...))
}

// Errorf emits an error-level message for surfaced, non-recoverable failures.
func (l *Logger) Errorf(format string, args ...any) {
	if !l.enabled(LevelError) {
		return
	}
	pterm.Error.Println(fmt.Sprintf(format, args...))
}
