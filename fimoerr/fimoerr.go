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

// Package fimoerr implements the error kinds raised by the module
// subsystem: a single Error struct carrying a comparable Kind and an
// optional wrapped cause, matched with errors.Is/errors.As the way Go code
// normally is.
package fimoerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the error kinds raised by the module subsystem.
type Kind int

const (
	_ Kind = iota
	Duplicate
	NotFound
	NotPermitted
	NotADependency
	InvalidParameterType
	CyclicDependency
	LoadingInProcess
	Detached
	InvalidExport
	Allocation
	InvalidModule
	InvalidPath
	DlOpenError
	InUse
)

func (k Kind) String() string {
	switch k {
	case Duplicate:
		return "duplicate"
	case NotFound:
		return "not found"
	case NotPermitted:
		return "not permitted"
	case NotADependency:
		return "not a dependency"
	case InvalidParameterType:
		return "invalid parameter type"
	case CyclicDependency:
		return "cyclic dependency"
	case LoadingInProcess:
		return "loading in process"
	case Detached:
		return "detached"
	case InvalidExport:
		return "invalid export"
	case Allocation:
		return "allocation failure"
	case InvalidModule:
		return "invalid module"
	case InvalidPath:
		return "invalid path"
	case DlOpenError:
		return "dynamic load error"
	case InUse:
		return "in use"
	default:
		return "unknown error"
	}
}

// Error wraps a Kind with context and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind, wrapping cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err is a fimoerr.Error of the given kind. This is the
// normal way call sites check error kind: `fimoerr.Is(err, fimoerr.NotFound)`.
func Is(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}
