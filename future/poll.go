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

// Package future implements the async plumbing: wakers, the Future/Poll
// contract, an FSM-future combinator for multi-step state machines that
// suspend and resume, a single-threaded cooperative event loop, and a
// worker pool for the blocking upcalls the loop must never run on its own
// goroutine.
package future

// Poll is the result of polling a Future once: either still Pending, or
// Ready with a value.
type Poll[T any] struct {
	ready bool
	value T
}

// Pending returns a not-yet-ready poll result.
func Pending[T any]() Poll[T] { return Poll[T]{} }

// Ready returns a completed poll result carrying v.
func Ready[T any](v T) Poll[T] { return Poll[T]{ready: true, value: v} }

// IsReady reports whether the future completed.
func (p Poll[T]) IsReady() bool { return p.ready }

// Value returns the completed value. Only meaningful when IsReady is true.
func (p Poll[T]) Value() T { return p.value }

// Future is anything pollable to completion, driven by repeated calls to
// Poll with a Waker that the future is responsible for invoking once it
// has something new to report.
type Future[T any] interface {
	Poll(w Waker) Poll[T]
}
