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
package future

import "sync/atomic"

// Waker lets a pending Future signal that it should be polled again.
// WakeRef signals without consuming the waker's own reference; Wake
// signals and additionally releases the caller's reference, mirroring a
// refcounted waker contract.
type Waker interface {
	Wake()
	WakeRef()
	Clone() Waker
}

// chanWaker delivers its signal over a buffered channel so a single-
// threaded event loop can select on it without polling.
type chanWaker struct {
	ch   chan struct{}
	refs *atomic.Int64
}

// NewWaker returns a Waker that signals on ch (at most once per pending
// signal; redundant signals while one is already queued are dropped,
// matching a level-triggered "please repoll me" notification).
func NewWaker(ch chan struct{}) Waker {
	refs := &atomic.Int64{}
	refs.Store(1)
	return &chanWaker{ch: ch, refs: refs}
}

func (w *chanWaker) signal() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

func (w *chanWaker) Wake() {
	w.signal()
	w.refs.Add(-1)
}

func (w *chanWaker) WakeRef() {
	w.signal()
}

func (w *chanWaker) Clone() Waker {
	w.refs.Add(1)
	return w
}
