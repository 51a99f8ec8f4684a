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

import (
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// WorkerPool is the multi-threaded, preemptible side of the async
// plumbing: the bounded pool of registered worker goroutines that run
// blocking upcalls (instance construction, a start event) off the
// event loop's own goroutine, reporting back through a Waker once done.
type WorkerPool struct {
	p *pool.Pool
}

// NewWorkerPool returns a pool that never runs more than maxGoroutines
// submitted functions concurrently.
func NewWorkerPool(maxGoroutines int) *WorkerPool {
	return &WorkerPool{p: pool.New().WithMaxGoroutines(maxGoroutines)}
}

// Box is a one-shot result cell a load task's FSM state polls until the
// worker pool goroutine fills it in.
type Box[T any] struct {
	mu  sync.Mutex
	val T
	err error
	set bool
}

func (b *Box[T]) set_(v T, err error) {
	b.mu.Lock()
	b.val, b.err, b.set = v, err, true
	b.mu.Unlock()
}

// Get returns the stored value/error and whether the box has been filled
// in yet.
func (b *Box[T]) Get() (T, error, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.val, b.err, b.set
}

// Submit runs fn on a worker goroutine and wakes w once its result is
// available in the returned Box.
func Submit[T any](wp *WorkerPool, w Waker, fn func() (T, error)) *Box[T] {
	box := &Box[T]{}
	wp.p.Go(func() {
		v, err := fn()
		box.set_(v, err)
		w.Wake()
	})
	return box
}

// Wait blocks until every submitted function has returned.
func (wp *WorkerPool) Wait() { wp.p.Wait() }
