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

import "context"

// EventLoop is the single-threaded cooperative scheduler: one goroutine
// drains a queue of ready-to-poll steps, serially, so every Future it
// drives never observes concurrent access to its own state. Load tasks
// dispatch instance construction and start events to a WorkerPool instead
// of running them inline here.
type EventLoop struct {
	tasks chan func()
	quit  chan struct{}
}

// NewEventLoop starts the loop's goroutine and returns a handle to it.
func NewEventLoop() *EventLoop {
	el := &EventLoop{tasks: make(chan func(), 256), quit: make(chan struct{})}
	go el.run()
	return el
}

func (el *EventLoop) run() {
	for {
		select {
		case fn := <-el.tasks:
			fn()
		case <-el.quit:
			return
		}
	}
}

// Stop shuts the loop's goroutine down. Spawn must not be called again
// afterward.
func (el *EventLoop) Stop() { close(el.quit) }

// EnqueuedFuture is a Future the event loop owns and is driving to
// completion; callers on any other goroutine block on Wait until it's
// done.
type EnqueuedFuture[T any] struct {
	done  chan struct{}
	value T
}

// Wait blocks until the future completes or ctx is canceled.
func (ef *EnqueuedFuture[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-ef.done:
		return ef.value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Ready reports, without blocking, whether the future has completed.
func (ef *EnqueuedFuture[T]) Ready() bool {
	select {
	case <-ef.done:
		return true
	default:
		return false
	}
}

// Result returns the future's value. It's only meaningful once Ready
// reports true.
func (ef *EnqueuedFuture[T]) Result() T { return ef.value }

// Spawn enqueues fut on the loop and drives it to completion, re-polling
// whenever its waker fires.
func Spawn[T any](el *EventLoop, fut Future[T]) *EnqueuedFuture[T] {
	ef := &EnqueuedFuture[T]{done: make(chan struct{})}
	wakeCh := make(chan struct{}, 1)

	var step func()
	step = func() {
		p := fut.Poll(NewWaker(wakeCh))
		if p.IsReady() {
			ef.value = p.Value()
			close(ef.done)
			return
		}
		go func() {
			<-wakeCh
			el.tasks <- step
		}()
	}
	el.tasks <- step
	return ef
}
