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

import "sync"

// BlockingContext lets code outside the event loop park on a Future
// synchronously instead of polling it. Calling Block from a goroutine the
// event loop itself owns deadlocks the loop — there's nothing left to wake
// it — so this is only for callers on their own goroutine (a CLI's main
// goroutine, a test).
type BlockingContext struct {
	mu     sync.Mutex
	cond   *sync.Cond
	woken  bool
}

// NewBlockingContext returns a ready-to-use blocking context.
func NewBlockingContext() *BlockingContext {
	bc := &BlockingContext{}
	bc.cond = sync.NewCond(&bc.mu)
	return bc
}

// Waker returns a Waker that unparks any goroutine sleeping in Block.
func (b *BlockingContext) Waker() Waker {
	ch := make(chan struct{}, 1)
	go func() {
		<-ch
		b.mu.Lock()
		b.woken = true
		b.cond.Signal()
		b.mu.Unlock()
	}()
	return NewWaker(ch)
}

// Block sleeps until a Waker obtained from this context fires.
func (b *BlockingContext) Block() {
	b.mu.Lock()
	for !b.woken {
		b.cond.Wait()
	}
	b.woken = false
	b.mu.Unlock()
}
