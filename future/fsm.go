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

// Step is what a state function tells the FSM to do next.
type Step int

const (
	// Yield means the state isn't done yet; the FSM stays on it and
	// returns Pending until the state's own waker fires.
	Yield Step = iota
	// Next advances to the following state immediately.
	Next
	// Ret completes the future with whatever result the state set via
	// FSM.SetResult before returning.
	Ret
)

// State is one step of an FSM future: a commit's serialize/build-and-
// spawn/drain sequence and a load task's wait/construct/start/register/
// signal sequence are each modeled as a slice of these.
type State func(w Waker) (Step, error)

// FSM drives a fixed sequence of States to completion, unwinding in
// reverse state order exactly once when it finishes — whether by reaching
// Ret or by a state returning an error. The states and their matching
// unwind steps are just ordinary closures.
type FSM[T any] struct {
	states []State
	unwind []func(err error)

	idx    int
	done   bool
	result T
	err    error
}

// NewFSM builds an FSM over states, with unwind run in reverse once the
// FSM finishes. len(unwind) need not equal len(states); indices beyond the
// unwind slice are simply skipped.
func NewFSM[T any](states []State, unwind []func(error)) *FSM[T] {
	return &FSM[T]{states: states, unwind: unwind}
}

// SetResult records the value Poll will return once the FSM completes.
// States call this just before returning Ret.
func (f *FSM[T]) SetResult(v T) { f.result = v }

// Err returns the error that ended the FSM, if any.
func (f *FSM[T]) Err() error { return f.err }

func (f *FSM[T]) Poll(w Waker) Poll[T] {
	if f.done {
		return Ready(f.result)
	}

	for f.idx < len(f.states) {
		step, err := f.states[f.idx](w)
		if err != nil {
			f.err = err
			f.finish()
			var zero T
			f.result = zero
			return Ready(f.result)
		}
		switch step {
		case Yield:
			return Pending[T]()
		case Next:
			f.idx++
		case Ret:
			f.finish()
			return Ready(f.result)
		}
	}
	f.finish()
	return Ready(f.result)
}

func (f *FSM[T]) finish() {
	if f.done {
		return
	}
	f.done = true
	for i := len(f.unwind) - 1; i >= 0; i-- {
		if f.unwind[i] != nil {
			f.unwind[i](f.err)
		}
	}
}
