package device

import (
	"fmt"
	"iter"
)

// Stack is an unbounded last-in-first-out scratch store, used to hold the
// garbage a reversible program cannot discard.
type Stack struct {
	Data []uint16
}

var _ Device = (*Stack)(nil)

func (s *Stack) device() {}

func (s *Stack) Name() string {
	return "stack"
}

func (s *Stack) Push(value uint16) {
	s.Data = append(s.Data, value)
}

func (s *Stack) Pop() (value uint16, ok bool) {
	value, ok = s.Peek()
	if ok {
		s.Data = s.Data[:len(s.Data)-1]
	}
	return
}

func (s *Stack) Empty() bool {
	return len(s.Data) == 0
}

func (s *Stack) Peek() (value uint16, ok bool) {
	if s.Empty() {
		return
	}

	return s.Data[len(s.Data)-1], true
}

// Read pops a value; an empty stack reads as zero.
func (s *Stack) Read() (value uint16) {
	value, _ = s.Pop()
	return
}

// Write pushes a value.
func (s *Stack) Write(value uint16) {
	s.Push(value)
}

func (s *Stack) Reset() {
	if len(s.Data) > 0 {
		s.Data = s.Data[:0]
	}
}

// Dump yields the depth, then the entries from the top of the stack down.
func (s *Stack) Dump() iter.Seq[string] {
	return func(yield func(line string) bool) {
		if !yield(fmt.Sprintf("depth: %d", len(s.Data))) {
			return
		}
		for n := len(s.Data) - 1; n >= 0; n-- {
			if !yield(fmt.Sprintf("[%d] 0x%04X", n, s.Data[n])) {
				return
			}
		}
	}
}
