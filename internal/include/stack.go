package include

// Stack is the ordered set of page names on the active include path.
// It belongs to a single composition and is not safe for concurrent use.
type Stack struct {
	names []string
	index map[string]int
}

func NewStack() *Stack {
	return &Stack{index: make(map[string]int)}
}

// Push adds name and returns the func that removes it again. Callers defer
// the returned func so the entry is released on every exit path.
func (s *Stack) Push(name string) (pop func()) {
	s.index[name] = len(s.names)
	s.names = append(s.names, name)
	return func() {
		delete(s.index, name)
		s.names = s.names[:len(s.names)-1]
	}
}

func (s *Stack) Contains(name string) bool {
	_, ok := s.index[name]
	return ok
}

func (s *Stack) Len() int { return len(s.names) }

// Names returns a copy of the stack, outermost page first.
func (s *Stack) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}
