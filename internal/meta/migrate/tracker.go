package migrate

import "errors"

// step is one completed graph mutation and the operation that reverses it
type step struct {
	description string
	undo        func() error
}

// undoStack records completed mutations so a failed migration can be
// reversed in the opposite order
type undoStack struct {
	steps []step
}

func (s *undoStack) push(description string, undo func() error) {
	s.steps = append(s.steps, step{description: description, undo: undo})
}

// unwind reverses every recorded step, newest first, and keeps going past
// failures so as much state as possible is restored
func (s *undoStack) unwind() error {
	var errs []error
	for i := len(s.steps) - 1; i >= 0; i-- {
		if err := s.steps[i].undo(); err != nil {
			errs = append(errs, errors.New(s.steps[i].description+": "+err.Error()))
		}
	}
	s.steps = s.steps[:0]
	return errors.Join(errs...)
}

func (s *undoStack) clear() {
	s.steps = s.steps[:0]
}
