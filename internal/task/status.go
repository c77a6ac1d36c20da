// Package task implements the maintenance task lifecycle: status
// transitions, the ordered deletion cascade, image attachments and the
// card presenter.
package task

import (
	"errors"
	"fmt"

	"github.com/dukerupert/manutenzioni/internal/model"
)

var (
	ErrNotFound          = errors.New("task not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type Transition string

const (
	Complete Transition = "complete"
	Restore  Transition = "restore"
	Archive  Transition = "archive"
)

var transitions = map[Transition]struct {
	from   model.Status
	to     model.Status
	action model.TaskAction
}{
	Complete: {model.StatusPending, model.StatusCompleted, model.ActionCompleted},
	Restore:  {model.StatusCompleted, model.StatusPending, model.ActionRestored},
	Archive:  {model.StatusCompleted, model.StatusArchived, model.ActionArchived},
}

// Next returns the status reached by applying tr to from. Archived is
// terminal.
func Next(from model.Status, tr Transition) (model.Status, error) {
	t, ok := transitions[tr]
	if !ok {
		return "", fmt.Errorf("%w: unknown transition %q", ErrInvalidTransition, tr)
	}
	if from != t.from {
		return "", fmt.Errorf("%w: cannot %s a task that is %s", ErrInvalidTransition, tr, from)
	}
	return t.to, nil
}

// Allowed reports whether tr can be applied to a task in status s.
func Allowed(s model.Status, tr Transition) bool {
	_, err := Next(s, tr)
	return err == nil
}

func actionFor(tr Transition) model.TaskAction {
	return transitions[tr].action
}
