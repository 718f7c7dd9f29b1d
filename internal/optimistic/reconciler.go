// Package optimistic keeps a visible state that runs ahead of a confirmed
// remote state. Each tentative change is an Edit held in a FIFO log; the
// visible state is always the fold of the log over the confirmed base.
package optimistic

import (
	"sync"

	"vsnplyr/internal/apperr"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Kind labels an edit for logging and retirement policy.
type Kind string

const (
	KindAdd     Kind = "add"
	KindUpdate  Kind = "update"
	KindDelete  Kind = "delete"
	KindRemove  Kind = "remove"
	KindMove    Kind = "move"
	KindReorder Kind = "reorder"
)

// Edit is a tentative change. Apply and Undo must not modify their
// argument and must tolerate states where the edit no longer applies,
// returning the state unchanged.
type Edit[S any] struct {
	// ID correlates the edit with its remote call; generated when empty.
	ID   string
	Kind Kind
	// Op names the remote operation, used in RemoteFailure.
	Op    string
	Apply func(S) S
	// Undo reverts Apply; when nil a rollback re-folds the log.
	Undo func(S) S
	// Settled reports whether a confirmed base already reflects the edit.
	// When nil, the first base confirmed after success retires it.
	Settled func(S) bool
	// RetireOnResolve drops the edit as soon as the remote call succeeds.
	// Used for adds, whose placeholder identity never matches the real one.
	RetireOnResolve bool
}

type entry[S any] struct {
	edit     Edit[S]
	resolved bool
	// base is the confirmation count when the edit began.
	base     uint64
}

// Reconciler owns one confirmed base and its pending log. All methods are
// safe for concurrent use.
type Reconciler[S any] struct {
	mutex     sync.Mutex
	confirmed S
	pending   []*entry[S]
	visible   S
	// bases counts Confirm calls; Undo is only valid against the base
	// the edit was applied over.
	bases     uint64
	listeners []chan S
	logger    *logrus.Logger
}

// New creates a reconciler whose confirmed and visible states are base.
func New[S any](base S, logger *logrus.Logger) *Reconciler[S] {
	return &Reconciler[S]{
		confirmed: base,
		visible:   base,
		logger:    logger,
	}
}

// Fold applies edits to base in order.
func Fold[S any](base S, edits []Edit[S]) S {
	s := base
	for _, e := range edits {
		s = e.Apply(s)
	}
	return s
}

// Visible returns the current visible state.
func (r *Reconciler[S]) Visible() S {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.visible
}

// Confirmed returns the last confirmed base.
func (r *Reconciler[S]) Confirmed() S {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.confirmed
}

// Pending returns the number of edits in the log.
func (r *Reconciler[S]) Pending() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.pending)
}

// Begin appends e to the log and applies it to the visible state. It
// returns the edit's correlation ID.
func (r *Reconciler[S]) Begin(e Edit[S]) string {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.pending = append(r.pending, &entry[S]{edit: e, base: r.bases})
	r.visible = e.Apply(r.visible)
	r.notifyListeners()

	r.logger.WithFields(logrus.Fields{
		"edit_id": e.ID,
		"kind":    e.Kind,
		"pending": len(r.pending),
	}).Debug("Applied optimistic edit")
	return e.ID
}

// Resolve records the outcome of the remote call behind edit id. On
// success the edit is retired according to its policy. On failure the
// edit is rolled back and a *apperr.RemoteFailure wrapping err is
// returned. Unknown IDs are ignored.
func (r *Reconciler[S]) Resolve(id string, err error) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return nil
	}
	e := r.pending[i]

	if err == nil {
		e.resolved = true
		if e.edit.RetireOnResolve || (e.edit.Settled != nil && e.edit.Settled(r.confirmed)) {
			r.remove(i)
			r.refold()
			r.notifyListeners()
		}
		return nil
	}

	tail := i == len(r.pending)-1
	r.remove(i)
	if tail && e.edit.Undo != nil && e.base == r.bases {
		r.visible = e.edit.Undo(r.visible)
	} else {
		r.refold()
	}
	r.notifyListeners()

	r.logger.WithError(err).WithFields(logrus.Fields{
		"edit_id": e.edit.ID,
		"kind":    e.edit.Kind,
	}).Warn("Rolled back optimistic edit")

	op := e.edit.Op
	if op == "" {
		op = string(e.edit.Kind)
	}
	return &apperr.RemoteFailure{Op: op, Err: err}
}

// Confirm replaces the confirmed base, retires resolved edits the base
// now reflects and recomputes the visible state.
func (r *Reconciler[S]) Confirm(base S) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.confirmed = base
	r.bases++
	kept := r.pending[:0]
	for _, e := range r.pending {
		if e.resolved && (e.edit.Settled == nil || e.edit.Settled(base)) {
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(r.pending); i++ {
		r.pending[i] = nil
	}
	r.pending = kept
	r.refold()
	r.notifyListeners()
}

// Subscribe returns a channel that always holds the latest visible state.
// It receives the current state immediately.
func (r *Reconciler[S]) Subscribe() <-chan S {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch := make(chan S, 1)
	ch <- r.visible
	r.listeners = append(r.listeners, ch)
	return ch
}

// Unsubscribe removes a listener and closes its channel.
func (r *Reconciler[S]) Unsubscribe(ch <-chan S) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, listener := range r.listeners {
		if listener == ch {
			close(listener)
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			break
		}
	}
}

// Close closes every listener channel.
func (r *Reconciler[S]) Close() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, listener := range r.listeners {
		close(listener)
	}
	r.listeners = nil
}

// notifyListeners replaces any undelivered value with the current visible
// state (must be called with lock held).
func (r *Reconciler[S]) notifyListeners() {
	for _, listener := range r.listeners {
		select {
		case <-listener:
		default:
		}
		listener <- r.visible
	}
}

// refold recomputes visible from confirmed (must be called with lock held).
func (r *Reconciler[S]) refold() {
	s := r.confirmed
	for _, e := range r.pending {
		s = e.edit.Apply(s)
	}
	r.visible = s
}

func (r *Reconciler[S]) indexOf(id string) int {
	for i, e := range r.pending {
		if e.edit.ID == id {
			return i
		}
	}
	return -1
}

func (r *Reconciler[S]) remove(i int) {
	copy(r.pending[i:], r.pending[i+1:])
	r.pending[len(r.pending)-1] = nil
	r.pending = r.pending[:len(r.pending)-1]
}
