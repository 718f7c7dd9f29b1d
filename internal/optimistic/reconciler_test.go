package optimistic

import (
	"errors"
	"io"
	"slices"
	"testing"

	"vsnplyr/internal/apperr"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func appendEdit(v string) Edit[[]string] {
	return Edit[[]string]{
		Kind: KindAdd,
		Apply: func(s []string) []string {
			return append(slices.Clone(s), v)
		},
		Undo: func(s []string) []string {
			i := slices.Index(s, v)
			if i < 0 {
				return s
			}
			return slices.Delete(slices.Clone(s), i, i+1)
		},
		Settled: func(s []string) bool { return slices.Contains(s, v) },
	}
}

func TestFoldIsFIFO(t *testing.T) {
	got := Fold([]string{"base"}, []Edit[[]string]{appendEdit("a"), appendEdit("b")})
	assert.Equal(t, []string{"base", "a", "b"}, got)
}

func TestBeginUpdatesVisibleImmediately(t *testing.T) {
	r := New([]string{"x"}, quietLogger())
	r.Begin(appendEdit("y"))

	assert.Equal(t, []string{"x", "y"}, r.Visible())
	assert.Equal(t, []string{"x"}, r.Confirmed())
	assert.Equal(t, 1, r.Pending())
}

func TestFailedEditRollsBackToPriorVisible(t *testing.T) {
	r := New([]string{"x"}, quietLogger())
	before := r.Visible()

	id := r.Begin(appendEdit("y"))
	cause := apperr.ErrDuplicateMember
	err := r.Resolve(id, cause)

	var rf *apperr.RemoteFailure
	require.True(t, errors.As(err, &rf))
	assert.ErrorIs(t, err, apperr.ErrDuplicateMember)
	assert.Equal(t, before, r.Visible())
	assert.Zero(t, r.Pending())
}

func TestRollbackOfMiddleEditRefolds(t *testing.T) {
	r := New([]string{}, quietLogger())
	first := r.Begin(appendEdit("a"))
	r.Begin(appendEdit("b"))

	require.Error(t, r.Resolve(first, errors.New("offline")))
	assert.Equal(t, []string{"b"}, r.Visible())
	assert.Equal(t, 1, r.Pending())
}

// frontEdit moves v to the front; Undo moves it back to index from.
func frontEdit(v string, from int) Edit[[]string] {
	move := func(s []string, to int) []string {
		i := slices.Index(s, v)
		if i < 0 || to >= len(s) {
			return s
		}
		out := slices.Delete(slices.Clone(s), i, i+1)
		return slices.Insert(out, to, v)
	}
	return Edit[[]string]{
		Kind:  KindMove,
		Apply: func(s []string) []string { return move(s, 0) },
		Undo:  func(s []string) []string { return move(s, from) },
	}
}

func TestFailedTailEditUndoesWhenBaseUnchanged(t *testing.T) {
	r := New([]string{"a", "b", "c"}, quietLogger())
	id := r.Begin(frontEdit("c", 2))
	require.Equal(t, []string{"c", "a", "b"}, r.Visible())

	require.Error(t, r.Resolve(id, errors.New("offline")))
	assert.Equal(t, []string{"a", "b", "c"}, r.Visible())
}

func TestFailedTailEditRefoldsAfterNewBase(t *testing.T) {
	r := New([]string{"a", "b", "c"}, quietLogger())
	id := r.Begin(frontEdit("c", 2))

	r.Confirm([]string{"a", "c"})
	require.Equal(t, []string{"c", "a"}, r.Visible())

	require.Error(t, r.Resolve(id, errors.New("offline")))
	assert.Equal(t, []string{"a", "c"}, r.Visible())
	assert.Equal(t, r.Confirmed(), r.Visible())
	assert.Zero(t, r.Pending())
}

func TestRetireOnResolve(t *testing.T) {
	r := New([]string{}, quietLogger())
	e := appendEdit("tmp")
	e.RetireOnResolve = true
	id := r.Begin(e)

	require.NoError(t, r.Resolve(id, nil))
	assert.Zero(t, r.Pending())
	assert.Empty(t, r.Visible(), "confirmed base has not caught up yet")

	r.Confirm([]string{"real"})
	assert.Equal(t, []string{"real"}, r.Visible())
}

func TestSettledEditRetiresWhenBaseReflectsIt(t *testing.T) {
	r := New([]string{}, quietLogger())
	id := r.Begin(appendEdit("a"))

	// A base that does not yet reflect the edit keeps it pending.
	r.Confirm([]string{"other"})
	assert.Equal(t, []string{"other", "a"}, r.Visible())

	require.NoError(t, r.Resolve(id, nil))
	assert.Equal(t, 1, r.Pending())

	r.Confirm([]string{"other", "a"})
	assert.Zero(t, r.Pending())
	assert.Equal(t, []string{"other", "a"}, r.Visible())
}

func TestResolveRetiresWhenBaseAlreadySettled(t *testing.T) {
	r := New([]string{}, quietLogger())
	id := r.Begin(appendEdit("a"))

	// The subscription delivered the write before the call returned.
	r.Confirm([]string{"a"})
	assert.Equal(t, 1, r.Pending(), "unresolved edits are never retired by a base")
	assert.Equal(t, []string{"a", "a"}, r.Visible())

	require.NoError(t, r.Resolve(id, nil))
	assert.Zero(t, r.Pending())
	assert.Equal(t, []string{"a"}, r.Visible())
}

func TestEditWithoutSettledRetiresOnNextBase(t *testing.T) {
	r := New([]string{}, quietLogger())
	e := appendEdit("a")
	e.Settled = nil
	id := r.Begin(e)

	require.NoError(t, r.Resolve(id, nil))
	assert.Equal(t, 1, r.Pending())

	r.Confirm([]string{"a"})
	assert.Zero(t, r.Pending())
}

func TestResolveUnknownIDIsIgnored(t *testing.T) {
	r := New([]string{}, quietLogger())
	assert.NoError(t, r.Resolve("nope", errors.New("x")))
}

func TestSubscribeDeliversLatestValue(t *testing.T) {
	r := New([]string{}, quietLogger())
	ch := r.Subscribe()
	assert.Empty(t, <-ch)

	r.Begin(appendEdit("a"))
	r.Begin(appendEdit("b"))
	assert.Equal(t, []string{"a", "b"}, <-ch, "intermediate states are replaced")

	r.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok)
}
