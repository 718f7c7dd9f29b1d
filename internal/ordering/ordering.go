// Package ordering implements the position algorithms for the members of
// one ordered collection. Every function is pure: inputs are never
// modified and results are sorted by ascending position.
package ordering

import (
	"sort"

	"vsnplyr/internal/apperr"
)

// Base is the position of the first member of a dense sequence.
const Base = 1

// Entry is one member of a collection and its position.
type Entry struct {
	Member   string `json:"member"`
	Position int    `json:"position"`
}

// Sequence is the membership of one collection.
type Sequence []Entry

// PositionUpdate is a member whose stored position must change.
type PositionUpdate struct {
	Member   string `json:"member"`
	Position int    `json:"position"`
}

// InsertAtEnd appends member after the current maximum position, or at
// Base when the sequence is empty.
func InsertAtEnd(s Sequence, member string) (Sequence, error) {
	if IndexOf(s, member) >= 0 {
		return nil, apperr.ErrDuplicateMember
	}
	next := Base
	if _, max, ok := Bounds(s); ok {
		next = max + 1
	}
	out := sorted(s)
	return append(out, Entry{Member: member, Position: next}), nil
}

// RemoveAndCompact removes member and shifts every later member back by one.
func RemoveAndCompact(s Sequence, member string) (Sequence, error) {
	i := IndexOf(s, member)
	if i < 0 {
		return nil, apperr.MemberNotFound(member)
	}
	removed := s[i].Position

	out := make(Sequence, 0, len(s)-1)
	for j, e := range s {
		if j == i {
			continue
		}
		if e.Position > removed {
			e.Position--
		}
		out = append(out, e)
	}
	sortByPosition(out)
	return out, nil
}

// MoveToPosition moves member to newPos, shifting the members in between
// by one toward the vacated slot. newPos must lie within the current
// minimum and maximum positions.
func MoveToPosition(s Sequence, member string, newPos int) (Sequence, error) {
	i := IndexOf(s, member)
	if i < 0 {
		return nil, apperr.MemberNotFound(member)
	}
	min, max, _ := Bounds(s)
	if newPos < min || newPos > max {
		return nil, apperr.ErrPositionOutOfRange
	}

	oldPos := s[i].Position
	out := make(Sequence, len(s))
	copy(out, s)
	if newPos == oldPos {
		sortByPosition(out)
		return out, nil
	}

	for j := range out {
		p := out[j].Position
		switch {
		case j == i:
			out[j].Position = newPos
		case newPos > oldPos && p > oldPos && p <= newPos:
			out[j].Position = p - 1
		case newPos < oldPos && p >= newPos && p < oldPos:
			out[j].Position = p + 1
		}
	}
	sortByPosition(out)
	return out, nil
}

// BatchReassign sets the given positions verbatim. Duplicate positions and
// gaps are accepted; callers that need a dense result check it with
// ValidateDensity. Every assigned member must already be in s.
func BatchReassign(s Sequence, assignments map[string]int) (Sequence, error) {
	out := make(Sequence, len(s))
	copy(out, s)

	index := make(map[string]int, len(out))
	for i, e := range out {
		index[e.Member] = i
	}
	for member, pos := range assignments {
		i, ok := index[member]
		if !ok {
			return nil, apperr.MemberNotFound(member)
		}
		out[i].Position = pos
	}
	sortByPosition(out)
	return out, nil
}

// Normalize renumbers s to Base..n keeping the current relative order.
// Ties keep their existing order.
func Normalize(s Sequence) Sequence {
	out := sorted(s)
	for i := range out {
		out[i].Position = Base + i
	}
	return out
}

// Diff returns the members of after whose position differs from before,
// in ascending position order. Members missing from before are included.
func Diff(before, after Sequence) []PositionUpdate {
	prev := make(map[string]int, len(before))
	for _, e := range before {
		prev[e.Member] = e.Position
	}
	var updates []PositionUpdate
	for _, e := range sorted(after) {
		if p, ok := prev[e.Member]; ok && p == e.Position {
			continue
		}
		updates = append(updates, PositionUpdate{Member: e.Member, Position: e.Position})
	}
	return updates
}

// Adjacent returns the member immediately after (next) or before (prev)
// position. ok is false when there is no such member.
func Adjacent(s Sequence, position int, next bool) (Entry, bool) {
	var best Entry
	found := false
	for _, e := range s {
		if next && e.Position > position && (!found || e.Position < best.Position) {
			best, found = e, true
		}
		if !next && e.Position < position && (!found || e.Position > best.Position) {
			best, found = e, true
		}
	}
	return best, found
}

// Bounds returns the minimum and maximum positions of s.
func Bounds(s Sequence) (min, max int, ok bool) {
	if len(s) == 0 {
		return 0, 0, false
	}
	min, max = s[0].Position, s[0].Position
	for _, e := range s[1:] {
		if e.Position < min {
			min = e.Position
		}
		if e.Position > max {
			max = e.Position
		}
	}
	return min, max, true
}

// IndexOf returns the index of member in s, or -1.
func IndexOf(s Sequence, member string) int {
	for i, e := range s {
		if e.Member == member {
			return i
		}
	}
	return -1
}

// Members returns the members of s in ascending position order.
func Members(s Sequence) []string {
	out := make([]string, 0, len(s))
	for _, e := range sorted(s) {
		out = append(out, e.Member)
	}
	return out
}

func sorted(s Sequence) Sequence {
	out := make(Sequence, len(s), len(s)+1)
	copy(out, s)
	sortByPosition(out)
	return out
}

func sortByPosition(s Sequence) {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Position < s[j].Position
	})
}
