// Package apperr defines the error taxonomy shared by the store, the
// gateway, the RPC transport and the client session.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound reports that a playlist, song, membership or sequence member does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateMember reports that a song is already a member of the playlist.
	ErrDuplicateMember = errors.New("song is already in playlist")
	// ErrPositionOutOfRange reports a target position outside the current sequence bounds.
	ErrPositionOutOfRange = errors.New("position out of range")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
)

// Kinds of entities a NotFoundError can name.
const (
	KindPlaylist   = "playlist"
	KindSong       = "song"
	KindMembership = "membership"
	KindMember     = "member"
)

// NotFoundError names the missing entity. It matches ErrNotFound.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Kind + " not found"
	}
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// PlaylistNotFound returns a NotFoundError for a playlist.
func PlaylistNotFound(id string) error {
	return &NotFoundError{Kind: KindPlaylist, ID: id}
}

// SongNotFound returns a NotFoundError for a song.
func SongNotFound(id string) error {
	return &NotFoundError{Kind: KindSong, ID: id}
}

// MembershipNotFound returns a NotFoundError for a membership record.
func MembershipNotFound(id string) error {
	return &NotFoundError{Kind: KindMembership, ID: id}
}

// MemberNotFound returns a NotFoundError for a member missing from an ordered sequence.
func MemberNotFound(member string) error {
	return &NotFoundError{Kind: KindMember, ID: member}
}

// ValidationError describes a rejected input field. It matches ErrValidation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError.
func Invalid(field, code, message string) *ValidationError {
	return &ValidationError{Field: field, Code: code, Message: message}
}

// RemoteFailure wraps an error returned by the remote store after the
// optimistic change it backed has been rolled back.
type RemoteFailure struct {
	Op  string
	Err error
}

func (e *RemoteFailure) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *RemoteFailure) Unwrap() error {
	return e.Err
}

// Wire codes.
const (
	CodeNotFound           = "not_found"
	CodeDuplicateMember    = "duplicate_member"
	CodePositionOutOfRange = "position_out_of_range"
	CodeValidation         = "validation"
	CodeRemoteFailure      = "remote_failure"
)

// Code maps err to its wire code.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrDuplicateMember):
		return CodeDuplicateMember
	case errors.Is(err, ErrPositionOutOfRange):
		return CodePositionOutOfRange
	case errors.Is(err, ErrValidation):
		return CodeValidation
	default:
		return CodeRemoteFailure
	}
}

// HTTPStatus maps err to the status code the RPC server answers with.
func HTTPStatus(err error) int {
	switch Code(err) {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeDuplicateMember:
		return http.StatusConflict
	case CodePositionOutOfRange:
		return http.StatusUnprocessableEntity
	case CodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Decoded is an error rebuilt from its wire form.
type Decoded struct {
	Code    string
	Message string
	Field   string
}

func (e *Decoded) Error() string {
	return e.Message
}

func (e *Decoded) Is(target error) bool {
	switch e.Code {
	case CodeNotFound:
		return target == ErrNotFound
	case CodeDuplicateMember:
		return target == ErrDuplicateMember
	case CodePositionOutOfRange:
		return target == ErrPositionOutOfRange
	case CodeValidation:
		return target == ErrValidation
	}
	return false
}

// FromCode rebuilds an error received over the wire so errors.Is keeps
// working on the client side.
func FromCode(code, message, field string) error {
	if code == CodeValidation {
		return &ValidationError{Field: field, Code: code, Message: message}
	}
	return &Decoded{Code: code, Message: message, Field: field}
}
