package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when a room operation runs without a live channel.
	ErrNotConnected = errors.New("not connected")
	// ErrNotOwner is returned for owner-only actions attempted by other players.
	ErrNotOwner = errors.New("only the room owner can do that")
	// ErrNotEnoughPlayers is returned when starting a game with fewer than two players.
	ErrNotEnoughPlayers = errors.New("need at least 2 players to start")
	// ErrChannelClosed is returned after a channel was disconnected.
	ErrChannelClosed = errors.New("channel closed")
)

// ConnectionError reports a transport handshake or publish failure.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// FetchError reports a failed word supply, REST, or results request.
type FetchError struct {
	Op     string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ValidationError reports input rejected before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
