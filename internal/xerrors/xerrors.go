// Package xerrors holds the sentinel errors shared across the core's
// internal packages and re-exported from the root package, so a wrapped
// error can cross a package boundary without creating an import cycle back
// to the public API.
package xerrors

import "errors"

var (
	// ErrWebSocket is a channel open timeout, transport-level failure, or abrupt close.
	ErrWebSocket = errors.New("websocket error")

	// ErrUnexpectedResponse is a well-formed frame whose contents violate the protocol contract.
	ErrUnexpectedResponse = errors.New("unexpected response")

	// ErrUnknownResponse is a frame with recognized structure but an unrecognized Path or metadata Type.
	ErrUnknownResponse = errors.New("unknown response")

	// ErrNoAudioReceived is a channel that reached turn.end without any audio frame.
	ErrNoAudioReceived = errors.New("no audio received")

	// ErrConfig is caller-supplied parameters failing validation.
	ErrConfig = errors.New("invalid configuration")

	// ErrDRM is an authentication failure (403-equivalent).
	ErrDRM = errors.New("authentication failure")
)
