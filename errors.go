package edgetts

import "github.com/umputun/edge-tts/internal/xerrors"

// Sentinel errors returned (possibly wrapped) by Synthesizer methods.
// Use errors.Is to test for a specific failure category.
var (
	// ErrWebSocket is a channel open timeout, transport-level failure, or abrupt close.
	ErrWebSocket = xerrors.ErrWebSocket

	// ErrUnexpectedResponse is a well-formed frame whose contents violate the protocol contract.
	ErrUnexpectedResponse = xerrors.ErrUnexpectedResponse

	// ErrUnknownResponse is a frame with recognized structure but an unrecognized Path or metadata Type.
	ErrUnknownResponse = xerrors.ErrUnknownResponse

	// ErrNoAudioReceived is a channel that reached turn.end without any audio frame.
	ErrNoAudioReceived = xerrors.ErrNoAudioReceived

	// ErrConfig is caller-supplied parameters failing validation.
	ErrConfig = xerrors.ErrConfig

	// ErrDRM is an authentication failure the client could not recover from after adjusting clock skew.
	ErrDRM = xerrors.ErrDRM
)
