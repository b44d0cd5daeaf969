// Package edgetts streams synthesized speech from Microsoft Edge's
// public read-aloud service over its WebSocket protocol.
//
// A Synthesizer is built from text plus voice/prosody parameters and
// streams Records — audio bytes and word-boundary timing metadata — over
// a channel as they arrive, reconnecting transparently across an internal
// auth failure or transport error and stitching multiple text chunks into
// one continuous timeline. Callers are responsible for everything outside
// that contract: command-line parsing, writing audio to a file, and
// rendering word-boundary records as subtitles are left to the caller, as
// this package has no knowledge of any of them.
package edgetts
