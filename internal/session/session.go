// Package session drives a single synthesis channel from speech.config
// through one or more ssml requests to turn.end, dispatching audio and
// word-boundary frames to an Emitter and threading the timeline offset a
// caller needs to stitch multiple chunks back-to-back (§4.6).
package session

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/go-pkgz/lgr"

	"github.com/umputun/edge-tts/internal/frame"
	"github.com/umputun/edge-tts/internal/markup"
	"github.com/umputun/edge-tts/internal/wsconn"
	"github.com/umputun/edge-tts/internal/xerrors"
)

// interChunkSilenceTicks is the fixed gap inserted between chunks so their
// audio timelines never overlap, expressed in 100ns ticks.
const interChunkSilenceTicks int64 = 8_750_000

// Conn is the subset of *wsconn.Conn the driver needs; satisfied
// structurally so tests can substitute a fake transport.
type Conn interface {
	WriteText(data []byte) error
	ReadFrame() (wsconn.MessageType, []byte, error)
}

// RecordKind classifies a value handed to an Emitter.
type RecordKind int

const (
	RecordAudio RecordKind = iota
	RecordWordBoundary
)

// Emitter receives decoded audio bytes or word-boundary metadata as the
// driver reads them off the wire. offset and duration are in 100ns ticks,
// already adjusted by the caller's offsetCompensation.
type Emitter func(kind RecordKind, audio []byte, offset, duration int64, text string) error

// Driver runs the speech.config / ssml / turn.end protocol over one open
// channel for a single text chunk.
type Driver struct {
	conn      Conn
	cfg       markup.Config
	requestID string
}

// New builds a Driver bound to an already-open channel.
func New(conn Conn, cfg markup.Config, requestID string) *Driver {
	return &Driver{conn: conn, cfg: cfg, requestID: requestID}
}

// Run sends the config and ssml frames for chunk, reads until turn.end, and
// returns the offset compensation the next chunk on a fresh channel should
// use, threading onward from this chunk's last word-boundary offset plus
// the fixed inter-chunk silence.
func (d *Driver) Run(chunk []byte, offsetCompensation int64, emit Emitter) (int64, error) {
	if err := d.sendConfig(); err != nil {
		return 0, err
	}
	if err := d.sendMarkup(chunk); err != nil {
		return 0, err
	}

	var (
		audioReceived   bool
		lastDurationEnd int64
	)

	for {
		mt, data, err := d.conn.ReadFrame()
		if err != nil {
			return 0, fmt.Errorf("%w: reading channel: %v", xerrors.ErrWebSocket, err)
		}

		switch mt {
		case wsconn.TextMessage:
			headers, body, decodeErr := frame.DecodeText(data)
			if decodeErr != nil {
				return 0, fmt.Errorf("%w: %v", xerrors.ErrUnexpectedResponse, decodeErr)
			}

			switch headers["Path"] {
			case "response", "turn.start":
				// acknowledgement frames carry nothing the driver needs
			case "audio.metadata":
				lastDurationEnd, err = d.handleMetadata(body, offsetCompensation, lastDurationEnd, emit)
				if err != nil {
					return 0, err
				}
			case "turn.end":
				if !audioReceived {
					return 0, xerrors.ErrNoAudioReceived
				}
				return lastDurationEnd + interChunkSilenceTicks, nil
			default:
				log.Printf("[WARN] session: unrecognized frame path %q", headers["Path"])
				return 0, fmt.Errorf("%w: path %q", xerrors.ErrUnknownResponse, headers["Path"])
			}

		case wsconn.BinaryMessage:
			headers, body, decodeErr := frame.DecodeBinary(data)
			if decodeErr != nil {
				return 0, fmt.Errorf("%w: %v", xerrors.ErrUnexpectedResponse, decodeErr)
			}

			contentType := headers["Content-Type"]
			switch {
			case headers["Path"] != "audio" && contentType == "" && len(body) == 0:
				// no audio payload and no Path: audio, nothing to do
			case headers["Path"] != "audio":
				return 0, fmt.Errorf("%w: binary frame with path %q", xerrors.ErrUnknownResponse, headers["Path"])
			case contentType == "" && len(body) > 0:
				return 0, fmt.Errorf("%w: binary frame carries audio with no Content-Type", xerrors.ErrUnexpectedResponse)
			case contentType != "" && len(body) == 0:
				return 0, fmt.Errorf("%w: binary frame declares %q with an empty body", xerrors.ErrUnexpectedResponse, contentType)
			case contentType != "audio/mpeg":
				return 0, fmt.Errorf("%w: unexpected binary Content-Type %q", xerrors.ErrUnexpectedResponse, contentType)
			default:
				audioReceived = true
				if err := emit(RecordAudio, body, 0, 0, ""); err != nil {
					return 0, fmt.Errorf("session: emit audio: %w", err)
				}
			}

		default:
			return 0, fmt.Errorf("%w: unexpected websocket frame type %d", xerrors.ErrUnexpectedResponse, mt)
		}
	}
}

func (d *Driver) sendConfig() error {
	body, err := sonic.Marshal(speechConfigBody{
		Context: speechContext{
			Synthesis: speechSynthesis{
				Audio: speechAudio{
					MetadataOptions: speechMetadataOptions{
						SentenceBoundaryEnabled: "false",
						WordBoundaryEnabled:     "true",
					},
					OutputFormat: "audio-24khz-48kbitrate-mono-mp3",
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("session: marshal speech config: %w", err)
	}

	lines := []frame.HeaderLine{
		{Key: "X-Timestamp", Value: jsTimestamp()},
		{Key: "Content-Type", Value: "application/json; charset=utf-8"},
		{Key: "Path", Value: "speech.config"},
	}
	return d.conn.WriteText(frame.BuildText(lines, body))
}

func (d *Driver) sendMarkup(chunk []byte) error {
	doc := markup.Build(d.cfg, chunk)
	lines := []frame.HeaderLine{
		{Key: "X-RequestId", Value: d.requestID},
		{Key: "Content-Type", Value: "application/ssml+xml"},
		{Key: "X-Timestamp", Value: jsTimestamp() + "Z"},
		{Key: "Path", Value: "ssml"},
	}
	return d.conn.WriteText(frame.BuildText(lines, doc))
}

// handleMetadata decodes an audio.metadata frame and emits one
// RecordWordBoundary per WordBoundary entry. It returns the updated
// lastDurationEnd: SessionEnd entries are ignored and never reset it, so a
// frame carrying only SessionEnd leaves the running offset untouched.
func (d *Driver) handleMetadata(body []byte, offsetCompensation, lastDurationEnd int64, emit Emitter) (int64, error) {
	var msg metadataMessage
	if err := sonic.Unmarshal(body, &msg); err != nil {
		return lastDurationEnd, fmt.Errorf("%w: parsing audio.metadata: %v", xerrors.ErrUnexpectedResponse, err)
	}

	for _, entry := range msg.Metadata {
		switch entry.Type {
		case "WordBoundary":
			offset := entry.Data.Offset + offsetCompensation
			duration := entry.Data.Duration
			lastDurationEnd = entry.Data.Offset + duration
			if err := emit(RecordWordBoundary, nil, offset, duration, markup.UnescapeXML(entry.Data.Text.Text)); err != nil {
				return lastDurationEnd, fmt.Errorf("session: emit word boundary: %w", err)
			}
		case "SessionEnd":
			// carries no timeline information
		default:
			return lastDurationEnd, fmt.Errorf("%w: metadata type %q", xerrors.ErrUnknownResponse, entry.Type)
		}
	}

	return lastDurationEnd, nil
}

func jsTimestamp() string {
	return time.Now().UTC().Format("Jan 02 2006 15:04:05")
}

type speechConfigBody struct {
	Context speechContext `json:"context"`
}

type speechContext struct {
	Synthesis speechSynthesis `json:"synthesis"`
}

type speechSynthesis struct {
	Audio speechAudio `json:"audio"`
}

type speechAudio struct {
	MetadataOptions speechMetadataOptions `json:"metadataoptions"`
	OutputFormat    string                `json:"outputFormat"`
}

type speechMetadataOptions struct {
	SentenceBoundaryEnabled string `json:"sentenceBoundaryEnabled"`
	WordBoundaryEnabled     string `json:"wordBoundaryEnabled"`
}

type metadataMessage struct {
	Metadata []metadataEntry `json:"Metadata"`
}

type metadataEntry struct {
	Type string            `json:"Type"`
	Data metadataEntryData `json:"Data"`
}

type metadataEntryData struct {
	Offset   int64        `json:"Offset"`
	Duration int64        `json:"Duration"`
	Text     metadataText `json:"text"`
}

type metadataText struct {
	Text string `json:"Text"`
}
