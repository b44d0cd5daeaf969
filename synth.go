package edgetts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	log "github.com/go-pkgz/lgr"
	"github.com/google/uuid"

	"github.com/umputun/edge-tts/internal/chunker"
	"github.com/umputun/edge-tts/internal/markup"
	"github.com/umputun/edge-tts/internal/reconnect"
	"github.com/umputun/edge-tts/internal/session"
	"github.com/umputun/edge-tts/internal/token"
	"github.com/umputun/edge-tts/internal/wsconn"
	"github.com/umputun/edge-tts/internal/xerrors"
)

const (
	chromiumFullVersion = "134.0.3124.66"
	secMSGECVersion     = "1-" + chromiumFullVersion

	wssEndpoint = "wss://speech.platform.bing.com/consumer/speech/synthesize/readaloud/edge/v1"
	userAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/" + chromiumFullVersion + " Safari/537.36 Edg/" + chromiumFullVersion
	originHeader = "chrome-extension://jdiccldimpdaibmpdkjnbmckianbfold"
)

// Synthesizer streams synthesized audio and word-boundary metadata for one
// block of input text. Build one with NewSynthesizer and consume it once
// via Stream.
type Synthesizer struct {
	cfg    Config
	mcfg   markup.Config
	chunks [][]byte
	opts   Options

	tokens *token.Store
	policy *reconnect.Policy
	instr  *instruments

	// endpoint is the WebSocket URL new channels are dialed against; it
	// defaults to wssEndpoint and is only ever overridden by tests.
	endpoint string

	mu       sync.Mutex
	consumed bool
}

// NewSynthesizer validates voice/prosody parameters, cleans and chunks
// text, and builds a Synthesizer ready to Stream. text must not be empty
// after HTML-stripping and control-character removal.
func NewSynthesizer(text, voice, rate, volume, pitch string, opts ...Option) (*Synthesizer, error) {
	cfg := normalizeConfig(voice, rate, volume, pitch)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	mcfg := cfg.toMarkup()

	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	cleaned := markup.Clean(text)
	if strings.TrimSpace(cleaned) == "" {
		return nil, fmt.Errorf("%w: text is empty after cleaning", ErrConfig)
	}
	escaped := markup.EscapeXML([]byte(cleaned))

	budget := markup.MaxPayloadBytes(mcfg)
	chunks, err := chunker.Split(escaped, budget)
	if err != nil {
		return nil, fmt.Errorf("edgetts: chunk text: %w", err)
	}

	var tokenOpts []token.Option
	if options.SkewStorePath != "" {
		tokenOpts = append(tokenOpts, token.WithSkewPersistence(options.SkewStorePath))
	}
	tokens, err := token.NewStore(tokenOpts...)
	if err != nil {
		return nil, fmt.Errorf("edgetts: build token store: %w", err)
	}

	instr, err := newInstruments(options.Meter)
	if err != nil {
		return nil, err
	}

	log.Printf("[INFO] edgetts: prepared %d chunk(s) totaling %s for voice %s",
		len(chunks), humanize.Bytes(uint64(len(escaped))), mcfg.Voice)

	return &Synthesizer{
		cfg:      cfg,
		mcfg:     mcfg,
		chunks:   chunks,
		opts:     options,
		tokens:   tokens,
		policy:   reconnect.New(options.Reconnect),
		instr:    instr,
		endpoint: wssEndpoint,
	}, nil
}

// Close releases resources held across the Synthesizer's lifetime, such
// as a persisted clock-skew database.
func (s *Synthesizer) Close() error {
	return s.tokens.Close()
}

// Stream synthesizes every chunk in order over its own channel, emitting
// Records on the returned channel as they arrive and a single terminal
// error, if any, on the error channel. Both channels close when streaming
// ends. Stream may be called only once per Synthesizer.
func (s *Synthesizer) Stream(ctx context.Context) (<-chan Record, <-chan error) {
	recCh := make(chan Record)
	errCh := make(chan error, 1)

	s.mu.Lock()
	if s.consumed {
		s.mu.Unlock()
		close(recCh)
		errCh <- fmt.Errorf("edgetts: Stream called more than once")
		close(errCh)
		return recCh, errCh
	}
	s.consumed = true
	s.mu.Unlock()

	go s.run(ctx, recCh, errCh)

	return recCh, errCh
}

func (s *Synthesizer) run(ctx context.Context, recCh chan<- Record, errCh chan<- error) {
	defer close(recCh)
	defer close(errCh)

	var offsetCompensation int64

	for i, chunk := range s.chunks {
		next, err := s.runChunk(ctx, i, chunk, offsetCompensation, recCh)
		if err != nil {
			errCh <- err
			return
		}
		offsetCompensation = next
		s.instr.addChunk(ctx)
	}
}

// runChunk opens a channel for one chunk, retrying only the open under the
// reconnect policy (§4.7 step 2b), then drives the session exactly once.
// The driver's protocol errors are not retried: they propagate straight to
// the caller so a mid-stream failure never triggers a reconnect that would
// re-emit records already sent for this chunk (§4.8, §7).
func (s *Synthesizer) runChunk(ctx context.Context, index int, chunk []byte, offsetCompensation int64, recCh chan<- Record) (int64, error) {
	conn, requestID, err := s.openChannelWithPolicy(ctx, index)
	if err != nil {
		return 0, fmt.Errorf("edgetts: chunk %d: %w", index, err)
	}
	defer conn.Close()
	conn.WatchContext(ctx)

	driver := session.New(conn, s.mcfg, requestID)
	emit := s.emitter(ctx, recCh)

	next, err := driver.Run(chunk, offsetCompensation, emit)
	if err != nil {
		return 0, fmt.Errorf("edgetts: chunk %d: %w", index, err)
	}
	return next, nil
}

// openChannelWithPolicy opens a channel for chunk index, retrying the open
// itself with the reconnect policy's capped backoff. A 403/DRM rejection is
// additionally retried once inline, ahead of the policy's own backoff,
// after adjusting the tracked clock skew from the rejected response.
func (s *Synthesizer) openChannelWithPolicy(ctx context.Context, index int) (*wsconn.Conn, string, error) {
	drmRetried := false

	var conn *wsconn.Conn
	var requestID string
	runErr := s.policy.Execute(ctx, func(ctx context.Context) error {
		var err error
		conn, requestID, err = s.openChannel(ctx)
		if err != nil {
			var drmErr *wsconn.DRMError
			if errors.As(err, &drmErr) && !drmRetried {
				drmRetried = true
				if skewErr := s.tokens.AdjustFromResponse(drmErr.Response); skewErr != nil {
					return skewErr
				}
				log.Printf("[WARN] edgetts: chunk %d rejected with DRM error, retrying after skew adjustment", index)
				conn, requestID, err = s.openChannel(ctx)
			}
			if err != nil {
				return err
			}
		}
		return nil
	}, xerrors.ErrDRM)

	if runErr.Err != nil {
		return nil, "", runErr.Err
	}
	return conn, requestID, nil
}

func (s *Synthesizer) emitter(ctx context.Context, recCh chan<- Record) session.Emitter {
	return func(kind session.RecordKind, audio []byte, offset, duration int64, text string) error {
		rec := Record{Offset: Tick(offset), Duration: Tick(duration), Text: text}

		switch kind {
		case session.RecordAudio:
			rec.Kind = Audio
			rec.Audio = audio
			s.instr.addBytesStreamed(ctx, int64(len(audio)))
		case session.RecordWordBoundary:
			rec.Kind = WordBoundary
			if s.opts.SubtitleHook != nil {
				s.opts.SubtitleHook(text, rec.Offset.Duration(), rec.Duration.Duration())
			}
		}

		select {
		case recCh <- rec:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Synthesizer) openChannel(ctx context.Context) (*wsconn.Conn, string, error) {
	s.instr.addReconnectAttempt(ctx)

	tok, err := s.tokens.Generate()
	if err != nil {
		return nil, "", fmt.Errorf("edgetts: generate connection token: %w", err)
	}

	connectionID := newConnectionID()
	requestID := newRequestID()

	conn, err := wsconn.Dial(ctx, wsconn.DialOptions{
		URL:            s.channelURL(tok, connectionID),
		Header:         handshakeHeaders(),
		ConnectTimeout: s.opts.ConnectTimeout,
		ReceiveTimeout: s.opts.ReceiveTimeout,
		Proxy:          s.opts.Proxy,
	})
	if err != nil {
		return nil, "", err
	}
	return conn, requestID, nil
}

func newConnectionID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func newRequestID() string {
	return newConnectionID()
}

func (s *Synthesizer) channelURL(tok, connectionID string) string {
	q := url.Values{}
	q.Set("TrustedClientToken", token.TrustedClientToken)
	q.Set("ConnectionId", connectionID)
	q.Set("Sec-MS-GEC", tok)
	q.Set("Sec-MS-GEC-Version", secMSGECVersion)
	return s.endpoint + "?" + q.Encode()
}

// handshakeHeaders builds the headers sent alongside the WebSocket
// upgrade request. It deliberately omits Sec-WebSocket-Extensions,
// Sec-WebSocket-Key/Version, and Connection/Upgrade: gorilla's Dialer
// sets those itself and rejects a request header that duplicates them.
func handshakeHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", userAgent)
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Pragma", "no-cache")
	h.Set("Cache-Control", "no-cache")
	h.Set("Origin", originHeader)
	return h
}
