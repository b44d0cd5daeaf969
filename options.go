package edgetts

import (
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/umputun/edge-tts/internal/reconnect"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultReceiveTimeout = 60 * time.Second
)

// SubtitleHook is called once per WordBoundary record as the stream
// produces it, a convenience for callers rendering subtitles alongside
// the audio without needing to filter the Record channel themselves.
type SubtitleHook func(text string, offset, duration time.Duration)

// Options configures transport, retry, and instrumentation behavior
// shared across a Synthesizer's lifetime.
type Options struct {
	ConnectTimeout time.Duration
	ReceiveTimeout time.Duration
	Reconnect      reconnect.Settings
	Proxy          string
	SkewStorePath  string
	SubtitleHook   SubtitleHook
	Meter          metric.Meter
}

func defaultOptions() Options {
	return Options{
		ConnectTimeout: defaultConnectTimeout,
		ReceiveTimeout: defaultReceiveTimeout,
		Reconnect:      reconnect.DefaultSettings(),
	}
}

// Option configures a Synthesizer at construction time.
type Option func(*Options)

// WithConnectTimeout bounds how long a single channel-open attempt may take.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) { o.ConnectTimeout = d }
}

// WithReceiveTimeout bounds how long the driver waits for the next frame
// before treating the channel as stalled.
func WithReceiveTimeout(d time.Duration) Option {
	return func(o *Options) { o.ReceiveTimeout = d }
}

// WithReconnect overrides the default capped-backoff retry policy.
func WithReconnect(settings reconnect.Settings) Option {
	return func(o *Options) { o.Reconnect = settings }
}

// WithProxy routes the WebSocket dial through an HTTP or SOCKS5 proxy URL.
func WithProxy(proxyURL string) Option {
	return func(o *Options) { o.Proxy = proxyURL }
}

// WithSkewStore persists the tracked clock skew to a bbolt database at
// path, so a long-running host doesn't need to rediscover it after a
// restart.
func WithSkewStore(path string) Option {
	return func(o *Options) { o.SkewStorePath = path }
}

// WithSubtitleHook registers a callback invoked for every WordBoundary
// record, in addition to it being sent on the Record channel.
func WithSubtitleHook(hook SubtitleHook) Option {
	return func(o *Options) { o.SubtitleHook = hook }
}

// WithMeter enables OpenTelemetry counters against m. Without this
// option, no metrics are recorded.
func WithMeter(m metric.Meter) Option {
	return func(o *Options) { o.Meter = m }
}
