// Package token generates the Sec-MS-GEC connection token the speech
// service requires on every channel open, and tracks the clock skew
// between this host and the service so the token stays valid after a
// 403 rejection (§4.1).
package token

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/go-pkgz/lgr"
	lcw "github.com/go-pkgz/lcw/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/umputun/edge-tts/internal/xerrors"
)

// TrustedClientToken is Edge's hard-coded client secret, constant across
// browser releases and required as a suffix to every windowed token.
const TrustedClientToken = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"

const (
	winEpochSeconds = 11644473600 // seconds between the Windows FILETIME epoch (1601) and Unix epoch (1970)
	windowSeconds   = 300         // the token is valid for a 5-minute window
	ticksPerSecond  = 10_000_000  // 100ns ticks, the FILETIME unit

	skewBucketName = "edge-tts"
	skewKey        = "clock_skew_seconds"
)

// Store generates windowed connection tokens and tracks the accumulated
// clock skew against the service, optionally persisting skew across
// process restarts.
type Store struct {
	mu    sync.RWMutex
	skew  float64
	cache *lcw.ExpirableCache[string]
	db    *bolt.DB
}

// Option configures a Store at construction time.
type Option func(*Store) error

// WithSkewPersistence opens (creating if absent) a bbolt database at path
// and seeds the store's skew from the last persisted value.
func WithSkewPersistence(path string) Option {
	return func(s *Store) error {
		db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
		if err != nil {
			return fmt.Errorf("token: open skew database %s: %w", path, err)
		}
		s.db = db

		err = db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket([]byte(skewBucketName))
			if b == nil {
				return nil
			}
			raw := b.Get([]byte(skewKey))
			if raw == nil {
				return nil
			}
			var v float64
			if _, scanErr := fmt.Sscanf(string(raw), "%f", &v); scanErr != nil {
				return nil
			}
			s.skew = v
			return nil
		})
		if err != nil {
			return fmt.Errorf("token: read persisted skew: %w", err)
		}
		return nil
	}
}

// NewStore builds a Store with a TTL cache bounding the number of
// distinct token windows kept in memory at once.
func NewStore(opts ...Option) (*Store, error) {
	cache, err := lcw.NewExpirableCache[string](lcw.TTL[string](windowSeconds*time.Second), lcw.MaxKeys[string](4))
	if err != nil {
		return nil, fmt.Errorf("token: build cache: %w", err)
	}

	s := &Store{cache: cache}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Close releases the persistence database, if one was opened.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Skew returns the currently tracked clock skew, in seconds, positive when
// this host's clock runs behind the service's.
func (s *Store) Skew() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.skew
}

// AdjustSkew folds a newly observed delta into the tracked skew and
// persists it if a database was configured.
func (s *Store) AdjustSkew(delta float64) {
	s.mu.Lock()
	s.skew += delta
	skew := s.skew
	s.mu.Unlock()

	log.Printf("[DEBUG] token: clock skew adjusted by %.3fs, now %.3fs", delta, skew)
	s.persist(skew)
}

func (s *Store) persist(skew float64) {
	if s.db == nil {
		return
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(skewBucketName))
		if err != nil {
			return err
		}
		return b.Put([]byte(skewKey), []byte(fmt.Sprintf("%f", skew)))
	})
	if err != nil {
		log.Printf("[WARN] token: failed to persist clock skew: %v", err)
	}
}

// AdjustFromResponse derives the clock delta from a rejected handshake's
// Date header and folds it into the tracked skew. A response without a
// usable Date header is reported as an authentication failure: there is
// nothing to recover from.
func (s *Store) AdjustFromResponse(resp *http.Response) error {
	if resp == nil {
		return fmt.Errorf("%w: no response to read Date from", xerrors.ErrDRM)
	}
	dateHeader := resp.Header.Get("Date")
	if dateHeader == "" {
		return fmt.Errorf("%w: response carried no Date header", xerrors.ErrDRM)
	}
	serverTime, err := time.Parse(time.RFC1123, dateHeader)
	if err != nil {
		return fmt.Errorf("%w: unparseable Date header %q: %v", xerrors.ErrDRM, dateHeader, err)
	}
	delta := serverTime.UTC().Sub(time.Now().UTC()).Seconds()
	s.AdjustSkew(delta)
	return nil
}

// Generate computes the Sec-MS-GEC token for the current 5-minute window,
// caching by window start so repeated calls inside one window are free.
func (s *Store) Generate() (string, error) {
	start := s.windowStart()
	key := fmt.Sprintf("%d", start)

	tok, err := s.cache.Get(key, func() (string, error) {
		return s.compute(start), nil
	})
	if err != nil {
		return "", fmt.Errorf("token: generate: %w", err)
	}
	return tok, nil
}

// windowStart returns the Unix time, in seconds, of the start of the
// current 5-minute window, shifted by the tracked clock skew.
func (s *Store) windowStart() int64 {
	now := time.Now().UTC().Unix() + int64(s.Skew())
	return now - (now % windowSeconds)
}

// compute hashes the Windows-epoch tick count of windowStartSeconds
// concatenated with the trusted client token, per Edge's Sec-MS-GEC
// algorithm.
func (s *Store) compute(windowStartSeconds int64) string {
	ticks := (windowStartSeconds + winEpochSeconds) * ticksPerSecond
	input := fmt.Sprintf("%d%s", ticks, TrustedClientToken)
	sum := sha256.Sum256([]byte(input))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
