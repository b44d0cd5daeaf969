package edgetts

import (
	"fmt"
	"regexp"

	"github.com/hashicorp/go-multierror"

	"github.com/umputun/edge-tts/internal/markup"
)

const (
	defaultVoice  = "en-US-AriaNeural"
	defaultRate   = "+0%"
	defaultVolume = "+0%"
	defaultPitch  = "+0Hz"
)

var (
	percentExprRe = regexp.MustCompile(`^[+-]\d+%$`)
	hertzExprRe   = regexp.MustCompile(`^[+-]\d+Hz$`)
)

// Config carries the voice and prosody parameters for a synthesis
// request. Zero-valued fields fall back to Edge's defaults.
type Config struct {
	Voice  string
	Rate   string
	Volume string
	Pitch  string
}

func normalizeConfig(voice, rate, volume, pitch string) Config {
	cfg := Config{Voice: voice, Rate: rate, Volume: volume, Pitch: pitch}
	if cfg.Voice == "" {
		cfg.Voice = defaultVoice
	}
	if cfg.Rate == "" {
		cfg.Rate = defaultRate
	}
	if cfg.Volume == "" {
		cfg.Volume = defaultVolume
	}
	if cfg.Pitch == "" {
		cfg.Pitch = defaultPitch
	}
	return cfg
}

func (c Config) validate() error {
	var result *multierror.Error

	if c.Voice == "" {
		result = multierror.Append(result, fmt.Errorf("voice must not be empty"))
	}
	if !percentExprRe.MatchString(c.Rate) {
		result = multierror.Append(result, fmt.Errorf("rate %q must match %s", c.Rate, percentExprRe))
	}
	if !percentExprRe.MatchString(c.Volume) {
		result = multierror.Append(result, fmt.Errorf("volume %q must match %s", c.Volume, percentExprRe))
	}
	if !hertzExprRe.MatchString(c.Pitch) {
		result = multierror.Append(result, fmt.Errorf("pitch %q must match %s", c.Pitch, hertzExprRe))
	}

	if result == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrConfig, result)
}

func (c Config) toMarkup() markup.Config {
	return markup.Config{Voice: c.Voice, Rate: c.Rate, Volume: c.Volume, Pitch: c.Pitch}
}
