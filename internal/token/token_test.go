package token

import (
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexTokenRe = regexp.MustCompile(`^[0-9A-F]{64}$`)

func TestGenerate_ProducesUppercaseHexToken(t *testing.T) {
	s, err := NewStore()
	require.NoError(t, err)
	defer s.Close()

	tok, err := s.Generate()
	require.NoError(t, err)
	assert.Regexp(t, hexTokenRe, tok)
}

func TestGenerate_SameWindowIsCached(t *testing.T) {
	s, err := NewStore()
	require.NoError(t, err)
	defer s.Close()

	first, err := s.Generate()
	require.NoError(t, err)
	second, err := s.Generate()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAdjustSkew_ChangesSubsequentWindow(t *testing.T) {
	s, err := NewStore()
	require.NoError(t, err)
	defer s.Close()

	before := s.windowStart()
	s.AdjustSkew(3600)
	after := s.windowStart()
	assert.Greater(t, after, before)
}

func TestAdjustFromResponse_ParsesDateHeader(t *testing.T) {
	s, err := NewStore()
	require.NoError(t, err)
	defer s.Close()

	future := time.Now().UTC().Add(10 * time.Minute)
	resp := &http.Response{Header: http.Header{"Date": []string{future.Format(time.RFC1123)}}}

	err = s.AdjustFromResponse(resp)
	require.NoError(t, err)
	assert.Greater(t, s.Skew(), 0.0)
}

func TestAdjustFromResponse_MissingDateIsDRMError(t *testing.T) {
	s, err := NewStore()
	require.NoError(t, err)
	defer s.Close()

	err = s.AdjustFromResponse(&http.Response{Header: http.Header{}})
	require.Error(t, err)
}

func TestAdjustFromResponse_UnparseableDateIsDRMError(t *testing.T) {
	s, err := NewStore()
	require.NoError(t, err)
	defer s.Close()

	resp := &http.Response{Header: http.Header{"Date": []string{"not-a-date"}}}
	err = s.AdjustFromResponse(resp)
	require.Error(t, err)
}
