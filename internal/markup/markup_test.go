package markup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeUnescapeXML_RoundTrip(t *testing.T) {
	original := `Tom & Jerry said "hi" <there> it's fine`
	escaped := EscapeXML([]byte(original))
	assert.NotContains(t, string(escaped), "<")
	assert.NotContains(t, string(escaped), ">")

	unescaped := UnescapeXML(string(escaped))
	assert.Equal(t, original, unescaped)
}

func TestEscapeXML_AmpersandFirst(t *testing.T) {
	escaped := EscapeXML([]byte("<"))
	assert.Equal(t, "&lt;", string(escaped))
}

func TestClean_StripsHTMLTags(t *testing.T) {
	cleaned := Clean("<p>hello <b>world</b></p>")
	assert.Equal(t, "hello world", cleaned)
}

func TestClean_BlanksControlCharacters(t *testing.T) {
	cleaned := Clean("hello\x00\x01world")
	assert.Equal(t, "hello  world", cleaned)
}

func TestClean_PreservesTabsAndNewlines(t *testing.T) {
	cleaned := Clean("hello\tworld\nagain\r")
	assert.Equal(t, "hello\tworld\nagain\r", cleaned)
}

func TestClean_BlanksPrivateUseArea(t *testing.T) {
	cleaned := Clean("abc")
	assert.Equal(t, "a b c", cleaned)
}

func TestClean_BlanksNonCharacters(t *testing.T) {
	cleaned := Clean("a￾b￿c")
	assert.Equal(t, "a b c", cleaned)
}

func TestBuild_WrapsInSSMLEnvelope(t *testing.T) {
	cfg := Config{Voice: "en-US-AriaNeural", Rate: "+0%", Volume: "+0%", Pitch: "+0Hz"}
	doc := Build(cfg, []byte("hello"))
	s := string(doc)
	assert.True(t, strings.HasPrefix(s, "<speak"))
	assert.Contains(t, s, "en-US-AriaNeural")
	assert.Contains(t, s, "hello")
	assert.True(t, strings.HasSuffix(s, "</speak>"))
}

func TestMaxPayloadBytes_PositiveAndSane(t *testing.T) {
	cfg := Config{Voice: "en-US-AriaNeural", Rate: "+0%", Volume: "+0%", Pitch: "+0Hz"}
	budget := MaxPayloadBytes(cfg)
	assert.Greater(t, budget, 0)
	assert.Less(t, budget, 65536)
}

func TestFrameHeaders_ContainsPathAndBody(t *testing.T) {
	framed := FrameHeaders("req-1", "Jan 02 2006 15:04:05Z", []byte("<speak/>"))
	s := string(framed)
	assert.Contains(t, s, "X-RequestId:req-1")
	assert.Contains(t, s, "Path:ssml")
	assert.True(t, strings.HasSuffix(s, "<speak/>"))
}
