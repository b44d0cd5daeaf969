// Package markup builds the SSML document sent to the service and cleans
// caller-supplied text before it is chunked and escaped (§4.2).
package markup

import (
	"fmt"
	"strings"

	"github.com/denisbrodbeck/striphtmltags"
)

// Config carries the voice and prosody parameters baked into every SSML
// document produced for a synthesis request.
type Config struct {
	Voice  string
	Rate   string
	Volume string
	Pitch  string
}

const ssmlTemplate = `<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'>` +
	`<voice name='%s'><prosody pitch='%s' rate='%s' volume='%s'>%s</prosody></voice></speak>`

// Build wraps already-escaped text in the voice/prosody SSML envelope.
func Build(cfg Config, escapedText []byte) []byte {
	doc := fmt.Sprintf(ssmlTemplate, cfg.Voice, cfg.Pitch, cfg.Rate, cfg.Volume, escapedText)
	return []byte(doc)
}

// Clean strips HTML markup from raw input and blanks characters the service
// rejects: control characters (other than tab/CR/LF), the Unicode Private
// Use Area, and the two non-characters U+FFFE/U+FFFF.
func Clean(raw string) string {
	stripped := striphtmltags.StripTags(raw)
	return removeIncompatibleCharacters(stripped)
}

func removeIncompatibleCharacters(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			b.WriteRune(' ')
		case r >= 0xe000 && r <= 0xf8ff: // Private Use Area
			b.WriteRune(' ')
		case r == 0xfffe || r == 0xffff:
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// EscapeXML escapes the five XML predefined entities, '&' first so the
// other substitutions are not themselves re-escaped.
func EscapeXML(text []byte) []byte {
	s := string(text)
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return []byte(s)
}

// UnescapeXML reverses EscapeXML, for rendering metadata text fields back
// into their original form.
func UnescapeXML(s string) string {
	s = strings.ReplaceAll(s, "&apos;", "'")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return s
}

const placeholderReqID = "00000000000000000000000000000000"
const placeholderTimestamp = "Jan 02 2006 15:04:05Z"
const frameOverheadMargin = 50

// MaxPayloadBytes returns the largest SSML document byte-size the chunker
// may produce, derived by wrapping an empty document in the exact frame
// envelope used at send time (§4.3's budget B) and leaving a fixed margin
// for timestamp/request-id length variance.
func MaxPayloadBytes(cfg Config) int {
	const wsFrameLimit = 65536

	empty := Build(cfg, nil)
	framed := FrameHeaders(placeholderReqID, placeholderTimestamp, empty)
	overhead := len(framed)

	budget := wsFrameLimit - overhead - frameOverheadMargin
	if budget < 1 {
		budget = 1
	}
	return budget
}

// FrameHeaders renders the text-frame header block plus body used to send
// an SSML document, mirroring the headers the service expects on the "ssml"
// path (§4.6).
func FrameHeaders(requestID, timestamp string, doc []byte) []byte {
	var b strings.Builder
	b.WriteString("X-RequestId:")
	b.WriteString(requestID)
	b.WriteString("\r\n")
	b.WriteString("Content-Type:application/ssml+xml\r\n")
	b.WriteString("X-Timestamp:")
	b.WriteString(timestamp)
	b.WriteString("\r\n")
	b.WriteString("Path:ssml\r\n\r\n")
	b.Write(doc)
	return []byte(b.String())
}
