// Package frame implements the two wire encodings used by the speech
// service: CRLF-delimited text frames and length-prefixed binary frames
// carrying a header block plus an audio body (§4.4).
package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrNoDelimiter is a text frame missing the header/body separator.
	ErrNoDelimiter = errors.New("frame: no header/body delimiter found")

	// ErrBinaryTooShort is a binary frame shorter than the 2-byte length prefix.
	ErrBinaryTooShort = errors.New("frame: binary frame shorter than header-length prefix")

	// ErrBinaryHeaderOverflow is a declared header length that runs past the frame.
	ErrBinaryHeaderOverflow = errors.New("frame: declared header length overflows frame")
)

const (
	headerLenBytes = 2
	crlf           = "\r\n"
	headerSep      = crlf + crlf
)

// HeaderLine is a single "Key:Value" line of a frame header block.
type HeaderLine struct {
	Key   string
	Value string
}

// Headers is a decoded frame header block, keyed case-sensitively as the
// service sends it (e.g. "Path", "X-RequestId").
type Headers map[string]string

// BuildText assembles a text frame: each header line, a blank line, then body.
func BuildText(lines []HeaderLine, body []byte) []byte {
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l.Key)
		buf.WriteByte(':')
		buf.WriteString(l.Value)
		buf.WriteString(crlf)
	}
	buf.WriteString(crlf)
	buf.Write(body)
	return buf.Bytes()
}

// DecodeText splits a text frame at the first blank line into its header
// block and body.
func DecodeText(data []byte) (Headers, []byte, error) {
	idx := bytes.Index(data, []byte(headerSep))
	if idx < 0 {
		return nil, nil, ErrNoDelimiter
	}
	headers := parseHeaderLines(data[:idx])
	body := data[idx+len(headerSep):]
	return headers, body, nil
}

// DecodeBinary splits a binary frame using its 2-byte big-endian
// header-length prefix: header text occupies data[2:2+H], and the body
// starts two bytes past the header block (§4.4).
func DecodeBinary(data []byte) (Headers, []byte, error) {
	if len(data) < headerLenBytes {
		return nil, nil, ErrBinaryTooShort
	}
	headerLen := int(binary.BigEndian.Uint16(data[:headerLenBytes]))
	if headerLenBytes+headerLen+headerLenBytes > len(data) {
		return nil, nil, fmt.Errorf("%w: declared %d bytes, frame has %d", ErrBinaryHeaderOverflow, headerLen, len(data))
	}
	headerBlock := data[headerLenBytes : headerLenBytes+headerLen]
	body := data[headerLenBytes+headerLen+headerLenBytes:]
	return parseHeaderLines(headerBlock), body, nil
}

// EncodeBinary mirrors DecodeBinary's layout, for tests and for constructing
// outbound binary frames.
func EncodeBinary(headerText, body []byte) []byte {
	buf := make([]byte, headerLenBytes, headerLenBytes+len(headerText)+headerLenBytes+len(body))
	binary.BigEndian.PutUint16(buf[:headerLenBytes], uint16(len(headerText)))
	buf = append(buf, headerText...)
	buf = append(buf, 0, 0)
	buf = append(buf, body...)
	return buf
}

func parseHeaderLines(block []byte) Headers {
	headers := make(Headers)
	for _, line := range bytes.Split(block, []byte(crlf)) {
		if len(line) == 0 {
			continue
		}
		k, v, found := bytes.Cut(line, []byte{':'})
		if !found {
			continue
		}
		headers[string(k)] = string(v)
	}
	return headers
}
