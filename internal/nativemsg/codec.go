// Package nativemsg implements the browser native-messaging wire format: each
// message is a 4-byte unsigned length in native byte order followed by that
// many bytes of UTF-8 JSON.
package nativemsg

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxMessageSize bounds the declared length of an inbound frame.
const DefaultMaxMessageSize = 64 << 20

var (
	// ErrTruncated means the stream ended inside a length prefix or a body.
	ErrTruncated = errors.New("truncated native message")
	// ErrMalformed means a frame body was not a JSON message object.
	ErrMalformed = errors.New("malformed native message")
	// ErrTooLarge means the declared frame length exceeds the reader's limit.
	ErrTooLarge = errors.New("native message too large")
)

// Message is one inbound request from the extension.
type Message struct {
	ID     json.RawMessage            `json:"id"`
	Name   string                     `json:"name"`
	Args   []json.RawMessage          `json:"args,omitempty"`
	Kwargs map[string]json.RawMessage `json:"kwargs,omitempty"`
}

// Reader decodes one frame at a time from an underlying stream.
type Reader struct {
	r       io.Reader
	maxSize uint32
}

// NewReader returns a Reader with the default size limit.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, maxSize: DefaultMaxMessageSize}
}

// SetMaxSize changes the largest accepted frame body. Zero keeps the default.
func (r *Reader) SetMaxSize(n uint32) {
	if n == 0 {
		n = DefaultMaxMessageSize
	}
	r.maxSize = n
}

// ReadFrame returns the raw JSON body of the next frame. It returns io.EOF
// only when the stream closes cleanly at a frame boundary.
func (r *Reader) ReadFrame() ([]byte, error) {
	var prefix [4]byte
	n, err := io.ReadFull(r.r, prefix[:])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: read length prefix (%d of 4 bytes): %v", ErrTruncated, n, err)
	}

	length := binary.NativeEndian.Uint32(prefix[:])
	if length > r.maxSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, length, r.maxSize)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r.r, body); err != nil {
		return nil, fmt.Errorf("%w: read body of %d bytes: %v", ErrTruncated, length, err)
	}
	return body, nil
}

// ReadMessage reads and decodes the next message.
func (r *Reader) ReadMessage() (*Message, error) {
	body, err := r.ReadFrame()
	if err != nil {
		return nil, err
	}
	return DecodeMessage(body)
}

// DecodeMessage parses a frame body into a Message.
func DecodeMessage(body []byte) (*Message, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return nil, fmt.Errorf("%w: body is not a JSON object", ErrMalformed)
	}
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(m.ID) == 0 {
		m.ID = json.RawMessage("null")
	}
	return &m, nil
}

// Encode serialises v as JSON and prefixes it with its byte length.
func Encode(v any) ([]byte, error) {
	body, err := marshal(v)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 4, 4+len(body))
	binary.NativeEndian.PutUint32(out, uint32(len(body)))
	return append(out, body...), nil
}

// marshal encodes without HTML escaping so that URLs and markup in results
// reach the extension byte-for-byte.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode native message: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Writer writes whole frames and flushes after each one.
type Writer struct {
	w *bufio.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteMessage encodes v and returns only once the frame has been flushed.
func (w *Writer) WriteMessage(v any) error {
	frame, err := Encode(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(frame); err != nil {
		return fmt.Errorf("write native message: %w", err)
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("flush native message: %w", err)
	}
	return nil
}
