package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"mystiko/errors"
)

// Decoder accumulates raw network reads and yields complete frames.
// It never assumes one read equals one frame: a read may end mid-frame
// (bytes are kept for the next call) or carry several frames at once
// (Next drains them one by one).
type Decoder struct {
	buf     []byte
	maxSize int
}

// NewDecoder returns a decoder that refuses any single frame larger than
// maxSize bytes, protecting the buffer from a broken or hostile peer.
func NewDecoder(maxSize int) *Decoder {
	return &Decoder{maxSize: maxSize}
}

// Feed appends bytes read from the network to the internal buffer.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Next extracts the next complete frame, if any.
//
// It returns (nil, nil) when the buffer holds no complete frame yet.
// ErrOversizedFrame and ErrMalformedFrame are connection-fatal for the
// caller; the decoder must be discarded afterwards.
func (d *Decoder) Next() (*ClientFrame, error) {
	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			if len(d.buf) > d.maxSize {
				return nil, fmt.Errorf("%w: %d buffered bytes without delimiter", errors.ErrOversizedFrame, len(d.buf))
			}
			return nil, nil
		}
		if idx > d.maxSize {
			return nil, fmt.Errorf("%w: %d bytes", errors.ErrOversizedFrame, idx)
		}

		line := bytes.TrimSpace(d.buf[:idx])
		d.buf = d.buf[idx+1:]

		// Blank lines between frames are tolerated.
		if len(line) == 0 {
			continue
		}

		var frame ClientFrame
		if err := json.Unmarshal(line, &frame); err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrMalformedFrame, err)
		}
		return &frame, nil
	}
}

// Encode serializes a frame ready to write, delimiter included.
func Encode(frame ServerFrame) ([]byte, error) {
	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	return append(data, '\n'), nil
}
