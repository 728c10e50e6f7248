package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// FrameSource yields ready-to-send Opus packets, one per call.
// ReadFrame returns io.EOF once the stream is exhausted.
type FrameSource interface {
	ReadFrame() ([]byte, error)
	Close() error
}

const oggHeaderSize = 27

var (
	oggMagic      = []byte("OggS")
	opusHeadMagic = []byte("OpusHead")
	opusTagsMagic = []byte("OpusTags")
)

// ErrInvalidOgg is returned when the stream does not start a page with "OggS"
var ErrInvalidOgg = errors.New("invalid OGG header")

// OggReader splits an Ogg/Opus stream into Opus packets. Packets may span
// pages; the OpusHead and OpusTags header packets are skipped.
type OggReader struct {
	r       io.Reader
	closer  io.Closer
	header  [oggHeaderSize]byte
	pending [][]byte
	partial []byte
}

// NewOggReader reads Ogg pages from r. If r is an io.Closer it is closed by Close.
func NewOggReader(r io.Reader) *OggReader {
	o := &OggReader{r: r}
	if c, ok := r.(io.Closer); ok {
		o.closer = c
	}
	return o
}

// ReadFrame returns the next Opus packet
func (o *OggReader) ReadFrame() ([]byte, error) {
	for len(o.pending) == 0 {
		if err := o.readPage(); err != nil {
			return nil, err
		}
	}

	pkt := o.pending[0]
	o.pending = o.pending[1:]
	return pkt, nil
}

// Close releases the underlying reader
func (o *OggReader) Close() error {
	o.pending = nil
	o.partial = nil
	if o.closer != nil {
		return o.closer.Close()
	}
	return nil
}

func (o *OggReader) readPage() error {
	if _, err := io.ReadFull(o.r, o.header[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return fmt.Errorf("truncated OGG page header: %w", err)
		}
		return err
	}

	if !bytes.Equal(o.header[0:4], oggMagic) {
		return ErrInvalidOgg
	}

	segCount := int(o.header[26])
	if segCount == 0 {
		return nil
	}

	segTable := make([]byte, segCount)
	if _, err := io.ReadFull(o.r, segTable); err != nil {
		return fmt.Errorf("read segment table: %w", err)
	}

	total := 0
	for _, l := range segTable {
		total += int(l)
	}
	payload := make([]byte, total)
	if _, err := io.ReadFull(o.r, payload); err != nil {
		return fmt.Errorf("read page payload: %w", err)
	}

	// A segment shorter than 255 bytes terminates the current packet
	offset := 0
	for _, l := range segTable {
		segLen := int(l)
		o.partial = append(o.partial, payload[offset:offset+segLen]...)
		offset += segLen

		if segLen < 255 {
			if len(o.partial) > 0 && !isOpusHeader(o.partial) {
				o.pending = append(o.pending, o.partial)
			}
			o.partial = nil
		}
	}
	return nil
}

func isOpusHeader(pkt []byte) bool {
	return bytes.HasPrefix(pkt, opusHeadMagic) || bytes.HasPrefix(pkt, opusTagsMagic)
}
