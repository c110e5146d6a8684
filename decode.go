/*
   Copyright Mycophonic.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package alac

import (
	"fmt"
	"io"
)

// StreamDecoder streams decoded PCM from an ALAC M4A/MP4 source.
// The MP4 container (sample table, config) is parsed upfront; frames are
// decoded on demand via Read.
type StreamDecoder struct {
	session *Session
	samples []int32

	// Per-frame PCM buffer, drained by Read.
	buf    []byte
	bufOff int
	eof    bool
}

// NewStreamDecoder opens an M4A/MP4 stream containing ALAC audio and returns
// a streaming decoder. The container structure is parsed immediately; PCM data
// is decoded frame by frame on demand via Read.
func NewStreamDecoder(r io.Reader, opts ...Option) (*StreamDecoder, error) {
	session, err := Open(r, opts...)
	if err != nil {
		return nil, err
	}

	frameLen := session.FrameLen()

	return &StreamDecoder{
		session: session,
		samples: make([]int32, frameLen),
		buf:     make([]byte, 0, frameLen*session.BytesPerSample()),
	}, nil
}

// Format returns the PCM output format.
func (s *StreamDecoder) Format() PCMFormat { return s.session.Format() }

// Session returns the underlying decode session.
func (s *StreamDecoder) Session() *Session { return s.session }

// Seek discards buffered PCM and continues from sample frame pos.
func (s *StreamDecoder) Seek(pos int64) error {
	if err := s.session.SetPosition(pos); err != nil {
		return err
	}

	s.buf = s.buf[:0]
	s.bufOff = 0
	s.eof = false

	return nil
}

// Close releases resources held by the session.
func (s *StreamDecoder) Close() error { return s.session.Close() }

// Read reads decoded little-endian PCM bytes from the ALAC stream.
func (s *StreamDecoder) Read(p []byte) (int, error) { //nolint:varnamelen // p is idiomatic for io.Reader.Read
	total := 0

	for len(p) > 0 {
		// Drain buffered frame data.
		if s.bufOff < len(s.buf) {
			n := copy(p, s.buf[s.bufOff:])
			s.bufOff += n
			total += n
			p = p[n:]

			continue
		}

		if s.eof {
			if total > 0 {
				return total, nil
			}

			return 0, io.EOF
		}

		n, err := s.session.UnpackSamples(s.samples)
		if err == io.EOF { //nolint:errorlint // UnpackSamples returns io.EOF unwrapped
			s.eof = true

			continue
		}

		if err != nil {
			return total, err
		}

		bps := s.session.BytesPerSample()
		s.buf = s.buf[:cap(s.buf)]
		s.buf = s.buf[:PackSamples(s.buf, s.samples[:n/bps], bps)]
		s.bufOff = 0
	}

	return total, nil
}

// Decode reads an M4A/MP4 stream and decodes the first ALAC audio track
// to interleaved little-endian signed PCM bytes.
func Decode(reader io.Reader) ([]byte, PCMFormat, error) {
	dec, err := NewStreamDecoder(reader)
	if err != nil {
		return nil, PCMFormat{}, err
	}

	defer func() { _ = dec.Close() }()

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, PCMFormat{}, fmt.Errorf("decoding alac: %w", err)
	}

	return pcm, dec.Format(), nil
}
