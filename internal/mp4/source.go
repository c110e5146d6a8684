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

package mp4

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Source wraps the byte stream a container is read from. It tracks the
// absolute stream position and seeks only when the underlying reader
// implements io.Seeker and answers a position query.
type Source struct {
	reader  io.Reader
	seeker  io.Seeker
	pos     int64
	scratch [4]byte
}

// NewSource wraps reader. A reader that implements io.Seeker but fails to
// report its current position is treated as unseekable.
func NewSource(reader io.Reader) *Source {
	src := &Source{}
	src.Reset(reader, 0)

	return src
}

// Reset replaces the underlying reader. pos is the stream position of the
// reader's next byte, used when the reader cannot report it.
func (s *Source) Reset(reader io.Reader, pos int64) {
	s.reader = reader
	s.seeker = nil
	s.pos = pos

	if seeker, ok := reader.(io.Seeker); ok {
		if cur, err := seeker.Seek(0, io.SeekCurrent); err == nil {
			s.seeker = seeker
			s.pos = cur
		}
	}
}

// Pos returns the absolute position of the next byte to be read.
func (s *Source) Pos() int64 {
	return s.pos
}

// Seekable reports whether SeekTo can succeed.
func (s *Source) Seekable() bool {
	return s.seeker != nil
}

// SeekTo repositions the source at the absolute offset pos.
func (s *Source) SeekTo(pos int64) error {
	if s.seeker == nil {
		return ErrNotSeekable
	}

	if _, err := s.seeker.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("seeking to offset %d: %w", pos, err)
	}

	s.pos = pos

	return nil
}

// ReadFull fills buf. A stream ending before the first byte returns io.EOF;
// a partial read returns io.ErrUnexpectedEOF.
func (s *Source) ReadFull(buf []byte) error {
	n, err := io.ReadFull(s.reader, buf)
	s.pos += int64(n)

	return err //nolint:wrapcheck // callers add context and test for io.EOF
}

// Skip advances the source by n bytes, seeking when possible.
func (s *Source) Skip(n int64) error {
	if n < 0 {
		return fmt.Errorf("%w: negative skip %d", ErrMalformed, n)
	}

	if n == 0 {
		return nil
	}

	if s.seeker != nil {
		return s.SeekTo(s.pos + n)
	}

	copied, err := io.CopyN(io.Discard, s.reader, n)
	s.pos += copied

	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}

	return err //nolint:wrapcheck // propagated verbatim
}

// Uint8 reads one byte.
func (s *Source) Uint8() (uint8, error) {
	if err := s.ReadFull(s.scratch[:1]); err != nil {
		return 0, err
	}

	return s.scratch[0], nil
}

// Uint16 reads a big-endian 16-bit integer.
func (s *Source) Uint16() (uint16, error) {
	if err := s.ReadFull(s.scratch[:2]); err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint16(s.scratch[:2]), nil
}

// Uint32 reads a big-endian 32-bit integer.
func (s *Source) Uint32() (uint32, error) {
	if err := s.ReadFull(s.scratch[:4]); err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint32(s.scratch[:4]), nil
}

// FourCC reads a 4-byte atom type.
func (s *Source) FourCC() (FourCC, error) {
	val, err := s.Uint32()

	return FourCC(val), err
}
