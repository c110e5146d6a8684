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

//nolint:gosec // Integer conversions are bounded by the sample table and codec config.
package alac

import (
	"errors"
	"fmt"
	"io"

	alacint "github.com/mycophonic/alacdec/internal/alac"
	mp4int "github.com/mycophonic/alacdec/internal/mp4"
)

// readBufferSize bounds a single compressed frame.
const readBufferSize = 80 * 1024

// Option configures Open.
type Option func(*options)

type options struct {
	reopen func() (io.Reader, error)
}

// WithReopen supplies a way to reopen the source from its first byte. It is
// used only when the audio payload precedes the metadata and the source
// cannot seek back to it.
func WithReopen(reopen func() (io.Reader, error)) Option {
	return func(o *options) { o.reopen = reopen }
}

// Session decodes the ALAC track of an M4A stream one frame at a time.
// The container is parsed and validated by Open; a Session never exists in a
// partially initialized state. A Session is not safe for concurrent use.
type Session struct {
	src     *mp4int.Source
	owned   io.Closer // reader obtained through WithReopen
	raw     CodecConfig
	config  CodecConfig
	table   *mp4int.SampleTable
	frames  *alacint.FrameDecoder
	readBuf []byte

	block    int
	offset   int // interleaved slots to drop from the next frame
	position int64
}

// Open parses the container on r and prepares the first ALAC track for
// decoding. The caller keeps ownership of r.
func Open(r io.Reader, opts ...Option) (*Session, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	src := mp4int.NewSource(r)

	movie, err := mp4int.Parse(src)
	if err != nil {
		return nil, containerError(err)
	}

	raw, err := ParseCodecConfig(movie.CodecData)
	if err != nil {
		return nil, err
	}

	config := raw.withDefaults()

	frames, err := alacint.NewFrameDecoder(config.frameConfig())
	if err != nil {
		return nil, configError(err)
	}

	sess := &Session{
		src:     src,
		raw:     raw,
		config:  config,
		table:   movie.Table,
		frames:  frames,
		readBuf: make([]byte, readBufferSize),
	}

	if movie.Tree.Resume == mp4int.ResumeReopen {
		if err := sess.reopen(o.reopen, movie.Tree.MdatOffset); err != nil {
			return nil, err
		}
	}

	return sess, nil
}

// reopen restarts the stream and skips forward to the audio payload.
func (s *Session) reopen(reopen func() (io.Reader, error), payload int64) error {
	if reopen == nil {
		return fmt.Errorf("%w: audio data precedes metadata on an unseekable source", ErrSeekUnavailable)
	}

	reader, err := reopen()
	if err != nil {
		return fmt.Errorf("reopening source: %w", err)
	}

	if closer, ok := reader.(io.Closer); ok {
		s.owned = closer
	}

	s.src.Reset(reader, 0)

	if err := s.src.Skip(payload - s.src.Pos()); err != nil {
		_ = s.Close()

		return fmt.Errorf("skipping to audio data at offset %d: %w", payload, err)
	}

	return nil
}

// UnpackSamples decodes the next frame into dst as interleaved int32 samples
// and returns the PCM byte count it represents. dst must hold FrameLen slots.
// io.EOF is returned once every frame has been decoded. A failing frame is
// consumed, so the caller may skip it and continue.
func (s *Session) UnpackSamples(dst []int32) (int, error) {
	if s.block >= s.table.Len() {
		return 0, io.EOF
	}

	if len(dst) < s.FrameLen() {
		return 0, fmt.Errorf("%w: %w: %d slots, need %d", ErrDecode, alacint.ErrOutputTooSmall, len(dst), s.FrameLen())
	}

	block := s.block

	duration, size, err := s.table.Lookup(block)
	if err != nil {
		return 0, containerError(err)
	}

	if int(size) > len(s.readBuf) {
		if err := s.src.Skip(int64(size)); err != nil {
			return 0, fmt.Errorf("skipping block %d: %w", block, err)
		}

		s.advance(duration)

		return 0, fmt.Errorf("%w: block %d is %d bytes, limit %d", ErrDecode, block, size, len(s.readBuf))
	}

	frame := s.readBuf[:size]

	if err := s.src.ReadFull(frame); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}

		return 0, fmt.Errorf("reading block %d: %w", block, err)
	}

	n, err := s.frames.Decode(frame, dst)
	if err != nil {
		s.advance(duration)

		return 0, fmt.Errorf("%w: block %d: %w", ErrDecode, block, err)
	}

	channels := int(s.config.NumChannels)
	bps := s.BytesPerSample()
	slots := n / bps

	if s.offset > 0 {
		trim := min(s.offset, slots)
		copy(dst, dst[trim:slots])
		slots -= trim
		n -= trim * bps
	}

	s.block++
	s.offset = 0
	s.position += int64(slots / channels)

	return n, nil
}

// advance moves past the current block without producing output.
func (s *Session) advance(duration uint32) {
	s.block++
	s.position += int64(duration) - int64(s.offset/int(s.config.NumChannels))
	s.offset = 0
}

// SetPosition moves the session so the next UnpackSamples starts at sample
// frame pos. Seeking to TotalSamples positions the session at end of stream.
func (s *Session) SetPosition(pos int64) error {
	if pos == s.table.TotalSamples() {
		s.block = s.table.Len()
		s.offset = 0
		s.position = pos

		return nil
	}

	if !s.src.Seekable() {
		return fmt.Errorf("%w: source cannot seek", ErrSeekUnavailable)
	}

	loc, err := s.table.Locate(pos)
	if err != nil {
		return containerError(err)
	}

	if err := s.src.SeekTo(loc.Offset); err != nil {
		return fmt.Errorf("seeking to sample %d: %w", pos, err)
	}

	s.block = loc.Block
	s.offset = int(loc.Skip) * int(s.config.NumChannels)
	s.position = pos

	return nil
}

// SampleRate returns the sample rate in Hz.
func (s *Session) SampleRate() int { return int(s.config.SampleRate) }

// NumChannels returns the channel count.
func (s *Session) NumChannels() int { return int(s.config.NumChannels) }

// BitsPerSample returns the significant bits per sample.
func (s *Session) BitsPerSample() int { return int(s.config.SampleSize) }

// BytesPerSample returns the packed byte width of one sample.
func (s *Session) BytesPerSample() int { return s.bitDepth().BytesPerSample() }

// TotalSamples returns the stream length in sample frames.
func (s *Session) TotalSamples() int64 { return s.table.TotalSamples() }

// Position returns the sample frame the next UnpackSamples starts at.
func (s *Session) Position() int64 { return s.position }

// FrameLen returns the number of int32 slots UnpackSamples may write.
func (s *Session) FrameLen() int { return s.frames.OutputLen() }

// Config returns the codec configuration as stored in the container.
func (s *Session) Config() CodecConfig { return s.raw }

// bitDepth is always a supported depth: NewFrameDecoder rejects the rest.
func (s *Session) bitDepth() BitDepth { return BitDepth(s.config.SampleSize) }

// Format returns the PCM output format.
func (s *Session) Format() PCMFormat {
	return PCMFormat{
		SampleRate: s.SampleRate(),
		BitDepth:   s.bitDepth(),
		Channels:   uint(s.config.NumChannels),
	}
}

// Close releases a reader obtained through WithReopen. The reader passed to
// Open is left to the caller.
func (s *Session) Close() error {
	if s.owned == nil {
		return nil
	}

	err := s.owned.Close()
	s.owned = nil

	if err != nil {
		return fmt.Errorf("closing reopened source: %w", err)
	}

	return nil
}
