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

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/mycophonic/alacdec"
)

const wavFormatPCM = 1

// frameSink receives interleaved decoded samples.
type frameSink interface {
	WriteSamples(samples []int32) error
	Close() error
}

// wavSink writes a WAV file through the go-audio encoder.
type wavSink struct {
	file *os.File
	enc  *wav.Encoder
	buf  *audio.IntBuffer
}

func newWAVSink(path string, sess *alac.Session) (*wavSink, error) {
	if path == "-" {
		return nil, errors.New("WAV output needs a seekable file, use -raw for stdout")
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating output: %w", err)
	}

	rate := sess.SampleRate()
	bits := sess.BitsPerSample()
	channels := sess.NumChannels()

	return &wavSink{
		file: file,
		enc:  wav.NewEncoder(file, rate, bits, channels, wavFormatPCM),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
			SourceBitDepth: bits,
			Data:           make([]int, 0, sess.FrameLen()),
		},
	}, nil
}

func (s *wavSink) WriteSamples(samples []int32) error {
	s.buf.Data = s.buf.Data[:0]
	for _, sample := range samples {
		s.buf.Data = append(s.buf.Data, int(sample))
	}

	if err := s.enc.Write(s.buf); err != nil {
		return fmt.Errorf("writing wav: %w", err)
	}

	return nil
}

func (s *wavSink) Close() error {
	encErr := s.enc.Close()
	fileErr := s.file.Close()

	if encErr != nil {
		return fmt.Errorf("finishing wav: %w", encErr)
	}

	if fileErr != nil {
		return fmt.Errorf("closing output: %w", fileErr)
	}

	return nil
}

// rawSink writes packed little-endian PCM.
type rawSink struct {
	closer io.Closer
	out    *bufio.Writer
	bps    int
	pcm    []byte
}

func newRawSink(path string, bytesPerSample int) (*rawSink, error) {
	var (
		writer io.Writer = os.Stdout
		closer io.Closer = io.NopCloser(nil)
	)

	if path != "-" {
		file, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("creating output: %w", err)
		}

		writer, closer = file, file
	}

	return &rawSink{closer: closer, out: bufio.NewWriter(writer), bps: bytesPerSample}, nil
}

func (s *rawSink) WriteSamples(samples []int32) error {
	if need := len(samples) * s.bps; cap(s.pcm) < need {
		s.pcm = make([]byte, need)
	}

	n := alac.PackSamples(s.pcm[:cap(s.pcm)], samples, s.bps)

	if _, err := s.out.Write(s.pcm[:n]); err != nil {
		return fmt.Errorf("writing pcm: %w", err)
	}

	return nil
}

func (s *rawSink) Close() error {
	flushErr := s.out.Flush()
	closeErr := s.closer.Close()

	if flushErr != nil {
		return fmt.Errorf("flushing pcm: %w", flushErr)
	}

	if closeErr != nil {
		return fmt.Errorf("closing output: %w", closeErr)
	}

	return nil
}
