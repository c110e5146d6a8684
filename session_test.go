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

package alac_test

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/mycophonic/alacdec"
	"github.com/mycophonic/alacdec/internal/testutil"
)

// rampTrack holds interleaved source samples and the track built from them.
type rampTrack struct {
	track   testutil.Track
	samples []int32 // all frames, interleaved
}

// newRampTrack builds verbatim frames of the given lengths. Sample values are
// distinct per frame and channel, and alternate in sign.
func newRampTrack(sampleSize, channels int, lengths []uint32, perChunk uint32) rampTrack {
	var (
		frameLength uint32
		frames      [][]byte
		all         []int32
	)

	base := int32(0)

	for _, length := range lengths {
		frameLength = max(frameLength, length)
		frame := make([]int32, 0, int(length)*channels)

		for idx := range int32(length) {
			for ch := range int32(channels) {
				val := base + idx*10 + ch
				if idx%2 == 1 {
					val = -val
				}

				frame = append(frame, val)
			}
		}

		base += 1000
		frames = append(frames, testutil.VerbatimFrame(frame, channels, sampleSize))
		all = append(all, frame...)
	}

	return rampTrack{
		track: testutil.Track{
			SampleSize:      uint8(sampleSize),
			NumChannels:     uint8(channels),
			SampleRate:      48000,
			FrameLength:     frameLength,
			Frames:          frames,
			Durations:       lengths,
			SamplesPerChunk: perChunk,
		},
		samples: all,
	}
}

// newToneTrack builds compressed frames of the given lengths holding a
// stereo tone. A zero amplitude frame exercises the zero-run escape.
func newToneTrack(lengths []uint32, amplitudes []float64, perChunk uint32) rampTrack {
	var (
		frameLength uint32
		frames      [][]byte
		all         []int32
		pos         int
	)

	for i, length := range lengths {
		frameLength = max(frameLength, length)
		frame := make([]int32, 0, int(length)*2)

		for range length {
			phase := float64(pos) * 0.031
			frame = append(frame,
				int32(amplitudes[i]*math.Sin(phase)),
				int32(amplitudes[i]*math.Cos(phase*1.3)))
			pos++
		}

		frames = append(frames, testutil.CompressedFrame(frame, 2, 16))
		all = append(all, frame...)
	}

	return rampTrack{
		track: testutil.Track{
			SampleSize:      16,
			NumChannels:     2,
			SampleRate:      44100,
			FrameLength:     frameLength,
			Frames:          frames,
			Durations:       lengths,
			SamplesPerChunk: perChunk,
		},
		samples: all,
	}
}

// onlyReader hides any Seek method of the wrapped reader.
type onlyReader struct {
	r io.Reader
}

func (o onlyReader) Read(p []byte) (int, error) { return o.r.Read(p) }

// unpackAll decodes every remaining frame and returns the interleaved samples.
func unpackAll(t *testing.T, sess *alac.Session) []int32 {
	t.Helper()

	dst := make([]int32, sess.FrameLen())
	bytesPerSlot := sess.BytesPerSample()

	var out []int32

	for {
		n, err := sess.UnpackSamples(dst)
		if errors.Is(err, io.EOF) {
			return out
		}

		if err != nil {
			t.Fatalf("UnpackSamples: %v", err)
		}

		out = append(out, dst[:n/bytesPerSlot]...)
	}
}

func equalSamples(t *testing.T, label string, got, want []int32) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("%s: got %d samples, want %d", label, len(got), len(want))
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%s: sample %d = %d, want %d", label, i, got[i], want[i])
		}
	}
}

func TestSessionDecodesAllFrames(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name       string
		sampleSize int
		channels   int
	}{
		{"stereo 16-bit", 16, 2},
		{"mono 16-bit", 16, 1},
		{"stereo 24-bit", 24, 2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ramp := newRampTrack(tc.sampleSize, tc.channels, []uint32{4, 4, 4, 2}, 2)
			fixture := testutil.BuildM4A(t, ramp.track)

			sess, err := alac.Open(bytes.NewReader(fixture.Data))
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer sess.Close()

			if sess.SampleRate() != 48000 || sess.NumChannels() != tc.channels || sess.BitsPerSample() != tc.sampleSize {
				t.Fatalf("metadata = %d Hz, %d ch, %d bits", sess.SampleRate(), sess.NumChannels(), sess.BitsPerSample())
			}

			if got := sess.TotalSamples(); got != 14 {
				t.Fatalf("TotalSamples = %d, want 14", got)
			}

			equalSamples(t, "decoded", unpackAll(t, sess), ramp.samples)

			if got := sess.Position(); got != 14 {
				t.Fatalf("Position after decode = %d, want 14", got)
			}
		})
	}
}

func TestSessionCompressedFrames(t *testing.T) {
	t.Parallel()

	ramp := newToneTrack([]uint32{300, 300, 300, 120}, []float64{12000, 9000, 0, 15000}, 2)
	fixture := testutil.BuildM4A(t, ramp.track)

	sess, err := alac.Open(bytes.NewReader(fixture.Data))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sess.Close()

	if got := sess.TotalSamples(); got != 1020 {
		t.Fatalf("TotalSamples = %d, want 1020", got)
	}

	equalSamples(t, "decoded", unpackAll(t, sess), ramp.samples)

	// Land inside the first, a middle, the silent and the short last frame.
	for _, pos := range []int64{450, 17, 299, 300, 777, 1019} {
		if err := sess.SetPosition(pos); err != nil {
			t.Fatalf("SetPosition(%d): %v", pos, err)
		}

		equalSamples(t, "after seek", unpackAll(t, sess), ramp.samples[pos*2:])
	}
}

func TestSessionByteCount(t *testing.T) {
	t.Parallel()

	ramp := newRampTrack(24, 2, []uint32{4, 3}, 0)
	fixture := testutil.BuildM4A(t, ramp.track)

	sess, err := alac.Open(bytes.NewReader(fixture.Data))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	dst := make([]int32, sess.FrameLen())

	for _, want := range []int{4 * 2 * 3, 3 * 2 * 3} {
		n, err := sess.UnpackSamples(dst)
		if err != nil {
			t.Fatalf("UnpackSamples: %v", err)
		}

		if n != want {
			t.Fatalf("UnpackSamples = %d bytes, want %d", n, want)
		}
	}

	if _, err := sess.UnpackSamples(dst); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestSessionSetPosition(t *testing.T) {
	t.Parallel()

	ramp := newRampTrack(16, 2, []uint32{4, 4, 4, 2}, 2)
	fixture := testutil.BuildM4A(t, ramp.track)

	sess, err := alac.Open(bytes.NewReader(fixture.Data))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	// Visit positions out of order so every seek is a real reposition.
	for _, pos := range []int64{5, 0, 13, 8, 3, 12, 1, 9} {
		if err := sess.SetPosition(pos); err != nil {
			t.Fatalf("SetPosition(%d): %v", pos, err)
		}

		if sess.Position() != pos {
			t.Fatalf("Position = %d, want %d", sess.Position(), pos)
		}

		equalSamples(t, "after seek", unpackAll(t, sess), ramp.samples[pos*2:])
	}
}

func TestSessionSetPositionBounds(t *testing.T) {
	t.Parallel()

	ramp := newRampTrack(16, 1, []uint32{4, 4}, 0)
	fixture := testutil.BuildM4A(t, ramp.track)

	sess, err := alac.Open(bytes.NewReader(fixture.Data))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := sess.SetPosition(8); err != nil {
		t.Fatalf("SetPosition(end): %v", err)
	}

	if _, err := sess.UnpackSamples(make([]int32, sess.FrameLen())); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF at end, got %v", err)
	}

	for _, pos := range []int64{9, -1} {
		if err := sess.SetPosition(pos); !errors.Is(err, alac.ErrPosition) {
			t.Fatalf("SetPosition(%d): expected ErrPosition, got %v", pos, err)
		}
	}
}

func TestSessionUnseekableSource(t *testing.T) {
	t.Parallel()

	ramp := newRampTrack(16, 2, []uint32{4, 4}, 0)
	fixture := testutil.BuildM4A(t, ramp.track)

	sess, err := alac.Open(onlyReader{bytes.NewReader(fixture.Data)})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := sess.SetPosition(2); !errors.Is(err, alac.ErrSeekUnavailable) {
		t.Fatalf("expected ErrSeekUnavailable, got %v", err)
	}

	equalSamples(t, "stream", unpackAll(t, sess), ramp.samples)
}

func TestSessionMdatBeforeMoov(t *testing.T) {
	t.Parallel()

	ramp := newRampTrack(16, 2, []uint32{4, 4, 3}, 2)
	ramp.track.MdatFirst = true
	fixture := testutil.BuildM4A(t, ramp.track)

	t.Run("seekable", func(t *testing.T) {
		t.Parallel()

		sess, err := alac.Open(bytes.NewReader(fixture.Data))
		if err != nil {
			t.Fatalf("Open: %v", err)
		}

		equalSamples(t, "seekable", unpackAll(t, sess), ramp.samples)
	})

	t.Run("stream without reopen", func(t *testing.T) {
		t.Parallel()

		_, err := alac.Open(onlyReader{bytes.NewReader(fixture.Data)})
		if !errors.Is(err, alac.ErrSeekUnavailable) {
			t.Fatalf("expected ErrSeekUnavailable, got %v", err)
		}
	})

	t.Run("stream with reopen", func(t *testing.T) {
		t.Parallel()

		reopened := 0
		reopen := func() (io.Reader, error) {
			reopened++

			return onlyReader{bytes.NewReader(fixture.Data)}, nil
		}

		sess, err := alac.Open(onlyReader{bytes.NewReader(fixture.Data)}, alac.WithReopen(reopen))
		if err != nil {
			t.Fatalf("Open: %v", err)
		}

		if reopened != 1 {
			t.Fatalf("reopen called %d times, want 1", reopened)
		}

		equalSamples(t, "reopened", unpackAll(t, sess), ramp.samples)
	})

	t.Run("reopen failure", func(t *testing.T) {
		t.Parallel()

		errBoom := errors.New("boom")
		reopen := func() (io.Reader, error) { return nil, errBoom }

		_, err := alac.Open(onlyReader{bytes.NewReader(fixture.Data)}, alac.WithReopen(reopen))
		if !errors.Is(err, errBoom) {
			t.Fatalf("expected reopen error, got %v", err)
		}
	})
}

func TestSessionCorruptFrame(t *testing.T) {
	t.Parallel()

	ramp := newRampTrack(16, 2, []uint32{4, 4}, 0)
	// Channel selector 7 is not an ALAC element this decoder handles.
	ramp.track.Frames[0] = []byte{0xE0, 0, 0, 0}
	fixture := testutil.BuildM4A(t, ramp.track)

	sess, err := alac.Open(bytes.NewReader(fixture.Data))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	dst := make([]int32, sess.FrameLen())

	_, err = sess.UnpackSamples(dst)
	if !errors.Is(err, alac.ErrDecode) || !errors.Is(err, alac.ErrUnsupported) {
		t.Fatalf("expected ErrDecode and ErrUnsupported, got %v", err)
	}

	var unsupported *alac.UnsupportedError
	if !errors.As(err, &unsupported) || unsupported.Value != 7 {
		t.Fatalf("expected UnsupportedError with value 7, got %v", err)
	}

	if sess.Position() != 4 {
		t.Fatalf("Position after failed frame = %d, want 4", sess.Position())
	}

	n, err := sess.UnpackSamples(dst)
	if err != nil {
		t.Fatalf("frame after corrupt one: %v", err)
	}

	equalSamples(t, "second frame", dst[:n/2], ramp.samples[8:])
}

func TestSessionShortOutput(t *testing.T) {
	t.Parallel()

	ramp := newRampTrack(16, 2, []uint32{4}, 0)
	fixture := testutil.BuildM4A(t, ramp.track)

	sess, err := alac.Open(bytes.NewReader(fixture.Data))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := sess.UnpackSamples(make([]int32, 3)); !errors.Is(err, alac.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}

	equalSamples(t, "after short buffer", unpackAll(t, sess), ramp.samples)
}

func TestSessionMetadataDefaults(t *testing.T) {
	t.Parallel()

	ramp := newRampTrack(16, 2, []uint32{4}, 0)
	ramp.track.SampleRate = 0
	fixture := testutil.BuildM4A(t, ramp.track)

	sess, err := alac.Open(bytes.NewReader(fixture.Data))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if sess.SampleRate() != 44100 {
		t.Fatalf("SampleRate = %d, want 44100", sess.SampleRate())
	}

	if sess.Config().SampleRate != 0 {
		t.Fatalf("Config().SampleRate = %d, want the stored 0", sess.Config().SampleRate)
	}
}

func TestOpenRejects(t *testing.T) {
	t.Parallel()

	ramp := newRampTrack(16, 2, []uint32{4, 4}, 0)
	fixture := testutil.BuildM4A(t, ramp.track)

	// The codec atom: size 36 followed by the 'alac' tag.
	codec := string([]byte{0, 0, 0, 36, 'a', 'l', 'a', 'c'})

	patch := func(tag string, at int, val []byte) []byte {
		data := bytes.Clone(fixture.Data)
		idx := bytes.Index(data, []byte(tag))

		if idx < 0 {
			t.Fatalf("%q not found in fixture", tag)
		}

		copy(data[idx+at:], val)

		return data
	}

	for _, tc := range []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, alac.ErrContainer},
		{"wrong brand", patch("ftyp", 4, []byte("mp42")), alac.ErrContainer},
		{"64-bit moov", patch("moov", -4, []byte{0, 0, 0, 1}), alac.ErrUnsupported},
		{"oversized trak", patch("trak", -4, []byte{0x7f, 0, 0, 0}), alac.ErrContainer},
		{"sample size 20", patch(codec, 12+5, []byte{20}), alac.ErrUnsupported},
		{"zero frame length", patch(codec, 12, []byte{0, 0, 0, 0}), alac.ErrContainer},
		{"truncated codec atom", fixture.Data[:bytes.Index(fixture.Data, []byte(codec))+20], io.ErrUnexpectedEOF},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if _, err := alac.Open(bytes.NewReader(tc.data)); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
