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

//nolint:gosec // Integer conversions bounded by fixture sizes.
package testutil

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	gomp4 "github.com/abema/go-mp4"
)

// Track describes a synthetic single-track M4A file.
type Track struct {
	SampleSize  uint8
	NumChannels uint8
	SampleRate  uint32
	FrameLength uint32

	// Frames are the compressed ALAC frames, stored back to back in mdat.
	Frames [][]byte
	// Durations per frame in sample frames; FrameLength when nil.
	Durations []uint32
	// SamplesPerChunk groups frames into chunks; all frames share one chunk
	// when 0. A short final chunk adds a second sample-to-chunk run.
	SamplesPerChunk uint32
	// MdatFirst writes mdat before moov.
	MdatFirst bool
}

// Fixture is a built M4A file and the stream offset of its audio payload.
type Fixture struct {
	Data          []byte
	PayloadOffset int64
}

// BuildM4A writes track as an M4A file with the go-mp4 writer. The file is
// written twice: the first pass measures where the payload lands, the second
// fills in the real chunk offsets.
func BuildM4A(t testing.TB, track Track) Fixture {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.m4a")

	payload := writeM4A(t, path, track, 0)
	second := writeM4A(t, path, track, payload)

	if second != payload {
		t.Fatalf("payload moved between passes: %d then %d", payload, second)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	return Fixture{Data: data, PayloadOffset: payload}
}

// CodecAtom returns the 36-byte 'alac' codec atom for track.
func CodecAtom(track Track) []byte {
	atom := make([]byte, 36)

	binary.BigEndian.PutUint32(atom[0:], 36)
	copy(atom[4:], "alac")
	binary.BigEndian.PutUint32(atom[12:], track.FrameLength)
	atom[16] = 0 // compatible version
	atom[17] = track.SampleSize
	atom[18] = 40 // history mult
	atom[19] = 10 // initial history
	atom[20] = 14 // k modifier
	atom[21] = track.NumChannels
	binary.BigEndian.PutUint16(atom[22:], 255)

	var maxFrame uint32
	for _, frame := range track.Frames {
		maxFrame = max(maxFrame, uint32(len(frame)))
	}

	binary.BigEndian.PutUint32(atom[24:], maxFrame)
	binary.BigEndian.PutUint32(atom[28:], 0)
	binary.BigEndian.PutUint32(atom[32:], track.SampleRate)

	return atom
}

// SampleDescription returns the stsd body for track.
func SampleDescription(track Track) []byte {
	codec := CodecAtom(track)
	entry := make([]byte, 8+28, 8+28+len(codec))

	binary.BigEndian.PutUint32(entry[0:], uint32(8+28+len(codec)))
	copy(entry[4:], "alac")
	binary.BigEndian.PutUint16(entry[14:], 1) // data reference index
	binary.BigEndian.PutUint16(entry[24:], uint16(track.NumChannels))
	binary.BigEndian.PutUint16(entry[26:], uint16(track.SampleSize))
	binary.BigEndian.PutUint32(entry[32:], track.SampleRate<<16)
	entry = append(entry, codec...)

	body := make([]byte, 8, 8+len(entry))
	binary.BigEndian.PutUint32(body[4:], 1)

	return append(body, entry...)
}

func writeM4A(t testing.TB, path string, track Track, payload int64) int64 {
	t.Helper()

	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}

	defer file.Close()

	w := gomp4.NewWriter(file)
	b := &boxWriter{t: t, w: w}

	b.marshal(gomp4.BoxTypeFtyp(), &gomp4.Ftyp{
		MajorBrand:   [4]byte{'M', '4', 'A', ' '},
		MinorVersion: 0x200,
		CompatibleBrands: []gomp4.CompatibleBrandElem{
			{CompatibleBrand: [4]byte{'M', '4', 'A', ' '}},
			{CompatibleBrand: [4]byte{'m', 'p', '4', '2'}},
		},
	})

	var found int64

	if track.MdatFirst {
		found = b.mdat(track.Frames)
		b.moov(track, payload)
	} else {
		// An empty free atom, as ffmpeg writes after ftyp.
		b.raw("free", nil)
		b.moov(track, payload)
		found = b.mdat(track.Frames)
	}

	return found
}

type boxWriter struct {
	t testing.TB
	w *gomp4.Writer
}

func (b *boxWriter) start(typ string) *gomp4.BoxInfo {
	b.t.Helper()

	info, err := b.w.StartBox(&gomp4.BoxInfo{Type: gomp4.StrToBoxType(typ)})
	if err != nil {
		b.t.Fatalf("start %s: %v", typ, err)
	}

	return info
}

func (b *boxWriter) end() {
	b.t.Helper()

	if _, err := b.w.EndBox(); err != nil {
		b.t.Fatalf("end box: %v", err)
	}
}

func (b *boxWriter) write(data []byte) {
	b.t.Helper()

	if _, err := b.w.Write(data); err != nil {
		b.t.Fatalf("write: %v", err)
	}
}

func (b *boxWriter) raw(typ string, body []byte) {
	b.t.Helper()

	b.start(typ)
	b.write(body)
	b.end()
}

func (b *boxWriter) marshal(typ gomp4.BoxType, box gomp4.IImmutableBox) {
	b.t.Helper()

	if _, err := b.w.StartBox(&gomp4.BoxInfo{Type: typ}); err != nil {
		b.t.Fatalf("start %s: %v", typ, err)
	}

	if _, err := gomp4.Marshal(b.w, box, gomp4.Context{}); err != nil {
		b.t.Fatalf("marshal %s: %v", typ, err)
	}

	b.end()
}

func (b *boxWriter) mdat(frames [][]byte) int64 {
	b.t.Helper()

	info := b.start("mdat")
	pos := int64(info.Offset + info.HeaderSize)

	for _, frame := range frames {
		b.write(frame)
	}

	b.end()

	return pos
}

func (b *boxWriter) moov(track Track, payload int64) {
	b.t.Helper()

	b.start("moov")
	b.raw("mvhd", make([]byte, 100))
	b.start("trak")
	b.raw("tkhd", make([]byte, 84))
	b.start("mdia")
	b.raw("mdhd", make([]byte, 24))
	b.raw("hdlr", append(make([]byte, 8), []byte("soun\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00")...))
	b.start("minf")
	b.marshal(gomp4.BoxTypeSmhd(), &gomp4.Smhd{})
	b.start("dinf")
	b.raw("dref", []byte{0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 12, 'u', 'r', 'l', ' ', 0, 0, 0, 1})
	b.end()
	b.start("stbl")
	b.raw("stsd", SampleDescription(track))
	b.sampleTables(track, payload)
	b.end() // stbl
	b.end() // minf
	b.end() // mdia
	b.end() // trak
	b.raw("udta", make([]byte, 8))
	b.end() // moov
}

func (b *boxWriter) sampleTables(track Track, payload int64) {
	b.t.Helper()

	num := uint32(len(track.Frames))

	stts := &gomp4.Stts{}

	for idx := range track.Frames {
		duration := track.FrameLength
		if track.Durations != nil {
			duration = track.Durations[idx]
		}

		last := len(stts.Entries) - 1
		if last >= 0 && stts.Entries[last].SampleDelta == duration {
			stts.Entries[last].SampleCount++

			continue
		}

		stts.Entries = append(stts.Entries, gomp4.SttsEntry{SampleCount: 1, SampleDelta: duration})
	}

	stts.EntryCount = uint32(len(stts.Entries))

	perChunk := track.SamplesPerChunk
	if perChunk == 0 {
		perChunk = max(num, 1)
	}

	stsc := &gomp4.Stsc{}
	stco := &gomp4.Stco{}
	stsz := &gomp4.Stsz{SampleCount: num}

	offset := uint32(payload)

	for idx, frame := range track.Frames {
		if uint32(idx)%perChunk == 0 {
			stco.ChunkOffset = append(stco.ChunkOffset, offset)
		}

		stsz.EntrySize = append(stsz.EntrySize, uint32(len(frame)))
		offset += uint32(len(frame))
	}

	chunks := uint32(len(stco.ChunkOffset))
	stco.EntryCount = chunks

	if chunks > 0 {
		stsc.Entries = append(stsc.Entries, gomp4.StscEntry{
			FirstChunk: 1, SamplesPerChunk: perChunk, SampleDescriptionIndex: 1,
		})

		if rem := num % perChunk; rem != 0 {
			if chunks == 1 {
				stsc.Entries[0].SamplesPerChunk = rem
			} else {
				stsc.Entries = append(stsc.Entries, gomp4.StscEntry{
					FirstChunk: chunks, SamplesPerChunk: rem, SampleDescriptionIndex: 1,
				})
			}
		}
	}

	stsc.EntryCount = uint32(len(stsc.Entries))

	b.marshal(gomp4.BoxTypeStts(), stts)
	b.marshal(gomp4.BoxTypeStsc(), stsc)
	b.marshal(gomp4.BoxTypeStsz(), stsz)
	b.marshal(gomp4.BoxTypeStco(), stco)
}
