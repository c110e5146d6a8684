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

import "encoding/binary"

// FourCC is a 4-byte atom type read as one big-endian integer.
type FourCC uint32

// MakeFourCC packs a 4-character tag.
func MakeFourCC(tag string) FourCC {
	var raw [4]byte

	copy(raw[:], tag)

	return FourCC(binary.BigEndian.Uint32(raw[:]))
}

func (f FourCC) String() string {
	var raw [4]byte

	binary.BigEndian.PutUint32(raw[:], uint32(f))

	return string(raw[:])
}

// Atom types understood by the walker.
//
//nolint:gochecknoglobals
var (
	TypeFtyp = MakeFourCC("ftyp")
	TypeMoov = MakeFourCC("moov")
	TypeMdat = MakeFourCC("mdat")
	TypeFree = MakeFourCC("free")
	TypeJunk = MakeFourCC("junk")
	TypeMvhd = MakeFourCC("mvhd")
	TypeTrak = MakeFourCC("trak")
	TypeUdta = MakeFourCC("udta")
	TypeElst = MakeFourCC("elst")
	TypeIods = MakeFourCC("iods")
	TypeTkhd = MakeFourCC("tkhd")
	TypeMdia = MakeFourCC("mdia")
	TypeEdts = MakeFourCC("edts")
	TypeMdhd = MakeFourCC("mdhd")
	TypeHdlr = MakeFourCC("hdlr")
	TypeMinf = MakeFourCC("minf")
	TypeSmhd = MakeFourCC("smhd")
	TypeDinf = MakeFourCC("dinf")
	TypeStbl = MakeFourCC("stbl")
	TypeStsd = MakeFourCC("stsd")
	TypeStts = MakeFourCC("stts")
	TypeStsz = MakeFourCC("stsz")
	TypeStsc = MakeFourCC("stsc")
	TypeStco = MakeFourCC("stco")
	TypeAlac = MakeFourCC("alac")

	brandM4A = MakeFourCC("M4A ")
)

// Header is the position and size of one parsed atom.
type Header struct {
	Type   FourCC
	Size   uint32 // including the 8-byte header
	Offset int64  // stream offset of the size field
}

// Info returns the header itself; it lets every variant satisfy Atom.
func (h Header) Info() Header {
	return h
}

// Atom is one node of the parsed container tree.
type Atom interface {
	Info() Header
}

// Container is an atom whose body is a sequence of child atoms.
type Container struct {
	Header

	Children []Atom
}

// Skipped is an atom whose body was not needed and was skipped by size.
type Skipped struct {
	Header
}

// Ftyp is the file type atom.
type Ftyp struct {
	Header

	MajorBrand   FourCC
	MinorVersion uint32
	Compatible   []FourCC
}

// Smhd is the fixed-size sound media header.
type Smhd struct {
	Header
}

// Stsd is the single ALAC sample description.
type Stsd struct {
	Header

	Format FourCC
	// CodecData is a 12-byte synthetic format atom, the raw codec bytes and
	// 8 zero bytes of padding.
	CodecData []byte
}

// TimeToSample is one run of the time-to-sample table.
type TimeToSample struct {
	Count    uint32
	Duration uint32
}

// Stts is the time-to-sample table.
type Stts struct {
	Header

	Entries []TimeToSample
}

// Stsz is the sample size table. A nonzero Uniform means every one of Count
// samples has that size and Sizes is empty.
type Stsz struct {
	Header

	Uniform uint32
	Count   uint32
	Sizes   []uint32
}

// SampleToChunk is one run of the sample-to-chunk table.
type SampleToChunk struct {
	FirstChunk       uint32
	SamplesPerChunk  uint32
	DescriptionIndex uint32
}

// Stsc is the sample-to-chunk table.
type Stsc struct {
	Header

	Entries []SampleToChunk
}

// Stco is the 32-bit chunk offset table.
type Stco struct {
	Header

	Offsets []uint32
}

// Mdat is the media data atom. Its body is not read by the walker.
type Mdat struct {
	Header

	PayloadOffset int64
	// ToEOF is set when the atom declares size 0 and runs to end of stream.
	ToEOF bool
}
