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

//nolint:gosec // Integer conversions are bounded by 32-bit atom sizes.
package mp4

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Resume tells the caller how to reach the audio payload once Walk returns.
type Resume int

const (
	// ResumeReady means the source is positioned at the first payload byte.
	ResumeReady Resume = iota
	// ResumeReopen means mdat preceded moov on a source that cannot seek
	// back: the caller must reopen the stream and skip Tree.MdatOffset bytes.
	ResumeReopen
)

func (r Resume) String() string {
	switch r {
	case ResumeReady:
		return "ready"
	case ResumeReopen:
		return "need reopen"
	default:
		return fmt.Sprintf("Resume(%d)", int(r))
	}
}

// Tree is the parsed top level of a container.
type Tree struct {
	Atoms      []Atom
	Resume     Resume
	MdatOffset int64 // stream offset of the mdat payload
}

const (
	headerSize       = 8
	fullBoxSize      = 4 // version(1) + flags(3)
	smhdSize         = 16
	sampleEntryFixed = 28 // sound description fields before the codec atom
	codecPrefixSize  = 12 // synthetic size + "frma" + "alac"
	codecPadding     = 8
	maxCodecData     = 1024
	codecConfigEnd   = 48 // end of the sample rate field
	ftypMinSize      = 16
	sttsEntrySize    = 8
	stszEntrySize    = 4
	stscEntrySize    = 12
	stcoEntrySize    = 4
)

type walker struct {
	src *Source
}

// Walk parses the container from the current source position until the
// audio payload is reachable. It never returns a partial tree: any
// structural fault aborts the whole parse.
func Walk(src *Source) (*Tree, error) {
	w := walker{src: src}
	tree := &Tree{MdatOffset: -1}

	var foundMoov, foundMdat bool

	for {
		hdr, err := w.topHeader(foundMoov)
		if errors.Is(err, io.EOF) {
			if !foundMoov {
				return nil, malformed(ErrMissing, "no moov atom")
			}

			return nil, malformed(ErrMissing, "no mdat atom after moov")
		}

		if err != nil {
			return nil, err
		}

		switch hdr.Type {
		case TypeFtyp:
			atom, err := w.ftyp(hdr)
			if err != nil {
				return nil, err
			}

			tree.Atoms = append(tree.Atoms, atom)

		case TypeMoov:
			atom, err := w.container(hdr)
			if err != nil {
				return nil, err
			}

			tree.Atoms = append(tree.Atoms, atom)
			foundMoov = true

			if foundMdat {
				return w.resume(tree)
			}

		case TypeMdat:
			mdat := &Mdat{Header: hdr, PayloadOffset: w.src.Pos(), ToEOF: hdr.Size == 0}
			tree.Atoms = append(tree.Atoms, mdat)
			tree.MdatOffset = mdat.PayloadOffset

			if foundMoov {
				tree.Resume = ResumeReady

				return tree, nil
			}

			foundMdat = true

			if err := w.src.Skip(int64(hdr.Size) - headerSize); err != nil {
				return nil, fmt.Errorf("skipping mdat: %w", err)
			}

		case TypeFree, TypeJunk:
			atom, err := w.skip(hdr)
			if err != nil {
				return nil, err
			}

			tree.Atoms = append(tree.Atoms, atom)

		default:
			return nil, malformed(ErrUnknown, "%s at top level, offset %d", hdr.Type, hdr.Offset)
		}
	}
}

// resume positions the source at a payload recorded before moov.
func (w *walker) resume(tree *Tree) (*Tree, error) {
	if !w.src.Seekable() {
		tree.Resume = ResumeReopen

		return tree, nil
	}

	if err := w.src.SeekTo(tree.MdatOffset); err != nil {
		return nil, err
	}

	tree.Resume = ResumeReady

	return tree, nil
}

// topHeader reads a top-level atom header. io.EOF is returned only when the
// stream ends cleanly on an atom boundary.
func (w *walker) topHeader(afterMoov bool) (Header, error) {
	start := w.src.Pos()

	size, err := w.src.Uint32()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Header{}, io.EOF
		}

		return Header{}, fmt.Errorf("reading atom header at offset %d: %w", start, err)
	}

	typ, err := w.src.FourCC()
	if err != nil {
		return Header{}, fmt.Errorf("reading atom header at offset %d: %w", start, unexpected(err))
	}

	hdr := Header{Type: typ, Size: size, Offset: start}

	switch {
	case size == 1:
		return hdr, fmt.Errorf("%w: 64-bit size for %s atom at offset %d", ErrUnsupported, typ, start)
	case size == 0:
		// Only an mdat after moov may run to end of stream.
		if typ != TypeMdat || !afterMoov {
			return hdr, malformed(ErrAtomSize, "%s atom of size 0 at offset %d", typ, start)
		}
	case size < headerSize:
		return hdr, malformed(ErrAtomSize, "%s atom of size %d at offset %d", typ, size, start)
	}

	return hdr, nil
}

// childHeader reads a nested atom header and enforces
// headerSize < size <= remaining.
func (w *walker) childHeader(parent FourCC, remaining int64) (Header, error) {
	start := w.src.Pos()

	size, err := w.src.Uint32()
	if err != nil {
		return Header{}, fmt.Errorf("reading %s child at offset %d: %w", parent, start, unexpected(err))
	}

	typ, err := w.src.FourCC()
	if err != nil {
		return Header{}, fmt.Errorf("reading %s child at offset %d: %w", parent, start, unexpected(err))
	}

	hdr := Header{Type: typ, Size: size, Offset: start}

	if size == 1 {
		return hdr, fmt.Errorf("%w: 64-bit size for %s atom at offset %d", ErrUnsupported, typ, start)
	}

	if size <= headerSize || int64(size) > remaining {
		return hdr, malformed(ErrAtomSize, "%s atom of size %d at offset %d, %d bytes left in %s",
			typ, size, start, remaining, parent)
	}

	return hdr, nil
}

// container walks the children of moov, trak, mdia and stbl.
func (w *walker) container(hdr Header) (Atom, error) {
	node := &Container{Header: hdr}
	remaining := int64(hdr.Size) - headerSize

	for remaining > 0 {
		child, err := w.childHeader(hdr.Type, remaining)
		if err != nil {
			return nil, err
		}

		atom, err := w.child(hdr.Type, child)
		if err != nil {
			return nil, err
		}

		node.Children = append(node.Children, atom)
		remaining -= int64(child.Size)
	}

	return node, nil
}

// child dispatches one nested atom according to the grammar of its parent.
func (w *walker) child(parent FourCC, hdr Header) (Atom, error) {
	switch parent {
	case TypeMoov:
		switch hdr.Type {
		case TypeMvhd, TypeUdta, TypeElst, TypeIods, TypeFree:
			return w.skip(hdr)
		case TypeTrak:
			return w.container(hdr)
		}

	case TypeTrak:
		switch hdr.Type {
		case TypeTkhd, TypeEdts:
			return w.skip(hdr)
		case TypeMdia:
			return w.container(hdr)
		}

	case TypeMdia:
		switch hdr.Type {
		case TypeMdhd, TypeHdlr:
			return w.skip(hdr)
		case TypeMinf:
			return w.minf(hdr)
		}

	case TypeStbl:
		switch hdr.Type {
		case TypeStsd:
			return w.stsd(hdr)
		case TypeStts:
			return w.stts(hdr)
		case TypeStsz:
			return w.stsz(hdr)
		case TypeStsc:
			return w.stsc(hdr)
		case TypeStco:
			return w.stco(hdr)
		}
	}

	return nil, malformed(ErrUnknown, "%s inside %s at offset %d", hdr.Type, parent, hdr.Offset)
}

func (w *walker) skip(hdr Header) (Atom, error) {
	if hdr.Size < headerSize {
		return nil, malformed(ErrAtomSize, "%s atom of size %d", hdr.Type, hdr.Size)
	}

	if err := w.src.Skip(int64(hdr.Size) - headerSize); err != nil {
		return nil, fmt.Errorf("skipping %s: %w", hdr.Type, err)
	}

	return &Skipped{Header: hdr}, nil
}

func (w *walker) ftyp(hdr Header) (Atom, error) {
	if hdr.Size < ftypMinSize || (hdr.Size-ftypMinSize)%4 != 0 {
		return nil, malformed(ErrAtomSize, "ftyp atom of size %d", hdr.Size)
	}

	brand, err := w.src.FourCC()
	if err != nil {
		return nil, fmt.Errorf("reading ftyp: %w", unexpected(err))
	}

	if brand != brandM4A {
		return nil, malformed(ErrBrand, "major brand %q", brand)
	}

	minor, err := w.src.Uint32()
	if err != nil {
		return nil, fmt.Errorf("reading ftyp: %w", unexpected(err))
	}

	atom := &Ftyp{Header: hdr, MajorBrand: brand, MinorVersion: minor}

	for range (hdr.Size - ftypMinSize) / 4 {
		compat, err := w.src.FourCC()
		if err != nil {
			return nil, fmt.Errorf("reading ftyp: %w", unexpected(err))
		}

		atom.Compatible = append(atom.Compatible, compat)
	}

	return atom, nil
}

// minf has a fixed layout: smhd, dinf, stbl, then bytes that are skipped.
func (w *walker) minf(hdr Header) (Atom, error) {
	node := &Container{Header: hdr}
	remaining := int64(hdr.Size) - headerSize

	if remaining < smhdSize {
		return nil, malformed(ErrAtomSize, "minf atom of size %d", hdr.Size)
	}

	start := w.src.Pos()

	size, err := w.src.Uint32()
	if err != nil {
		return nil, fmt.Errorf("reading smhd: %w", unexpected(err))
	}

	typ, err := w.src.FourCC()
	if err != nil {
		return nil, fmt.Errorf("reading smhd: %w", unexpected(err))
	}

	if size != smhdSize {
		return nil, malformed(ErrAtomSize, "sound media header of size %d", size)
	}

	if typ != TypeSmhd {
		return nil, malformed(ErrUnknown, "expected smhd, found %s", typ)
	}

	if err := w.src.Skip(smhdSize - headerSize); err != nil {
		return nil, fmt.Errorf("skipping smhd: %w", err)
	}

	node.Children = append(node.Children, &Smhd{Header: Header{Type: typ, Size: size, Offset: start}})
	remaining -= smhdSize

	for _, want := range []FourCC{TypeDinf, TypeStbl} {
		child, err := w.childHeader(hdr.Type, remaining)
		if err != nil {
			return nil, err
		}

		if child.Type != want {
			return nil, malformed(ErrUnknown, "expected %s, found %s at offset %d", want, child.Type, child.Offset)
		}

		var atom Atom
		if want == TypeDinf {
			atom, err = w.skip(child)
		} else {
			atom, err = w.container(child)
		}

		if err != nil {
			return nil, err
		}

		node.Children = append(node.Children, atom)
		remaining -= int64(child.Size)
	}

	if err := w.src.Skip(remaining); err != nil {
		return nil, fmt.Errorf("skipping minf tail: %w", err)
	}

	return node, nil
}

// stsd holds exactly one ALAC sound description. The codec data is rebuilt
// behind a synthetic 12-byte format atom so the configuration fields land at
// fixed offsets.
func (w *walker) stsd(hdr Header) (Atom, error) {
	body := int64(hdr.Size) - headerSize
	if body < fullBoxSize+4+headerSize {
		return nil, malformed(ErrAtomSize, "stsd atom of size %d", hdr.Size)
	}

	if err := w.src.Skip(fullBoxSize); err != nil {
		return nil, fmt.Errorf("reading stsd: %w", err)
	}

	count, err := w.src.Uint32()
	if err != nil {
		return nil, fmt.Errorf("reading stsd: %w", unexpected(err))
	}

	if count != 1 {
		return nil, malformed(ErrEntryCount, "%d entries", count)
	}

	body -= fullBoxSize + 4

	entrySize, err := w.src.Uint32()
	if err != nil {
		return nil, fmt.Errorf("reading stsd entry: %w", unexpected(err))
	}

	format, err := w.src.FourCC()
	if err != nil {
		return nil, fmt.Errorf("reading stsd entry: %w", unexpected(err))
	}

	if format != TypeAlac {
		return nil, malformed(ErrFormat, "format %q", format)
	}

	if entrySize < headerSize+sampleEntryFixed || int64(entrySize) > body {
		return nil, malformed(ErrAtomSize, "sample description of size %d, %d bytes left in stsd", entrySize, body)
	}

	if err := w.src.Skip(sampleEntryFixed); err != nil {
		return nil, fmt.Errorf("reading stsd entry: %w", err)
	}

	raw := int(entrySize) - headerSize - sampleEntryFixed
	total := codecPrefixSize + raw + codecPadding

	if total > maxCodecData {
		return nil, malformed(ErrCodecData, "%d bytes exceeds %d", total, maxCodecData)
	}

	if codecPrefixSize+raw < codecConfigEnd {
		return nil, malformed(ErrCodecData, "%d bytes of codec data", raw)
	}

	codec := make([]byte, total)
	binary.BigEndian.PutUint32(codec[0:4], codecPrefixSize)
	copy(codec[4:8], "frma")
	copy(codec[8:12], "alac")

	if err := w.src.ReadFull(codec[codecPrefixSize : codecPrefixSize+raw]); err != nil {
		return nil, fmt.Errorf("reading codec data: %w", unexpected(err))
	}

	if err := w.src.Skip(body - int64(entrySize)); err != nil {
		return nil, fmt.Errorf("skipping stsd tail: %w", err)
	}

	return &Stsd{Header: hdr, Format: format, CodecData: codec}, nil
}

// tableHeader reads the full-box prefix and entry count of a sample table
// atom, and returns the count plus the trailing bytes left after the entries.
func (w *walker) tableHeader(hdr Header, entrySize int64) (uint32, int64, error) {
	body := int64(hdr.Size) - headerSize - fullBoxSize - 4
	if body < 0 {
		return 0, 0, malformed(ErrAtomSize, "%s atom of size %d", hdr.Type, hdr.Size)
	}

	if err := w.src.Skip(fullBoxSize); err != nil {
		return 0, 0, fmt.Errorf("reading %s: %w", hdr.Type, err)
	}

	count, err := w.src.Uint32()
	if err != nil {
		return 0, 0, fmt.Errorf("reading %s: %w", hdr.Type, unexpected(err))
	}

	need := int64(count) * entrySize
	if need > body {
		return 0, 0, malformed(ErrAtomSize, "%s declares %d entries in %d bytes", hdr.Type, count, body)
	}

	return count, body - need, nil
}

func (w *walker) readUint32s(hdr Header, dst []uint32) error {
	for idx := range dst {
		val, err := w.src.Uint32()
		if err != nil {
			return fmt.Errorf("reading %s entry %d: %w", hdr.Type, idx, unexpected(err))
		}

		dst[idx] = val
	}

	return nil
}

func (w *walker) stts(hdr Header) (Atom, error) {
	count, tail, err := w.tableHeader(hdr, sttsEntrySize)
	if err != nil {
		return nil, err
	}

	raw := make([]uint32, 2*int(count))
	if err := w.readUint32s(hdr, raw); err != nil {
		return nil, err
	}

	atom := &Stts{Header: hdr, Entries: make([]TimeToSample, count)}
	for idx := range atom.Entries {
		atom.Entries[idx] = TimeToSample{Count: raw[2*idx], Duration: raw[2*idx+1]}
	}

	return atom, w.skipTail(hdr, tail)
}

func (w *walker) stsz(hdr Header) (Atom, error) {
	body := int64(hdr.Size) - headerSize
	if body < fullBoxSize+8 {
		return nil, malformed(ErrAtomSize, "stsz atom of size %d", hdr.Size)
	}

	if err := w.src.Skip(fullBoxSize); err != nil {
		return nil, fmt.Errorf("reading stsz: %w", err)
	}

	uniform, err := w.src.Uint32()
	if err != nil {
		return nil, fmt.Errorf("reading stsz: %w", unexpected(err))
	}

	count, err := w.src.Uint32()
	if err != nil {
		return nil, fmt.Errorf("reading stsz: %w", unexpected(err))
	}

	atom := &Stsz{Header: hdr, Uniform: uniform, Count: count}
	tail := body - fullBoxSize - 8

	if uniform == 0 {
		need := int64(count) * stszEntrySize
		if need > tail {
			return nil, malformed(ErrAtomSize, "stsz declares %d entries in %d bytes", count, tail)
		}

		atom.Sizes = make([]uint32, count)
		if err := w.readUint32s(hdr, atom.Sizes); err != nil {
			return nil, err
		}

		tail -= need
	}

	return atom, w.skipTail(hdr, tail)
}

func (w *walker) stsc(hdr Header) (Atom, error) {
	count, tail, err := w.tableHeader(hdr, stscEntrySize)
	if err != nil {
		return nil, err
	}

	raw := make([]uint32, 3*int(count))
	if err := w.readUint32s(hdr, raw); err != nil {
		return nil, err
	}

	atom := &Stsc{Header: hdr, Entries: make([]SampleToChunk, count)}
	for idx := range atom.Entries {
		atom.Entries[idx] = SampleToChunk{
			FirstChunk:       raw[3*idx],
			SamplesPerChunk:  raw[3*idx+1],
			DescriptionIndex: raw[3*idx+2],
		}
	}

	return atom, w.skipTail(hdr, tail)
}

func (w *walker) stco(hdr Header) (Atom, error) {
	count, tail, err := w.tableHeader(hdr, stcoEntrySize)
	if err != nil {
		return nil, err
	}

	atom := &Stco{Header: hdr, Offsets: make([]uint32, count)}
	if err := w.readUint32s(hdr, atom.Offsets); err != nil {
		return nil, err
	}

	return atom, w.skipTail(hdr, tail)
}

func (w *walker) skipTail(hdr Header, tail int64) error {
	if err := w.src.Skip(tail); err != nil {
		return fmt.Errorf("skipping %s tail: %w", hdr.Type, err)
	}

	return nil
}

// unexpected maps a clean EOF inside an atom to io.ErrUnexpectedEOF.
func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}

	return err
}
