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

import "fmt"

// Movie is the immutable result of parsing a container: the codec data of
// the ALAC track, its sample table, and how to reach the audio payload.
type Movie struct {
	Tree      *Tree
	CodecData []byte
	Table     *SampleTable
}

// Parse walks the container on src and assembles the first track.
func Parse(src *Source) (*Movie, error) {
	tree, err := Walk(src)
	if err != nil {
		return nil, err
	}

	return Assemble(tree)
}

// Assemble builds a Movie from a parsed tree. The first trak holding a
// sample table is used; every sample table atom must be present.
func Assemble(tree *Tree) (*Movie, error) {
	var stbl *Container

	for _, moov := range containers(tree.Atoms, TypeMoov) {
		for _, trak := range containers(moov.Children, TypeTrak) {
			if found := descend(trak, TypeMdia, TypeMinf, TypeStbl); found != nil {
				stbl = found

				break
			}
		}

		if stbl != nil {
			break
		}
	}

	if stbl == nil {
		return nil, malformed(ErrMissing, "no track with a sample table")
	}

	var (
		stsd *Stsd
		stts *Stts
		stsz *Stsz
		stsc *Stsc
		stco *Stco
	)

	for _, child := range stbl.Children {
		switch atom := child.(type) {
		case *Stsd:
			stsd = atom
		case *Stts:
			stts = atom
		case *Stsz:
			stsz = atom
		case *Stsc:
			stsc = atom
		case *Stco:
			stco = atom
		}
	}

	for _, req := range []struct {
		typ     FourCC
		present bool
	}{
		{TypeStsd, stsd != nil},
		{TypeStts, stts != nil},
		{TypeStsz, stsz != nil},
		{TypeStsc, stsc != nil},
		{TypeStco, stco != nil},
	} {
		if !req.present {
			return nil, malformed(ErrMissing, "sample table has no %s", req.typ)
		}
	}

	table, err := NewSampleTable(Tables{
		TimeToSample:  stts.Entries,
		UniformSize:   stsz.Uniform,
		SampleCount:   stsz.Count,
		Sizes:         stsz.Sizes,
		SampleToChunk: stsc.Entries,
		ChunkOffsets:  stco.Offsets,
	})
	if err != nil {
		return nil, fmt.Errorf("building sample table: %w", err)
	}

	return &Movie{Tree: tree, CodecData: stsd.CodecData, Table: table}, nil
}

func containers(atoms []Atom, typ FourCC) []*Container {
	var out []*Container

	for _, atom := range atoms {
		if node, ok := atom.(*Container); ok && node.Type == typ {
			out = append(out, node)
		}
	}

	return out
}

// descend follows a path of single children below node.
func descend(node *Container, path ...FourCC) *Container {
	for _, typ := range path {
		found := containers(node.Children, typ)
		if len(found) == 0 {
			return nil
		}

		node = found[0]
	}

	return node
}
