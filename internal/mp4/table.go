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

//nolint:gosec // Integer conversions are bounded by 32-bit table entries.
package mp4

import "fmt"

// Tables groups the raw sample table contents of one track.
type Tables struct {
	TimeToSample  []TimeToSample
	UniformSize   uint32 // nonzero when every sample has the same size
	SampleCount   uint32
	Sizes         []uint32 // per-sample sizes when UniformSize is 0
	SampleToChunk []SampleToChunk
	ChunkOffsets  []uint32
}

// SampleTable resolves sample-block indices to durations, byte sizes and
// stream offsets. It is immutable after construction.
type SampleTable struct {
	tables Tables
	count  int
	total  int64
}

// Location is where decoding must restart to reach a sample position.
type Location struct {
	Block  int   // sample-block holding the position
	Offset int64 // stream offset of that block
	Skip   int64 // sample frames to drop from the start of the block
}

// NewSampleTable validates tables: the time-to-sample runs must cover every
// sample exactly, durations and sizes must be positive, and the chunk
// tables must place every sample.
func NewSampleTable(tables Tables) (*SampleTable, error) {
	count := int(tables.SampleCount)

	if tables.UniformSize == 0 {
		if len(tables.Sizes) != count {
			return nil, malformed(ErrTable, "%d sizes for %d samples", len(tables.Sizes), count)
		}

		for idx, size := range tables.Sizes {
			if size == 0 {
				return nil, malformed(ErrTable, "sample %d has size 0", idx)
			}
		}
	}

	var covered, total int64

	for idx, run := range tables.TimeToSample {
		if run.Count > 0 && run.Duration == 0 {
			return nil, malformed(ErrTable, "time-to-sample run %d has duration 0", idx)
		}

		covered += int64(run.Count)
		total += int64(run.Count) * int64(run.Duration)
	}

	if covered != int64(count) {
		return nil, malformed(ErrTable, "time-to-sample runs cover %d of %d samples", covered, count)
	}

	if err := validateChunks(tables, count); err != nil {
		return nil, err
	}

	return &SampleTable{tables: tables, count: count, total: total}, nil
}

func validateChunks(tables Tables, count int) error {
	if count == 0 {
		return nil
	}

	runs := tables.SampleToChunk
	chunks := uint32(len(tables.ChunkOffsets))

	if len(runs) == 0 || chunks == 0 {
		return malformed(ErrTable, "%d samples but %d chunk runs and %d chunks", count, len(runs), chunks)
	}

	var capacity int64

	for idx, run := range runs {
		if run.FirstChunk == 0 || run.FirstChunk > chunks {
			return malformed(ErrTable, "chunk run %d starts at chunk %d of %d", idx, run.FirstChunk, chunks)
		}

		if run.SamplesPerChunk == 0 {
			return malformed(ErrTable, "chunk run %d holds no samples", idx)
		}

		last := chunks
		if idx+1 < len(runs) {
			if runs[idx+1].FirstChunk <= run.FirstChunk {
				return malformed(ErrTable, "chunk runs %d and %d out of order", idx, idx+1)
			}

			last = runs[idx+1].FirstChunk - 1
		}

		capacity += int64(last-run.FirstChunk+1) * int64(run.SamplesPerChunk)
	}

	if capacity < int64(count) {
		return malformed(ErrTable, "chunks hold %d of %d samples", capacity, count)
	}

	return nil
}

// Len returns the number of sample-blocks.
func (t *SampleTable) Len() int {
	return t.count
}

// TotalSamples returns the stream length in sample frames.
func (t *SampleTable) TotalSamples() int64 {
	return t.total
}

// Size returns the compressed byte size of block idx.
func (t *SampleTable) Size(idx int) uint32 {
	if t.tables.UniformSize != 0 {
		return t.tables.UniformSize
	}

	return t.tables.Sizes[idx]
}

// Lookup returns the duration in sample frames and the compressed byte size
// of block idx.
func (t *SampleTable) Lookup(idx int) (uint32, uint32, error) {
	if idx < 0 || idx >= t.count {
		return 0, 0, fmt.Errorf("%w: block %d of %d", ErrSampleRange, idx, t.count)
	}

	runs := t.tables.TimeToSample
	if len(runs) == 0 {
		return 0, 0, malformed(ErrTable, "empty time-to-sample table")
	}

	remaining := int64(idx)

	for _, run := range runs {
		if remaining < int64(run.Count) {
			return run.Duration, t.Size(idx), nil
		}

		remaining -= int64(run.Count)
	}

	return 0, 0, malformed(ErrTable, "no time-to-sample run covers block %d", idx)
}

// Locate finds the block holding sample frame target by walking the
// sample-to-chunk runs. Each run spans the chunks up to, but excluding, the
// next run's first chunk; the last run extends to the final chunk.
func (t *SampleTable) Locate(target int64) (Location, error) {
	if target < 0 || target >= t.total {
		return Location{}, fmt.Errorf("%w: %d of %d", ErrPositionOutOfRange, target, t.total)
	}

	runs := t.tables.SampleToChunk
	block := 0

	var pos int64

	for idx, run := range runs {
		last := uint32(len(t.tables.ChunkOffsets))
		if idx+1 < len(runs) {
			last = runs[idx+1].FirstChunk - 1
		}

		for chunk := run.FirstChunk; chunk <= last; chunk++ {
			offset := int64(t.tables.ChunkOffsets[chunk-1])

			for range run.SamplesPerChunk {
				duration, size, err := t.Lookup(block)
				if err != nil {
					return Location{}, err
				}

				if target < pos+int64(duration) {
					return Location{Block: block, Offset: offset, Skip: target - pos}, nil
				}

				pos += int64(duration)
				offset += int64(size)
				block++
			}
		}
	}

	return Location{}, malformed(ErrTable, "chunk tables end before sample %d", target)
}
