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

//nolint:gosec // Integer conversions bounded by sample widths.
package testutil

// BitWriter packs MSB-first bit fields.
type BitWriter struct {
	buf  []byte
	nbit int
}

// Write appends the low width bits of val.
func (w *BitWriter) Write(val uint32, width int) {
	for i := width - 1; i >= 0; i-- {
		if w.nbit%8 == 0 {
			w.buf = append(w.buf, 0)
		}

		if (val>>uint(i))&1 != 0 {
			w.buf[len(w.buf)-1] |= 0x80 >> uint(w.nbit%8)
		}

		w.nbit++
	}
}

// Bytes returns the packed bits, zero-padded to a whole byte.
func (w *BitWriter) Bytes() []byte {
	return w.buf
}

// VerbatimFrame encodes interleaved samples as one uncompressed ALAC frame
// with an explicit sample count. channels must be 1 or 2.
func VerbatimFrame(samples []int32, channels, sampleSize int) []byte {
	w := &BitWriter{}

	w.Write(uint32(channels-1), 3) // channel selector
	w.Write(0, 4)
	w.Write(0, 12)
	w.Write(1, 1) // has size
	w.Write(0, 2) // uncompressed bytes
	w.Write(1, 1) // not compressed
	w.Write(uint32(len(samples)/channels), 32)

	mask := uint32(1)<<uint(sampleSize) - 1

	for _, sample := range samples {
		w.Write(uint32(sample)&mask, sampleSize)
	}

	return w.Bytes()
}
