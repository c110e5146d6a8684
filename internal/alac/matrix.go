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

//nolint:gosec // Integer conversions mirror the fixed-width reference arithmetic.
package alac

// De-interlacing into interleaved int32 PCM.
//
// out holds one int32 per channel slot, stride slots per sample frame.
// Values are already truncated to the output width (int16 range for 16-bit,
// sign-extended 24-bit range for 24-bit), so packing them little-endian
// reproduces the reference byte stream.

// Shifted holds the low-order bytes that bypassed entropy coding.
type Shifted struct {
	Bytes int      // 0-3 bytes per sample
	A, B  []uint32 // per-channel raw low bytes
}

func (s Shifted) merge(val int32, low uint32) int32 {
	shift := uint32(s.Bytes) * 8
	mask := ^(uint32(0xFFFFFFFF) << shift)

	return (val << shift) | int32(low&mask)
}

// WriteMono copies a single channel into slot 0 of each frame and zeroes the
// remaining slots of a wider layout.
func WriteMono(out, samples []int32, stride, num int, sampleSize uint32, shifted Shifted) {
	for idx := range num {
		val := samples[idx]

		switch sampleSize {
		case 16:
			val = int32(int16(val))
		case 24:
			if shifted.Bytes != 0 {
				val = shifted.merge(val, shifted.A[idx])
			}

			val = SignExtend(val, 24)
		}

		pos := idx * stride
		out[pos] = val

		clear(out[pos+1 : pos+stride])
	}
}

// WriteStereo recombines a channel pair. With weight 0 the buffers are the
// left and right channels; otherwise bufA is mid and bufB is the difference.
//
//revive:disable-next-line:argument-limit
func WriteStereo(out, bufA, bufB []int32, stride, num int, sampleSize uint32,
	shift, weight uint8, shifted Shifted,
) {
	for idx := range num {
		left, right := bufA[idx], bufB[idx]

		if weight != 0 {
			mid, diff := left, right
			right = mid - ((diff * int32(weight)) >> shift)

			if sampleSize == 16 {
				right = int32(int16(right))
			}

			left = right + diff
		}

		switch sampleSize {
		case 16:
			left = int32(int16(left))
			right = int32(int16(right))
		case 24:
			if shifted.Bytes != 0 {
				left = shifted.merge(left, shifted.A[idx])
				right = shifted.merge(right, shifted.B[idx])
			}

			left = SignExtend(left, 24)
			right = SignExtend(right, 24)
		}

		pos := idx * stride
		out[pos] = left
		out[pos+1] = right

		clear(out[pos+2 : pos+stride])
	}
}
