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

//nolint:gosec // Samples are truncated to their packed width on purpose.
package alac

import "encoding/binary"

// PackSamples writes src as little-endian PCM into dst and returns the byte
// count written. 1-byte samples are stored unsigned with a 128 bias; 2 and
// 3-byte samples are signed. Samples that do not fit in dst are dropped.
func PackSamples(dst []byte, src []int32, bytesPerSample int) int {
	if bytesPerSample < 1 || bytesPerSample > 3 {
		return 0
	}

	count := min(len(src), len(dst)/bytesPerSample)

	switch bytesPerSample {
	case 1:
		for i, sample := range src[:count] {
			dst[i] = uint8(sample + 128)
		}
	case 2:
		for i, sample := range src[:count] {
			binary.LittleEndian.PutUint16(dst[i*2:], uint16(sample))
		}
	default:
		for i, sample := range src[:count] {
			off := i * 3
			dst[off] = byte(sample)
			dst[off+1] = byte(sample >> 8)
			dst[off+2] = byte(sample >> 16)
		}
	}

	return count * bytesPerSample
}
