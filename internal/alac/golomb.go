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

import "math/bits"

// Adaptive Rice entropy decoder.

const (
	riceThreshold   = 8      // longest unary prefix before the raw escape
	historyShift    = 9      // history is kept in 1/512 units
	zeroRunHistory  = 128    // history below this switches to zero-run mode
	historyClamp    = 0xFFFF // history ceiling after a large value
	zeroRunMaxBlock = 0xFFFF // zero runs longer than this clear the sign modifier
	zeroRunLenBits  = 16     // raw width of an escaped zero-run length
)

// RiceParams carries the per-channel entropy parameters for one frame.
type RiceParams struct {
	InitialHistory uint32
	KModifier      uint32
	HistoryMult    uint32
}

// lead returns the number of leading zeros of val as a 32-bit word.
func lead(val int32) int32 {
	return int32(bits.LeadingZeros32(uint32(val)))
}

// DecodeValue decodes one escaped Rice value: a unary prefix of at most
// riceThreshold ones, then either a raw sampleSize-bit field (escape) or a
// k-bit remainder scaled by ((1<<k)-1)&mask.
func DecodeValue(buf *BitBuffer, sampleSize uint32, k int32, mask uint32) uint32 {
	var val uint32

	for val <= riceThreshold && buf.ReadBit() == 1 {
		val++
	}

	if val > riceThreshold {
		raw := buf.Read(sampleSize)

		return raw & (0xFFFFFFFF >> (32 - sampleSize))
	}

	if k != 1 {
		extraBits := buf.Read(uint32(k))

		val *= ((1 << uint32(k)) - 1) & mask

		if extraBits > 1 {
			val += extraBits - 1
		} else {
			buf.Unread(1)
		}
	}

	return val
}

// RiceDecode fills out with signed residuals decoded from buf.
// kModifierMask bounds the zero-run Rice parameter; the per-value decode
// always uses an all-ones mask.
func RiceDecode(buf *BitBuffer, out []int32, sampleSize uint32, params RiceParams, kModifierMask uint32) error {
	history := int32(params.InitialHistory)
	kModifier := int32(params.KModifier)
	historyMult := int32(params.HistoryMult)
	signModifier := int32(0)
	size := len(out)

	for count := 0; count < size; count++ {
		if err := buf.Err(); err != nil {
			return err
		}

		k := 31 - kModifier - lead((history>>historyShift)+3) //nolint:varnamelen // Rice parameter
		if k < 0 {
			k += kModifier
		} else {
			k = kModifier
		}

		decoded := int32(DecodeValue(buf, sampleSize, k, 0xFFFFFFFF))
		decoded += signModifier

		final := (decoded + 1) / 2
		if decoded&1 != 0 {
			final = -final
		}

		out[count] = final
		signModifier = 0

		history += decoded*historyMult - ((history * historyMult) >> historyShift)
		if decoded > historyClamp {
			history = historyClamp
		}

		if history < zeroRunHistory && count+1 < size {
			signModifier = 1

			k = lead(history) + (history+16)/64 - 24

			block := int(DecodeValue(buf, zeroRunLenBits, k, kModifierMask))
			if block > 0 {
				if count+1+block > size {
					return ErrSampleOverrun
				}

				clear(out[count+1 : count+1+block])
				count += block
			}

			if block > zeroRunMaxBlock {
				signModifier = 0
			}

			history = 0
		}
	}

	return buf.Err()
}
