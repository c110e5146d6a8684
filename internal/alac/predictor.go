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

// Adaptive FIR predictor (inverse linear prediction with sign-LMS update).

const (
	// MaxCoefs is the maximum predictor order (5-bit field).
	MaxCoefs = 32

	// DeltaOrder is the order sentinel for first-order difference decoding.
	DeltaOrder = 31
)

// signOf returns +1 for positive, -1 for negative, 0 for zero.
func signOf(val int32) int32 {
	negShift := int32(uint32(-val) >> 31)

	return negShift | (val >> 31) //revive:disable-line:add-constant
}

// PredictFIR reconstructs samples from the residuals in buf, in place.
//
// buf[0] is taken verbatim. The returned slice shares storage with buf, which
// now holds sample values; callers must not keep using it as residuals.
// coefs is adapted in place and must hold at least order entries.
func PredictFIR(buf []int32, coefs []int16, order int, quant, sampleSize uint32) []int32 {
	num := len(buf)
	if num == 0 || order == 0 {
		return buf
	}

	if order == DeltaOrder {
		for idx := 1; idx < num; idx++ {
			buf[idx] = SignExtend(buf[idx-1]+buf[idx], sampleSize)
		}

		return buf
	}

	// Warm-up: the first order samples are plain deltas.
	warm := min(order, num-1)
	for idx := 1; idx <= warm; idx++ {
		buf[idx] = SignExtend(buf[idx-1]+buf[idx], sampleSize)
	}

	var bias int32
	if quant > 0 {
		bias = 1 << (quant - 1)
	}

	taps := coefs[:order:order]
	lim := order + 1

	for idx := lim; idx < num; idx++ {
		// hist[0] is the anchor; hist[order-j] is the sample j+1 steps back.
		hist := buf[idx-lim : idx : idx]
		anchor := hist[0]

		var sum int32
		for j := range order {
			sum += (hist[order-j] - anchor) * int32(taps[j])
		}

		residual := buf[idx]
		buf[idx] = SignExtend(((sum+bias)>>quant)+anchor+residual, sampleSize)

		switch {
		case residual > 0:
			for tap := order - 1; tap >= 0 && residual > 0; tap-- {
				diff := anchor - hist[order-tap]
				sgn := signOf(diff)
				taps[tap] -= int16(sgn)
				residual -= ((diff * sgn) >> quant) * int32(order-tap)
			}
		case residual < 0:
			for tap := order - 1; tap >= 0 && residual < 0; tap-- {
				diff := anchor - hist[order-tap]
				sgn := -signOf(diff)
				taps[tap] -= int16(sgn)
				residual -= ((diff * sgn) >> quant) * int32(order-tap)
			}
		}
	}

	return buf
}
