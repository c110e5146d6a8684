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

//nolint:gosec // Integer conversions mirror the fixed-width decoder arithmetic.
package testutil

import (
	"math/bits"

	alacint "github.com/mycophonic/alacdec/internal/alac"
)

// Entropy parameters written by CodecAtom.
const (
	codecHistoryMult    = 40
	codecInitialHistory = 10
	codecKModifier      = 14
)

// Predictor used by CompressedFrame for every channel.
const (
	framePredictorQuant   = 9
	framePredictorRiceMod = 4
)

//nolint:gochecknoglobals
var framePredictorCoefs = []int16{1200, -300, 100, 50}

func lead(val int32) int32 {
	return int32(bits.LeadingZeros32(uint32(val)))
}

// WriteRice emits one value the way DecodeValue reads it back.
func WriteRice(w *BitWriter, raw uint32, k int32, width int, mask uint32) {
	var quo, rem uint32

	if k == 1 {
		quo = raw
	} else {
		div := ((uint32(1) << uint32(k)) - 1) & mask
		quo = raw / div
		rem = raw % div
	}

	if quo > 8 {
		w.Write(0x1FF, 9)
		w.Write(raw, width)

		return
	}

	for range quo {
		w.Write(1, 1)
	}

	w.Write(0, 1)

	if k == 1 {
		return
	}

	if rem == 0 {
		w.Write(0, int(k)-1)
	} else {
		w.Write(rem+1, int(k))
	}
}

// RiceEncode mirrors RiceDecode, including history adaptation and zero runs.
func RiceEncode(w *BitWriter, vals []int32, sampleSize int, params alacint.RiceParams, mask uint32) {
	history := int32(params.InitialHistory)
	kModifier := int32(params.KModifier)
	mult := int32(params.HistoryMult)
	signModifier := int32(0)

	for idx := 0; idx < len(vals); idx++ {
		k := 31 - kModifier - lead((history>>9)+3)
		if k < 0 {
			k += kModifier
		} else {
			k = kModifier
		}

		val := vals[idx]

		coded := 2 * val
		if val < 0 {
			coded = -2*val - 1
		}

		WriteRice(w, uint32(coded-signModifier), k, sampleSize, 0xFFFFFFFF)

		signModifier = 0

		history += coded*mult - ((history * mult) >> 9)
		if coded > 0xFFFF {
			history = 0xFFFF
		}

		if history < 128 && idx+1 < len(vals) {
			signModifier = 1
			k = lead(history) + (history+16)/64 - 24

			run := 0
			for idx+1+run < len(vals) && vals[idx+1+run] == 0 {
				run++
			}

			WriteRice(w, uint32(run), k, 16, mask)

			idx += run
			history = 0
		}
	}
}

// FIREncode produces residuals that PredictFIR turns back into samples.
func FIREncode(samples []int32, coefs []int16, order int, quant uint32) []int32 {
	num := len(samples)
	res := make([]int32, num)
	taps := append([]int16(nil), coefs...)

	if num == 0 {
		return res
	}

	res[0] = samples[0]

	if order == 0 {
		copy(res, samples)

		return res
	}

	if order == alacint.DeltaOrder {
		for idx := 1; idx < num; idx++ {
			res[idx] = samples[idx] - samples[idx-1]
		}

		return res
	}

	for idx := 1; idx <= min(order, num-1); idx++ {
		res[idx] = samples[idx] - samples[idx-1]
	}

	var bias int32
	if quant > 0 {
		bias = 1 << (quant - 1)
	}

	for idx := order + 1; idx < num; idx++ {
		anchor := samples[idx-order-1]

		var sum int32
		for j := range order {
			sum += (samples[idx-1-j] - anchor) * int32(taps[j])
		}

		residual := samples[idx] - (((sum + bias) >> quant) + anchor)
		res[idx] = residual

		for tap := order - 1; tap >= 0 && residual != 0; tap-- {
			diff := anchor - samples[idx-1-tap]

			sgn := int32(0)
			if diff > 0 {
				sgn = 1
			} else if diff < 0 {
				sgn = -1
			}

			if residual < 0 {
				sgn = -sgn
			}

			taps[tap] -= int16(sgn)
			next := residual - ((diff*sgn)>>quant)*int32(order-tap)

			if (residual > 0 && next <= 0) || (residual < 0 && next >= 0) {
				break
			}

			residual = next
		}
	}

	return res
}

// CompressedFrame encodes interleaved samples as one compressed ALAC frame
// with an explicit sample count, no shifted bytes and, for stereo, no
// interlacing. Entropy parameters match CodecAtom. channels must be 1 or 2.
func CompressedFrame(samples []int32, channels, sampleSize int) []byte {
	num := len(samples) / channels
	w := &BitWriter{}

	w.Write(uint32(channels-1), 3) // channel selector
	w.Write(0, 4)
	w.Write(0, 12)
	w.Write(1, 1) // has size
	w.Write(0, 2) // uncompressed bytes
	w.Write(0, 1) // compressed
	w.Write(uint32(num), 32)

	readSize := sampleSize
	if channels == 2 {
		readSize++
	}

	w.Write(0, 8) // interlacing shift, or unused in mono
	w.Write(0, 8) // interlacing weight, or unused in mono

	order := len(framePredictorCoefs)

	for range channels {
		w.Write(0, 4) // prediction type
		w.Write(framePredictorQuant, 4)
		w.Write(framePredictorRiceMod, 3)
		w.Write(uint32(order), 5)

		for _, coef := range framePredictorCoefs {
			w.Write(uint32(uint16(coef)), 16)
		}
	}

	params := alacint.RiceParams{
		InitialHistory: codecInitialHistory,
		KModifier:      codecKModifier,
		HistoryMult:    framePredictorRiceMod * (codecHistoryMult / 4),
	}
	mask := uint32(1)<<codecKModifier - 1

	channel := make([]int32, num)

	for ch := range channels {
		for idx := range num {
			channel[idx] = samples[idx*channels+ch]
		}

		residuals := FIREncode(channel, framePredictorCoefs, order, framePredictorQuant)
		RiceEncode(w, residuals, readSize, params, mask)
	}

	return w.Bytes()
}
