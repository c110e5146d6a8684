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

package alac_test

import (
	alacint "github.com/mycophonic/alacdec/internal/alac"
	"github.com/mycophonic/alacdec/internal/testutil"
)

// bitWriter packs MSB-first bit fields, the inverse of BitBuffer.
type bitWriter struct {
	testutil.BitWriter
}

func (w *bitWriter) write(val uint32, width int) {
	w.Write(val, width)
}

func (w *bitWriter) bytes() []byte {
	return w.Bytes()
}

func writeRice(w *bitWriter, raw uint32, k int32, width int, mask uint32) {
	testutil.WriteRice(&w.BitWriter, raw, k, width, mask)
}

func riceEncode(w *bitWriter, vals []int32, sampleSize int, params alacint.RiceParams, mask uint32) {
	testutil.RiceEncode(&w.BitWriter, vals, sampleSize, params, mask)
}

func firEncode(samples []int32, coefs []int16, order int, quant uint32) []int32 {
	return testutil.FIREncode(samples, coefs, order, quant)
}
