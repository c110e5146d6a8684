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

package alac

import "fmt"

// BitDepth is the number of significant bits per PCM sample.
type BitDepth uint

// Bit depths the decoder produces.
const (
	Depth16 BitDepth = 16
	Depth24 BitDepth = 24
)

// BytesPerSample returns the packed byte width of one sample.
func (d BitDepth) BytesPerSample() int {
	switch d {
	case Depth16:
		return 2
	case Depth24:
		return 3
	default:
		panic(fmt.Sprintf("alac: BytesPerSample called with unsupported bit depth %d", d))
	}
}

// PCMFormat describes the decoded PCM output.
type PCMFormat struct {
	SampleRate int
	BitDepth   BitDepth
	Channels   uint
}
