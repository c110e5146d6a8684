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
	"bytes"
	"testing"

	"github.com/mycophonic/alacdec"
)

func TestPackSamples(t *testing.T) {
	t.Parallel()

	src := []int32{0, 1, -1, 127, -128}

	for _, tc := range []struct {
		name           string
		bytesPerSample int
		want           []byte
	}{
		{"8-bit", 1, []byte{0x80, 0x81, 0x7f, 0xff, 0x00}},
		{"16-bit", 2, []byte{0, 0, 1, 0, 0xff, 0xff, 0x7f, 0, 0x80, 0xff}},
		{"24-bit", 3, []byte{0, 0, 0, 1, 0, 0, 0xff, 0xff, 0xff, 0x7f, 0, 0, 0x80, 0xff, 0xff}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			dst := make([]byte, len(tc.want))

			if n := alac.PackSamples(dst, src, tc.bytesPerSample); n != len(tc.want) {
				t.Fatalf("PackSamples = %d, want %d", n, len(tc.want))
			}

			if !bytes.Equal(dst, tc.want) {
				t.Fatalf("PackSamples = % x, want % x", dst, tc.want)
			}
		})
	}
}

func TestPackSamplesWide(t *testing.T) {
	t.Parallel()

	dst := make([]byte, 6)
	alac.PackSamples(dst, []int32{0x7fffff, -0x800000}, 3)

	want := []byte{0xff, 0xff, 0x7f, 0x00, 0x00, 0x80}
	if !bytes.Equal(dst, want) {
		t.Fatalf("PackSamples = % x, want % x", dst, want)
	}
}

func TestPackSamplesShortDestination(t *testing.T) {
	t.Parallel()

	dst := make([]byte, 5)

	if n := alac.PackSamples(dst, []int32{1, 2, 3}, 2); n != 4 {
		t.Fatalf("PackSamples = %d, want 4", n)
	}

	if n := alac.PackSamples(dst, []int32{1}, 4); n != 0 {
		t.Fatalf("PackSamples with 4 bytes per sample = %d, want 0", n)
	}
}
