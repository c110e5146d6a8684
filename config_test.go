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
	"errors"
	"testing"

	"github.com/mycophonic/alacdec"
	"github.com/mycophonic/alacdec/internal/testutil"
)

// codecData builds the buffer the container layer hands to ParseCodecConfig:
// a synthetic 'frma' atom, the codec atom, and trailing padding.
func codecData(track testutil.Track) []byte {
	data := []byte{0, 0, 0, 12, 'f', 'r', 'm', 'a', 'a', 'l', 'a', 'c'}
	data = append(data, testutil.CodecAtom(track)...)

	return append(data, make([]byte, 8)...)
}

func TestParseCodecConfig(t *testing.T) {
	t.Parallel()

	track := testutil.Track{
		SampleSize:  24,
		NumChannels: 1,
		SampleRate:  96000,
		FrameLength: 4096,
		Frames:      [][]byte{make([]byte, 300), make([]byte, 120)},
	}

	config, err := alac.ParseCodecConfig(codecData(track))
	if err != nil {
		t.Fatalf("ParseCodecConfig: %v", err)
	}

	want := alac.CodecConfig{
		MaxSamplesPerFrame: 4096,
		SampleSize:         24,
		RiceHistoryMult:    40,
		RiceInitialHistory: 10,
		RiceKModifier:      14,
		NumChannels:        1,
		MaxRun:             255,
		MaxCodedFrameSize:  300,
		SampleRate:         96000,
	}

	if config != want {
		t.Fatalf("config = %+v, want %+v", config, want)
	}
}

func TestParseCodecConfig_TooShort(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, 4, 47} {
		_, err := alac.ParseCodecConfig(make([]byte, size))
		if !errors.Is(err, alac.ErrContainer) {
			t.Fatalf("%d bytes: expected ErrContainer, got %v", size, err)
		}
	}
}
