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

import (
	"encoding/binary"
	"fmt"

	alacint "github.com/mycophonic/alacdec/internal/alac"
)

// CodecConfig holds the ALAC specific configuration carried by the sample
// description of the track.
type CodecConfig struct {
	MaxSamplesPerFrame uint32
	CompatibleVersion  uint8
	SampleSize         uint8
	RiceHistoryMult    uint8
	RiceInitialHistory uint8
	RiceKModifier      uint8
	NumChannels        uint8
	MaxRun             uint16
	MaxCodedFrameSize  uint32
	AvgBitRate         uint32
	SampleRate         uint32
}

// Offsets into the codec data buffer. The buffer opens with a 12-byte 'frma'
// atom and the 12-byte header of the 'alac' atom, so the configuration
// record starts at byte 24.
const (
	offFrameLength  = 24
	offCompatible   = 28
	offSampleSize   = 29
	offHistoryMult  = 30
	offInitHistory  = 31
	offKModifier    = 32
	offChannels     = 33
	offMaxRun       = 34
	offMaxFrameSize = 36
	offAvgBitRate   = 40
	offSampleRate   = 44
	codecDataMin    = 48
)

// Values reported when the codec data leaves a field at zero.
const (
	defaultSampleSize  = 16
	defaultNumChannels = 2
	defaultSampleRate  = 44100
)

// ParseCodecConfig reads a CodecConfig from the codec data buffer of an 'alac'
// sample description.
func ParseCodecConfig(codecData []byte) (CodecConfig, error) {
	if len(codecData) < codecDataMin {
		return CodecConfig{}, fmt.Errorf("%w: codec data is %d bytes, need %d", ErrContainer, len(codecData), codecDataMin)
	}

	return CodecConfig{
		MaxSamplesPerFrame: binary.BigEndian.Uint32(codecData[offFrameLength:]),
		CompatibleVersion:  codecData[offCompatible],
		SampleSize:         codecData[offSampleSize],
		RiceHistoryMult:    codecData[offHistoryMult],
		RiceInitialHistory: codecData[offInitHistory],
		RiceKModifier:      codecData[offKModifier],
		NumChannels:        codecData[offChannels],
		MaxRun:             binary.BigEndian.Uint16(codecData[offMaxRun:]),
		MaxCodedFrameSize:  binary.BigEndian.Uint32(codecData[offMaxFrameSize:]),
		AvgBitRate:         binary.BigEndian.Uint32(codecData[offAvgBitRate:]),
		SampleRate:         binary.BigEndian.Uint32(codecData[offSampleRate:]),
	}, nil
}

// withDefaults substitutes the conventional values for zeroed sample size,
// channel count and sample rate.
func (c CodecConfig) withDefaults() CodecConfig {
	if c.SampleSize == 0 {
		c.SampleSize = defaultSampleSize
	}

	if c.NumChannels == 0 {
		c.NumChannels = defaultNumChannels
	}

	if c.SampleRate == 0 {
		c.SampleRate = defaultSampleRate
	}

	return c
}

func (c CodecConfig) frameConfig() alacint.Config {
	return alacint.Config{
		MaxSamplesPerFrame: c.MaxSamplesPerFrame,
		SampleSize:         c.SampleSize,
		NumChannels:        c.NumChannels,
		HistoryMult:        c.RiceHistoryMult,
		InitialHistory:     c.RiceInitialHistory,
		KModifier:          c.RiceKModifier,
	}
}
