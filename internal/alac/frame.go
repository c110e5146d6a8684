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

import "fmt"

// Channel selector values from the 3-bit frame tag.
const (
	selectorMono   = 0
	selectorStereo = 1
)

// maxFrameSamples bounds the scratch arena so a corrupt configuration cannot
// request an unbounded allocation.
const maxFrameSamples = 1 << 20

// Config holds the decoder parameters taken from the codec atom.
type Config struct {
	MaxSamplesPerFrame uint32
	SampleSize         uint8
	NumChannels        uint8
	HistoryMult        uint8
	InitialHistory     uint8
	KModifier          uint8
}

// channelHeader is the per-channel predictor description read from a
// compressed frame.
type channelHeader struct {
	predictionType uint32
	quant          uint32
	riceModifier   uint32
	order          int
	coefs          [MaxCoefs]int16
}

// frameHeader is the common prefix of mono and stereo frames.
type frameHeader struct {
	numSamples   int
	shiftedBytes int
	verbatim     bool
}

// FrameDecoder decodes one compressed ALAC frame at a time into interleaved
// int32 PCM. It owns all scratch buffers; it is not safe for concurrent use.
type FrameDecoder struct {
	config Config
	bits   BitBuffer
	bufA   []int32
	bufB   []int32
	lowA   []uint32
	lowB   []uint32
	chanA  channelHeader
	chanB  channelHeader
}

// NewFrameDecoder validates config and allocates the scratch arena.
func NewFrameDecoder(config Config) (*FrameDecoder, error) {
	switch config.SampleSize {
	case 16, 24:
	case 20, 32:
		return nil, unsupported("sample size", int(config.SampleSize))
	default:
		return nil, fmt.Errorf("%w: sample size %d", ErrInvalidConfig, config.SampleSize)
	}

	if config.NumChannels != 1 && config.NumChannels != 2 {
		return nil, unsupported("channel count", int(config.NumChannels))
	}

	if config.MaxSamplesPerFrame == 0 || config.MaxSamplesPerFrame > maxFrameSamples {
		return nil, fmt.Errorf("%w: max samples per frame %d", ErrInvalidConfig, config.MaxSamplesPerFrame)
	}

	frameLen := int(config.MaxSamplesPerFrame)

	return &FrameDecoder{
		config: config,
		bufA:   make([]int32, frameLen),
		bufB:   make([]int32, frameLen),
		lowA:   make([]uint32, frameLen),
		lowB:   make([]uint32, frameLen),
	}, nil
}

// OutputLen returns the int32 slots needed to hold one full frame.
func (d *FrameDecoder) OutputLen() int {
	return int(d.config.MaxSamplesPerFrame) * int(d.config.NumChannels)
}

// Decode decodes frame into out and returns the PCM byte count the frame
// represents (samples * channels * bytes per sample).
func (d *FrameDecoder) Decode(frame []byte, out []int32) (int, error) {
	d.bits.Reset(frame)
	bits := &d.bits
	stride := int(d.config.NumChannels)

	var (
		numSamples int
		err        error
	)

	switch selector := bits.Read(3); selector {
	case selectorMono:
		numSamples, err = d.decodeMono(bits, out, stride)
	case selectorStereo:
		if stride < 2 {
			return 0, fmt.Errorf("%w: stereo frame in a %d-channel stream", ErrInvalidHeader, stride)
		}

		numSamples, err = d.decodeStereo(bits, out, stride)
	default:
		return 0, unsupported("channel selector", int(selector))
	}

	if err != nil {
		return 0, err
	}

	return numSamples * stride * BytesPerSample(d.config.SampleSize), nil
}

func (d *FrameDecoder) readFrameHeader(bits *BitBuffer, out []int32, stride int) (frameHeader, error) {
	bits.Skip(16) // element instance tag, unused

	hasSize := bits.Read(1)
	hdr := frameHeader{
		numSamples:   int(d.config.MaxSamplesPerFrame),
		shiftedBytes: int(bits.Read(2)),
	}
	hdr.verbatim = bits.Read(1) != 0

	if hasSize != 0 {
		count := bits.Read(32)
		if count > d.config.MaxSamplesPerFrame {
			return hdr, fmt.Errorf("%w: %d samples, frame limit %d", ErrSampleOverrun, count, d.config.MaxSamplesPerFrame)
		}

		hdr.numSamples = int(count)
	}

	if hdr.shiftedBytes*8 >= int(d.config.SampleSize) {
		return hdr, fmt.Errorf("%w: %d uncompressed bytes", ErrInvalidHeader, hdr.shiftedBytes)
	}

	if len(out) < hdr.numSamples*stride {
		return hdr, fmt.Errorf("%w: need %d samples, have %d", ErrOutputTooSmall, hdr.numSamples*stride, len(out))
	}

	return hdr, bits.Err()
}

func readChannelHeader(bits *BitBuffer, hdr *channelHeader) error {
	hdr.predictionType = bits.Read(4)
	hdr.quant = bits.Read(4)
	hdr.riceModifier = bits.Read(3)
	hdr.order = int(bits.Read(5))

	for idx := range hdr.order {
		hdr.coefs[idx] = int16(bits.Read(16))
	}

	if hdr.predictionType != 0 {
		return unsupported("prediction type", int(hdr.predictionType))
	}

	return nil
}

// decodeChannel entropy-decodes and predicts one channel into buf.
func (d *FrameDecoder) decodeChannel(bits *BitBuffer, hdr *channelHeader, buf []int32, readSize uint32) error {
	params := RiceParams{
		InitialHistory: uint32(d.config.InitialHistory),
		KModifier:      uint32(d.config.KModifier),
		HistoryMult:    hdr.riceModifier * (uint32(d.config.HistoryMult) / 4),
	}
	kModifierMask := uint32(1)<<d.config.KModifier - 1

	if err := RiceDecode(bits, buf, readSize, params, kModifierMask); err != nil {
		return fmt.Errorf("entropy decode: %w", err)
	}

	PredictFIR(buf, hdr.coefs[:], hdr.order, hdr.quant, readSize)

	return nil
}

// readVerbatim reads one raw sample of the configured size.
func (d *FrameDecoder) readVerbatim(bits *BitBuffer) int32 {
	sampleSize := uint32(d.config.SampleSize)

	if sampleSize <= 16 {
		return SignExtend(int32(bits.Read(sampleSize)), sampleSize)
	}

	val := int32(bits.Read(16)) << (sampleSize - 16)
	val |= int32(bits.Read(sampleSize - 16))

	return signExtend24(val)
}

func (d *FrameDecoder) decodeMono(bits *BitBuffer, out []int32, stride int) (int, error) {
	hdr, err := d.readFrameHeader(bits, out, stride)
	if err != nil {
		return 0, err
	}

	num := hdr.numSamples
	bufA := d.bufA[:num]
	shifted := Shifted{Bytes: hdr.shiftedBytes, A: d.lowA}

	if hdr.verbatim {
		for idx := range num {
			bufA[idx] = d.readVerbatim(bits)
		}

		shifted.Bytes = 0
	} else {
		bits.Skip(16) // interlacing fields, unused for mono

		if err := readChannelHeader(bits, &d.chanA); err != nil {
			return 0, err
		}

		if shifted.Bytes != 0 {
			lowBits := uint32(shifted.Bytes) * 8
			for idx := range num {
				d.lowA[idx] = bits.Read(lowBits)
			}
		}

		readSize := uint32(d.config.SampleSize) - uint32(shifted.Bytes)*8
		if err := d.decodeChannel(bits, &d.chanA, bufA, readSize); err != nil {
			return 0, err
		}
	}

	if err := bits.Err(); err != nil {
		return 0, err
	}

	WriteMono(out, bufA, stride, num, uint32(d.config.SampleSize), shifted)

	return num, nil
}

func (d *FrameDecoder) decodeStereo(bits *BitBuffer, out []int32, stride int) (int, error) {
	hdr, err := d.readFrameHeader(bits, out, stride)
	if err != nil {
		return 0, err
	}

	num := hdr.numSamples
	bufA := d.bufA[:num]
	bufB := d.bufB[:num]
	shifted := Shifted{Bytes: hdr.shiftedBytes, A: d.lowA, B: d.lowB}

	var shift, weight uint8

	if hdr.verbatim {
		for idx := range num {
			bufA[idx] = d.readVerbatim(bits)
			bufB[idx] = d.readVerbatim(bits)
		}

		shifted.Bytes = 0
	} else {
		shift = uint8(bits.Read(8))
		weight = uint8(bits.Read(8))

		if err := readChannelHeader(bits, &d.chanA); err != nil {
			return 0, err
		}

		if err := readChannelHeader(bits, &d.chanB); err != nil {
			return 0, err
		}

		if shifted.Bytes != 0 {
			lowBits := uint32(shifted.Bytes) * 8
			for idx := range num {
				d.lowA[idx] = bits.Read(lowBits)
				d.lowB[idx] = bits.Read(lowBits)
			}
		}

		// One extra bit of headroom for the mid/side difference channel.
		readSize := uint32(d.config.SampleSize) - uint32(shifted.Bytes)*8 + 1

		if err := d.decodeChannel(bits, &d.chanA, bufA, readSize); err != nil {
			return 0, fmt.Errorf("channel A: %w", err)
		}

		if err := d.decodeChannel(bits, &d.chanB, bufB, readSize); err != nil {
			return 0, fmt.Errorf("channel B: %w", err)
		}
	}

	if err := bits.Err(); err != nil {
		return 0, err
	}

	WriteStereo(out, bufA, bufB, stride, num, uint32(d.config.SampleSize), shift, weight, shifted)

	return num, nil
}
