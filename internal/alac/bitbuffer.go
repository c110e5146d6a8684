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

// BitBuffer is a big-endian bit cursor over one compressed frame.
//
// The buffer is padded with 4 zero bytes so the 3-byte window load never
// leaves the slice while the cursor is inside the frame. Reads that run past
// the frame set a sticky overrun flag instead of touching memory beyond the
// padding; callers check Err at stage boundaries.
type BitBuffer struct {
	buf     []byte // padded data (frame + 4 zero bytes)
	pos     int    // current byte index within buf
	bitIdx  uint32 // 0-7, bits already consumed from buf[pos]
	size    int    // unpadded frame size in bytes
	overrun bool
}

const bitBufferPadding = 4

// Reset points the cursor at the start of data, reusing backing storage.
func (b *BitBuffer) Reset(data []byte) {
	needed := len(data) + bitBufferPadding
	if cap(b.buf) < needed {
		b.buf = make([]byte, needed)
	} else {
		b.buf = b.buf[:needed]
	}

	copy(b.buf, data)
	clear(b.buf[len(data):])

	b.pos = 0
	b.bitIdx = 0
	b.size = len(data)
	b.overrun = false
}

// read16 loads a 3-byte window at the cursor, drops the bits already
// consumed and returns the next numBits (0..16) right-aligned.
func (b *BitBuffer) read16(numBits uint32) uint32 {
	if numBits == 0 {
		return 0
	}

	var window uint32

	if b.pos >= 0 && b.pos+2 < len(b.buf) {
		window = uint32(b.buf[b.pos])<<16 | uint32(b.buf[b.pos+1])<<8 | uint32(b.buf[b.pos+2])
	} else {
		b.overrun = true
	}

	window = (window << b.bitIdx) & 0x00FFFFFF //revive:disable-line:add-constant
	window >>= 24 - numBits

	acc := b.bitIdx + numBits
	b.pos += int(acc >> 3)
	b.bitIdx = acc & 7

	return window
}

// Read returns the next numBits (1..32) as an unsigned big-endian value.
// Reads wider than 16 bits are split into a 16-bit high part and a low part.
func (b *BitBuffer) Read(numBits uint32) uint32 {
	var result uint32

	if numBits > 16 {
		numBits -= 16
		result = b.read16(16) << numBits
	}

	return result | b.read16(numBits)
}

// ReadBit returns the next single bit.
func (b *BitBuffer) ReadBit() uint32 {
	var bit uint32

	if b.pos >= 0 && b.pos < len(b.buf) {
		bit = uint32(b.buf[b.pos]<<b.bitIdx) >> 7
	} else {
		b.overrun = true
	}

	acc := b.bitIdx + 1
	b.pos += int(acc >> 3)
	b.bitIdx = acc & 7

	return bit
}

// Unread rewinds the cursor by numBits.
func (b *BitBuffer) Unread(numBits uint32) {
	acc := int(b.bitIdx) - int(numBits)
	b.pos += acc >> 3

	acc &= 7
	if acc < 0 {
		acc = -acc
	}

	b.bitIdx = uint32(acc)
}

// Skip advances the cursor by numBits without decoding them.
func (b *BitBuffer) Skip(numBits uint32) {
	acc := b.bitIdx + numBits
	b.pos += int(acc >> 3)
	b.bitIdx = acc & 7
}

// BitsConsumed returns the number of bits read since Reset.
func (b *BitBuffer) BitsConsumed() int {
	return b.pos*8 + int(b.bitIdx)
}

// Err returns ErrBitstreamOverrun once the cursor has consumed more bits than
// the frame holds.
func (b *BitBuffer) Err() error {
	if b.overrun || b.pos < 0 || b.BitsConsumed() > b.size*8 {
		return ErrBitstreamOverrun
	}

	return nil
}
