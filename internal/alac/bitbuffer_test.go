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

	alacint "github.com/mycophonic/alacdec/internal/alac"
)

func TestBitBufferChunkedReadsMatchWideRead(t *testing.T) {
	t.Parallel()

	data := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01}

	var whole alacint.BitBuffer

	whole.Reset(data)
	want := whole.Read(32)

	if want != 0xDEADBEEF {
		t.Fatalf("Read(32) = %#x, want 0xdeadbeef", want)
	}

	var split alacint.BitBuffer

	split.Reset(data)

	var got uint32

	for _, width := range []uint32{1, 3, 7, 16, 5} {
		got = got<<width | split.Read(width)
	}

	if got != want {
		t.Fatalf("chunked reads = %#x, want %#x", got, want)
	}

	if split.BitsConsumed() != 32 {
		t.Fatalf("BitsConsumed = %d, want 32", split.BitsConsumed())
	}
}

func TestBitBufferReadBitAndUnread(t *testing.T) {
	t.Parallel()

	var buf alacint.BitBuffer

	buf.Reset([]byte{0b10110000, 0xFF})

	for idx, want := range []uint32{1, 0, 1, 1, 0} {
		if got := buf.ReadBit(); got != want {
			t.Fatalf("bit %d = %d, want %d", idx, got, want)
		}
	}

	buf.Unread(3)

	if got := buf.Read(3); got != 0b110 {
		t.Fatalf("after Unread(3): Read(3) = %#b, want 0b110", got)
	}

	// Cross a byte boundary backwards.
	buf.Skip(5)
	buf.Unread(4)

	if got := buf.Read(6); got != 0b001111 {
		t.Fatalf("across boundary: Read(6) = %#b, want 0b1111", got)
	}

	if err := buf.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBitBufferOverrun(t *testing.T) {
	t.Parallel()

	var buf alacint.BitBuffer

	buf.Reset([]byte{0xFF})

	_ = buf.Read(8)
	if err := buf.Err(); err != nil {
		t.Fatalf("exact read flagged: %v", err)
	}

	_ = buf.Read(1)
	if err := buf.Err(); !errors.Is(err, alacint.ErrBitstreamOverrun) {
		t.Fatalf("expected ErrBitstreamOverrun, got %v", err)
	}

	// Reads far past the padding must not panic and must stay flagged.
	for range 8 {
		_ = buf.Read(32)
	}

	if err := buf.Err(); !errors.Is(err, alacint.ErrBitstreamOverrun) {
		t.Fatalf("expected sticky ErrBitstreamOverrun, got %v", err)
	}

	buf.Reset([]byte{0x80})

	if err := buf.Err(); err != nil {
		t.Fatalf("Reset did not clear overrun: %v", err)
	}

	if got := buf.ReadBit(); got != 1 {
		t.Fatalf("ReadBit after Reset = %d, want 1", got)
	}
}
