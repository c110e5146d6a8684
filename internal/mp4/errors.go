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

package mp4

import (
	"errors"
	"fmt"
)

// MP4 container parsing error sentinels.
//
// Every structural fault wraps ErrMalformed alongside its specific sentinel,
// so callers can test for either.
//
//revive:disable:exported
var (
	ErrMalformed  = errors.New("mp4: malformed container")
	ErrAtomSize   = errors.New("mp4: atom size out of range")
	ErrUnknown    = errors.New("mp4: unexpected atom")
	ErrBrand      = errors.New("mp4: not an M4A file")
	ErrEntryCount = errors.New("mp4: unexpected sample description count")
	ErrFormat     = errors.New("mp4: sample description is not ALAC")
	ErrCodecData  = errors.New("mp4: invalid ALAC codec data")
	ErrMissing    = errors.New("mp4: required atom missing")
	ErrTable      = errors.New("mp4: inconsistent sample table")

	ErrUnsupported        = errors.New("mp4: unsupported feature")
	ErrNotSeekable        = errors.New("mp4: source is not seekable")
	ErrSampleRange        = errors.New("mp4: sample index out of range")
	ErrPositionOutOfRange = errors.New("mp4: sample position out of range")
)

// malformed wraps kind with ErrMalformed and a detail message.
func malformed(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrMalformed, kind, fmt.Sprintf(format, args...))
}
