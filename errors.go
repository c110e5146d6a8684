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
	"errors"
	"fmt"

	alacint "github.com/mycophonic/alacdec/internal/alac"
	mp4int "github.com/mycophonic/alacdec/internal/mp4"
)

// Public sentinel errors for consumer error matching.
var (
	// ErrContainer indicates a malformed or non-ALAC MP4 container
	// (bad atom sizes or ordering, wrong brand or format, inconsistent sample tables).
	ErrContainer = errors.New("invalid container")

	// ErrUnsupported indicates a valid stream using a feature this decoder
	// does not implement. *UnsupportedError values match it.
	ErrUnsupported = alacint.ErrUnsupported

	// ErrSeekUnavailable indicates a seek was needed on a source that cannot
	// seek and cannot be reopened.
	ErrSeekUnavailable = errors.New("seek unavailable")

	// ErrDecode indicates a failure while decoding a single frame.
	ErrDecode = errors.New("decode failed")

	// ErrPosition indicates a sample position past the end of the stream.
	ErrPosition = errors.New("sample position out of range")
)

// UnsupportedError names the unsupported feature and its offending value.
type UnsupportedError = alacint.UnsupportedError

// containerError maps an error from the container layer onto the public
// taxonomy. I/O errors pass through wrapped.
func containerError(err error) error {
	switch {
	case errors.Is(err, mp4int.ErrUnsupported):
		return fmt.Errorf("%w: %w", ErrUnsupported, err)
	case errors.Is(err, mp4int.ErrNotSeekable):
		return fmt.Errorf("%w: %w", ErrSeekUnavailable, err)
	case errors.Is(err, mp4int.ErrPositionOutOfRange):
		return fmt.Errorf("%w: %w", ErrPosition, err)
	case errors.Is(err, mp4int.ErrMalformed), errors.Is(err, mp4int.ErrSampleRange):
		return fmt.Errorf("%w: %w", ErrContainer, err)
	default:
		return fmt.Errorf("reading container: %w", err)
	}
}

// configError maps a frame decoder configuration error onto the public taxonomy.
func configError(err error) error {
	if errors.Is(err, alacint.ErrUnsupported) {
		return fmt.Errorf("codec config: %w", err)
	}

	return fmt.Errorf("%w: %w", ErrContainer, err)
}
