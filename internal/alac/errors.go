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
)

// ALAC decoder error sentinels.
//
//revive:disable:exported
var (
	ErrUnsupported      = errors.New("alac: unsupported feature")
	ErrBitstreamOverrun = errors.New("alac: bitstream overrun")
	ErrSampleOverrun    = errors.New("alac: sample count exceeds buffer")
	ErrOutputTooSmall   = errors.New("alac: output buffer too small")
	ErrInvalidConfig    = errors.New("alac: invalid codec configuration")
	ErrInvalidHeader    = errors.New("alac: invalid frame header")
)

// UnsupportedError reports a bitstream or configuration feature this decoder
// does not implement. It matches ErrUnsupported with errors.Is.
type UnsupportedError struct {
	Feature string
	Value   int
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("alac: unsupported %s: %d", e.Feature, e.Value)
}

// Is reports whether target is ErrUnsupported.
func (*UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}

func unsupported(feature string, value int) error {
	return &UnsupportedError{Feature: feature, Value: value}
}
