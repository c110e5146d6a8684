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
	"fmt"
	"io"
	"strings"

	gomp4 "github.com/abema/go-mp4"
)

// DumpBoxes writes the full box tree of r to w, one box per line, with the
// decoded payload of every box type go-mp4 understands. Unlike Walk it is
// lenient: unknown boxes are listed without descending into them.
func DumpBoxes(w io.Writer, r io.ReadSeeker) error {
	_, err := gomp4.ReadBoxStructure(r, func(h *gomp4.ReadHandle) (any, error) {
		indent := strings.Repeat("  ", len(h.Path)-1)

		if _, err := fmt.Fprintf(w, "%s%s size=%d offset=%d", indent, h.BoxInfo.Type, h.BoxInfo.Size,
			h.BoxInfo.Offset); err != nil {
			return nil, err
		}

		if !h.BoxInfo.IsSupportedType() || h.BoxInfo.Type == gomp4.BoxTypeMdat() {
			_, err := fmt.Fprintln(w)

			return nil, err
		}

		box, _, err := h.ReadPayload()
		if err != nil {
			_, werr := fmt.Fprintf(w, " (unreadable: %v)\n", err)

			return nil, werr
		}

		str, err := gomp4.Stringify(box, h.BoxInfo.Context)
		if err != nil {
			return nil, err
		}

		if _, err := fmt.Fprintf(w, " %s\n", str); err != nil {
			return nil, err
		}

		vals, err := h.Expand()
		if err != nil {
			_, werr := fmt.Fprintf(w, "%s  (children unreadable: %v)\n", indent, err)

			return nil, werr
		}

		return vals, nil
	})
	if err != nil {
		return fmt.Errorf("dumping box structure: %w", err)
	}

	return nil
}
