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

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mycophonic/alacdec/internal/testutil"
)

func TestRun(t *testing.T) {
	t.Parallel()

	track := testutil.Track{
		SampleSize:  16,
		NumChannels: 1,
		SampleRate:  8000,
		FrameLength: 4000,
		Frames: [][]byte{
			testutil.VerbatimFrame(make([]int32, 4000), 1, 16),
			testutil.VerbatimFrame(make([]int32, 2000), 1, 16),
		},
		Durations: []uint32{4000, 2000},
	}

	path := filepath.Join(t.TempDir(), "in.m4a")
	if err := os.WriteFile(path, testutil.BuildM4A(t, track).Data, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-boxes", path}, &stdout, &stderr); code != 0 {
		t.Fatalf("run exited %d: %s", code, stderr.String())
	}

	out := stdout.String()

	for _, want := range []string{
		"sample rate:       8000 Hz",
		"total samples:     6000",
		"duration:          750ms",
		"frame length:      4000",
		"stbl",
		"stsd",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestRunRejectsUsage(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	if code := run(nil, &stdout, &stderr); code != 2 {
		t.Fatalf("run exited %d, want 2", code)
	}

	if !strings.Contains(stderr.String(), "usage: alacinfo") {
		t.Fatalf("expected usage text, got: %s", stderr.String())
	}
}

func TestStreamDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		total int64
		rate  int
		want  time.Duration
	}{
		{total: 6000, rate: 8000, want: 750 * time.Millisecond},
		{total: 44100 * 3600, rate: 44100, want: time.Hour},
		{total: 44100 * 1_000_000, rate: 44100, want: 1_000_000 * time.Second},
		{total: 1 << 40, rate: 0, want: 0},
	}

	for _, tc := range tests {
		if got := streamDuration(tc.total, tc.rate); got != tc.want {
			t.Errorf("streamDuration(%d, %d) = %v, want %v", tc.total, tc.rate, got, tc.want)
		}
	}
}
