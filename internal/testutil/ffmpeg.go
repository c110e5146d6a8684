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

package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/mycophonic/agar/pkg/agar"
)

// EncodeOptions describes the raw PCM handed to ffmpeg.
type EncodeOptions struct {
	BitDepth   int
	SampleRate int
	Channels   int
}

// RequireFFmpeg skips the test when ffmpeg is not installed.
func RequireFFmpeg(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found")
	}
}

// EncodeALAC encodes little-endian signed PCM into an M4A file with ffmpeg
// and returns the file contents.
func EncodeALAC(t *testing.T, pcm []byte, opts EncodeOptions) []byte {
	t.Helper()

	RequireFFmpeg(t)

	tmpDir := t.TempDir()

	srcPath := filepath.Join(tmpDir, "source.raw")
	if err := os.WriteFile(srcPath, pcm, 0o600); err != nil {
		t.Fatalf("write source: %v", err)
	}

	sampleFmt := "s16p"
	if opts.BitDepth > 16 {
		sampleFmt = "s32p"
	}

	layout := "stereo"
	if opts.Channels == 1 {
		layout = "mono"
	}

	encPath := filepath.Join(tmpDir, "encoded.m4a")

	agar.FFmpegEncode(t, agar.FFmpegEncodeOptions{
		Src:        srcPath,
		Dst:        encPath,
		BitDepth:   opts.BitDepth,
		SampleRate: opts.SampleRate,
		Channels:   opts.Channels,
		CodecArgs:  []string{"-c:a", "alac", "-sample_fmt", sampleFmt},
		InputArgs:  []string{"-channel_layout", layout},
	})

	data, err := os.ReadFile(encPath)
	if err != nil {
		t.Fatalf("read encoded: %v", err)
	}

	return data
}
