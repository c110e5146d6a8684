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

// Command alacinfo prints the stream parameters of an ALAC M4A file and,
// optionally, its full box tree.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mycophonic/alacdec"
	"github.com/mycophonic/alacdec/internal/mp4"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("alacinfo", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "usage: alacinfo [flags] input.m4a\n\n")
		flags.PrintDefaults()
	}

	boxes := flags.Bool("boxes", false, "dump the container box tree")

	if err := flags.Parse(args); err != nil {
		return 2
	}

	if flags.NArg() != 1 {
		flags.Usage()

		return 2
	}

	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := inspect(stdout, flags.Arg(0), *boxes); err != nil {
		logger.Error("inspect failed", "input", flags.Arg(0), "err", err)

		return 1
	}

	return 0
}

func inspect(w io.Writer, path string, boxes bool) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer file.Close()

	if boxes {
		if err := mp4.DumpBoxes(w, file); err != nil {
			return err
		}

		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewinding input: %w", err)
		}

		fmt.Fprintln(w)
	}

	sess, err := alac.Open(file)
	if err != nil {
		return err
	}
	defer sess.Close()

	printInfo(w, sess)

	return nil
}

func printInfo(w io.Writer, sess *alac.Session) {
	config := sess.Config()
	total := sess.TotalSamples()
	duration := streamDuration(total, sess.SampleRate())

	fmt.Fprintf(w, "sample rate:       %d Hz\n", sess.SampleRate())
	fmt.Fprintf(w, "channels:          %d\n", sess.NumChannels())
	fmt.Fprintf(w, "bits per sample:   %d\n", sess.BitsPerSample())
	fmt.Fprintf(w, "bytes per sample:  %d\n", sess.BytesPerSample())
	fmt.Fprintf(w, "total samples:     %d\n", total)
	fmt.Fprintf(w, "duration:          %s\n", duration.Round(time.Millisecond))
	fmt.Fprintf(w, "frame length:      %d\n", config.MaxSamplesPerFrame)
	fmt.Fprintf(w, "compat version:    %d\n", config.CompatibleVersion)
	fmt.Fprintf(w, "rice history mult: %d\n", config.RiceHistoryMult)
	fmt.Fprintf(w, "rice init history: %d\n", config.RiceInitialHistory)
	fmt.Fprintf(w, "rice k modifier:   %d\n", config.RiceKModifier)
	fmt.Fprintf(w, "max run:           %d\n", config.MaxRun)
	fmt.Fprintf(w, "max frame bytes:   %d\n", config.MaxCodedFrameSize)
	fmt.Fprintf(w, "avg bit rate:      %d\n", config.AvgBitRate)
}

// streamDuration converts a sample count to playback time. The count is scaled
// in float seconds since total*time.Second overflows int64 past about 2^33
// samples.
func streamDuration(total int64, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}

	return time.Duration(float64(total) / float64(rate) * float64(time.Second))
}
