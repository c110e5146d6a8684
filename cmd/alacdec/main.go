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

// Command alacdec decodes the ALAC track of an M4A file to WAV or raw PCM.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mycophonic/alacdec"
)

type options struct {
	raw     bool
	start   int64
	lenient bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	flags := flag.NewFlagSet("alacdec", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "usage: alacdec [flags] input.m4a output\n\n")
		flags.PrintDefaults()
	}

	var opts options

	flags.BoolVar(&opts.raw, "raw", false, "write raw little-endian PCM instead of WAV ('-' writes to stdout)")
	flags.Int64Var(&opts.start, "start", 0, "first sample frame to decode")
	flags.BoolVar(&opts.lenient, "lenient", false, "skip frames that fail to decode instead of stopping")
	verbose := flags.Bool("v", false, "log debug details")

	if err := flags.Parse(args); err != nil {
		return 2
	}

	if flags.NArg() != 2 {
		flags.Usage()

		return 2
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if err := decodeFile(logger, flags.Arg(0), flags.Arg(1), opts); err != nil {
		logger.Error("decode failed", "input", flags.Arg(0), "err", err)

		return 1
	}

	return 0
}

func decodeFile(logger *slog.Logger, input, output string, opts options) error {
	in, reopen, err := openInput(input)
	if err != nil {
		return err
	}
	defer in.Close()

	var sessOpts []alac.Option
	if reopen != nil {
		sessOpts = append(sessOpts, alac.WithReopen(reopen))
	}

	sess, err := alac.Open(in, sessOpts...)
	if err != nil {
		return err
	}
	defer sess.Close()

	logger.Info("stream",
		"sample_rate", sess.SampleRate(),
		"channels", sess.NumChannels(),
		"bits", sess.BitsPerSample(),
		"samples", sess.TotalSamples())

	if opts.start > 0 {
		if err := sess.SetPosition(opts.start); err != nil {
			return err
		}

		logger.Debug("seeked", "sample", opts.start)
	}

	var sink frameSink

	if opts.raw {
		sink, err = newRawSink(output, sess.BytesPerSample())
	} else {
		sink, err = newWAVSink(output, sess)
	}

	if err != nil {
		return err
	}

	if err := pump(logger, sess, sink, opts.lenient); err != nil {
		_ = sink.Close()

		return err
	}

	return sink.Close()
}

// openInput opens path, or stdin for "-". Files can be reopened when the
// audio data precedes the metadata.
func openInput(path string) (io.ReadCloser, func() (io.Reader, error), error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening input: %w", err)
	}

	reopen := func() (io.Reader, error) {
		return os.Open(path)
	}

	return file, reopen, nil
}

// pump moves decoded frames from sess into sink until end of stream.
func pump(logger *slog.Logger, sess *alac.Session, sink frameSink, lenient bool) error {
	samples := make([]int32, sess.FrameLen())
	bps := sess.BytesPerSample()
	frames := 0

	for {
		n, err := sess.UnpackSamples(samples)
		if errors.Is(err, io.EOF) {
			logger.Debug("done", "frames", frames, "position", sess.Position())

			return nil
		}

		if err != nil {
			if lenient && errors.Is(err, alac.ErrDecode) {
				logger.Warn("skipping frame", "position", sess.Position(), "err", err)

				continue
			}

			return err
		}

		if err := sink.WriteSamples(samples[:n/bps]); err != nil {
			return err
		}

		frames++
	}
}
