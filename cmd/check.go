package cmd

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/loopcast/internal/config"
	"github.com/smazurov/loopcast/internal/ffmpeg"
	"github.com/smazurov/loopcast/internal/version"
)

const ffmpegProbeTimeout = 5 * time.Second

// checkResult is one line of the check report.
type checkResult struct {
	Name   string
	Detail string
	Err    error
}

// CreateCheckCmd creates the check command.
func CreateCheckCmd(settings *Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "check [video-path...]",
		Short: "Check that streams can be started on this host",
		Long: `Verifies the ffmpeg executable runs, the [encoding] table of the config file is valid ` +
			`and every given video file is readable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, version.Get().Summary())

			results := runChecks(cmd.Context(), settings, args)
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(out, "FAIL  %-10s %v\n", r.Name, r.Err)
					continue
				}
				fmt.Fprintf(out, "ok    %-10s %s\n", r.Name, r.Detail)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d checks failed", failed, len(results))
			}
			return nil
		},
	}
}

func runChecks(ctx context.Context, settings *Settings, sources []string) []checkResult {
	if ctx == nil {
		ctx = context.Background()
	}

	results := []checkResult{checkFFmpeg(ctx, settings.FFmpegPath), checkEncoding(settings.ConfigPath)}
	for _, source := range sources {
		results = append(results, checkSource(source))
	}
	return results
}

func checkFFmpeg(ctx context.Context, binary string) checkResult {
	result := checkResult{Name: "ffmpeg"}
	if binary == "" {
		binary = ffmpeg.Base()
	}

	path, err := exec.LookPath(binary)
	if err != nil {
		result.Err = err
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, ffmpegProbeTimeout)
	defer cancel()
	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		result.Err = fmt.Errorf("%s -version: %w", path, err)
		return result
	}

	firstLine, _, _ := bufio.NewReader(bytes.NewReader(output)).ReadLine()
	result.Detail = fmt.Sprintf("%s (%s)", path, firstLine)
	return result
}

func checkEncoding(configPath string) checkResult {
	result := checkResult{Name: "encoding"}
	params, err := config.LoadEncodingDefaults(configPath)
	if err != nil {
		result.Err = err
		return result
	}
	result.Detail = fmt.Sprintf("%s/%s preset=%s bitrate=%s g=%d", params.VideoCodec, params.AudioCodec, params.Preset, params.Bitrate, params.GOP)
	return result
}

func checkSource(path string) checkResult {
	result := checkResult{Name: "source", Detail: path}

	f, err := os.Open(path)
	if err != nil {
		result.Err = err
		return result
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		result.Err = err
		return result
	}
	if !fi.Mode().IsRegular() {
		result.Err = fmt.Errorf("%s is not a regular file", path)
		return result
	}
	// Open succeeds on some unreadable files; reading one byte proves access.
	if _, err := f.Read(make([]byte, 1)); err != nil && !errors.Is(err, io.EOF) {
		result.Err = err
	}
	return result
}
