package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/loopcast/internal/config"
	"github.com/smazurov/loopcast/internal/ffmpeg"
	"github.com/smazurov/loopcast/internal/session"
)

// CreateCommandCmd creates the command command, which prints the ffmpeg
// invocation a start request would run.
func CreateCommandCmd(settings *Settings) *cobra.Command {
	var overrides ffmpeg.Overrides

	cmd := &cobra.Command{
		Use:   "command [stream-key] [video-path]",
		Short: "Print the ffmpeg command for a stream",
		Long: `Builds the ffmpeg command line a POST /start-stream with the same stream key, ` +
			`video path and encoding flags would spawn, using the [encoding] defaults of the config file.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := buildCommandLine(settings, args[0], args[1], overrides)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
			return nil
		},
	}

	cmd.Flags().StringVar(&overrides.Bitrate, "bitrate", "", "Target video bitrate (e.g. 6000k)")
	cmd.Flags().StringVar(&overrides.BufferSize, "bufsize", "", "Rate control buffer size")
	cmd.Flags().StringVar(&overrides.MaxRate, "maxrate", "", "Maximum video bitrate")
	cmd.Flags().IntVarP(&overrides.GOP, "gop", "g", 0, "Keyframe interval in frames")
	cmd.Flags().IntVar(&overrides.AudioChannels, "ac", 0, "Audio channel count")
	cmd.Flags().IntVar(&overrides.AudioSampleRate, "ar", 0, "Audio sample rate in Hz")
	cmd.Flags().StringVar(&overrides.Preset, "preset", "", "Encoder preset")

	return cmd
}

func buildCommandLine(settings *Settings, key, source string, overrides ffmpeg.Overrides) (string, error) {
	defaults, err := config.LoadEncodingDefaults(settings.ConfigPath)
	if err != nil {
		return "", err
	}
	params := defaults.WithOverrides(overrides)
	if err := params.Validate(); err != nil {
		return "", fmt.Errorf("invalid encoding parameters: %w", err)
	}

	binary := settings.FFmpegPath
	if binary == "" {
		binary = ffmpeg.Base()
	}
	destination := session.DestinationURL(settings.RTMPBaseURL, key)
	return ffmpeg.BuildCommand(binary, source, destination, params), nil
}
