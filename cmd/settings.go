package cmd

// Settings carries the root options subcommands depend on. main fills it
// once the options are parsed, before any subcommand runs.
type Settings struct {
	ConfigPath  string
	FFmpegPath  string
	RTMPBaseURL string
}
