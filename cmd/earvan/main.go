// Command earvan runs a hearing-profile-driven listening enhancer:
// live microphone monitoring with a terminal spectrum display, or
// offline WAV rendering through the same processing chain.
package main

import (
	"github.com/alecthomas/kong"
)

var version = "0.1.0"

// CLI defines the command-line interface.
type CLI struct {
	Live     LiveCmd     `cmd:"" help:"Monitor the microphone through the enhancement chain with a live display."`
	File     FileCmd     `cmd:"" help:"Render a WAV file through the enhancement chain."`
	Devices  DevicesCmd  `cmd:"" help:"List audio devices."`
	Profiles ProfilesCmd `cmd:"" help:"List built-in hearing profiles."`
	Response ResponseCmd `cmd:"" help:"Print the EQ response for a profile and mode."`

	Version kong.VersionFlag `short:"v" help:"Show version information."`
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("earvan"),
		kong.Description("Assistive listening enhancer: per-band EQ, environment presets and gentle compression."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)
	ctx.FatalIfErrorf(ctx.Run())
}
