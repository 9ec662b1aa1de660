package main

import (
	"os"

	"github.com/alecthomas/kong"
	"github.com/go-kit/log"
)

type globalOptions struct {
	ConfigFile string `help:"yaml config file overriding engine defaults" type:"path"`
}

var cli struct {
	globalOptions

	Index indexCmd `cmd:"" help:"Index documents into an index directory."`
	Query queryCmd `cmd:"" help:"Run a boolean query against an index."`
	Stats statsCmd `cmd:"" help:"Print statistics for an index."`
}

func main() {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))

	ctx := kong.Parse(
		&cli,
		kong.Name("quill-cli"),
		kong.Description("command line utility for quill indexes"),
		kong.UsageOnError(),
		kong.BindTo(logger, (*log.Logger)(nil)),
	)

	err := ctx.Run(&cli.globalOptions)
	ctx.FatalIfErrorf(err)
}
