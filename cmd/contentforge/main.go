package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/contentforge/cmd/contentforge/commands"
	"git.home.luguber.info/inful/contentforge/internal/foundation/errors"
	"git.home.luguber.info/inful/contentforge/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("contentforge"),
		kong.Description("ContentForge: markdown in, optimized static site out."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	global := &commands.Global{Logger: slog.Default()}
	err := parser.Run(global, cli)
	errors.NewCLIErrorAdapter(cli.Verbose, global.Logger).HandleError(err)
}
