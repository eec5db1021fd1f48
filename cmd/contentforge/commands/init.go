package commands

import (
	"fmt"
	"io"

	"git.home.luguber.info/inful/contentforge/internal/config"
)

// InitCmd writes a starter configuration and project tree.
type InitCmd struct {
	Force bool `help:"Overwrite an existing configuration file"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	return runInit(root.Config, i.Force, g.out())
}

func runInit(path string, force bool, out io.Writer) error {
	if err := config.Init(path, force); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Configuration written to %s\n", path)

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	created, err := config.Scaffold(cfg)
	for _, f := range created {
		_, _ = fmt.Fprintf(out, "Created %s\n", f)
	}
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, "Run `contentforge dev` to preview the site")
	return nil
}
