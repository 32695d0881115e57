package main

import (
	"os"

	"github.com/ribose-io/ribose"

	"gopkg.in/urfave/cli.v1"
)

var compileCommand = cli.Command{
	Name:      "compile",
	Usage:     "pack a textual model description into the binary model format",
	ArgsUsage: "<description.json> <output.ribose>",
	Action:    runCompile,
}

func runCompile(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.NewExitError("usage: ribose compile <description.json> <output.ribose>", 1)
	}
	raw, err := os.ReadFile(c.Args().Get(0))
	if err != nil {
		return err
	}
	model, err := ribose.DecodeModelText(raw, ribose.BuiltinParamDecoder)
	if err != nil {
		return err
	}
	return os.WriteFile(c.Args().Get(1), ribose.EncodeModel(model), defaultWritePermission)
}
