package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/ribose-io/ribose"

	"gopkg.in/urfave/cli.v1"
)

var decompileCommand = cli.Command{
	Name:      "decompile",
	Usage:     "dump a transducer's equivalence map and kernel rows",
	ArgsUsage: "<model.ribose> <transducer>",
	Action:    runDecompile,
}

func runDecompile(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.NewExitError("usage: ribose decompile <model.ribose> <transducer>", 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	model, err := ribose.LoadModelFile(c.Args().Get(0), cfg)
	if err != nil {
		return err
	}
	ord, err := model.TransducerOrdinal(c.Args().Get(1))
	if err != nil {
		return err
	}
	tr := model.Transducer(ord)

	out := colorableStdout()
	bold := color.New(color.Bold)
	bold.Fprintf(out, ";; transducer %q, %d states, %d classes, initial=%d\n",
		tr.Name, tr.NumStates(), tr.Classes, tr.Initial)

	equivTable := tablewriter.NewWriter(out)
	equivTable.SetHeader([]string{"input", "class"})
	for i, cls := range tr.InputEquivalents {
		equivTable.Append([]string{strconv.Itoa(i), strconv.Itoa(int(cls))})
	}
	equivTable.Render()

	fmt.Fprintln(out)
	fmt.Fprint(out, tr.DumpKernel())
	return nil
}

func colorableStdout() io.Writer {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		return color.Output
	}
	return colorable.NewNonColorable(os.Stdout)
}
