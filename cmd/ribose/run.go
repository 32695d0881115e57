package main

import (
	"fmt"
	"io"
	"os"

	"github.com/peterh/liner"
	"github.com/ribose-io/ribose"

	"gopkg.in/urfave/cli.v1"
)

var runCommand = cli.Command{
	Name:      "run",
	Usage:     "drive a transducer against a file or the terminal",
	ArgsUsage: "<model.ribose> <transducer>",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "input", Usage: "input file path (default stdin)"},
		cli.BoolFlag{Name: "interactive", Usage: "read input lines from an interactive prompt"},
	},
	Action: runRun,
}

func runRun(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.NewExitError("usage: ribose run <model.ribose> <transducer>", 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	model, err := ribose.LoadModelFile(c.Args().Get(0), cfg)
	if err != nil {
		return err
	}
	t, err := ribose.NewTransductor(model, nil, cfg)
	if err != nil {
		return err
	}
	t.SetOutput(ribose.WriterSink{W: os.Stdout})
	if err := t.Start(c.Args().Get(1)); err != nil {
		return err
	}

	if c.Bool("interactive") {
		return runInteractive(t)
	}
	return runBatch(t, c.String("input"))
}

func runBatch(t *ribose.Transductor, inputPath string) error {
	var r io.Reader = os.Stdin
	if inputPath != "" {
		f, err := os.Open(inputPath)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	buf, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if err := t.Push(buf); err != nil {
		return err
	}
	status, err := t.Run()
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "ribose: run ended in status %s\n", status)
	return nil
}

func runInteractive(t *ribose.Transductor) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		text, err := line.Prompt("ribose> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				return nil
			}
			return err
		}
		line.AppendHistory(text)

		if err := t.Push([]byte(text + "\n")); err != nil {
			return err
		}
		status, err := t.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "ribose: %s\n", err.Error())
			continue
		}
		if status == ribose.StatusStopped {
			return nil
		}
	}
}
