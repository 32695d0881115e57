package main

import (
	"log"
	"os"

	"gopkg.in/urfave/cli.v1"
)

const defaultWritePermission = 0644 // -rw-r--r--

var app = cli.NewApp()

func init() {
	app.Name = "ribose"
	app.Usage = "compile, run and inspect ribose transduction models"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "path to a .ribose.toml configuration file",
		},
	}
	app.Commands = []cli.Command{
		compileCommand,
		runCommand,
		decompileCommand,
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("ribose: %s", err.Error())
	}
}
