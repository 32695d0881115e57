package main

import (
	"os"

	"github.com/naoina/toml"
	"github.com/ribose-io/ribose"

	"gopkg.in/urfave/cli.v1"
)

// fileConfig is the shape of .ribose.toml: the subset of engine/loader
// knobs spec §6 calls out as environment configuration, loaded with
// naoina/toml the way cmd/gprobe/config.go loads go-probeum's TOML
// config before flags overlay it.
type fileConfig struct {
	Engine struct {
		InputBufferSize  *int  `toml:"input_buffer_size"`
		OutputBufferSize *int  `toml:"output_buffer_size"`
		MarkRunawayWarn  *bool `toml:"mark_runaway_warn"`
		ValidateVectors  *bool `toml:"validate_vectors"`
	} `toml:"engine"`
	Loader struct {
		Mmap      *bool `toml:"mmap"`
		CacheSize *int  `toml:"cache_size"`
	} `toml:"loader"`
}

// loadConfig builds a ribose.Config from defaults, an optional
// .ribose.toml (via the --config flag), and nothing else — CLI
// subcommands add their own flags on top where it matters.
func loadConfig(c *cli.Context) (*ribose.Config, error) {
	cfg := ribose.NewConfig()

	path := c.GlobalString("config")
	if path == "" {
		path = ".ribose.toml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return nil, err
	}

	if fc.Engine.InputBufferSize != nil {
		cfg.SetInt("engine.input_buffer_size", *fc.Engine.InputBufferSize)
	}
	if fc.Engine.OutputBufferSize != nil {
		cfg.SetInt("engine.output_buffer_size", *fc.Engine.OutputBufferSize)
	}
	if fc.Engine.MarkRunawayWarn != nil {
		cfg.SetBool("engine.mark_runaway_warn", *fc.Engine.MarkRunawayWarn)
	}
	if fc.Engine.ValidateVectors != nil {
		cfg.SetBool("engine.validate_vectors", *fc.Engine.ValidateVectors)
	}
	if fc.Loader.Mmap != nil {
		cfg.SetBool("loader.mmap", *fc.Loader.Mmap)
	}
	if fc.Loader.CacheSize != nil {
		cfg.SetInt("loader.cache_size", *fc.Loader.CacheSize)
	}
	return cfg, nil
}
