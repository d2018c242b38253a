// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command substrate is the CLI for the scriptable agent runtime.
//
// Usage:
//
//	substrate serve --config-root ./config --layers bases/default,envs/prod
//	substrate validate --config-root ./config --layers bases/default
//	substrate migrate --config-root ./config --from 1.0.0 --to 2.0.0
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/substrate/pkg/logger"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the runtime: storage, tool manager, hook executor, consolidation daemon."`
	Validate ValidateCmd `cmd:"" help:"Compose and validate a layered configuration."`
	Migrate  MigrateCmd  `cmd:"" help:"Run a state migration between two schema versions."`

	ConfigRoot string `help:"Root directory holding layered TOML config files." type:"path" default:"./config"`
	Layers     string `help:"Comma-separated layer names to compose, in order (e.g. bases/default,envs/prod)."`
	LogLevel   string `help:"Log level (debug, info, warn, error)." default:"info"`
	Tenant     string `help:"Tenant id for scoped operations." default:"default"`
}

// VersionCmd prints the build version.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("substrate %s\n", version)
	return nil
}

func main() {
	cli := CLI{}
	kctx := kong.Parse(&cli,
		kong.Name("substrate"),
		kong.Description("Scriptable agent runtime"),
		kong.UsageOnError(),
	)

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}
	logger.Init(level, os.Stderr)

	err = kctx.Run(&cli)
	kctx.FatalIfErrorf(err)
}
