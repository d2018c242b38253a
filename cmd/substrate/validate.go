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

package main

import (
	"fmt"
)

// ValidateCmd composes the requested layers and reports the resulting
// RuntimeConfig, failing with a non-zero exit if composition or
// decoding fails.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg, err := loadRuntimeConfig(cli.ConfigRoot, cli.Layers)
	if err != nil {
		return err
	}

	fmt.Println("configuration is valid")
	fmt.Printf("  runtime.max_recovery_attempts: %d\n", cfg.Runtime.MaxRecoveryAttempts)
	fmt.Printf("  runtime.default_tenant:        %s\n", cfg.Runtime.DefaultTenant)
	fmt.Printf("  storage.dsn:                   %s\n", redactDSN(cfg.Storage.DSN))
	fmt.Printf("  storage.artifact_inline_limit: %d bytes\n", cfg.Storage.ArtifactInlineLimit)
	fmt.Printf("  backends configured:           %d\n", len(cfg.Backends))
	return nil
}

// redactDSN hides credentials embedded in a connection string before it
// ever reaches stdout.
func redactDSN(dsn string) string {
	if dsn == "" {
		return "(unset, in-memory backend)"
	}
	at := -1
	for i, r := range dsn {
		if r == '@' {
			at = i
		}
	}
	if at == -1 {
		return dsn
	}
	return "***@" + dsn[at+1:]
}
