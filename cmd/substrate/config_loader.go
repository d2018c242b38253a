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
	"strings"

	"github.com/kadirpekel/substrate/pkg/config"
)

// loadRuntimeConfig composes configRoot's named layers (comma-separated,
// in override order) into a typed RuntimeConfig. An empty layers string
// yields the zero-value RuntimeConfig, letting every subcommand run
// against defaults without requiring a config directory.
func loadRuntimeConfig(configRoot, layers string) (config.RuntimeConfig, error) {
	var out config.RuntimeConfig
	if strings.TrimSpace(layers) == "" {
		return out, nil
	}

	names := strings.Split(layers, ",")
	for i, n := range names {
		names[i] = strings.TrimSpace(n)
	}

	composer := config.NewComposer(config.NewFileSource(configRoot))
	fields, err := composer.LoadMulti(names)
	if err != nil {
		return out, fmt.Errorf("composing layers %v: %w", names, err)
	}

	if err := config.Decode(fields, &out); err != nil {
		return out, fmt.Errorf("decoding composed config: %w", err)
	}
	return out, nil
}
