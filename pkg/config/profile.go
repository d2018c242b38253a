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

// Package config composes layered TOML profiles into a single runtime
// configuration. Layers are named "category/name" (bases/*, features/*,
// envs/*, backends/*, presets/*) and may extend other layers; later layers
// in a load_multi call override earlier ones.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	serr "github.com/kadirpekel/substrate/pkg/errors"
)

// MaxExtendsDepth bounds the recursion depth of the extends chain.
const MaxExtendsDepth = 10

// ProfileHeader is the mandatory [profile] section of every layer.
type ProfileHeader struct {
	Extends     []string `toml:"extends"`
	Name        string   `toml:"name"`
	Description string   `toml:"description"`
}

// Layer is a single loaded TOML document: its header plus the remaining
// fields as a generic tree, ready to be merged into an accumulator.
type Layer struct {
	Path   string
	Header ProfileHeader
	Fields map[string]any
}

// Source resolves a layer name ("bases/default") to raw TOML bytes. A
// filesystem- or embed-backed implementation is supplied by the caller;
// the composer itself is storage-agnostic.
type Source interface {
	Load(layerName string) ([]byte, error)
}

// Composer loads and merges layers from a Source.
type Composer struct {
	source Source
}

// NewComposer constructs a Composer backed by the given Source.
func NewComposer(source Source) *Composer {
	return &Composer{source: source}
}

// LoadMulti loads each of layerNames in order, resetting the circular-
// extends detector for each top-level layer, and merges them into a
// single map with later layers overriding earlier ones.
func (c *Composer) LoadMulti(layerNames []string) (map[string]any, error) {
	result := map[string]any{}
	for _, name := range layerNames {
		visited := map[string]bool{}
		merged, err := c.loadLayer(name, visited, 0)
		if err != nil {
			return nil, err
		}
		result = mergeMaps(result, merged)
	}
	return result, nil
}

// Load loads a single top-level layer and all of its extends chain.
func (c *Composer) Load(layerName string) (map[string]any, error) {
	return c.loadLayer(layerName, map[string]bool{}, 0)
}

func (c *Composer) loadLayer(name string, visited map[string]bool, depth int) (map[string]any, error) {
	if depth > MaxExtendsDepth {
		return nil, serr.New(serr.Configuration, "config", "loadLayer",
			fmt.Sprintf("extends chain too deep loading %q (max %d)", name, MaxExtendsDepth))
	}
	if visited[name] {
		return nil, serr.New(serr.Configuration, "config", "loadLayer",
			fmt.Sprintf("circular extends detected at %q", name))
	}
	visited[name] = true

	raw, err := c.source.Load(name)
	if err != nil {
		return nil, serr.Wrap(serr.Configuration, "config", "loadLayer",
			fmt.Sprintf("loading layer %q", name), err)
	}

	layer, err := parseLayer(name, raw)
	if err != nil {
		return nil, err
	}

	accumulated := map[string]any{}
	for _, parent := range layer.Header.Extends {
		// Each branch of the extends DAG gets its own copy of the visited
		// set so diamond inheritance (A extends B,C; B and C both extend D)
		// is legal, while a genuine cycle (A -> B -> A) is still caught.
		branchVisited := make(map[string]bool, len(visited))
		for k, v := range visited {
			branchVisited[k] = v
		}
		parentFields, err := c.loadLayer(parent, branchVisited, depth+1)
		if err != nil {
			return nil, err
		}
		accumulated = mergeMaps(accumulated, parentFields)
	}

	return mergeMaps(accumulated, layer.Fields), nil
}

func parseLayer(name string, raw []byte) (*Layer, error) {
	var doc struct {
		Profile ProfileHeader `toml:"profile"`
	}
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, serr.Wrap(serr.Configuration, "config", "parseLayer",
			fmt.Sprintf("decoding profile header for %q", name), err)
	}

	var fields map[string]any
	if err := toml.Unmarshal(raw, &fields); err != nil {
		return nil, serr.Wrap(serr.Configuration, "config", "parseLayer",
			fmt.Sprintf("decoding body for %q", name), err)
	}
	delete(fields, "profile")

	return &Layer{Path: name, Header: doc.Profile, Fields: fields}, nil
}

// mergeMaps implements the merge rule of §4.11: scalars and maps from src
// overlay dst by key; nested maps merge recursively rather than replace
// wholesale, matching hector's config-layering conventions.
func mergeMaps(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		if existing, ok := out[k]; ok {
			if existingMap, ok1 := existing.(map[string]any); ok1 {
				if newMap, ok2 := v.(map[string]any); ok2 {
					out[k] = mergeMaps(existingMap, newMap)
					continue
				}
			}
		}
		out[k] = v
	}
	return out
}
