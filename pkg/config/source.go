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

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	serr "github.com/kadirpekel/substrate/pkg/errors"
)

// FileSource resolves "category/name" layers to files under Root named
// Root/category/name.toml, e.g. "bases/default" -> Root/bases/default.toml.
type FileSource struct {
	Root string
}

// NewFileSource constructs a FileSource rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{Root: dir}
}

func (f *FileSource) Load(layerName string) ([]byte, error) {
	clean := filepath.Clean(layerName)
	if strings.HasPrefix(clean, "..") {
		return nil, serr.New(serr.Configuration, "config", "FileSource.Load",
			fmt.Sprintf("invalid layer name %q", layerName))
	}
	path := filepath.Join(f.Root, clean+".toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, serr.Wrap(serr.NotFound, "config", "FileSource.Load",
			fmt.Sprintf("reading layer file %q", path), err)
	}
	return data, nil
}

// MapSource is an in-memory Source, useful for tests and for embedding
// default layers compiled into the binary.
type MapSource map[string][]byte

func (m MapSource) Load(layerName string) ([]byte, error) {
	data, ok := m[layerName]
	if !ok {
		return nil, serr.New(serr.NotFound, "config", "MapSource.Load",
			fmt.Sprintf("unknown layer %q", layerName))
	}
	return data, nil
}

// Decode re-marshals a merged field map into a typed struct via TOML's
// MapMarshaler/Unmarshaler support, so callers can work with a
// strongly-typed RuntimeConfig instead of map[string]any.
func Decode(fields map[string]any, out any) error {
	var sb strings.Builder
	enc := toml.NewEncoder(&sb)
	if err := enc.Encode(fields); err != nil {
		return serr.Wrap(serr.Configuration, "config", "Decode", "re-encoding merged fields", err)
	}
	if _, err := toml.Decode(sb.String(), out); err != nil {
		return serr.Wrap(serr.Configuration, "config", "Decode", "decoding into target", err)
	}
	return nil
}
