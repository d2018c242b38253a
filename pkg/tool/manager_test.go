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

package tool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func echoTool(ctx context.Context, params map[string]any) (string, error) {
	return params["text"].(string), nil
}

func TestDiscoverToolsFiltersByCategoryAndText(t *testing.T) {
	m := NewManager(CacheConfig{}, false)
	m.Register(Info{Name: "search", Description: "web search tool", Categories: []string{"web"}, Handler: echoTool})
	m.Register(Info{Name: "calc", Description: "arithmetic", Categories: []string{"math"}, Handler: echoTool})

	results := m.DiscoverTools(context.Background(), Query{Categories: []string{"web"}})
	require.Len(t, results, 1)
	require.Equal(t, "search", results[0].Name)

	results = m.DiscoverTools(context.Background(), Query{TextSubstring: "arith"})
	require.Len(t, results, 1)
	require.Equal(t, "calc", results[0].Name)
}

func TestInvokeToolValidatesParamsAgainstSchema(t *testing.T) {
	m := NewManager(CacheConfig{}, true)
	m.Register(Info{
		Name:    "greet",
		Handler: echoTool,
		Schema: map[string]any{
			"type":     "object",
			"required": []string{"text"},
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
		},
	})

	out, err := m.InvokeTool(context.Background(), "greet", map[string]any{"text": "hi"})
	require.NoError(t, err)
	require.Equal(t, "hi", out)

	_, err = m.InvokeTool(context.Background(), "greet", map[string]any{})
	require.Error(t, err)
}

func TestInvokeToolEnforcesHardTimeout(t *testing.T) {
	m := NewManager(CacheConfig{}, false)
	m.Register(Info{
		Name:         "slow",
		MaxExecution: 10,
		Handler: func(ctx context.Context, params map[string]any) (string, error) {
			select {
			case <-time.After(time.Second):
				return "too late", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
	})

	_, err := m.InvokeTool(context.Background(), "slow", nil)
	require.Error(t, err)
}

func TestToolAvailableAndInfoCachesAreIndependent(t *testing.T) {
	m := NewManager(CacheConfig{CacheAvailability: true, CacheMetadata: false}, false)
	m.Register(Info{Name: "t1", Handler: echoTool})

	require.True(t, m.ToolAvailable(context.Background(), "t1"))

	info, ok := m.GetToolInfo(context.Background(), "t1")
	require.True(t, ok)
	require.Equal(t, "t1", info.Name)

	// re-register must replace the metadata GetToolInfo returns
	m.Register(Info{Name: "t1", Handler: echoTool, Description: "updated"})
	info, ok = m.GetToolInfo(context.Background(), "t1")
	require.True(t, ok)
	require.Equal(t, "updated", info.Description)
}

type schemaFixture struct {
	Query string `json:"query" jsonschema:"required,description=search text"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=max results"`
}

func TestGenerateSchemaFromStruct(t *testing.T) {
	schema, err := GenerateSchema[schemaFixture]()
	require.NoError(t, err)
	require.Equal(t, "object", schema["type"])
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, props, "query")
	require.Contains(t, props, "limit")
}
