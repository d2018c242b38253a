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

package hooks

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// jsonReplayHook is a trivial ReplayableHook that round-trips a Context
// through JSON, used to exercise the Replayer wrapper.
type jsonReplayHook struct{}

func (jsonReplayHook) Execute(ctx context.Context, hctx *Context) (Result, error) {
	return Continue(), nil
}

func (jsonReplayHook) Metadata() Metadata          { return Metadata{Name: "json-replay"} }
func (jsonReplayHook) ShouldExecute(*Context) bool { return true }

func (jsonReplayHook) Serialize(hctx *Context) ([]byte, error) {
	return json.Marshal(hctx)
}

func (jsonReplayHook) Deserialize(data []byte) (*Context, error) {
	var hctx Context
	if err := json.Unmarshal(data, &hctx); err != nil {
		return nil, err
	}
	return &hctx, nil
}

// Testable property #12: serializing through a Replayer and then
// deserializing reproduces the original context exactly, with the
// injected metrics keys stripped back out.
func TestReplayRoundTripIntegrity(t *testing.T) {
	mc := NewMetricsCollector(nil)
	mc.RecordPreExecution(BeforeToolExecution)
	mc.RecordPostExecution(BeforeToolExecution, Continue(), 0, nil)

	replayer := NewReplayer(jsonReplayHook{}, mc, map[string]any{"sample_rate": 1.0})

	original := &Context{
		Point:         BeforeToolExecution,
		ComponentID:   "tool.search",
		CorrelationID: "corr-123",
		Data:          map[string]any{"query": "weather"},
		Metadata:      map[string]any{"origin": "cli"},
	}

	serialized, err := replayer.Serialize(original)
	require.NoError(t, err)

	restored, err := replayer.Deserialize(serialized)
	require.NoError(t, err)

	require.Equal(t, original.Point, restored.Point)
	require.Equal(t, original.ComponentID, restored.ComponentID)
	require.Equal(t, original.CorrelationID, restored.CorrelationID)
	require.Equal(t, original.Data, restored.Data)
	require.Equal(t, original.Metadata, restored.Metadata)

	_, hasSnapshot := restored.Metadata[metaMetricsSnapshot]
	_, hasConfig := restored.Metadata[metaMetricsConfig]
	require.False(t, hasSnapshot)
	require.False(t, hasConfig)
}
