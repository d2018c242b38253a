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

import "encoding/json"

// Private metadata keys stamped onto a Context before it's handed to a
// ReplayableHook's Serialize, and stripped back out on Deserialize.
const (
	metaMetricsSnapshot = "_metrics_snapshot"
	metaMetricsConfig   = "_metrics_config"
)

// Replayer wraps a ReplayableHook, attaching a metrics snapshot and the
// collector's config to the context before serialization and removing
// them again on deserialization, so round-tripping through Serialize then
// Deserialize reproduces the original context exactly (testable property
// #12).
type Replayer struct {
	hook    ReplayableHook
	metrics *MetricsCollector
	config  map[string]any
}

// NewReplayer constructs a Replayer. metrics and config may both be nil.
func NewReplayer(hook ReplayableHook, metrics *MetricsCollector, config map[string]any) *Replayer {
	return &Replayer{hook: hook, metrics: metrics, config: config}
}

// Serialize attaches the metrics snapshot/config to hctx.Metadata (without
// mutating the caller's context) and delegates to the wrapped hook.
func (r *Replayer) Serialize(hctx *Context) ([]byte, error) {
	enriched := *hctx
	meta := make(map[string]any, len(hctx.Metadata)+2)
	for k, v := range hctx.Metadata {
		meta[k] = v
	}

	if r.metrics != nil {
		_, _, _, snap := r.metrics.Snapshot(hctx.Point)
		raw, err := json.Marshal(snap)
		if err != nil {
			return nil, err
		}
		var asMap map[string]any
		if err := json.Unmarshal(raw, &asMap); err != nil {
			return nil, err
		}
		meta[metaMetricsSnapshot] = asMap
	}
	if r.config != nil {
		meta[metaMetricsConfig] = r.config
	}
	enriched.Metadata = meta

	return r.hook.Serialize(&enriched)
}

// Deserialize delegates to the wrapped hook then strips the private
// metrics keys back out, restoring the context to its pre-Serialize form.
func (r *Replayer) Deserialize(data []byte) (*Context, error) {
	hctx, err := r.hook.Deserialize(data)
	if err != nil {
		return nil, err
	}
	if hctx.Metadata != nil {
		delete(hctx.Metadata, metaMetricsSnapshot)
		delete(hctx.Metadata, metaMetricsConfig)
	}
	return hctx, nil
}
