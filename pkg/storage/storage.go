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

// Package storage implements the abstract KV/vector/artifact backend
// surface of §4.5, with an in-memory implementation for tests and a
// Postgres-backed implementation (row-level tenant isolation,
// bytea/large-object artifact split, content dedup) for production.
package storage

import (
	"context"
	"time"

	"github.com/kadirpekel/substrate/pkg/isolation"
)

// LargeObjectThreshold is the content-size boundary of §4.5: content
// strictly below this many bytes is inlined as bytea; content at or
// above it is stored as a large object.
const LargeObjectThreshold = 1 << 20 // 1 MiB

// KVStore is the key/value surface every storage backend provides,
// scoped by (tenant, scope).
type KVStore interface {
	Get(ctx context.Context, tenant string, scope isolation.Scope, key string) ([]byte, bool, error)
	Put(ctx context.Context, tenant string, scope isolation.Scope, key string, value []byte) error
	Delete(ctx context.Context, tenant string, scope isolation.Scope, key string) error
	ListKeys(ctx context.Context, tenant string, scope isolation.Scope, prefix string) ([]string, error)
}

// VectorMatch is one scored hit from a vector search.
type VectorMatch struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// VectorStore is the semantic-search surface of §4.5.
type VectorStore interface {
	Insert(ctx context.Context, tenant string, scope isolation.Scope, id string, embedding []float32, metadata map[string]any) error
	SearchScoped(ctx context.Context, tenant string, scope isolation.Scope, query []float32, k int) ([]VectorMatch, error)
	UpdateMetadata(ctx context.Context, tenant string, id string, metadata map[string]any) error
	DeleteVector(ctx context.Context, tenant string, id string) error
}

// StorageType names how an artifact's content is physically stored.
type StorageType string

const (
	StorageBytea       StorageType = "bytea"
	StorageLargeObject StorageType = "large_object"
)

// ArtifactMetadata is the logical metadata row schema of §4.5.
type ArtifactMetadata struct {
	ArtifactID  string
	TenantID    string
	SessionID   string
	Sequence    int
	ContentHash string
	Metadata    map[string]any
	Filename    string
	Kind        string
	MimeType    string
	Size        int64
	CreatedAt   time.Time
	Owner       string
	Tags        []string
}

// ArtifactStats summarizes one tenant's artifact footprint.
type ArtifactStats struct {
	Count          int
	TotalBytes     int64
	DedupedBytes   int64
	ContentEntries int
}

// ArtifactStore is the content-addressed, deduplicated artifact surface
// of §4.5.
type ArtifactStore interface {
	StoreArtifactContent(ctx context.Context, tenant, contentHash string, content []byte, compressed bool) (StorageType, error)
	StoreArtifactMetadata(ctx context.Context, meta ArtifactMetadata) error
	RetrieveArtifactContent(ctx context.Context, tenant, contentHash string) ([]byte, bool, error)
	RetrieveArtifactMetadata(ctx context.Context, tenant, artifactID string) (ArtifactMetadata, bool, error)
	ListSessionArtifacts(ctx context.Context, tenant, sessionID string) ([]ArtifactMetadata, error)
	DeleteArtifact(ctx context.Context, tenant, artifactID string) error
	GetArtifactStats(ctx context.Context, tenant string) (ArtifactStats, error)
}

// WorkflowStatus is the lifecycle status of a stored workflow execution.
type WorkflowStatus string

const (
	WorkflowPending   WorkflowStatus = "pending"
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
	WorkflowCancelled WorkflowStatus = "cancelled"
	WorkflowPaused    WorkflowStatus = "paused"
)

// IsTerminal reports whether s is a terminal workflow status.
func (s WorkflowStatus) IsTerminal() bool {
	return s == WorkflowCompleted || s == WorkflowFailed || s == WorkflowCancelled
}

// WorkflowState is one row of the workflow_states table of §4.5.
type WorkflowState struct {
	TenantID     string
	WorkflowID   string
	WorkflowName string
	StateData    map[string]any
	CurrentStep  int
	Status       WorkflowStatus
	StartedAt    *time.Time
	CompletedAt  *time.Time
	LastUpdated  time.Time
}

// WorkflowStateStore persists per-workflow execution state.
type WorkflowStateStore interface {
	UpsertWorkflowState(ctx context.Context, ws WorkflowState) error
	GetWorkflowState(ctx context.Context, tenant, workflowID string) (WorkflowState, bool, error)
	DeleteWorkflowState(ctx context.Context, tenant, workflowID string) error
}

// Session is a session row, the parent of every artifact created under
// it, per §4.5 "Sessions."
type Session struct {
	SessionID string
	TenantID  string
	CreatedAt time.Time
}

// SessionStore manages session rows and their cascading deletion: per
// §4.5, removing a session cascades to its artifacts and, via refcount,
// possibly their content.
type SessionStore interface {
	CreateSession(ctx context.Context, session Session) error
	DeleteSession(ctx context.Context, tenant, sessionID string) error
}

// Backend bundles every storage surface a production deployment needs.
type Backend interface {
	KVStore
	VectorStore
	ArtifactStore
	WorkflowStateStore
	SessionStore
}
