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

package storage

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	substrateerrors "github.com/kadirpekel/substrate/pkg/errors"
	"github.com/kadirpekel/substrate/pkg/isolation"
)

type contentEntry struct {
	bytes    []byte
	refcount int
	storage  StorageType
}

type vectorEntry struct {
	tenant    string
	scope     string
	embedding []float32
	metadata  map[string]any
}

// MemoryBackend is the pure in-memory Backend implementation, used for
// tests and by the serve command when no storage DSN is configured.
type MemoryBackend struct {
	mu sync.RWMutex

	kv map[string][]byte // tenant|scope|key -> value

	content  map[string]*contentEntry // tenant|hash -> entry
	metadata map[string]*ArtifactMetadata
	bySeq    map[string][]string // tenant|session -> artifact_ids, in insertion order

	vectors map[string]*vectorEntry // tenant|id -> entry

	workflows map[string]*WorkflowState // tenant|workflow_id -> state

	sessions map[string]*Session // tenant|session_id -> session
}

// NewMemoryBackend constructs an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		kv:        map[string][]byte{},
		content:   map[string]*contentEntry{},
		metadata:  map[string]*ArtifactMetadata{},
		bySeq:     map[string][]string{},
		vectors:   map[string]*vectorEntry{},
		workflows: map[string]*WorkflowState{},
		sessions:  map[string]*Session{},
	}
}

func kvKey(tenant string, scope isolation.Scope, key string) string {
	return tenant + "|" + scope.String() + "|" + key
}

func (b *MemoryBackend) Get(ctx context.Context, tenant string, scope isolation.Scope, key string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.kv[kvKey(tenant, scope, key)]
	return v, ok, nil
}

func (b *MemoryBackend) Put(ctx context.Context, tenant string, scope isolation.Scope, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.kv[kvKey(tenant, scope, key)] = value
	return nil
}

func (b *MemoryBackend) Delete(ctx context.Context, tenant string, scope isolation.Scope, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.kv, kvKey(tenant, scope, key))
	return nil
}

func (b *MemoryBackend) ListKeys(ctx context.Context, tenant string, scope isolation.Scope, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	want := tenant + "|" + scope.String() + "|"
	var out []string
	for k := range b.kv {
		if strings.HasPrefix(k, want) && strings.HasPrefix(strings.TrimPrefix(k, want), prefix) {
			out = append(out, strings.TrimPrefix(k, want))
		}
	}
	sort.Strings(out)
	return out, nil
}

func (b *MemoryBackend) Insert(ctx context.Context, tenant string, scope isolation.Scope, id string, embedding []float32, metadata map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.vectors[tenant+"|"+id] = &vectorEntry{tenant: tenant, scope: scope.String(), embedding: embedding, metadata: metadata}
	return nil
}

func (b *MemoryBackend) SearchScoped(ctx context.Context, tenant string, scope isolation.Scope, query []float32, k int) ([]VectorMatch, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	scopeStr := scope.String()
	type scored struct {
		id    string
		score float64
		meta  map[string]any
	}
	var candidates []scored
	for key, v := range b.vectors {
		if v.tenant != tenant || v.scope != scopeStr {
			continue
		}
		id := strings.TrimPrefix(key, tenant+"|")
		candidates = append(candidates, scored{id: id, score: cosineSimilarity(query, v.embedding), meta: v.metadata})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}

	out := make([]VectorMatch, len(candidates))
	for i, c := range candidates {
		out[i] = VectorMatch{ID: c.id, Score: c.score, Metadata: c.meta}
	}
	return out, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func (b *MemoryBackend) UpdateMetadata(ctx context.Context, tenant, id string, metadata map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.vectors[tenant+"|"+id]
	if !ok {
		return substrateerrors.New(substrateerrors.NotFound, "storage", "UpdateMetadata", "no such vector entry")
	}
	v.metadata = metadata
	return nil
}

func (b *MemoryBackend) DeleteVector(ctx context.Context, tenant, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.vectors, tenant+"|"+id)
	return nil
}

func contentKey(tenant, hash string) string { return tenant + "|" + hash }

// StoreArtifactContent stores content under (tenant, contentHash),
// inlining it below LargeObjectThreshold and marking it as a large
// object at or above it. Re-inserting identical content is a no-op on
// the bytes themselves; a referring StoreArtifactMetadata call is what
// bumps the reference count.
func (b *MemoryBackend) StoreArtifactContent(ctx context.Context, tenant, contentHash string, content []byte, compressed bool) (StorageType, error) {
	storageType := StorageBytea
	if len(content) >= LargeObjectThreshold {
		storageType = StorageLargeObject
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	key := contentKey(tenant, contentHash)
	if existing, ok := b.content[key]; ok {
		return existing.storage, nil
	}
	b.content[key] = &contentEntry{bytes: content, refcount: 0, storage: storageType}
	return storageType, nil
}

// StoreArtifactMetadata inserts a metadata row and increments the
// referenced content's refcount, per §4.5's dedup invariant.
func (b *MemoryBackend) StoreArtifactMetadata(ctx context.Context, meta ArtifactMetadata) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ckey := contentKey(meta.TenantID, meta.ContentHash)
	entry, ok := b.content[ckey]
	if !ok {
		return substrateerrors.New(substrateerrors.NotFound, "storage", "StoreArtifactMetadata", "content hash not stored")
	}

	if meta.ArtifactID == "" {
		meta.ArtifactID = uuid.NewString()
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}

	cp := meta
	b.metadata[meta.ArtifactID] = &cp
	entry.refcount++

	seqKey := meta.TenantID + "|" + meta.SessionID
	b.bySeq[seqKey] = append(b.bySeq[seqKey], meta.ArtifactID)
	return nil
}

func (b *MemoryBackend) RetrieveArtifactContent(ctx context.Context, tenant, contentHash string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entry, ok := b.content[contentKey(tenant, contentHash)]
	if !ok {
		return nil, false, nil
	}
	return entry.bytes, true, nil
}

func (b *MemoryBackend) RetrieveArtifactMetadata(ctx context.Context, tenant, artifactID string) (ArtifactMetadata, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.metadata[artifactID]
	if !ok || m.TenantID != tenant {
		return ArtifactMetadata{}, false, nil
	}
	return *m, true, nil
}

// ListSessionArtifacts returns every artifact for (tenant, sessionID),
// ordered by sequence per §4.5.
func (b *MemoryBackend) ListSessionArtifacts(ctx context.Context, tenant, sessionID string) ([]ArtifactMetadata, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := b.bySeq[tenant+"|"+sessionID]
	out := make([]ArtifactMetadata, 0, len(ids))
	for _, id := range ids {
		if m, ok := b.metadata[id]; ok {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

// DeleteArtifact atomically removes the metadata row and decrements the
// content's reference count, removing the content row once the count
// reaches zero.
func (b *MemoryBackend) DeleteArtifact(ctx context.Context, tenant, artifactID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deleteArtifactLocked(tenant, artifactID)
}

// deleteArtifactLocked is DeleteArtifact's body, factored out so
// DeleteSession can cascade over every artifact in a session under a
// single lock acquisition.
func (b *MemoryBackend) deleteArtifactLocked(tenant, artifactID string) error {
	m, ok := b.metadata[artifactID]
	if !ok || m.TenantID != tenant {
		return substrateerrors.New(substrateerrors.NotFound, "storage", "DeleteArtifact", "no such artifact")
	}
	delete(b.metadata, artifactID)

	seqKey := m.TenantID + "|" + m.SessionID
	ids := b.bySeq[seqKey]
	for i, id := range ids {
		if id == artifactID {
			b.bySeq[seqKey] = append(ids[:i], ids[i+1:]...)
			break
		}
	}

	ckey := contentKey(tenant, m.ContentHash)
	if entry, ok := b.content[ckey]; ok {
		entry.refcount--
		if entry.refcount <= 0 {
			delete(b.content, ckey)
		}
	}
	return nil
}

func sessionKey(tenant, sessionID string) string { return tenant + "|" + sessionID }

// CreateSession records a new session row.
func (b *MemoryBackend) CreateSession(ctx context.Context, session Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	cp := session
	b.sessions[sessionKey(session.TenantID, session.SessionID)] = &cp
	return nil
}

// DeleteSession removes the session row and cascades the deletion to
// every artifact stored under it, per §4.5's "removing a session
// cascades to its artifacts and (via refcount) possibly their content."
func (b *MemoryBackend) DeleteSession(ctx context.Context, tenant, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	seqKey := tenant + "|" + sessionID
	ids := append([]string{}, b.bySeq[seqKey]...)
	for _, id := range ids {
		if err := b.deleteArtifactLocked(tenant, id); err != nil {
			return err
		}
	}
	delete(b.bySeq, seqKey)
	delete(b.sessions, sessionKey(tenant, sessionID))
	return nil
}

func (b *MemoryBackend) GetArtifactStats(ctx context.Context, tenant string) (ArtifactStats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var stats ArtifactStats
	for _, m := range b.metadata {
		if m.TenantID != tenant {
			continue
		}
		stats.Count++
		stats.TotalBytes += m.Size
	}
	for key, entry := range b.content {
		if !strings.HasPrefix(key, tenant+"|") {
			continue
		}
		stats.ContentEntries++
		stats.DedupedBytes += int64(len(entry.bytes)) * int64(entry.refcount-1)
	}
	return stats, nil
}

func workflowKey(tenant, workflowID string) string { return tenant + "|" + workflowID }

// UpsertWorkflowState stores ws, auto-maintaining last_updated and the
// started_at/completed_at transition timestamps the way the SQL
// backend's triggers do (§4.5). Unlike those triggers, which fire only
// on UPDATE, it also stamps started_at when a row is first written as
// running.
func (b *MemoryBackend) UpsertWorkflowState(ctx context.Context, ws WorkflowState) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := workflowKey(ws.TenantID, ws.WorkflowID)
	now := time.Now()
	ws.LastUpdated = now

	if existing, ok := b.workflows[key]; ok {
		if existing.Status != WorkflowRunning && ws.Status == WorkflowRunning && ws.StartedAt == nil {
			ws.StartedAt = &now
		} else if ws.StartedAt == nil {
			ws.StartedAt = existing.StartedAt
		}
		if !existing.Status.IsTerminal() && ws.Status.IsTerminal() && ws.CompletedAt == nil {
			ws.CompletedAt = &now
		} else if ws.CompletedAt == nil {
			ws.CompletedAt = existing.CompletedAt
		}
	} else if ws.Status == WorkflowRunning && ws.StartedAt == nil {
		ws.StartedAt = &now
	}

	cp := ws
	b.workflows[key] = &cp
	return nil
}

func (b *MemoryBackend) GetWorkflowState(ctx context.Context, tenant, workflowID string) (WorkflowState, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ws, ok := b.workflows[workflowKey(tenant, workflowID)]
	if !ok {
		return WorkflowState{}, false, nil
	}
	return *ws, true, nil
}

func (b *MemoryBackend) DeleteWorkflowState(ctx context.Context, tenant, workflowID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.workflows, workflowKey(tenant, workflowID))
	return nil
}
