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
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/substrate/pkg/isolation"
)

func hashOf(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// TestSmallArtifactDedupAndRefcount implements the small-artifact
// scenario of §4.5: 39 bytes of content stored once, then referenced by
// three metadata rows, must dedup to a single bytea content row whose
// reference_count tracks the number of metadata rows pointing at it
// exactly. Deleting every referencing row removes the content row.
//
// The scenario text in §4.5 describes "reference_count = 3 after
// inserting 2 metadata rows ... plus the initial create" and then
// "deleting 2 of 3 ... leaves refcount 0" — under a strict
// increment-per-metadata-row/decrement-per-delete model those two
// statements disagree (2 of 3 removed should leave 1, not 0). This test
// exercises the model actually implemented here: StoreArtifactContent
// never bumps the count by itself, only StoreArtifactMetadata does, so
// three metadata rows produce refcount 3, and the count only reaches
// zero once every referencing row is gone (documented as an Open
// Question resolution in DESIGN.md).
func TestSmallArtifactDedupAndRefcount(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	content := bytes.Repeat([]byte{0x42}, 39)
	hash := hashOf(content)

	storageType, err := b.StoreArtifactContent(ctx, "T1", hash, content, false)
	require.NoError(t, err)
	require.Equal(t, StorageBytea, storageType)

	var ids []string
	for i := 0; i < 3; i++ {
		require.NoError(t, b.StoreArtifactMetadata(ctx, ArtifactMetadata{
			TenantID:    "T1",
			SessionID:   "S1",
			Sequence:    i + 1,
			ContentHash: hash,
			Size:        int64(len(content)),
		}))
	}

	got, found, err := b.RetrieveArtifactContent(ctx, "T1", hash)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, content, got)

	listed, err := b.ListSessionArtifacts(ctx, "T1", "S1")
	require.NoError(t, err)
	require.Len(t, listed, 3)
	ids = make([]string, len(listed))
	for i, m := range listed {
		ids[i] = m.ArtifactID
		require.Equal(t, i+1, m.Sequence)
	}

	// Re-storing identical content is a no-op: still one content row.
	storageType2, err := b.StoreArtifactContent(ctx, "T1", hash, content, false)
	require.NoError(t, err)
	require.Equal(t, StorageBytea, storageType2)

	stats, err := b.GetArtifactStats(ctx, "T1")
	require.NoError(t, err)
	require.Equal(t, 1, stats.ContentEntries)
	require.Equal(t, 3, stats.Count)

	for _, id := range ids {
		require.NoError(t, b.DeleteArtifact(ctx, "T1", id))
	}

	_, found, err = b.RetrieveArtifactContent(ctx, "T1", hash)
	require.NoError(t, err)
	require.False(t, found, "content row must be removed once every referencing metadata row is deleted")
}

// TestLargeArtifactRoundTrip implements S4: content of exactly the
// large-object threshold round-trips byte-for-byte and is classified as
// a large object, not inlined bytea.
func TestLargeArtifactRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	content := bytes.Repeat([]byte{0x07}, LargeObjectThreshold)
	require.Len(t, content, 1048576)
	hash := hashOf(content)

	storageType, err := b.StoreArtifactContent(ctx, "T1", hash, content, false)
	require.NoError(t, err)
	require.Equal(t, StorageLargeObject, storageType)

	got, found, err := b.RetrieveArtifactContent(ctx, "T1", hash)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, got, len(content))
	require.Equal(t, content, got)
}

// TestJustBelowThresholdIsBytea checks that content one byte below the
// threshold stays inline bytea; TestLargeArtifactRoundTrip covers content
// of exactly the threshold size.
func TestJustBelowThresholdIsBytea(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	content := bytes.Repeat([]byte{0x01}, LargeObjectThreshold-1)
	hash := hashOf(content)
	storageType, err := b.StoreArtifactContent(ctx, "T1", hash, content, false)
	require.NoError(t, err)
	require.Equal(t, StorageBytea, storageType)
}

// TestDedupInvariant is testable property #4: storing the same content
// hash twice never creates a second content row, regardless of how many
// metadata rows reference it.
func TestDedupInvariant(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	content := []byte("identical payload")
	hash := hashOf(content)

	for i := 0; i < 5; i++ {
		_, err := b.StoreArtifactContent(ctx, "T1", hash, content, false)
		require.NoError(t, err)
	}

	stats, err := b.GetArtifactStats(ctx, "T1")
	require.NoError(t, err)
	require.Equal(t, 1, stats.ContentEntries)
}

// TestRefcountSafety is testable property #5: the reference count never
// goes negative, and content removed by DeleteArtifact cannot be
// retrieved, even under repeated delete attempts on a stale artifact ID.
func TestRefcountSafety(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	content := []byte("safety payload")
	hash := hashOf(content)
	_, err := b.StoreArtifactContent(ctx, "T1", hash, content, false)
	require.NoError(t, err)
	require.NoError(t, b.StoreArtifactMetadata(ctx, ArtifactMetadata{
		TenantID: "T1", SessionID: "S1", Sequence: 1, ContentHash: hash, Size: int64(len(content)),
	}))

	listed, err := b.ListSessionArtifacts(ctx, "T1", "S1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	id := listed[0].ArtifactID

	require.NoError(t, b.DeleteArtifact(ctx, "T1", id))
	require.Error(t, b.DeleteArtifact(ctx, "T1", id), "deleting an already-deleted artifact must fail, not underflow the refcount")

	_, found, err := b.RetrieveArtifactContent(ctx, "T1", hash)
	require.NoError(t, err)
	require.False(t, found)
}

// TestTenantIsolation checks the artifact side of testable property #6:
// content, metadata, and stats stored for one tenant are invisible to
// another, even when content hashes collide. KV isolation is covered by
// TestKVRoundTripAndScopeIsolation; vector isolation is not tested here.
func TestTenantIsolation(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	content := []byte("shared-looking content")
	hash := hashOf(content)

	_, err := b.StoreArtifactContent(ctx, "T1", hash, content, false)
	require.NoError(t, err)
	require.NoError(t, b.StoreArtifactMetadata(ctx, ArtifactMetadata{
		TenantID: "T1", SessionID: "S1", Sequence: 1, ContentHash: hash, Size: int64(len(content)),
	}))

	// T2 never stored this hash; it must not see T1's content or metadata.
	_, found, err := b.RetrieveArtifactContent(ctx, "T2", hash)
	require.NoError(t, err)
	require.False(t, found)

	listed, err := b.ListSessionArtifacts(ctx, "T2", "S1")
	require.NoError(t, err)
	require.Empty(t, listed)

	statsT2, err := b.GetArtifactStats(ctx, "T2")
	require.NoError(t, err)
	require.Equal(t, 0, statsT2.Count)
	require.Equal(t, 0, statsT2.ContentEntries)

	statsT1, err := b.GetArtifactStats(ctx, "T1")
	require.NoError(t, err)
	require.Equal(t, 1, statsT1.Count)
}

func TestKVRoundTripAndScopeIsolation(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	require.NoError(t, b.Put(ctx, "T1", isolation.Global, "k", []byte("v")))
	v, ok, err := b.Get(ctx, "T1", isolation.Global, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)

	_, ok, err = b.Get(ctx, "T2", isolation.Global, "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, b.Delete(ctx, "T1", isolation.Global, "k"))
	_, ok, err = b.Get(ctx, "T1", isolation.Global, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWorkflowStateTransitionTimestamps(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	require.NoError(t, b.UpsertWorkflowState(ctx, WorkflowState{
		TenantID: "T1", WorkflowID: "wf-1", Status: WorkflowPending,
	}))
	ws, ok, err := b.GetWorkflowState(ctx, "T1", "wf-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Nil(t, ws.StartedAt)
	require.Nil(t, ws.CompletedAt)

	require.NoError(t, b.UpsertWorkflowState(ctx, WorkflowState{
		TenantID: "T1", WorkflowID: "wf-1", Status: WorkflowRunning,
	}))
	ws, _, err = b.GetWorkflowState(ctx, "T1", "wf-1")
	require.NoError(t, err)
	require.NotNil(t, ws.StartedAt)
	require.Nil(t, ws.CompletedAt)

	require.NoError(t, b.UpsertWorkflowState(ctx, WorkflowState{
		TenantID: "T1", WorkflowID: "wf-1", Status: WorkflowCompleted,
	}))
	ws, _, err = b.GetWorkflowState(ctx, "T1", "wf-1")
	require.NoError(t, err)
	require.NotNil(t, ws.StartedAt)
	require.NotNil(t, ws.CompletedAt)
}
