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
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	substrateerrors "github.com/kadirpekel/substrate/pkg/errors"
	"github.com/kadirpekel/substrate/pkg/isolation"
)

// schemaDDL is the logical schema of §4.5: row-level tenant isolation
// policies (one per statement type), the content-dedup table, the
// artifact metadata table, and the workflow_states table with its
// maintenance triggers. It is applied once by PostgresBackend.Migrate;
// production deployments are expected to own their own migration
// tooling and may skip calling it.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT NOT NULL,
	tenant_id  TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tenant_id, session_id)
);

CREATE TABLE IF NOT EXISTS artifact_content (
	tenant_id    TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	storage_type TEXT NOT NULL,
	content      BYTEA,
	large_object_oid OID,
	reference_count INT NOT NULL DEFAULT 0,
	PRIMARY KEY (tenant_id, content_hash)
);

CREATE TABLE IF NOT EXISTS artifact_metadata (
	artifact_id  TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	session_id   TEXT NOT NULL,
	sequence     INT NOT NULL,
	content_hash TEXT NOT NULL,
	metadata     JSONB,
	filename     TEXT,
	kind         TEXT,
	mime_type    TEXT,
	size         BIGINT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	owner        TEXT,
	tags         TEXT[],
	UNIQUE (tenant_id, session_id, sequence)
);

CREATE TABLE IF NOT EXISTS workflow_states (
	tenant_id     TEXT NOT NULL,
	workflow_id   TEXT NOT NULL,
	workflow_name TEXT,
	state_data    JSONB,
	current_step  INT NOT NULL DEFAULT 0,
	status        TEXT NOT NULL,
	started_at    TIMESTAMPTZ,
	completed_at  TIMESTAMPTZ,
	last_updated  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tenant_id, workflow_id)
);

CREATE INDEX IF NOT EXISTS idx_workflow_states_tenant ON workflow_states (tenant_id);
CREATE INDEX IF NOT EXISTS idx_workflow_states_status ON workflow_states (status);
CREATE INDEX IF NOT EXISTS idx_workflow_states_tenant_status ON workflow_states (tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_workflow_states_started_at ON workflow_states (started_at);
CREATE INDEX IF NOT EXISTS idx_workflow_states_completed_at ON workflow_states (completed_at);
CREATE INDEX IF NOT EXISTS idx_workflow_states_completed_stats ON workflow_states (tenant_id, started_at, completed_at)
	WHERE status = 'completed';
CREATE INDEX IF NOT EXISTS idx_workflow_states_data_gin ON workflow_states USING GIN (state_data);

ALTER TABLE sessions ENABLE ROW LEVEL SECURITY;
ALTER TABLE artifact_content ENABLE ROW LEVEL SECURITY;
ALTER TABLE artifact_metadata ENABLE ROW LEVEL SECURITY;

DROP POLICY IF EXISTS tenant_select ON sessions;
CREATE POLICY tenant_select ON sessions FOR SELECT
	USING (tenant_id = current_setting('app.tenant_id', true));
DROP POLICY IF EXISTS tenant_insert ON sessions;
CREATE POLICY tenant_insert ON sessions FOR INSERT
	WITH CHECK (tenant_id = current_setting('app.tenant_id', true));
DROP POLICY IF EXISTS tenant_update ON sessions;
CREATE POLICY tenant_update ON sessions FOR UPDATE
	USING (tenant_id = current_setting('app.tenant_id', true));
DROP POLICY IF EXISTS tenant_delete ON sessions;
CREATE POLICY tenant_delete ON sessions FOR DELETE
	USING (tenant_id = current_setting('app.tenant_id', true));

DROP POLICY IF EXISTS tenant_select ON artifact_metadata;
CREATE POLICY tenant_select ON artifact_metadata FOR SELECT
	USING (tenant_id = current_setting('app.tenant_id', true));
DROP POLICY IF EXISTS tenant_insert ON artifact_metadata;
CREATE POLICY tenant_insert ON artifact_metadata FOR INSERT
	WITH CHECK (tenant_id = current_setting('app.tenant_id', true));
DROP POLICY IF EXISTS tenant_update ON artifact_metadata;
CREATE POLICY tenant_update ON artifact_metadata FOR UPDATE
	USING (tenant_id = current_setting('app.tenant_id', true));
DROP POLICY IF EXISTS tenant_delete ON artifact_metadata;
CREATE POLICY tenant_delete ON artifact_metadata FOR DELETE
	USING (tenant_id = current_setting('app.tenant_id', true));

CREATE OR REPLACE FUNCTION maintain_last_updated() RETURNS TRIGGER AS $$
BEGIN
	NEW.last_updated = now();
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;

CREATE OR REPLACE FUNCTION maintain_started_at() RETURNS TRIGGER AS $$
BEGIN
	IF NEW.status = 'running' AND (OLD.status IS DISTINCT FROM 'running') AND NEW.started_at IS NULL THEN
		NEW.started_at = now();
	END IF;
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;

CREATE OR REPLACE FUNCTION maintain_completed_at() RETURNS TRIGGER AS $$
BEGIN
	IF NEW.status IN ('completed', 'failed', 'cancelled') AND (OLD.status IS DISTINCT FROM NEW.status) AND NEW.completed_at IS NULL THEN
		NEW.completed_at = now();
	END IF;
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_workflow_last_updated ON workflow_states;
CREATE TRIGGER trg_workflow_last_updated BEFORE UPDATE ON workflow_states
	FOR EACH ROW EXECUTE FUNCTION maintain_last_updated();
DROP TRIGGER IF EXISTS trg_workflow_started_at ON workflow_states;
CREATE TRIGGER trg_workflow_started_at BEFORE UPDATE ON workflow_states
	FOR EACH ROW EXECUTE FUNCTION maintain_started_at();
DROP TRIGGER IF EXISTS trg_workflow_completed_at ON workflow_states;
CREATE TRIGGER trg_workflow_completed_at BEFORE UPDATE ON workflow_states
	FOR EACH ROW EXECUTE FUNCTION maintain_completed_at();
`

// PostgresBackend implements Backend against a Postgres database via
// pgx. Every call runs in a transaction that first sets app.tenant_id,
// which the row-level security policies on sessions and
// artifact_metadata compare against. artifact_content and
// workflow_states carry no such policy; queries on them are scoped by
// their own tenant_id filter.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend constructs a PostgresBackend over an already-opened
// pool.
func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

// Migrate applies the logical schema. Safe to call repeatedly.
func (p *PostgresBackend) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaDDL); err != nil {
		return substrateerrors.Wrap(substrateerrors.Storage, "storage", "Migrate", "apply schema", err)
	}
	return nil
}

// withTenant runs fn inside a transaction with app.tenant_id set for the
// duration of the call, so row-level policies scope every statement.
func (p *PostgresBackend) withTenant(ctx context.Context, tenant string, fn func(tx pgx.Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return substrateerrors.Wrap(substrateerrors.Storage, "storage", "withTenant", "begin tx", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenant); err != nil {
		return substrateerrors.Wrap(substrateerrors.Storage, "storage", "withTenant", "set tenant context", err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return substrateerrors.Wrap(substrateerrors.Storage, "storage", "withTenant", "commit tx", err)
	}
	return nil
}

func (p *PostgresBackend) StoreArtifactContent(ctx context.Context, tenant, contentHash string, content []byte, compressed bool) (StorageType, error) {
	storageType := StorageBytea
	if len(content) >= LargeObjectThreshold {
		storageType = StorageLargeObject
	}

	err := p.withTenant(ctx, tenant, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM artifact_content WHERE tenant_id=$1 AND content_hash=$2)`,
			tenant, contentHash).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return nil
		}

		if storageType == StorageLargeObject {
			lo := tx.LargeObjects()
			oid, err := lo.Create(ctx, 0)
			if err != nil {
				return err
			}
			obj, err := lo.Open(ctx, oid, pgx.LargeObjectModeWrite)
			if err != nil {
				return err
			}
			if _, err := obj.Write(content); err != nil {
				return err
			}
			if err := obj.Close(); err != nil {
				return err
			}
			_, err = tx.Exec(ctx, `INSERT INTO artifact_content (tenant_id, content_hash, storage_type, large_object_oid, reference_count)
				VALUES ($1,$2,$3,$4,0)`, tenant, contentHash, string(storageType), oid)
			return err
		}

		_, err := tx.Exec(ctx, `INSERT INTO artifact_content (tenant_id, content_hash, storage_type, content, reference_count)
			VALUES ($1,$2,$3,$4,0)`, tenant, contentHash, string(storageType), content)
		return err
	})
	if err != nil {
		return "", substrateerrors.Wrap(substrateerrors.Storage, "storage", "StoreArtifactContent", "insert content", err)
	}
	return storageType, nil
}

func (p *PostgresBackend) StoreArtifactMetadata(ctx context.Context, meta ArtifactMetadata) error {
	raw, err := json.Marshal(meta.Metadata)
	if err != nil {
		return substrateerrors.Wrap(substrateerrors.Validation, "storage", "StoreArtifactMetadata", "marshal metadata", err)
	}

	return p.withTenant(ctx, meta.TenantID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO artifact_metadata
			(artifact_id, tenant_id, session_id, sequence, content_hash, metadata, filename, kind, mime_type, size, owner, tags)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			meta.ArtifactID, meta.TenantID, meta.SessionID, meta.Sequence, meta.ContentHash, raw,
			meta.Filename, meta.Kind, meta.MimeType, meta.Size, meta.Owner, meta.Tags); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE artifact_content SET reference_count = reference_count + 1
			WHERE tenant_id=$1 AND content_hash=$2`, meta.TenantID, meta.ContentHash)
		return err
	})
}

func (p *PostgresBackend) RetrieveArtifactContent(ctx context.Context, tenant, contentHash string) ([]byte, bool, error) {
	var (
		storageType string
		content     []byte
		oid         *uint32
		found       bool
	)
	err := p.withTenant(ctx, tenant, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT storage_type, content, large_object_oid FROM artifact_content
			WHERE tenant_id=$1 AND content_hash=$2`, tenant, contentHash)
		if err := row.Scan(&storageType, &content, &oid); err != nil {
			if err == pgx.ErrNoRows {
				return nil
			}
			return err
		}
		found = true
		if StorageType(storageType) == StorageLargeObject && oid != nil {
			lo := tx.LargeObjects()
			obj, err := lo.Open(ctx, *oid, pgx.LargeObjectModeRead)
			if err != nil {
				return err
			}
			buf := make([]byte, 0, LargeObjectThreshold)
			chunk := make([]byte, 64*1024)
			for {
				n, rerr := obj.Read(chunk)
				buf = append(buf, chunk[:n]...)
				if rerr != nil {
					break
				}
			}
			content = buf
		}
		return nil
	})
	if err != nil {
		return nil, false, substrateerrors.Wrap(substrateerrors.Storage, "storage", "RetrieveArtifactContent", "read content", err)
	}
	return content, found, nil
}

func (p *PostgresBackend) RetrieveArtifactMetadata(ctx context.Context, tenant, artifactID string) (ArtifactMetadata, bool, error) {
	var (
		m     ArtifactMetadata
		raw   []byte
		found bool
	)
	err := p.withTenant(ctx, tenant, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT artifact_id, tenant_id, session_id, sequence, content_hash, metadata,
			filename, kind, mime_type, size, created_at, owner, tags FROM artifact_metadata
			WHERE tenant_id=$1 AND artifact_id=$2`, tenant, artifactID)
		if err := row.Scan(&m.ArtifactID, &m.TenantID, &m.SessionID, &m.Sequence, &m.ContentHash, &raw,
			&m.Filename, &m.Kind, &m.MimeType, &m.Size, &m.CreatedAt, &m.Owner, &m.Tags); err != nil {
			if err == pgx.ErrNoRows {
				return nil
			}
			return err
		}
		found = true
		return json.Unmarshal(raw, &m.Metadata)
	})
	if err != nil {
		return ArtifactMetadata{}, false, substrateerrors.Wrap(substrateerrors.Storage, "storage", "RetrieveArtifactMetadata", "query metadata", err)
	}
	return m, found, nil
}

func (p *PostgresBackend) ListSessionArtifacts(ctx context.Context, tenant, sessionID string) ([]ArtifactMetadata, error) {
	var out []ArtifactMetadata
	err := p.withTenant(ctx, tenant, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT artifact_id, tenant_id, session_id, sequence, content_hash, metadata,
			filename, kind, mime_type, size, created_at, owner, tags FROM artifact_metadata
			WHERE tenant_id=$1 AND session_id=$2 ORDER BY sequence ASC`, tenant, sessionID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var m ArtifactMetadata
			var raw []byte
			if err := rows.Scan(&m.ArtifactID, &m.TenantID, &m.SessionID, &m.Sequence, &m.ContentHash, &raw,
				&m.Filename, &m.Kind, &m.MimeType, &m.Size, &m.CreatedAt, &m.Owner, &m.Tags); err != nil {
				return err
			}
			if err := json.Unmarshal(raw, &m.Metadata); err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, substrateerrors.Wrap(substrateerrors.Storage, "storage", "ListSessionArtifacts", "query artifacts", err)
	}
	return out, nil
}

// DeleteArtifact atomically deletes the metadata row and decrements the
// content refcount, removing the content row (and its large object, if
// any) in the same transaction once the count reaches zero.
func (p *PostgresBackend) DeleteArtifact(ctx context.Context, tenant, artifactID string) error {
	return p.withTenant(ctx, tenant, func(tx pgx.Tx) error {
		var contentHash string
		if err := tx.QueryRow(ctx, `DELETE FROM artifact_metadata WHERE tenant_id=$1 AND artifact_id=$2 RETURNING content_hash`,
			tenant, artifactID).Scan(&contentHash); err != nil {
			if err == pgx.ErrNoRows {
				return substrateerrors.New(substrateerrors.NotFound, "storage", "DeleteArtifact", "no such artifact")
			}
			return err
		}

		var refcount int
		var oid *uint32
		if err := tx.QueryRow(ctx, `UPDATE artifact_content SET reference_count = reference_count - 1
			WHERE tenant_id=$1 AND content_hash=$2 RETURNING reference_count, large_object_oid`,
			tenant, contentHash).Scan(&refcount, &oid); err != nil {
			return err
		}

		if refcount > 0 {
			return nil
		}
		if oid != nil {
			if err := tx.LargeObjects().Unlink(ctx, *oid); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `DELETE FROM artifact_content WHERE tenant_id=$1 AND content_hash=$2`, tenant, contentHash)
		return err
	})
}

// CreateSession inserts a session row.
func (p *PostgresBackend) CreateSession(ctx context.Context, session Session) error {
	return p.withTenant(ctx, session.TenantID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO sessions (session_id, tenant_id) VALUES ($1,$2)
			ON CONFLICT (tenant_id, session_id) DO NOTHING`, session.SessionID, session.TenantID)
		return err
	})
}

// DeleteSession removes the session row and cascades to every artifact
// stored under it in the same transaction, decrementing each artifact's
// content refcount (and removing the content row, plus any large
// object, once a refcount reaches zero) exactly as DeleteArtifact does
// per artifact — per §4.5's session-cascade requirement.
func (p *PostgresBackend) DeleteSession(ctx context.Context, tenant, sessionID string) error {
	return p.withTenant(ctx, tenant, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT artifact_id, content_hash FROM artifact_metadata WHERE tenant_id=$1 AND session_id=$2`,
			tenant, sessionID)
		if err != nil {
			return err
		}
		type artifactRef struct{ artifactID, contentHash string }
		var refs []artifactRef
		for rows.Next() {
			var r artifactRef
			if err := rows.Scan(&r.artifactID, &r.contentHash); err != nil {
				rows.Close()
				return err
			}
			refs = append(refs, r)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, r := range refs {
			if _, err := tx.Exec(ctx, `DELETE FROM artifact_metadata WHERE tenant_id=$1 AND artifact_id=$2`,
				tenant, r.artifactID); err != nil {
				return err
			}

			var refcount int
			var oid *uint32
			if err := tx.QueryRow(ctx, `UPDATE artifact_content SET reference_count = reference_count - 1
				WHERE tenant_id=$1 AND content_hash=$2 RETURNING reference_count, large_object_oid`,
				tenant, r.contentHash).Scan(&refcount, &oid); err != nil {
				return err
			}
			if refcount > 0 {
				continue
			}
			if oid != nil {
				if err := tx.LargeObjects().Unlink(ctx, *oid); err != nil {
					return err
				}
			}
			if _, err := tx.Exec(ctx, `DELETE FROM artifact_content WHERE tenant_id=$1 AND content_hash=$2`,
				tenant, r.contentHash); err != nil {
				return err
			}
		}

		_, err = tx.Exec(ctx, `DELETE FROM sessions WHERE tenant_id=$1 AND session_id=$2`, tenant, sessionID)
		return err
	})
}

func (p *PostgresBackend) GetArtifactStats(ctx context.Context, tenant string) (ArtifactStats, error) {
	var stats ArtifactStats
	err := p.withTenant(ctx, tenant, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(size),0) FROM artifact_metadata WHERE tenant_id=$1`,
			tenant).Scan(&stats.Count, &stats.TotalBytes); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `SELECT COUNT(*) FROM artifact_content WHERE tenant_id=$1`, tenant).Scan(&stats.ContentEntries)
	})
	if err != nil {
		return ArtifactStats{}, substrateerrors.Wrap(substrateerrors.Storage, "storage", "GetArtifactStats", "query stats", err)
	}
	return stats, nil
}

func (p *PostgresBackend) UpsertWorkflowState(ctx context.Context, ws WorkflowState) error {
	raw, err := json.Marshal(ws.StateData)
	if err != nil {
		return substrateerrors.Wrap(substrateerrors.Validation, "storage", "UpsertWorkflowState", "marshal state_data", err)
	}
	return p.withTenant(ctx, ws.TenantID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO workflow_states (tenant_id, workflow_id, workflow_name, state_data, current_step, status)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (tenant_id, workflow_id) DO UPDATE SET
				workflow_name = EXCLUDED.workflow_name,
				state_data = EXCLUDED.state_data,
				current_step = EXCLUDED.current_step,
				status = EXCLUDED.status`,
			ws.TenantID, ws.WorkflowID, ws.WorkflowName, raw, ws.CurrentStep, string(ws.Status))
		return err
	})
}

func (p *PostgresBackend) GetWorkflowState(ctx context.Context, tenant, workflowID string) (WorkflowState, bool, error) {
	var (
		ws    WorkflowState
		raw   []byte
		found bool
	)
	err := p.withTenant(ctx, tenant, func(tx pgx.Tx) error {
		var status string
		row := tx.QueryRow(ctx, `SELECT tenant_id, workflow_id, workflow_name, state_data, current_step, status,
			started_at, completed_at, last_updated FROM workflow_states WHERE tenant_id=$1 AND workflow_id=$2`,
			tenant, workflowID)
		if err := row.Scan(&ws.TenantID, &ws.WorkflowID, &ws.WorkflowName, &raw, &ws.CurrentStep, &status,
			&ws.StartedAt, &ws.CompletedAt, &ws.LastUpdated); err != nil {
			if err == pgx.ErrNoRows {
				return nil
			}
			return err
		}
		ws.Status = WorkflowStatus(status)
		found = true
		return json.Unmarshal(raw, &ws.StateData)
	})
	if err != nil {
		return WorkflowState{}, false, substrateerrors.Wrap(substrateerrors.Storage, "storage", "GetWorkflowState", "query workflow state", err)
	}
	return ws, found, nil
}

func (p *PostgresBackend) DeleteWorkflowState(ctx context.Context, tenant, workflowID string) error {
	return p.withTenant(ctx, tenant, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM workflow_states WHERE tenant_id=$1 AND workflow_id=$2`, tenant, workflowID)
		return err
	})
}

// PostgresBackend does not implement the KV and vector operations of
// Backend: these methods exist to satisfy the interface and return an
// error on every call. The KV methods' errors point callers at
// state.Manager.
func (p *PostgresBackend) Get(ctx context.Context, tenant string, scope isolation.Scope, key string) ([]byte, bool, error) {
	return nil, false, substrateerrors.New(substrateerrors.Internal, "storage", "Get", "PostgresBackend KV surface is not wired; use state.Manager")
}

func (p *PostgresBackend) Put(ctx context.Context, tenant string, scope isolation.Scope, key string, value []byte) error {
	return substrateerrors.New(substrateerrors.Internal, "storage", "Put", "PostgresBackend KV surface is not wired; use state.Manager")
}

func (p *PostgresBackend) Delete(ctx context.Context, tenant string, scope isolation.Scope, key string) error {
	return substrateerrors.New(substrateerrors.Internal, "storage", "Delete", "PostgresBackend KV surface is not wired; use state.Manager")
}

func (p *PostgresBackend) ListKeys(ctx context.Context, tenant string, scope isolation.Scope, prefix string) ([]string, error) {
	return nil, substrateerrors.New(substrateerrors.Internal, "storage", "ListKeys", "PostgresBackend KV surface is not wired; use state.Manager")
}

func (p *PostgresBackend) Insert(ctx context.Context, tenant string, scope isolation.Scope, id string, embedding []float32, metadata map[string]any) error {
	return fmt.Errorf("vector insert requires the pgvector-backed EpisodicMemory implementation, not the raw Backend surface")
}

func (p *PostgresBackend) SearchScoped(ctx context.Context, tenant string, scope isolation.Scope, query []float32, k int) ([]VectorMatch, error) {
	return nil, fmt.Errorf("vector search requires the pgvector-backed EpisodicMemory implementation, not the raw Backend surface")
}

func (p *PostgresBackend) UpdateMetadata(ctx context.Context, tenant string, id string, metadata map[string]any) error {
	return fmt.Errorf("vector metadata update requires the pgvector-backed EpisodicMemory implementation, not the raw Backend surface")
}

func (p *PostgresBackend) DeleteVector(ctx context.Context, tenant string, id string) error {
	return fmt.Errorf("vector delete requires the pgvector-backed EpisodicMemory implementation, not the raw Backend surface")
}
