package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS agents (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	external_id TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL DEFAULT '',
	total_stake BIGINT NOT NULL DEFAULT 0 CHECK (total_stake >= 0),
	metadata    JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS beliefs (
	id                   UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	creator_id           UUID NOT NULL REFERENCES agents(id),
	proposition          TEXT NOT NULL,
	created_epoch        BIGINT NOT NULL,
	expiration_epoch     BIGINT NOT NULL,
	aggregate            DOUBLE PRECISION NOT NULL DEFAULT 0.5,
	certainty            DOUBLE PRECISION NOT NULL DEFAULT 0,
	status               TEXT NOT NULL DEFAULT 'active',
	last_processed_epoch BIGINT,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CHECK (expiration_epoch >= created_epoch)
);

CREATE INDEX IF NOT EXISTS beliefs_status_idx ON beliefs (status);

CREATE TABLE IF NOT EXISTS submissions (
	agent_id        UUID NOT NULL REFERENCES agents(id),
	belief_id       UUID NOT NULL REFERENCES beliefs(id),
	epoch           BIGINT NOT NULL,
	belief          DOUBLE PRECISION NOT NULL,
	meta_prediction DOUBLE PRECISION NOT NULL,
	is_active       BOOLEAN NOT NULL DEFAULT TRUE,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (agent_id, belief_id, epoch)
);

CREATE INDEX IF NOT EXISTS submissions_belief_epoch_idx ON submissions (belief_id, epoch);

CREATE TABLE IF NOT EXISTS belief_locks (
	belief_id    UUID NOT NULL REFERENCES beliefs(id),
	agent_id     UUID NOT NULL REFERENCES agents(id),
	locked_stake BIGINT NOT NULL CHECK (locked_stake >= 0),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (belief_id, agent_id)
);

CREATE TABLE IF NOT EXISTS epoch_history (
	belief_id         UUID NOT NULL REFERENCES beliefs(id),
	epoch             BIGINT NOT NULL,
	aggregate         DOUBLE PRECISION NOT NULL,
	certainty         DOUBLE PRECISION NOT NULL,
	entropy           DOUBLE PRECISION NOT NULL,
	participant_count INTEGER NOT NULL,
	total_stake       BIGINT NOT NULL,
	method            TEXT NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (belief_id, epoch)
);

CREATE TABLE IF NOT EXISTS stake_events (
	id         BIGSERIAL PRIMARY KEY,
	belief_id  UUID NOT NULL REFERENCES beliefs(id),
	epoch      BIGINT NOT NULL,
	agent_id   UUID NOT NULL REFERENCES agents(id),
	delta      BIGINT NOT NULL,
	score      DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (belief_id, epoch, agent_id)
);
`

// Migrate creates every table the service needs. It is safe to run on an
// already migrated database.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
