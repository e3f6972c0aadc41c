// ABOUTME: Database schema definitions for the relationship graph store
// ABOUTME: Creates person, relationship, sync, audit tables plus the FTS5 person index
package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS persons (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	name TEXT NOT NULL,
	name_norm TEXT NOT NULL,
	aliases TEXT NOT NULL DEFAULT '[]',
	work_email TEXT,
	personal_email TEXT,
	work_phone TEXT,
	personal_phone TEXT,
	secondary_phone TEXT,
	company TEXT,
	title TEXT,
	expertise TEXT NOT NULL DEFAULT '[]',
	city TEXT,
	state TEXT,
	country TEXT,
	birthday DATETIME,
	gender TEXT,
	pronouns TEXT,
	interests TEXT NOT NULL DEFAULT '[]',
	notes TEXT,
	status TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active', 'deceased', 'blocked', 'archived')),
	is_core_user INTEGER NOT NULL DEFAULT 0,
	is_placeholder INTEGER NOT NULL DEFAULT 0,
	placeholder_email INTEGER NOT NULL DEFAULT 0,
	placeholder_phone INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_persons_owner ON persons(owner_id);
CREATE INDEX IF NOT EXISTS idx_persons_owner_name ON persons(owner_id, name_norm);
CREATE UNIQUE INDEX IF NOT EXISTS idx_persons_one_core_user ON persons(owner_id) WHERE is_core_user = 1;

CREATE TABLE IF NOT EXISTS person_aliases (
	person_id TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	alias TEXT NOT NULL,
	PRIMARY KEY (person_id, alias),
	FOREIGN KEY (person_id) REFERENCES persons(id)
);

CREATE INDEX IF NOT EXISTS idx_person_aliases_lookup ON person_aliases(owner_id, alias);

CREATE TABLE IF NOT EXISTS person_contacts (
	person_id TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	kind TEXT NOT NULL CHECK(kind IN ('email', 'phone')),
	value_norm TEXT NOT NULL,
	PRIMARY KEY (person_id, kind, value_norm),
	FOREIGN KEY (person_id) REFERENCES persons(id)
);

CREATE INDEX IF NOT EXISTS idx_person_contacts_lookup ON person_contacts(owner_id, kind, value_norm);

CREATE VIRTUAL TABLE IF NOT EXISTS persons_fts USING fts5(
	person_id UNINDEXED,
	owner_id UNINDEXED,
	name,
	aliases,
	expertise,
	company,
	title,
	interests,
	tokenize = 'unicode61 remove_diacritics 2'
);

CREATE TABLE IF NOT EXISTS relationships (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	from_person_id TEXT NOT NULL,
	to_person_id TEXT NOT NULL,
	category TEXT NOT NULL CHECK(category IN ('family', 'friends', 'work', 'acquaintance')),
	from_role TEXT NOT NULL,
	to_role TEXT NOT NULL,
	from_role_norm TEXT NOT NULL,
	to_role_norm TEXT NOT NULL,
	call_count INTEGER NOT NULL DEFAULT 0,
	meet_count INTEGER NOT NULL DEFAULT 0,
	text_count INTEGER NOT NULL DEFAULT 0,
	last_call_at DATETIME,
	last_meet_at DATETIME,
	last_text_at DATETIME,
	last_contact_at DATETIME,
	strength INTEGER NOT NULL DEFAULT 0 CHECK(strength BETWEEN 0 AND 100),
	reference_count INTEGER NOT NULL DEFAULT 0,
	interaction_count INTEGER NOT NULL DEFAULT 0,
	first_meeting_date DATETIME,
	duration_months INTEGER,
	is_active INTEGER NOT NULL DEFAULT 1,
	ended_at DATETIME,
	ended_reason TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	CHECK(from_person_id <> to_person_id),
	FOREIGN KEY (from_person_id) REFERENCES persons(id),
	FOREIGN KEY (to_person_id) REFERENCES persons(id)
);

CREATE INDEX IF NOT EXISTS idx_relationships_from ON relationships(owner_id, from_person_id, is_active);
CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships(owner_id, to_person_id, is_active);
CREATE UNIQUE INDEX IF NOT EXISTS idx_relationships_active_unique
	ON relationships(owner_id, from_person_id, to_person_id, from_role_norm, to_role_norm) WHERE is_active = 1;

CREATE TABLE IF NOT EXISTS relationship_interactions (
	id TEXT PRIMARY KEY,
	relationship_id TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	kind TEXT NOT NULL CHECK(kind IN ('call', 'meet', 'text')),
	occurred_at DATETIME NOT NULL,
	FOREIGN KEY (relationship_id) REFERENCES relationships(id)
);

CREATE INDEX IF NOT EXISTS idx_relationship_interactions_rel ON relationship_interactions(owner_id, relationship_id, occurred_at);

CREATE TABLE IF NOT EXISTS external_identities (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	person_id TEXT NOT NULL,
	provider TEXT NOT NULL,
	external_id TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	remote_snapshot TEXT NOT NULL DEFAULT '{}',
	last_synced_at DATETIME,
	sync_status TEXT NOT NULL DEFAULT 'synced' CHECK(sync_status IN ('synced', 'pending_push', 'pending_pull', 'conflict')),
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE(person_id, provider),
	UNIQUE(owner_id, provider, external_id),
	FOREIGN KEY (person_id) REFERENCES persons(id)
);

CREATE TABLE IF NOT EXISTS sync_state (
	owner_id TEXT NOT NULL,
	provider TEXT NOT NULL,
	cursor TEXT,
	status TEXT NOT NULL DEFAULT 'idle' CHECK(status IN ('idle', 'syncing', 'failed', 'paused')),
	failure_count INTEGER NOT NULL DEFAULT 0,
	next_eligible_at DATETIME,
	last_started_at DATETIME,
	last_finished_at DATETIME,
	last_stats TEXT NOT NULL DEFAULT '{}',
	last_error_code TEXT,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (owner_id, provider)
);

CREATE TABLE IF NOT EXISTS sync_conflicts (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	provider TEXT NOT NULL,
	person_id TEXT NOT NULL,
	external_id TEXT NOT NULL,
	field TEXT NOT NULL,
	local_value TEXT NOT NULL,
	remote_value TEXT NOT NULL,
	base_value TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'resolved')),
	resolution TEXT CHECK(resolution IN ('keep_local', 'keep_remote', 'merge', 'create_new')),
	created_at DATETIME NOT NULL,
	resolved_at DATETIME,
	FOREIGN KEY (person_id) REFERENCES persons(id)
);

CREATE INDEX IF NOT EXISTS idx_sync_conflicts_owner ON sync_conflicts(owner_id, status);
CREATE UNIQUE INDEX IF NOT EXISTS idx_sync_conflicts_pending
	ON sync_conflicts(owner_id, provider, person_id, field) WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS audit_log (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	actor TEXT NOT NULL,
	action TEXT NOT NULL,
	resource_type TEXT NOT NULL,
	resource_id TEXT,
	fields TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_owner ON audit_log(owner_id, id);

CREATE TRIGGER IF NOT EXISTS audit_log_no_update BEFORE UPDATE ON audit_log
BEGIN
	SELECT RAISE(ABORT, 'audit_log is append-only');
END;

CREATE TRIGGER IF NOT EXISTS audit_log_no_delete BEFORE DELETE ON audit_log
BEGIN
	SELECT RAISE(ABORT, 'audit_log is append-only');
END;
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
