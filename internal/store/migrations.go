package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	direction   TEXT NOT NULL,
	dry_run     INTEGER NOT NULL DEFAULT 0 CHECK(dry_run IN (0, 1)),
	status      TEXT NOT NULL DEFAULT 'running'
	            CHECK(status IN ('running', 'completed', 'failed')),
	result      TEXT NOT NULL DEFAULT '{}',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_tenant_id ON runs(tenant_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_runs_tenant_started
	ON runs(tenant_id, started_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
