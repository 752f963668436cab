package heartbeat

type migration struct {
	version  int
	sqlite   string
	postgres string
}

var migrations = []migration{
	{
		version: 1,
		sqlite: `
CREATE TABLE IF NOT EXISTS heartbeat_monitors (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL UNIQUE,
	enabled      INTEGER NOT NULL DEFAULT 1,
	timeout_ns   INTEGER NOT NULL,
	last_beat_ns INTEGER
);
CREATE INDEX IF NOT EXISTS idx_heartbeat_monitors_enabled ON heartbeat_monitors(enabled);`,
		postgres: `
CREATE TABLE IF NOT EXISTS heartbeat_monitors (
	id           TEXT PRIMARY KEY,
	name         VARCHAR(200) NOT NULL UNIQUE,
	enabled      BOOLEAN NOT NULL DEFAULT TRUE,
	timeout_ns   BIGINT NOT NULL,
	last_beat_ns BIGINT
);
CREATE INDEX IF NOT EXISTS idx_heartbeat_monitors_enabled ON heartbeat_monitors(enabled);`,
	},
}

const migrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`
