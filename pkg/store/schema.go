package store

// SQL schema definitions for the SQLite-backed knowledge store and message log.

const (
	// SchemaVersion1 represents the initial database schema version
	SchemaVersion1 = 1
	// SchemaVersion2 adds query indexes
	SchemaVersion2 = 2
	// CurrentSchemaVersion is the latest schema version
	CurrentSchemaVersion = SchemaVersion2
)

// createSchemaVersionTable creates the schema version tracking table
const createSchemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at DATETIME NOT NULL,
    description TEXT
);
`

// createMessagesTable creates the append-only conversation log
const createMessagesTable = `
CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ts TEXT NOT NULL,
    conv_id TEXT,
    role TEXT,
    lang TEXT,
    text TEXT
);
`

// createKnowledgeTable creates the learned Q/A repository. q_hash is the
// fingerprint of the normalized Chinese question and must stay unique.
const createKnowledgeTable = `
CREATE TABLE IF NOT EXISTS knowledge (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    q_fr TEXT,
    q_zh TEXT,
    a_zh TEXT,
    q_hash TEXT UNIQUE,
    hits INTEGER DEFAULT 0,
    upvotes INTEGER DEFAULT 0,
    source TEXT,
    created_at TEXT,
    updated_at TEXT
);
`

// createKnowledgeFTSTable creates the external-content full-text index.
// Rowids are kept equal to knowledge ids by the upsert path;
// contentless_delete allows rewriting a row in place.
const createKnowledgeFTSTable = `
CREATE VIRTUAL TABLE IF NOT EXISTS knowledge_fts USING fts5(
    question_all,
    answer_zh,
    content='',
    contentless_delete=1
);
`

// Schema version 2 indexes
const createIndexMessagesConvID = `
CREATE INDEX IF NOT EXISTS idx_messages_conv_id ON messages(conv_id);
`

const createIndexMessagesTS = `
CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(ts DESC);
`

const createIndexKnowledgeUpdatedAt = `
CREATE INDEX IF NOT EXISTS idx_knowledge_updated_at ON knowledge(updated_at DESC);
`

const createIndexKnowledgeSource = `
CREATE INDEX IF NOT EXISTS idx_knowledge_source ON knowledge(source);
`

// Drop indexes for rollback
const (
	dropIndexMessagesConvID     = `DROP INDEX IF EXISTS idx_messages_conv_id;`
	dropIndexMessagesTS         = `DROP INDEX IF EXISTS idx_messages_ts;`
	dropIndexKnowledgeUpdatedAt = `DROP INDEX IF EXISTS idx_knowledge_updated_at;`
	dropIndexKnowledgeSource    = `DROP INDEX IF EXISTS idx_knowledge_source;`
)
