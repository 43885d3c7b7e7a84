package db

// Schema is the base DDL for the taskeroo database. Columns added after the
// first release are also listed in emailColumns so older files are migrated
// in place.
const Schema = `
CREATE TABLE IF NOT EXISTS emails (
    id                        TEXT PRIMARY KEY,
    subject                   TEXT,
    snippet                   TEXT,
    date                      TEXT,
    label_ids                 TEXT,
    sender_email              TEXT,
    email_body                TEXT,
    attachment_info           TEXT,
    received_time             TEXT,
    category                  TEXT,
    user_tags                 TEXT,
    manually_updated_category TEXT,
    is_manual                 INTEGER DEFAULT 0,
    reviewed                  INTEGER DEFAULT 0,
    ml_category               TEXT,
    confidence_score          REAL,
    is_read                   INTEGER DEFAULT 0,
    is_important              INTEGER DEFAULT 0,
    user_feedback             TEXT,
    secondary_categories      TEXT,
    all_categories            TEXT,
    thread_id                 TEXT
);

CREATE TABLE IF NOT EXISTS interactions (
    email_id    TEXT,
    interaction TEXT,
    timestamp   TEXT,
    FOREIGN KEY (email_id) REFERENCES emails(id)
);
`

// Indexes reference migrated columns, so they are created after migration.
const indexes = `
CREATE INDEX IF NOT EXISTS idx_emails_reviewed ON emails(reviewed);
CREATE INDEX IF NOT EXISTS idx_emails_category ON emails(category);
CREATE INDEX IF NOT EXISTS idx_interactions_email ON interactions(email_id);
`

type column struct {
	name string
	decl string
}

// emailColumns is every emails column after id, in store order.
var emailColumns = []column{
	{"subject", "TEXT"},
	{"snippet", "TEXT"},
	{"date", "TEXT"},
	{"label_ids", "TEXT"},
	{"sender_email", "TEXT"},
	{"email_body", "TEXT"},
	{"attachment_info", "TEXT"},
	{"received_time", "TEXT"},
	{"category", "TEXT"},
	{"user_tags", "TEXT"},
	{"manually_updated_category", "TEXT"},
	{"is_manual", "INTEGER DEFAULT 0"},
	{"reviewed", "INTEGER DEFAULT 0"},
	{"ml_category", "TEXT"},
	{"confidence_score", "REAL"},
	{"is_read", "INTEGER DEFAULT 0"},
	{"is_important", "INTEGER DEFAULT 0"},
	{"user_feedback", "TEXT"},
	{"secondary_categories", "TEXT"},
	{"all_categories", "TEXT"},
	{"thread_id", "TEXT"},
}

// selectColumns reads a row in store order, folding NULL flags and scores
// left behind by older schemas to zero.
const selectColumns = `
	id, subject, snippet, date, label_ids, sender_email, email_body,
	attachment_info, received_time, category, user_tags,
	manually_updated_category,
	COALESCE(is_manual, 0) AS is_manual,
	COALESCE(reviewed, 0) AS reviewed,
	ml_category,
	COALESCE(confidence_score, 0) AS confidence_score,
	COALESCE(is_read, 0) AS is_read,
	COALESCE(is_important, 0) AS is_important,
	user_feedback, secondary_categories, all_categories, thread_id`

// effectiveCategory is the SQL form of types.Email.EffectiveCategory.
const effectiveCategory = `CASE WHEN is_manual = 1 AND manually_updated_category IS NOT NULL
	THEN manually_updated_category ELSE category END`
