package store

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sources (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    name         TEXT NOT NULL UNIQUE,
    type         TEXT NOT NULL,
    url          TEXT NOT NULL DEFAULT '',
    feed_url     TEXT NOT NULL DEFAULT '',
    trust_level  TEXT NOT NULL DEFAULT 'medium',
    fetch_method TEXT NOT NULL DEFAULT 'rss'
);

CREATE TABLE IF NOT EXISTS stories (
    id              TEXT PRIMARY KEY,
    canonical_title TEXT NOT NULL,
    created_at      DATETIME NOT NULL,
    tags            TEXT NOT NULL DEFAULT '[]',
    score           REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_stories_created_at ON stories(created_at);

CREATE TABLE IF NOT EXISTS items (
    id           TEXT PRIMARY KEY,
    source_id    INTEGER NOT NULL REFERENCES sources(id),
    title        TEXT NOT NULL,
    url          TEXT NOT NULL DEFAULT '',
    published_at DATETIME NOT NULL,
    raw_text     TEXT NOT NULL DEFAULT '',
    content_type TEXT NOT NULL,
    hash         TEXT NOT NULL UNIQUE,
    metadata     TEXT NOT NULL DEFAULT '{}',
    story_id     TEXT REFERENCES stories(id),
    ingested_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_story_id ON items(story_id);
CREATE INDEX IF NOT EXISTS idx_items_published_at ON items(published_at);

CREATE TABLE IF NOT EXISTS story_summaries (
    id              TEXT PRIMARY KEY,
    story_id        TEXT NOT NULL REFERENCES stories(id),
    persona         TEXT NOT NULL,
    category        TEXT NOT NULL,
    summary_short   TEXT NOT NULL,
    summary_bullets TEXT NOT NULL DEFAULT '[]',
    why_it_matters  TEXT NOT NULL DEFAULT '',
    key_entities    TEXT NOT NULL DEFAULT '[]',
    confidence      TEXT NOT NULL DEFAULT 'low',
    created_at      DATETIME NOT NULL,
    UNIQUE(story_id, persona, category)
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sources (
    id           BIGSERIAL PRIMARY KEY,
    name         TEXT NOT NULL UNIQUE,
    type         TEXT NOT NULL,
    url          TEXT NOT NULL DEFAULT '',
    feed_url     TEXT NOT NULL DEFAULT '',
    trust_level  TEXT NOT NULL DEFAULT 'medium',
    fetch_method TEXT NOT NULL DEFAULT 'rss'
);

CREATE TABLE IF NOT EXISTS stories (
    id              TEXT PRIMARY KEY,
    canonical_title TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL,
    tags            TEXT NOT NULL DEFAULT '[]',
    score           DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_stories_created_at ON stories(created_at);

CREATE TABLE IF NOT EXISTS items (
    id           TEXT PRIMARY KEY,
    source_id    BIGINT NOT NULL REFERENCES sources(id),
    title        TEXT NOT NULL,
    url          TEXT NOT NULL DEFAULT '',
    published_at TIMESTAMPTZ NOT NULL,
    raw_text     TEXT NOT NULL DEFAULT '',
    content_type TEXT NOT NULL,
    hash         TEXT NOT NULL UNIQUE,
    metadata     TEXT NOT NULL DEFAULT '{}',
    story_id     TEXT REFERENCES stories(id),
    ingested_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_story_id ON items(story_id);
CREATE INDEX IF NOT EXISTS idx_items_published_at ON items(published_at);

CREATE TABLE IF NOT EXISTS story_summaries (
    id              TEXT PRIMARY KEY,
    story_id        TEXT NOT NULL REFERENCES stories(id),
    persona         TEXT NOT NULL,
    category        TEXT NOT NULL,
    summary_short   TEXT NOT NULL,
    summary_bullets TEXT NOT NULL DEFAULT '[]',
    why_it_matters  TEXT NOT NULL DEFAULT '',
    key_entities    TEXT NOT NULL DEFAULT '[]',
    confidence      TEXT NOT NULL DEFAULT 'low',
    created_at      TIMESTAMPTZ NOT NULL,
    UNIQUE(story_id, persona, category)
);
`
