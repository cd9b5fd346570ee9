package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements creates every table and index the archive uses. Each one
// is idempotent so opening an existing archive is a no-op.
var schemaStatements = []string{
	// ── Tables ──────────────────────────────────────────────

	`CREATE TABLE IF NOT EXISTS browser (
		id               TEXT PRIMARY KEY,
		created          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		userAgent        TEXT NOT NULL DEFAULT '',
		devicePixelRatio REAL NOT NULL DEFAULT 1,
		connected        BOOLEAN NOT NULL DEFAULT 0,
		testing          BOOLEAN NOT NULL DEFAULT 0,
		autofetch        BOOLEAN NOT NULL DEFAULT 0,
		newestHistory    INTEGER,
		oldestHistory    INTEGER
	)`,

	`CREATE TABLE IF NOT EXISTS browser_session (
		id             TEXT PRIMARY KEY,
		browserId      TEXT,
		startTime      INTEGER,
		endTime        INTEGER,
		timezoneOffset INTEGER
	)`,

	// sourceId and initialLoadId point back into this table but carry no
	// constraint: a batch may reference rows that arrive later.
	`CREATE TABLE IF NOT EXISTS activity (
		id                      TEXT PRIMARY KEY,
		browserId               TEXT,
		sessionId               TEXT,
		url                     TEXT NOT NULL,
		title                   TEXT,
		ogTitle                 TEXT,
		loadTime                INTEGER,
		unloadTime              INTEGER,
		transitionType          TEXT,
		sourceClickText         TEXT,
		sourceClickHref         TEXT,
		clientRedirect          BOOLEAN NOT NULL DEFAULT 0,
		serverRedirect          BOOLEAN NOT NULL DEFAULT 0,
		forwardBack             BOOLEAN NOT NULL DEFAULT 0,
		fromAddressBar          BOOLEAN NOT NULL DEFAULT 0,
		sourceId                TEXT,
		initialLoadId           TEXT,
		newTab                  BOOLEAN,
		activeCount             INTEGER,
		activeTime              INTEGER,
		closedReason            TEXT,
		method                  TEXT,
		statusCode              INTEGER,
		contentType             TEXT,
		hasSetCookie            BOOLEAN,
		hasCookie               BOOLEAN,
		copyEvents              TEXT,
		formControlInteraction  INTEGER,
		formTextInteraction     INTEGER,
		isHashChange            BOOLEAN,
		maxScroll               INTEGER,
		documentHeight          INTEGER,
		hashPointsToElement     BOOLEAN,
		zoomLevel               REAL,
		canonicalUrl            TEXT,
		mainFeedUrl             TEXT,
		allFeeds                TEXT,
		browserHistoryId        TEXT,
		browserVisitId          TEXT,
		browserReferringVisitId TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS activity_link (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		activityId TEXT NOT NULL REFERENCES activity(id) ON DELETE CASCADE,
		url        TEXT NOT NULL,
		text       TEXT NOT NULL DEFAULT '',
		rel        TEXT,
		target     TEXT,
		elementId  TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS page (
		id          TEXT PRIMARY KEY,
		url         TEXT NOT NULL UNIQUE,
		fetched     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		activityId  TEXT,
		timeToFetch INTEGER,
		redirectUrl TEXT,
		redirectOk  BOOLEAN NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS fetch_error (
		url          TEXT PRIMARY KEY,
		errorMessage TEXT NOT NULL DEFAULT '',
		attempted    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE VIRTUAL TABLE IF NOT EXISTS search_index USING fts5(
		url UNINDEXED,
		url_words,
		title,
		readable,
		readable_byline,
		readable_excerpt,
		meta_description,
		full_text,
		tokenize='unicode61'
	)`,

	`CREATE TABLE IF NOT EXISTS entity_index (
		entity       TEXT NOT NULL,
		entity_label TEXT,
		url          TEXT NOT NULL,
		selector     TEXT NOT NULL
	)`,

	// ── Indexes ────────────────────────────────────────────

	`CREATE INDEX IF NOT EXISTS idx_activity_url        ON activity(url)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_browser    ON activity(browserId)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_visit      ON activity(browserVisitId)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_source     ON activity(sourceId)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_load_time  ON activity(loadTime)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_link_owner ON activity_link(activityId)`,
	`CREATE INDEX IF NOT EXISTS idx_session_browser     ON browser_session(browserId)`,
	`CREATE INDEX IF NOT EXISTS idx_entity_index_entity ON entity_index(entity)`,
	`CREATE INDEX IF NOT EXISTS idx_entity_index_url    ON entity_index(url)`,
}

// ensureSchema applies schemaStatements inside a single transaction.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	return tx.Commit()
}
