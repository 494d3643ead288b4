package database

const schema = `
CREATE TABLE reciters (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	identifier TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	localized_name TEXT,
	is_active BOOLEAN NOT NULL DEFAULT 1
);

CREATE TABLE audio_cache (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	reciter_identifier TEXT NOT NULL,
	surah_number INTEGER NOT NULL,
	ayah_number INTEGER,
	content_reference TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	performer TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

-- A plain UNIQUE constraint treats NULLs as distinct from each other, which
-- would allow several whole-surah rows per reciter. Ayahs start at 1, so 0
-- is free to stand for "whole surah".
CREATE UNIQUE INDEX idx_audio_cache_identity
	ON audio_cache(reciter_identifier, surah_number, IFNULL(ayah_number, 0));

CREATE INDEX idx_audio_cache_reciter ON audio_cache(reciter_identifier);

CREATE TABLE audio_cache_captions (
	cache_id INTEGER NOT NULL,
	language TEXT NOT NULL,
	caption TEXT NOT NULL,
	PRIMARY KEY (cache_id, language),
	FOREIGN KEY (cache_id) REFERENCES audio_cache(id) ON DELETE CASCADE
);
`

// migrations contains incremental schema changes
// Each migration is applied in order based on the current user_version
// migrations[0] is empty because version 0 uses the base schema
var migrations = []string{
	"",
}
