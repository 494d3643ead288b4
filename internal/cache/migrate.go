package cache

import (
	"context"
	"database/sql"
	"os"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/tilawa/internal/domain"
	_ "modernc.org/sqlite"
)

// MigrationResult counts what MigrateCache did
type MigrationResult struct {
	Reciters int
	Migrated int
	Skipped  int
}

// MigrateCache imports reciters and cached recitations from a database written
// by the earlier bot into the current store. Rows are applied in id order, so
// when the old table holds several whole-surah rows for one reciter the newest wins.
// The legacy database is opened read-only.
func MigrateCache(ctx context.Context, legacyPath string, reciterRepo domain.ReciterRepo, cacheRepo domain.CacheRepo, log zerolog.Logger) (*MigrationResult, error) {
	log = log.With().Str("module", "migrate").Logger()

	if _, err := os.Stat(legacyPath); err != nil {
		return nil, errors.Wrapf(err, "legacy database %s", legacyPath)
	}

	legacy, err := sql.Open("sqlite", legacyPath+"?_pragma=query_only(1)")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open legacy database")
	}
	defer legacy.Close()

	log.Info().Str("legacy_db", legacyPath).Msg("Starting cache migration")

	result := &MigrationResult{}

	reciters, err := legacyReciters(ctx, legacy)
	if err != nil {
		return nil, err
	}
	if err := reciterRepo.Seed(ctx, reciters); err != nil {
		return nil, errors.Wrap(err, "failed to import reciters")
	}
	result.Reciters = len(reciters)

	query, args, err := sq.
		Select("reciter_id", "surah_number", "ayah_number", "file_id", "caption_ru", "caption_uz", "title", "performer").
		From("audio_cache").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	rows, err := legacy.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read legacy audio cache")
	}
	defer rows.Close()

	var entries []*domain.CacheEntry
	for rows.Next() {
		var (
			reciter   string
			surah     int
			ayah      sql.NullInt64
			fileID    sql.NullString
			captionRU sql.NullString
			captionUZ sql.NullString
			title     sql.NullString
			performer sql.NullString
		)
		if err := rows.Scan(&reciter, &surah, &ayah, &fileID, &captionRU, &captionUZ, &title, &performer); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}

		if fileID.String == "" || surah < 1 || surah > domain.MaxSurah || (ayah.Valid && ayah.Int64 < 1) {
			log.Warn().Str("reciter", reciter).Int("surah", surah).Msg("skipping unusable legacy row")
			result.Skipped++
			continue
		}

		key := domain.SurahKey(reciter, surah)
		if ayah.Valid {
			key = domain.AyahKey(reciter, surah, int(ayah.Int64))
		}

		captions := make(map[string]string, 2)
		for lang, c := range map[string]sql.NullString{"ru": captionRU, "uz": captionUZ} {
			if c.Valid {
				captions[lang] = c.String
			}
		}

		entries = append(entries, &domain.CacheEntry{
			Key:              key,
			ContentReference: fileID.String,
			Captions:         captions,
			Title:            title.String,
			Performer:        performer.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}
	rows.Close()

	for _, entry := range entries {
		if err := cacheRepo.Upsert(ctx, entry); err != nil {
			return nil, errors.Wrapf(err, "failed to import %s", entry.Key)
		}
		result.Migrated++
		if result.Migrated%100 == 0 {
			log.Info().Int("migrated", result.Migrated).Msg("Migration progress")
		}
	}

	log.Info().
		Int("reciters", result.Reciters).
		Int("migrated", result.Migrated).
		Int("skipped", result.Skipped).
		Msg("Cache migration complete")

	return result, nil
}

func legacyReciters(ctx context.Context, legacy *sql.DB) ([]domain.Reciter, error) {
	query, args, err := sq.
		Select("identifier", "name", "name_ru", "is_active").
		From("reciters").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	rows, err := legacy.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read legacy reciters")
	}
	defer rows.Close()

	var reciters []domain.Reciter
	for rows.Next() {
		var (
			rc     domain.Reciter
			nameRU sql.NullString
			active sql.NullInt64
		)
		if err := rows.Scan(&rc.Identifier, &rc.Name, &nameRU, &active); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		if nameRU.Valid && nameRU.String != "" {
			rc.LocalizedName = &nameRU.String
		}
		rc.Active = !active.Valid || active.Int64 != 0
		reciters = append(reciters, rc)
	}

	return reciters, errors.Wrap(rows.Err(), "error iterating rows")
}
