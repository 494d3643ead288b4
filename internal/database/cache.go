package database

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/tilawa/internal/domain"
)

const op = "cache store"

// CacheRepo implements domain.CacheRepo interface
type CacheRepo struct {
	log zerolog.Logger
	db  *DB
}

// NewCacheRepo creates a new cache repository
func NewCacheRepo(log zerolog.Logger, db *DB) domain.CacheRepo {
	return &CacheRepo{
		log: log.With().Str("repo", "cache").Logger(),
		db:  db,
	}
}

// identity matches one key. sq.Eq renders a nil ayah as "ayah_number IS NULL",
// so a whole-surah lookup never matches an ayah row and vice versa.
func identity(key domain.CacheKey) sq.Eq {
	var ayah any
	if key.Ayah != nil {
		ayah = *key.Ayah
	}
	return sq.Eq{
		"reciter_identifier": key.ReciterIdentifier,
		"surah_number":       key.Surah,
		"ayah_number":        ayah,
	}
}

// Get returns the cache entry for key, or nil if there is none
func (r *CacheRepo) Get(ctx context.Context, key domain.CacheKey) (*domain.CacheEntry, error) {
	queryBuilder := r.db.squirrel.
		Select("id", "content_reference", "title", "performer", "created_at").
		From("audio_cache").
		Where(identity(key)).
		Limit(1)

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, domain.E(domain.KindPersistence, op, errors.Wrap(err, "error building query"))
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Get")

	var (
		id        int64
		createdAt string
		entry     = &domain.CacheEntry{Key: key}
	)
	err = r.db.handler.QueryRowContext(ctx, query, args...).
		Scan(&id, &entry.ContentReference, &entry.Title, &entry.Performer, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.E(domain.KindPersistence, op, errors.Wrap(err, "error executing query"))
	}
	entry.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	entry.Captions, err = r.captions(ctx, id)
	if err != nil {
		return nil, domain.E(domain.KindPersistence, op, err)
	}

	return entry, nil
}

func (r *CacheRepo) captions(ctx context.Context, cacheID int64) (map[string]string, error) {
	query, args, err := r.db.squirrel.
		Select("language", "caption").
		From("audio_cache_captions").
		Where(sq.Eq{"cache_id": cacheID}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building captions query")
	}

	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing captions query")
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var lang, caption string
		if err := rows.Scan(&lang, &caption); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		result[lang] = caption
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return result, nil
}

// Upsert inserts the entry or replaces reference, captions, title and
// performer of the existing row. The whole write is one transaction, so
// concurrent upserts of one identity leave the last writer's row intact.
func (r *CacheRepo) Upsert(ctx context.Context, entry *domain.CacheEntry) error {
	if err := r.upsert(ctx, entry); err != nil {
		return domain.E(domain.KindPersistence, op, err)
	}
	return nil
}

func (r *CacheRepo) upsert(ctx context.Context, entry *domain.CacheEntry) error {
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query, args, err := r.db.squirrel.
		Select("id").
		From("audio_cache").
		Where(identity(entry.Key)).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	var id int64
	err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		var ayah any
		if entry.Key.Ayah != nil {
			ayah = *entry.Key.Ayah
		}
		query, args, err = r.db.squirrel.
			Insert("audio_cache").
			Columns("reciter_identifier", "surah_number", "ayah_number", "content_reference", "title", "performer", "created_at", "updated_at").
			Values(entry.Key.ReciterIdentifier, entry.Key.Surah, ayah, entry.ContentReference, entry.Title, entry.Performer, now, now).
			ToSql()
		if err != nil {
			return errors.Wrap(err, "error building insert")
		}

		r.log.Trace().Str("query", query).Interface("args", args).Msg("Upsert")

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return errors.Wrap(err, "error executing insert")
		}
		if id, err = res.LastInsertId(); err != nil {
			return errors.Wrap(err, "error reading inserted id")
		}

	case err != nil:
		return errors.Wrap(err, "error executing query")

	default:
		query, args, err = r.db.squirrel.
			Update("audio_cache").
			SetMap(map[string]any{
				"content_reference": entry.ContentReference,
				"title":             entry.Title,
				"performer":         entry.Performer,
				"updated_at":        now,
			}).
			Where(sq.Eq{"id": id}).
			ToSql()
		if err != nil {
			return errors.Wrap(err, "error building update")
		}

		r.log.Trace().Str("query", query).Interface("args", args).Msg("Upsert")

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return errors.Wrap(err, "error executing update")
		}
	}

	query, args, err = r.db.squirrel.
		Delete("audio_cache_captions").
		Where(sq.Eq{"cache_id": id}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "error building captions delete")
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error clearing captions")
	}

	if len(entry.Captions) > 0 {
		insert := r.db.squirrel.
			Insert("audio_cache_captions").
			Columns("cache_id", "language", "caption")
		for lang, caption := range entry.Captions {
			insert = insert.Values(id, lang, caption)
		}
		query, args, err = insert.ToSql()
		if err != nil {
			return errors.Wrap(err, "error building captions insert")
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return errors.Wrap(err, "error inserting captions")
		}
	}

	return tx.Commit()
}

// Delete removes the entry for key (captions cascade)
func (r *CacheRepo) Delete(ctx context.Context, key domain.CacheKey) (bool, error) {
	queryBuilder := r.db.squirrel.
		Delete("audio_cache").
		Where(identity(key))

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return false, domain.E(domain.KindPersistence, op, errors.Wrap(err, "error building delete query"))
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Delete")

	res, err := r.db.handler.ExecContext(ctx, query, args...)
	if err != nil {
		return false, domain.E(domain.KindPersistence, op, errors.Wrap(err, "error executing delete query"))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.E(domain.KindPersistence, op, errors.Wrap(err, "error reading affected rows"))
	}

	return n > 0, nil
}

// Stats returns cache counters for operator reports
func (r *CacheRepo) Stats(ctx context.Context) (*domain.Statistics, error) {
	stats := &domain.Statistics{PerReciter: make(map[string]int)}

	query, args, err := r.db.squirrel.
		Select(
			"COUNT(*)",
			"COALESCE(SUM(CASE WHEN ayah_number IS NULL THEN 1 ELSE 0 END), 0)",
			"COALESCE(SUM(CASE WHEN ayah_number IS NOT NULL THEN 1 ELSE 0 END), 0)",
		).
		From("audio_cache").
		ToSql()
	if err != nil {
		return nil, domain.E(domain.KindPersistence, op, errors.Wrap(err, "error building query"))
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Stats")

	if err := r.db.handler.QueryRowContext(ctx, query, args...).
		Scan(&stats.TotalEntries, &stats.SurahEntries, &stats.AyahEntries); err != nil {
		return nil, domain.E(domain.KindPersistence, op, errors.Wrap(err, "error executing query"))
	}

	query, args, err = r.db.squirrel.
		Select("reciter_identifier", "COUNT(*)").
		From("audio_cache").
		GroupBy("reciter_identifier").
		ToSql()
	if err != nil {
		return nil, domain.E(domain.KindPersistence, op, errors.Wrap(err, "error building query"))
	}

	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.E(domain.KindPersistence, op, errors.Wrap(err, "error executing query"))
	}
	defer rows.Close()

	for rows.Next() {
		var (
			reciter string
			n       int
		)
		if err := rows.Scan(&reciter, &n); err != nil {
			return nil, domain.E(domain.KindPersistence, op, errors.Wrap(err, "error scanning row"))
		}
		stats.PerReciter[reciter] = n
	}
	if err := rows.Err(); err != nil {
		return nil, domain.E(domain.KindPersistence, op, errors.Wrap(err, "error iterating rows"))
	}
	rows.Close()

	query, args, err = r.db.squirrel.
		Select("COUNT(*)").
		From("reciters").
		Where(sq.Eq{"is_active": true}).
		ToSql()
	if err != nil {
		return nil, domain.E(domain.KindPersistence, op, errors.Wrap(err, "error building query"))
	}
	if err := r.db.handler.QueryRowContext(ctx, query, args...).Scan(&stats.ActiveReciters); err != nil {
		return nil, domain.E(domain.KindPersistence, op, errors.Wrap(err, "error executing query"))
	}

	return stats, nil
}
