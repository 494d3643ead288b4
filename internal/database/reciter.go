package database

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/tilawa/internal/domain"
)

// ReciterRepo implements domain.ReciterRepo interface
type ReciterRepo struct {
	log zerolog.Logger
	db  *DB
}

// NewReciterRepo creates a new reciter repository
func NewReciterRepo(log zerolog.Logger, db *DB) domain.ReciterRepo {
	return &ReciterRepo{
		log: log.With().Str("repo", "reciter").Logger(),
		db:  db,
	}
}

var reciterColumns = []string{"id", "identifier", "name", "localized_name", "is_active"}

// Seed inserts reciters that are not present yet
func (r *ReciterRepo) Seed(ctx context.Context, reciters []domain.Reciter) error {
	if len(reciters) == 0 {
		return nil
	}

	queryBuilder := r.db.squirrel.
		Insert("reciters").
		Options("OR IGNORE").
		Columns("identifier", "name", "localized_name", "is_active")
	for _, rc := range reciters {
		queryBuilder = queryBuilder.Values(rc.Identifier, rc.Name, rc.LocalizedName, rc.Active)
	}

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Seed")

	res, err := r.db.handler.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "error executing query")
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		r.log.Info().Int64("inserted", n).Msg("Seeded reciters")
	}

	return nil
}

// List returns reciters ordered by id
func (r *ReciterRepo) List(ctx context.Context, activeOnly bool) ([]domain.Reciter, error) {
	queryBuilder := r.db.squirrel.
		Select(reciterColumns...).
		From("reciters").
		OrderBy("id")
	if activeOnly {
		queryBuilder = queryBuilder.Where(sq.Eq{"is_active": true})
	}

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("List")

	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	var reciters []domain.Reciter
	for rows.Next() {
		rc, err := scanReciter(rows)
		if err != nil {
			return nil, err
		}
		reciters = append(reciters, *rc)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return reciters, nil
}

// GetByID returns nil, nil if no reciter has the id
func (r *ReciterRepo) GetByID(ctx context.Context, id int64) (*domain.Reciter, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

// GetByIdentifier returns nil, nil if no reciter has the identifier
func (r *ReciterRepo) GetByIdentifier(ctx context.Context, identifier string) (*domain.Reciter, error) {
	return r.getOne(ctx, sq.Eq{"identifier": identifier})
}

func (r *ReciterRepo) getOne(ctx context.Context, where sq.Eq) (*domain.Reciter, error) {
	query, args, err := r.db.squirrel.
		Select(reciterColumns...).
		From("reciters").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("getOne")

	rc, err := scanReciter(r.db.handler.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rc, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReciter(s scanner) (*domain.Reciter, error) {
	var (
		rc        domain.Reciter
		localized sql.NullString
	)
	if err := s.Scan(&rc.ID, &rc.Identifier, &rc.Name, &localized, &rc.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "error scanning row")
	}
	if localized.Valid {
		rc.LocalizedName = &localized.String
	}
	return &rc, nil
}
