package reciter

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/tilawa/internal/domain"
)

const cacheSize = 128

type Service interface {
	// Seed loads reciters from path, or the built-in list when path is empty.
	Seed(ctx context.Context, path string) error
	List(ctx context.Context, activeOnly bool) ([]domain.Reciter, error)
	// Get resolves an active reciter by identifier; unknown or inactive
	// reciters are a not_found error.
	Get(ctx context.Context, identifier string) (*domain.Reciter, error)
	GetByID(ctx context.Context, id int64) (*domain.Reciter, error)
}

type service struct {
	log   zerolog.Logger
	repo  domain.ReciterRepo
	seeds domain.SeedRepository
	cache *lru.Cache[string, domain.Reciter]
}

func NewService(log zerolog.Logger, repo domain.ReciterRepo, seeds domain.SeedRepository) (Service, error) {
	cache, err := lru.New[string, domain.Reciter](cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "creating reciter cache")
	}

	return &service{
		log:   log.With().Str("module", "reciter").Logger(),
		repo:  repo,
		seeds: seeds,
		cache: cache,
	}, nil
}

func (s *service) Seed(ctx context.Context, path string) error {
	reciters := domain.DefaultReciters
	if path != "" {
		var err error
		if reciters, err = s.seeds.GetReciters(ctx, path); err != nil {
			return errors.Wrap(err, "loading reciters")
		}
	}

	if err := s.repo.Seed(ctx, reciters); err != nil {
		return errors.Wrap(err, "seeding reciters")
	}

	s.cache.Purge()
	return nil
}

func (s *service) List(ctx context.Context, activeOnly bool) ([]domain.Reciter, error) {
	return s.repo.List(ctx, activeOnly)
}

func (s *service) Get(ctx context.Context, identifier string) (*domain.Reciter, error) {
	if rc, ok := s.cache.Get(identifier); ok {
		return &rc, nil
	}

	rc, err := s.repo.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, domain.E(domain.KindPersistence, "reciter", err)
	}
	if rc == nil || !rc.Active {
		return nil, domain.E(domain.KindNotFound, "reciter", errors.Errorf("no active reciter %q", identifier))
	}

	s.cache.Add(identifier, *rc)
	s.log.Trace().Str("reciter", identifier).Msg("cached reciter")

	return rc, nil
}

func (s *service) GetByID(ctx context.Context, id int64) (*domain.Reciter, error) {
	rc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, domain.E(domain.KindPersistence, "reciter", err)
	}
	if rc == nil || !rc.Active {
		return nil, domain.E(domain.KindNotFound, "reciter", errors.Errorf("no active reciter with id %d", id))
	}
	return rc, nil
}
