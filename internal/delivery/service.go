package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/tilawa/internal/caption"
	"github.com/varoOP/tilawa/internal/domain"
	"github.com/varoOP/tilawa/internal/staging"
	"golang.org/x/sync/singleflight"
)

// Uploader sends a staged file to storage and releases it.
type Uploader interface {
	Upload(ctx context.Context, file *staging.File, obj domain.AudioObject) (string, error)
}

type service struct {
	log      zerolog.Logger
	cache    domain.CacheRepo
	content  domain.ContentClient
	stager   staging.Stager
	uploader Uploader
	captions *caption.Builder
	notifier domain.NotificationService

	coalesce bool
	timeout  time.Duration
	flights  singleflight.Group
}

// outcome is what one cold path (or the re-lookup inside a flight) produced.
type outcome struct {
	entry *domain.CacheEntry
	state domain.DeliveryState
}

func NewService(log zerolog.Logger, config *domain.Config, cache domain.CacheRepo, content domain.ContentClient, stager staging.Stager, uploader Uploader, captions *caption.Builder, notifier domain.NotificationService) domain.DeliveryService {
	return &service{
		log:      log.With().Str("module", "delivery").Logger(),
		cache:    cache,
		content:  content,
		stager:   stager,
		uploader: uploader,
		captions: captions,
		notifier: notifier,
		coalesce: config.CoalesceMisses,
		timeout:  config.RequestTimeout,
	}
}

// Deliver serves the recitation for req from the cache, running the cold
// path on a miss. Nothing is cached unless every step succeeds.
func (s *service) Deliver(ctx context.Context, req domain.DeliveryRequest) (*domain.Delivery, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	key := req.Key()
	log := s.log.With().Str("key", key.String()).Logger()

	if err := validate(req); err != nil {
		log.Debug().Err(err).Msg("rejected request")
		return nil, err
	}

	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, s.fail(ctx, log, key, domain.StateLookup, err)
	}

	result := outcome{entry: entry, state: domain.StateCacheHit}
	if entry == nil {
		if s.coalesce {
			result, err = s.coalesced(ctx, log, req)
		} else {
			result, err = s.coldPath(ctx, log, req)
		}
		if err != nil {
			return nil, err
		}
	}

	if result.state == domain.StateCacheHit {
		s.transition(log, domain.StateCacheHit)
	}

	lang := s.captions.Resolve(req.Language)
	return &domain.Delivery{
		Key:              key,
		ContentReference: result.entry.ContentReference,
		Title:            result.entry.Title,
		Performer:        result.entry.Performer,
		Caption:          result.entry.Caption(lang, s.captions.Default()),
		State:            result.state,
	}, nil
}

// coalesced runs one cold path per key at a time. Callers that arrive while
// it runs share its result. The flight runs with the first caller's context.
func (s *service) coalesced(ctx context.Context, log zerolog.Logger, req domain.DeliveryRequest) (outcome, error) {
	key := req.Key()

	v, err, shared := s.flights.Do(key.String(), func() (any, error) {
		// a flight for this key may have finished between our lookup and now
		entry, err := s.cache.Get(ctx, key)
		if err != nil {
			return outcome{}, s.fail(ctx, log, key, domain.StateLookup, err)
		}
		if entry != nil {
			return outcome{entry: entry, state: domain.StateCacheHit}, nil
		}
		return s.coldPath(ctx, log, req)
	})
	if shared {
		log.Debug().Msg("joined in-flight delivery")
	}
	if err != nil {
		return outcome{}, err
	}

	return v.(outcome), nil
}

func (s *service) coldPath(ctx context.Context, log zerolog.Logger, req domain.DeliveryRequest) (outcome, error) {
	key := req.Key()
	performer := req.Reciter.DisplayName()

	s.transition(log, domain.StateFetching)

	var (
		audioURL string
		obj      domain.AudioObject
		captions map[string]string
		err      error
	)
	if req.Ayah == nil {
		audioURL, obj, captions, err = s.fetchSurah(ctx, req, performer)
	} else {
		audioURL, obj, captions, err = s.fetchAyah(ctx, req, performer)
	}
	if err != nil {
		return outcome{}, s.fail(ctx, log, key, domain.StateFetching, err)
	}

	s.transition(log, domain.StateStaging)

	file, err := s.stager.Stage(ctx, audioURL)
	if err != nil {
		return outcome{}, s.fail(ctx, log, key, domain.StateStaging, err)
	}

	s.transition(log, domain.StateUploading)

	ref, err := s.uploader.Upload(ctx, file, obj)
	if err != nil {
		return outcome{}, s.fail(ctx, log, key, domain.StateUploading, err)
	}

	entry := &domain.CacheEntry{
		Key:              key,
		ContentReference: ref,
		Captions:         captions,
		Title:            obj.Title,
		Performer:        obj.Performer,
	}
	s.transition(log, domain.StateSaving)

	if err := s.cache.Upsert(ctx, entry); err != nil {
		return outcome{}, s.fail(ctx, log, key, domain.StateSaving, err)
	}

	s.transition(log, domain.StateCached)

	return outcome{entry: entry, state: domain.StateCached}, nil
}

func (s *service) fetchSurah(ctx context.Context, req domain.DeliveryRequest, performer string) (string, domain.AudioObject, map[string]string, error) {
	info, err := s.content.FetchSurah(ctx, req.Surah, req.Reciter.Identifier)
	if err != nil {
		return "", domain.AudioObject{}, nil, err
	}

	captions, err := s.captions.Surah(info, performer)
	if err != nil {
		return "", domain.AudioObject{}, nil, domain.E(domain.KindCaption, "build captions", err)
	}

	return info.AudioURL, domain.AudioObject{
		Filename:  domain.SafeFilename(fmt.Sprintf("Sura %d - %s - %s.mp3", info.Number, info.Name, performer)),
		Title:     fmt.Sprintf("Sura %d - %s (%s)", info.Number, info.NameArabic, info.Name),
		Performer: performer,
	}, captions, nil
}

func (s *service) fetchAyah(ctx context.Context, req domain.DeliveryRequest, performer string) (string, domain.AudioObject, map[string]string, error) {
	info, err := s.content.FetchAyah(ctx, req.Surah, *req.Ayah, req.Reciter.Identifier)
	if err != nil {
		return "", domain.AudioObject{}, nil, err
	}

	captions, err := s.captions.Ayah(info, performer)
	if err != nil {
		return "", domain.AudioObject{}, nil, domain.E(domain.KindCaption, "build captions", err)
	}

	return info.AudioURL, domain.AudioObject{
		Filename:  domain.SafeFilename(fmt.Sprintf("%s %d-%d - %s.mp3", info.SurahName, info.Surah, info.Ayah, performer)),
		Title:     fmt.Sprintf("%s %d:%d", info.SurahName, info.Surah, info.Ayah),
		Performer: performer,
	}, captions, nil
}

func (s *service) transition(log zerolog.Logger, state domain.DeliveryState) {
	log.Debug().Str("state", string(state)).Msg("delivery state")
}

// fail logs the failed state and reports failures an operator has to look at.
// The notification never changes the returned error.
func (s *service) fail(ctx context.Context, log zerolog.Logger, key domain.CacheKey, state domain.DeliveryState, err error) error {
	log.Error().
		Err(err).
		Str("state", string(domain.StateFailed)).
		Str("failed_at", string(state)).
		Str("kind", string(domain.KindOf(err))).
		Msg("delivery failed")

	if domain.NeedsOperator(err) && s.notifier != nil {
		report := domain.FailureReport{Key: key, State: state, Err: err}
		if nerr := s.notifier.SendFailure(context.WithoutCancel(ctx), report); nerr != nil {
			log.Warn().Err(nerr).Msg("failed to notify operator")
		}
	}

	return err
}

func validate(req domain.DeliveryRequest) error {
	const op = "validate request"

	if req.Reciter.Identifier == "" {
		return domain.E(domain.KindNotFound, op, errors.New("no reciter"))
	}
	if req.Surah < 1 || req.Surah > domain.MaxSurah {
		return domain.E(domain.KindNotFound, op, errors.Errorf("surah %d out of range 1-%d", req.Surah, domain.MaxSurah))
	}
	if req.Ayah != nil && *req.Ayah < 1 {
		return domain.E(domain.KindNotFound, op, errors.Errorf("ayah %d out of range", *req.Ayah))
	}
	return nil
}
