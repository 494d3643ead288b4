package storage

import (
	"context"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/tilawa/internal/domain"
	"github.com/varoOP/tilawa/internal/staging"
	"golang.org/x/time/rate"
)

const op = "upload"

// Uploader sends staged files to the storage backend. All uploads share one
// limiter so a burst of cold misses cannot flood the storage session.
type Uploader struct {
	log     zerolog.Logger
	backend domain.AudioStorage
	limiter *rate.Limiter
}

// NewUploader creates an uploader. A non-positive perSecond disables limiting.
func NewUploader(log zerolog.Logger, backend domain.AudioStorage, perSecond float64, burst int) *Uploader {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}

	return &Uploader{
		log:     log.With().Str("module", "storage").Logger(),
		backend: backend,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Upload sends file and returns its content reference. The file is released
// when Upload returns, whatever the outcome.
func (u *Uploader) Upload(ctx context.Context, file *staging.File, obj domain.AudioObject) (string, error) {
	defer file.Release()

	if err := u.limiter.Wait(ctx); err != nil {
		return "", domain.E(domain.KindUpload, op, errors.Wrap(err, "waiting for upload slot"))
	}

	obj.Path = file.Path
	u.log.Debug().
		Str("filename", obj.Filename).
		Str("size", humanize.Bytes(uint64(file.Size))).
		Msg("uploading audio")

	ref, err := u.backend.SendAudio(ctx, obj)
	if err != nil {
		return "", domain.E(domain.KindUpload, op, err)
	}
	if ref == "" {
		return "", domain.E(domain.KindUpload, op, errors.New("storage returned an empty content reference"))
	}

	u.log.Info().Str("filename", obj.Filename).Msg("uploaded audio")
	return ref, nil
}
