package staging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/tilawa/internal/domain"
)

const (
	ChunkSize       = 1 << 20
	DefaultTimeout  = 300 * time.Second
	stageExtension  = ".mp3"
	stagePermission = 0o755
)

const op = "stage"

// File is a staged download owned by the caller until Release.
type File struct {
	Path string
	Size int64

	once sync.Once
	log  zerolog.Logger
}

// Release removes the file. Only the first call does anything.
func (f *File) Release() {
	f.once.Do(func() {
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			f.log.Warn().Err(err).Str("path", f.Path).Msg("failed to remove staged file")
			return
		}
		f.log.Trace().Str("path", f.Path).Msg("released staged file")
	})
}

type Stager interface {
	Stage(ctx context.Context, url string) (*File, error)
}

type stager struct {
	log  zerolog.Logger
	http *resty.Client
	dir  string
}

func NewStager(log zerolog.Logger, dir string, timeout time.Duration) Stager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &stager{
		log:  log.With().Str("module", "staging").Logger(),
		http: resty.New().SetTimeout(timeout),
		dir:  dir,
	}
}

// Stage streams url into a uniquely named file under the staging directory.
// On failure nothing is left behind.
func (s *stager) Stage(ctx context.Context, url string) (*File, error) {
	if err := os.MkdirAll(s.dir, stagePermission); err != nil {
		return nil, domain.E(domain.KindStaging, op, errors.Wrapf(err, "unable to create staging directory %s", s.dir))
	}

	resp, err := s.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, transferError(err)
	}
	body := resp.RawBody()
	defer body.Close()

	if !resp.IsSuccess() {
		return nil, domain.E(domain.KindStaging, op, errors.Errorf("%s: %s", url, resp.Status()))
	}

	path := filepath.Join(s.dir, uuid.NewString()+stageExtension)
	out, err := os.Create(path)
	if err != nil {
		return nil, domain.E(domain.KindStaging, op, errors.Wrap(err, "unable to create staged file"))
	}

	written, err := copyChunks(out, body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			s.log.Warn().Err(rmErr).Str("path", path).Msg("failed to remove partial file")
		}
		return nil, transferError(errors.Wrap(err, "error writing staged file"))
	}

	s.log.Debug().
		Str("path", path).
		Str("size", humanize.Bytes(uint64(written))).
		Msg("staged audio")

	return &File{Path: path, Size: written, log: s.log}, nil
}

// copyChunks copies src to dst reading at most ChunkSize bytes at a time.
// Both ends are wrapped so io.CopyBuffer cannot hand the copy to
// os.File.ReadFrom, which would read in its own smaller pieces.
func copyChunks(dst io.Writer, src io.Reader) (int64, error) {
	return io.CopyBuffer(struct{ io.Writer }{dst}, struct{ io.Reader }{src}, make([]byte, ChunkSize))
}

func transferError(err error) error {
	if domain.IsTimeout(err) {
		return domain.E(domain.KindUpstreamTimeout, op, err)
	}
	return domain.E(domain.KindStaging, op, err)
}
