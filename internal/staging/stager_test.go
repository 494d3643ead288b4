package staging

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varoOP/tilawa/internal/domain"
)

func dirEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return entries
}

type recordingReader struct {
	r     *bytes.Reader
	sizes []int
}

func (r *recordingReader) Read(p []byte) (int, error) {
	r.sizes = append(r.sizes, len(p))
	return r.r.Read(p)
}

func TestCopyChunks_ReadsFullChunksIntoFile(t *testing.T) {
	payload := bytes.Repeat([]byte{0xff}, 2*ChunkSize+17)
	src := &recordingReader{r: bytes.NewReader(payload)}

	out, err := os.Create(filepath.Join(t.TempDir(), "out.mp3"))
	require.NoError(t, err)
	defer out.Close()

	written, err := copyChunks(out, src)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), written)

	require.NotEmpty(t, src.sizes)
	for _, size := range src.sizes {
		assert.Equal(t, ChunkSize, size)
	}

	got, err := os.ReadFile(out.Name())
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestStage(t *testing.T) {
	payload := bytes.Repeat([]byte("recitation"), ChunkSize/4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "staging")
	s := NewStager(zerolog.Nop(), dir, time.Second)

	file, err := s.Stage(context.Background(), srv.URL+"/002.mp3")
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), file.Size)
	assert.Equal(t, dir, filepath.Dir(file.Path))
	assert.True(t, strings.HasSuffix(file.Path, ".mp3"))

	got, err := os.ReadFile(file.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	file.Release()
	_, err = os.Stat(file.Path)
	assert.True(t, os.IsNotExist(err))

	assert.NotPanics(t, file.Release)
}

func TestStage_UniqueNames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	s := NewStager(zerolog.Nop(), t.TempDir(), time.Second)

	a, err := s.Stage(context.Background(), srv.URL)
	require.NoError(t, err)
	defer a.Release()
	b, err := s.Stage(context.Background(), srv.URL)
	require.NoError(t, err)
	defer b.Release()

	assert.NotEqual(t, a.Path, b.Path)
}

func TestStage_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	s := NewStager(zerolog.Nop(), dir, time.Second)

	file, err := s.Stage(context.Background(), srv.URL)
	assert.Nil(t, file)
	assert.True(t, domain.IsKind(err, domain.KindStaging))
	assert.Empty(t, dirEntries(t, dir))
}

func TestStage_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	dir := t.TempDir()
	s := NewStager(zerolog.Nop(), dir, time.Second)

	_, err := s.Stage(context.Background(), url)
	assert.True(t, domain.IsKind(err, domain.KindStaging))
	assert.Equal(t, domain.CategoryTemporary, domain.CategoryOf(err))
	assert.Empty(t, dirEntries(t, dir))
}

func TestStage_TruncatedBodyLeavesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4096")
		_, _ = w.Write([]byte("partial"))
		hj, ok := w.(http.Hijacker)
		if !ok {
			return
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			_ = conn.Close()
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	s := NewStager(zerolog.Nop(), dir, time.Second)

	file, err := s.Stage(context.Background(), srv.URL)
	assert.Nil(t, file)
	assert.Error(t, err)
	assert.Empty(t, dirEntries(t, dir))
}

func TestStage_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	dir := t.TempDir()
	s := NewStager(zerolog.Nop(), dir, 50*time.Millisecond)

	_, err := s.Stage(context.Background(), srv.URL)
	assert.True(t, domain.IsKind(err, domain.KindUpstreamTimeout))
	assert.Empty(t, dirEntries(t, dir))
}
