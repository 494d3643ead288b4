package delivery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varoOP/tilawa/internal/caption"
	"github.com/varoOP/tilawa/internal/database"
	"github.com/varoOP/tilawa/internal/domain"
	"github.com/varoOP/tilawa/internal/staging"
	"github.com/varoOP/tilawa/internal/storage"
)

var afasy = domain.DefaultReciters[0]

type fakeContent struct {
	surah func(ctx context.Context, surah int, reciter string) (*domain.SurahInfo, error)
	ayah  func(ctx context.Context, surah, ayah int, reciter string) (*domain.AyahInfo, error)
	calls atomic.Int32
}

func (f *fakeContent) FetchSurah(ctx context.Context, surah int, reciter string) (*domain.SurahInfo, error) {
	f.calls.Add(1)
	return f.surah(ctx, surah, reciter)
}

func (f *fakeContent) FetchAyah(ctx context.Context, surah, ayah int, reciter string) (*domain.AyahInfo, error) {
	f.calls.Add(1)
	return f.ayah(ctx, surah, ayah, reciter)
}

type fakeStorage struct {
	mu      sync.Mutex
	uploads []domain.AudioObject
	err     error
}

func (f *fakeStorage) SendAudio(ctx context.Context, obj domain.AudioObject) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return "", f.err
	}
	f.uploads = append(f.uploads, obj)
	return fmt.Sprintf("file-%d", len(f.uploads)), nil
}

func (f *fakeStorage) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

type fakeNotifier struct {
	mu      sync.Mutex
	reports []domain.FailureReport
}

func (f *fakeNotifier) SendFailure(ctx context.Context, report domain.FailureReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report)
	return nil
}

func (f *fakeNotifier) SendStats(ctx context.Context, stats domain.Statistics) error {
	return nil
}

type brokenCache struct {
	domain.CacheRepo
}

func (brokenCache) Get(ctx context.Context, key domain.CacheKey) (*domain.CacheEntry, error) {
	return nil, domain.E(domain.KindPersistence, "cache store", errors.New("disk I/O error"))
}

type failingUpsert struct {
	domain.CacheRepo
}

func (failingUpsert) Upsert(ctx context.Context, entry *domain.CacheEntry) error {
	return domain.E(domain.KindPersistence, "cache store", errors.New("database is locked"))
}

type harness struct {
	svc        domain.DeliveryService
	cache      domain.CacheRepo
	content    *fakeContent
	storage    *fakeStorage
	notifier   *fakeNotifier
	stagingDir string
	audioURL   string
}

func newHarness(t *testing.T, coalesce bool) *harness {
	t.Helper()

	audio := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/missing.mp3") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3 fake mp3 payload"))
	}))
	t.Cleanup(audio.Close)

	db, err := database.NewDB(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	h := &harness{
		cache:      database.NewCacheRepo(zerolog.Nop(), db),
		storage:    &fakeStorage{},
		notifier:   &fakeNotifier{},
		stagingDir: filepath.Join(t.TempDir(), "staging"),
		audioURL:   audio.URL,
	}
	h.content = &fakeContent{
		surah: func(ctx context.Context, surah int, reciter string) (*domain.SurahInfo, error) {
			return &domain.SurahInfo{
				Number:          surah,
				Name:            "Al-Baqarah",
				NameArabic:      "البقرة",
				NameTranslation: "The Cow",
				TotalAyah:       286,
				AudioURL:        fmt.Sprintf("%s/%s/%03d.mp3", h.audioURL, reciter, surah),
			}, nil
		},
		ayah: func(ctx context.Context, surah, ayah int, reciter string) (*domain.AyahInfo, error) {
			return nil, domain.E(domain.KindNotFound, "fetch ayah", errors.New("404 Not Found"))
		},
	}

	builder, err := caption.NewBuilder("ru", nil)
	require.NoError(t, err)

	h.svc = h.service(coalesce, h.cache, builder)
	return h
}

func (h *harness) service(coalesce bool, cache domain.CacheRepo, builder *caption.Builder) domain.DeliveryService {
	return NewService(
		zerolog.Nop(),
		&domain.Config{CoalesceMisses: coalesce},
		cache,
		h.content,
		staging.NewStager(zerolog.Nop(), h.stagingDir, time.Second),
		storage.NewUploader(zerolog.Nop(), h.storage, 0, 0),
		builder,
		h.notifier,
	)
}

func (h *harness) stagedFiles(t *testing.T) []os.DirEntry {
	t.Helper()

	entries, err := os.ReadDir(h.stagingDir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return entries
}

func surahRequest(surah int, lang string) domain.DeliveryRequest {
	return domain.DeliveryRequest{Reciter: afasy, Surah: surah, Language: lang}
}

func ayahRequest(surah, ayah int, lang string) domain.DeliveryRequest {
	return domain.DeliveryRequest{Reciter: afasy, Surah: surah, Ayah: &ayah, Language: lang}
}

func TestDeliver_ColdThenHit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)

	first, err := h.svc.Deliver(ctx, surahRequest(2, "ru"))
	require.NoError(t, err)
	assert.Equal(t, domain.StateCached, first.State)
	assert.Equal(t, "file-1", first.ContentReference)
	assert.Contains(t, first.Caption, "Сура 2")
	assert.Contains(t, first.Caption, afasy.DisplayName())
	assert.Equal(t, "Sura 2 - البقرة (Al-Baqarah)", first.Title)
	assert.Equal(t, afasy.DisplayName(), first.Performer)

	require.Equal(t, 1, h.storage.count())
	assert.Equal(t, "Sura 2 - Al-Baqarah - "+afasy.DisplayName()+".mp3", h.storage.uploads[0].Filename)
	assert.Empty(t, h.stagedFiles(t))

	second, err := h.svc.Deliver(ctx, surahRequest(2, "uz"))
	require.NoError(t, err)
	assert.Equal(t, domain.StateCacheHit, second.State)
	assert.Equal(t, "file-1", second.ContentReference)
	assert.Contains(t, second.Caption, "Sura 2")
	assert.Contains(t, second.Caption, "Oyatlar: 286")

	fallback, err := h.svc.Deliver(ctx, surahRequest(2, "de"))
	require.NoError(t, err)
	assert.Equal(t, first.Caption, fallback.Caption)

	assert.Equal(t, 1, h.storage.count())
	assert.Equal(t, int32(1), h.content.calls.Load())
}

func TestDeliver_Ayah(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)
	h.content.ayah = func(ctx context.Context, surah, ayah int, reciter string) (*domain.AyahInfo, error) {
		return &domain.AyahInfo{
			Surah:        surah,
			Ayah:         ayah,
			SurahName:    "Al-Fatiha",
			Translations: map[string]string{"ru": "Хвала Аллаху", "uz": ""},
			AudioURL:     h.audioURL + "/001001.mp3",
		}, nil
	}

	got, err := h.svc.Deliver(ctx, ayahRequest(1, 2, "ru"))
	require.NoError(t, err)
	assert.Equal(t, domain.StateCached, got.State)
	assert.Equal(t, "Al-Fatiha 1:2", got.Title)
	assert.Contains(t, got.Caption, "<i>Хвала Аллаху</i>")
	assert.Equal(t, "Al-Fatiha 1-2 - "+afasy.DisplayName()+".mp3", h.storage.uploads[0].Filename)

	// the surah entry is a different key
	_, err = h.svc.Deliver(ctx, surahRequest(1, "ru"))
	require.NoError(t, err)
	assert.Equal(t, 2, h.storage.count())
}

func TestDeliver_FetchNotFound(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)

	got, err := h.svc.Deliver(ctx, ayahRequest(6, 12, "ru"))
	assert.Nil(t, got)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
	assert.Equal(t, domain.CategoryNotFound, domain.CategoryOf(err))

	entry, err := h.cache.Get(ctx, domain.AyahKey(afasy.Identifier, 6, 12))
	require.NoError(t, err)
	assert.Nil(t, entry)

	assert.Empty(t, h.stagedFiles(t))
	assert.Zero(t, h.storage.count())
	assert.Empty(t, h.notifier.reports)
}

func TestDeliver_StagingFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)
	h.content.surah = func(ctx context.Context, surah int, reciter string) (*domain.SurahInfo, error) {
		return &domain.SurahInfo{Number: surah, Name: "Al-Ikhlas", TotalAyah: 4, AudioURL: h.audioURL + "/missing.mp3"}, nil
	}

	_, err := h.svc.Deliver(ctx, surahRequest(112, "ru"))
	assert.True(t, domain.IsKind(err, domain.KindStaging))
	assert.Equal(t, domain.CategoryTemporary, domain.CategoryOf(err))

	entry, err := h.cache.Get(ctx, domain.SurahKey(afasy.Identifier, 112))
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Empty(t, h.stagedFiles(t))
	assert.Zero(t, h.storage.count())
}

func TestDeliver_UploadFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)
	h.storage.err = errors.New("CHANNEL_PRIVATE")

	_, err := h.svc.Deliver(ctx, surahRequest(2, "ru"))
	assert.True(t, domain.IsKind(err, domain.KindUpload))

	entry, err := h.cache.Get(ctx, domain.SurahKey(afasy.Identifier, 2))
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Empty(t, h.stagedFiles(t))

	require.Len(t, h.notifier.reports, 1)
	assert.Equal(t, domain.StateUploading, h.notifier.reports[0].State)
	assert.Equal(t, domain.SurahKey(afasy.Identifier, 2), h.notifier.reports[0].Key)
}

func TestDeliver_SaveFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)
	builder, err := caption.NewBuilder("ru", nil)
	require.NoError(t, err)
	svc := h.service(true, failingUpsert{h.cache}, builder)

	_, err = svc.Deliver(ctx, surahRequest(2, "ru"))
	assert.True(t, domain.IsKind(err, domain.KindPersistence))
	assert.Equal(t, 1, h.storage.count())
	assert.Empty(t, h.stagedFiles(t))

	require.Len(t, h.notifier.reports, 1)
	assert.Equal(t, domain.StateSaving, h.notifier.reports[0].State)
}

func TestDeliver_CaptionFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)
	h.content.ayah = func(ctx context.Context, surah, ayah int, reciter string) (*domain.AyahInfo, error) {
		return &domain.AyahInfo{Surah: surah, Ayah: ayah, SurahName: "Al-Fatiha", AudioURL: h.audioURL + "/001001.mp3"}, nil
	}
	builder, err := caption.NewBuilder("ru", map[string]domain.CaptionTemplates{
		"ru": {Ayah: "{{.Tafsir}}"},
	})
	require.NoError(t, err)
	svc := h.service(true, h.cache, builder)

	_, err = svc.Deliver(ctx, ayahRequest(1, 1, "ru"))
	assert.True(t, domain.IsKind(err, domain.KindCaption))
	assert.Equal(t, domain.CategoryInternal, domain.CategoryOf(err))
	assert.Zero(t, h.storage.count())
	assert.Empty(t, h.stagedFiles(t))

	require.Len(t, h.notifier.reports, 1)
	assert.Equal(t, domain.StateFetching, h.notifier.reports[0].State)
	assert.Equal(t, domain.KindCaption, domain.KindOf(h.notifier.reports[0].Err))
}

func TestDeliver_LookupFailure(t *testing.T) {
	h := newHarness(t, true)
	builder, err := caption.NewBuilder("ru", nil)
	require.NoError(t, err)

	svc := NewService(zerolog.Nop(), &domain.Config{}, brokenCache{}, h.content, nil, nil, builder, h.notifier)

	_, err = svc.Deliver(context.Background(), surahRequest(2, "ru"))
	assert.True(t, domain.IsKind(err, domain.KindPersistence))
	assert.Equal(t, domain.CategoryInternal, domain.CategoryOf(err))
	assert.Zero(t, h.content.calls.Load(), "a storage failure is never treated as a miss")
	assert.Len(t, h.notifier.reports, 1)
}

func TestDeliver_InvalidRequest(t *testing.T) {
	h := newHarness(t, true)

	for _, req := range []domain.DeliveryRequest{
		surahRequest(0, "ru"),
		surahRequest(115, "ru"),
		ayahRequest(2, 0, "ru"),
		{Surah: 2},
	} {
		_, err := h.svc.Deliver(context.Background(), req)
		assert.True(t, domain.IsKind(err, domain.KindNotFound))
	}
	assert.Zero(t, h.content.calls.Load())
}

func TestDeliver_ConcurrentMisses(t *testing.T) {
	const callers = 8

	for _, coalesce := range []bool{true, false} {
		t.Run(fmt.Sprintf("coalesce=%v", coalesce), func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t, coalesce)

			gate := make(chan struct{})
			fetch := h.content.surah
			h.content.surah = func(ctx context.Context, surah int, reciter string) (*domain.SurahInfo, error) {
				<-gate
				return fetch(ctx, surah, reciter)
			}

			var wg sync.WaitGroup
			results := make([]*domain.Delivery, callers)
			errs := make([]error, callers)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i], errs[i] = h.svc.Deliver(ctx, surahRequest(2, "ru"))
				}(i)
			}

			time.Sleep(50 * time.Millisecond)
			close(gate)
			wg.Wait()

			for i := range errs {
				require.NoError(t, errs[i])
				assert.NotEmpty(t, results[i].ContentReference)
			}

			stats, err := h.cache.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, stats.TotalEntries)

			if coalesce {
				assert.Equal(t, 1, h.storage.count())
				for i := range results {
					assert.Equal(t, "file-1", results[i].ContentReference)
				}
			} else {
				assert.GreaterOrEqual(t, h.storage.count(), 1)
			}
			assert.Empty(t, h.stagedFiles(t))
		})
	}
}

func TestDeliver_RequestTimeout(t *testing.T) {
	h := newHarness(t, false)
	h.content.surah = func(ctx context.Context, surah int, reciter string) (*domain.SurahInfo, error) {
		<-ctx.Done()
		return nil, domain.E(domain.KindUpstreamTimeout, "fetch surah", ctx.Err())
	}

	builder, err := caption.NewBuilder("ru", nil)
	require.NoError(t, err)
	svc := NewService(zerolog.Nop(), &domain.Config{RequestTimeout: 20 * time.Millisecond}, h.cache, h.content, nil, nil, builder, h.notifier)

	_, err = svc.Deliver(context.Background(), surahRequest(2, "ru"))
	assert.True(t, domain.IsKind(err, domain.KindUpstreamTimeout))
	assert.True(t, domain.IsTimeout(err))
}
