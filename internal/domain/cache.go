package domain

import (
	"context"
	"fmt"
	"time"
)

// CacheRepo defines the interface for audio cache database operations
type CacheRepo interface {
	// Get returns nil, nil when no entry exists for the key.
	Get(ctx context.Context, key CacheKey) (*CacheEntry, error)

	// Upsert inserts the entry or replaces the mutable fields of an existing one.
	Upsert(ctx context.Context, entry *CacheEntry) error

	// Delete removes the entry for key and reports whether one existed.
	Delete(ctx context.Context, key CacheKey) (bool, error)

	Stats(ctx context.Context) (*Statistics, error)
}

// CacheKey identifies one recitation. A nil Ayah means the whole surah.
type CacheKey struct {
	ReciterIdentifier string
	Surah             int
	Ayah              *int
}

func SurahKey(reciter string, surah int) CacheKey {
	return CacheKey{ReciterIdentifier: reciter, Surah: surah}
}

func AyahKey(reciter string, surah, ayah int) CacheKey {
	return CacheKey{ReciterIdentifier: reciter, Surah: surah, Ayah: &ayah}
}

func (k CacheKey) IsSurah() bool {
	return k.Ayah == nil
}

// String is stable per identity and is used as the coalescing key.
func (k CacheKey) String() string {
	if k.Ayah == nil {
		return fmt.Sprintf("%s/%d", k.ReciterIdentifier, k.Surah)
	}
	return fmt.Sprintf("%s/%d:%d", k.ReciterIdentifier, k.Surah, *k.Ayah)
}

// CacheEntry is a stored content reference with its captions per language.
type CacheEntry struct {
	Key              CacheKey
	ContentReference string
	Captions         map[string]string
	Title            string
	Performer        string
	CreatedAt        time.Time
}

// Caption returns the caption for lang, falling back to fallback when lang has none.
func (e *CacheEntry) Caption(lang, fallback string) string {
	if c, ok := e.Captions[lang]; ok {
		return c
	}
	return e.Captions[fallback]
}

// Statistics holds cache counters for operator reports
type Statistics struct {
	TotalEntries   int
	SurahEntries   int
	AyahEntries    int
	ActiveReciters int
	PerReciter     map[string]int
}
