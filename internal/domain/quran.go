package domain

import (
	"context"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

const MaxSurah = 114

// ContentClient fetches recitation metadata from the upstream content APIs.
type ContentClient interface {
	FetchSurah(ctx context.Context, surah int, reciterIdentifier string) (*SurahInfo, error)
	FetchAyah(ctx context.Context, surah, ayah int, reciterIdentifier string) (*AyahInfo, error)
}

type SurahInfo struct {
	Number          int
	Name            string
	NameArabic      string
	NameTranslation string
	TotalAyah       int
	AudioURL        string
}

type AyahInfo struct {
	Surah      int
	Ayah       int
	SurahName  string
	ArabicText string
	// Translations is keyed by language; a failed fetch leaves an empty string.
	Translations map[string]string
	AudioURL     string
}

// AudioObject is the metadata sent along with an uploaded audio file.
type AudioObject struct {
	Path      string
	Filename  string
	Title     string
	Performer string
}

// AudioStorage sends a local audio file to durable storage and returns an
// opaque reference the delivery surface can resend without uploading again.
type AudioStorage interface {
	SendAudio(ctx context.Context, obj AudioObject) (string, error)
}

var (
	surahQuery = regexp.MustCompile(`^(\d{1,3})$`)
	ayahQuery  = regexp.MustCompile(`^(\d{1,3}):(\d{1,3})$`)
)

// ParseQuery reads "3" as a whole surah and "6:12" as surah 6, ayah 12.
func ParseQuery(text string) (int, *int, error) {
	if m := ayahQuery.FindStringSubmatch(text); m != nil {
		surah, _ := strconv.Atoi(m[1])
		ayah, _ := strconv.Atoi(m[2])
		return surah, &ayah, nil
	}
	if m := surahQuery.FindStringSubmatch(text); m != nil {
		surah, _ := strconv.Atoi(m[1])
		return surah, nil, nil
	}
	return 0, nil, errors.Errorf("unrecognized query %q (expected \"3\" or \"6:12\")", text)
}
