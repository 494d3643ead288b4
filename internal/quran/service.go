package quran

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/tilawa/internal/domain"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultQuranAPIBase       = "https://quranapi.pages.dev/api"
	DefaultTranslationAPIBase = "https://api.alquran.cloud/v1"
	DefaultTimeout            = 15 * time.Second
)

type Service interface {
	domain.ContentClient
}

type service struct {
	log             zerolog.Logger
	http            *resty.Client
	quranBase       string
	translationBase string
	languages       []string
	editions        map[string]string
}

type audioSource struct {
	Reciter string `json:"reciter"`
	URL     string `json:"url"`
}

type recitationResponse struct {
	SurahName            string                 `json:"surahName"`
	SurahNameArabic      string                 `json:"surahNameArabic"`
	SurahNameTranslation string                 `json:"surahNameTranslation"`
	SurahNo              int                    `json:"surahNo"`
	AyahNo               int                    `json:"ayahNo"`
	TotalAyah            int                    `json:"totalAyah"`
	Audio                map[string]audioSource `json:"audio"`
	Arabic1              json.RawMessage        `json:"arabic1"`
	Arabic2              json.RawMessage        `json:"arabic2"`
}

type translationResponse struct {
	Code int `json:"code"`
	Data struct {
		Text string `json:"text"`
	} `json:"data"`
}

func NewService(log zerolog.Logger, config *domain.Config) Service {
	timeout := config.ContentTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	quranBase := config.QuranAPIBase
	if quranBase == "" {
		quranBase = DefaultQuranAPIBase
	}
	translationBase := config.TranslationAPIBase
	if translationBase == "" {
		translationBase = DefaultTranslationAPIBase
	}

	var languages []string
	for _, lang := range config.Languages {
		if _, ok := config.TranslationEditions[lang]; ok {
			languages = append(languages, lang)
		}
	}

	return &service{
		log:             log.With().Str("module", "quran").Logger(),
		http:            resty.New().SetTimeout(timeout).SetHeader("Accept", "application/json"),
		quranBase:       strings.TrimRight(quranBase, "/"),
		translationBase: strings.TrimRight(translationBase, "/"),
		languages:       languages,
		editions:        config.TranslationEditions,
	}
}

func (s *service) FetchSurah(ctx context.Context, surah int, reciterIdentifier string) (*domain.SurahInfo, error) {
	const op = "fetch surah"

	data, err := s.recitation(ctx, op, fmt.Sprintf("%s/%d.json", s.quranBase, surah))
	if err != nil {
		return nil, err
	}

	audioURL, err := audioFor(op, data, reciterIdentifier)
	if err != nil {
		return nil, err
	}
	if data.SurahName == "" || data.TotalAyah <= 0 {
		return nil, domain.E(domain.KindMalformedResponse, op, errors.Errorf("surah %d: missing name or ayah count", surah))
	}

	return &domain.SurahInfo{
		Number:          surah,
		Name:            data.SurahName,
		NameArabic:      data.SurahNameArabic,
		NameTranslation: data.SurahNameTranslation,
		TotalAyah:       data.TotalAyah,
		AudioURL:        audioURL,
	}, nil
}

// FetchAyah runs the recitation call and one translation call per language
// concurrently. Only the recitation call can fail the result.
func (s *service) FetchAyah(ctx context.Context, surah, ayah int, reciterIdentifier string) (*domain.AyahInfo, error) {
	const op = "fetch ayah"

	translations := make([]string, len(s.languages))
	var data *recitationResponse

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		data, err = s.recitation(gctx, op, fmt.Sprintf("%s/%d/%d.json", s.quranBase, surah, ayah))
		return err
	})
	for i, lang := range s.languages {
		i, lang := i, lang
		g.Go(func() error {
			translations[i] = s.translation(gctx, surah, ayah, lang)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	audioURL, err := audioFor(op, data, reciterIdentifier)
	if err != nil {
		return nil, err
	}
	if data.SurahName == "" {
		return nil, domain.E(domain.KindMalformedResponse, op, errors.Errorf("ayah %d:%d: missing surah name", surah, ayah))
	}

	info := &domain.AyahInfo{
		Surah:        surah,
		Ayah:         ayah,
		SurahName:    data.SurahName,
		ArabicText:   extractArabic(data, ayah),
		Translations: make(map[string]string, len(s.languages)),
		AudioURL:     audioURL,
	}
	for i, lang := range s.languages {
		info.Translations[lang] = translations[i]
	}

	return info, nil
}

func (s *service) recitation(ctx context.Context, op, url string) (*recitationResponse, error) {
	s.log.Trace().Str("url", url).Msg("requesting recitation")

	resp, err := s.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, transportError(op, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, domain.E(domain.KindNotFound, op, errors.Errorf("%s: %s", url, resp.Status()))
	case resp.IsError():
		return nil, domain.E(domain.KindUpstream, op, errors.Errorf("%s: %s", url, resp.Status()))
	}

	var data recitationResponse
	if err := json.Unmarshal(resp.Body(), &data); err != nil {
		return nil, domain.E(domain.KindMalformedResponse, op, errors.Wrap(err, "error decoding recitation"))
	}

	return &data, nil
}

// translation returns "" on any failure; a missing translation never fails the ayah.
func (s *service) translation(ctx context.Context, surah, ayah int, lang string) string {
	url := fmt.Sprintf("%s/ayah/%d:%d/%s", s.translationBase, surah, ayah, s.editions[lang])

	resp, err := s.http.R().SetContext(ctx).Get(url)
	if err != nil {
		s.log.Warn().Err(err).Str("lang", lang).Msgf("translation %d:%d unavailable", surah, ayah)
		return ""
	}
	if resp.IsError() {
		s.log.Warn().Str("status", resp.Status()).Str("lang", lang).Msgf("translation %d:%d unavailable", surah, ayah)
		return ""
	}

	var data translationResponse
	if err := json.Unmarshal(resp.Body(), &data); err != nil {
		s.log.Warn().Err(err).Str("lang", lang).Msgf("translation %d:%d undecodable", surah, ayah)
		return ""
	}

	return data.Data.Text
}

func audioFor(op string, data *recitationResponse, reciterIdentifier string) (string, error) {
	audio, ok := data.Audio[reciterIdentifier]
	if !ok || audio.URL == "" {
		return "", domain.E(domain.KindMalformedResponse, op, errors.Errorf("no audio for reciter %q", reciterIdentifier))
	}
	return audio.URL, nil
}

// extractArabic prefers arabic2 over arabic1. Either field may hold the text
// itself or a list with one entry per ayah.
func extractArabic(data *recitationResponse, ayah int) string {
	for _, raw := range []json.RawMessage{data.Arabic2, data.Arabic1} {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}

		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			return text
		}

		var list []string
		if err := json.Unmarshal(raw, &list); err == nil {
			if ayah >= 1 && ayah <= len(list) {
				return list[ayah-1]
			}
			return ""
		}
	}
	return ""
}

func transportError(op string, err error) error {
	if domain.IsTimeout(err) {
		return domain.E(domain.KindUpstreamTimeout, op, err)
	}
	return domain.E(domain.KindUpstream, op, err)
}
