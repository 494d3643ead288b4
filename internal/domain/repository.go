package domain

import (
	"context"
)

// SeedRepository loads operator-maintained reference data from files
type SeedRepository interface {
	GetReciters(ctx context.Context, path string) ([]Reciter, error)
	GetCaptionTemplates(ctx context.Context, path string) (map[string]CaptionTemplates, error)
}

// CaptionFile is the on-disk layout of the captions file, keyed by language
type CaptionFile struct {
	Languages map[string]CaptionTemplates `yaml:"languages"`
}

// CaptionTemplates holds the text/template sources for one language
type CaptionTemplates struct {
	Surah string `yaml:"surah"`
	Ayah  string `yaml:"ayah"`
}
