package repository

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/varoOP/tilawa/internal/domain"
	"gopkg.in/yaml.v3"
)

// FileRepository implements domain.SeedRepository using YAML files
type FileRepository struct {
	log zerolog.Logger
}

// NewFileRepository creates a new file-based repository
func NewFileRepository(log zerolog.Logger) *FileRepository {
	return &FileRepository{
		log: log.With().Str("module", "repository").Logger(),
	}
}

var _ domain.SeedRepository = (*FileRepository)(nil)

// GetReciters reads the reciters seed file. Reciters without an explicit
// "active" key are active.
func (r *FileRepository) GetReciters(ctx context.Context, path string) ([]domain.Reciter, error) {
	b, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Reciters []struct {
			Identifier    string  `yaml:"identifier"`
			Name          string  `yaml:"name"`
			LocalizedName *string `yaml:"localized_name"`
			Active        *bool   `yaml:"active"`
		} `yaml:"reciters"`
	}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml from %s: %w", path, err)
	}

	reciters := make([]domain.Reciter, 0, len(raw.Reciters))
	for i, rc := range raw.Reciters {
		if rc.Identifier == "" || rc.Name == "" {
			return nil, fmt.Errorf("reciter #%d in %s needs an identifier and a name", i+1, path)
		}
		reciters = append(reciters, domain.Reciter{
			Identifier:    rc.Identifier,
			Name:          rc.Name,
			LocalizedName: rc.LocalizedName,
			Active:        rc.Active == nil || *rc.Active,
		})
	}

	r.log.Debug().Str("path", path).Int("count", len(reciters)).Msg("loaded reciters")
	return reciters, nil
}

// GetCaptionTemplates reads caption templates keyed by language
func (r *FileRepository) GetCaptionTemplates(ctx context.Context, path string) (map[string]domain.CaptionTemplates, error) {
	b, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var file domain.CaptionFile
	if err := yaml.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml from %s: %w", path, err)
	}

	r.log.Debug().Str("path", path).Int("languages", len(file.Languages)).Msg("loaded caption templates")
	return file.Languages, nil
}

func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file does not exist: %s: %w", path, err)
		}
		return nil, fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return b, nil
}
