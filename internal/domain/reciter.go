package domain

import "context"

// ReciterRepo defines the interface for reciter reference data
type ReciterRepo interface {
	// Seed inserts reciters whose identifier is not yet known; existing rows are left untouched.
	Seed(ctx context.Context, reciters []Reciter) error
	List(ctx context.Context, activeOnly bool) ([]Reciter, error)
	GetByID(ctx context.Context, id int64) (*Reciter, error)
	GetByIdentifier(ctx context.Context, identifier string) (*Reciter, error)
}

// Reciter is a performer whose recitations are served. Identifier is the
// upstream API key and is what cache entries reference.
type Reciter struct {
	ID            int64
	Identifier    string
	Name          string
	LocalizedName *string
	Active        bool
}

func (r Reciter) DisplayName() string {
	if r.LocalizedName != nil && *r.LocalizedName != "" {
		return *r.LocalizedName
	}
	return r.Name
}

func localized(s string) *string { return &s }

// DefaultReciters is the built-in seed list.
var DefaultReciters = []Reciter{
	{Identifier: "1", Name: "Mishary Rashid Al Afasy", LocalizedName: localized("Мишари Рашид Аль-Афаси"), Active: true},
	{Identifier: "2", Name: "Abu Bakr Al Shatri", LocalizedName: localized("Абу Бакр Аш-Шатри"), Active: true},
	{Identifier: "3", Name: "Nasser Al Qatami", LocalizedName: localized("Насер Аль-Катами"), Active: true},
	{Identifier: "4", Name: "Yasser Al Dosari", LocalizedName: localized("Ясир Аль-Досари"), Active: true},
	{Identifier: "5", Name: "Hani Ar Rifai", LocalizedName: localized("Хани Ар-Рифаи"), Active: true},
}
