package app

import (
	"fmt"
	"strings"

	"converse/pkg/domain"
)

// Catalog pagination bounds.
const (
	defaultPerPage = 100
	maxPerPage     = 100
)

// PersonalityPage is one page of redacted catalog entries.
type PersonalityPage struct {
	Items      []domain.Personality
	Total      int64
	Page       int
	PerPage    int
	TotalPages int
}

// GetPersonality returns one redacted personality by id.
func (a *App) GetPersonality(id string) (domain.Personality, error) {
	if !hexIDPattern.MatchString(id) {
		return domain.Personality{}, ErrInvalidPersonalityID
	}
	personality, ok, err := a.store.GetPersonality(id)
	if err != nil {
		return domain.Personality{}, fmt.Errorf("load personality: %w", err)
	}
	if !ok {
		return domain.Personality{}, ErrPersonalityNotFound
	}
	return personality.Public(), nil
}

// GetPersonalityByName resolves a personality by exact name first, falling
// back to the closest fuzzy match.
func (a *App) GetPersonalityByName(name string) (domain.Personality, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Personality{}, ErrPersonalityNotFound
	}
	personality, ok, err := a.store.GetPersonalityByName(name)
	if err != nil {
		return domain.Personality{}, fmt.Errorf("load personality by name: %w", err)
	}
	if !ok {
		personality, ok, err = a.store.SearchPersonalityByName(name)
		if err != nil {
			return domain.Personality{}, fmt.Errorf("search personality: %w", err)
		}
		if !ok {
			return domain.Personality{}, ErrPersonalityNotFound
		}
	}
	return personality.Public(), nil
}

// ListPersonalities returns a redacted catalog page. Page and perPage are
// clamped rather than rejected so sloppy clients still get data.
func (a *App) ListPersonalities(search string, featuredOnly bool, page, perPage int) (PersonalityPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	offset := (page - 1) * perPage
	items, total, err := a.store.ListPersonalities(strings.TrimSpace(search), featuredOnly, offset, perPage)
	if err != nil {
		return PersonalityPage{}, fmt.Errorf("list personalities: %w", err)
	}
	public := make([]domain.Personality, 0, len(items))
	for _, p := range items {
		public = append(public, p.Public())
	}
	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	return PersonalityPage{
		Items:      public,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}, nil
}
