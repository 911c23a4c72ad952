package collectibles

import "strings"

// Category is the coarse card family reported by the analyze endpoint.
type Category string

const (
	CategorySport   Category = "sport"
	CategoryTCG     Category = "tcg"
	CategoryComics  Category = "comics"
	CategoryUnknown Category = "unknown"
)

// Endpoint is one identification capability of the provider.
type Endpoint struct {
	Name       string
	Category   Category
	Path       string
	SearchPath string
}

var (
	sportEndpoint   = Endpoint{Name: "sport_id", Category: CategorySport, Path: "/collectibles/v2/sport_id", SearchPath: "/collectibles/v2/sport_text_search"}
	tcgEndpoint     = Endpoint{Name: "tcg_id", Category: CategoryTCG, Path: "/collectibles/v2/tcg_id", SearchPath: "/collectibles/v2/tcg_text_search"}
	comicsEndpoint  = Endpoint{Name: "comics_id", Category: CategoryComics, Path: "/collectibles/v2/comics_id", SearchPath: "/collectibles/v2/comics_text_search"}
	genericEndpoint = Endpoint{Name: "card_id", Category: CategoryUnknown, Path: "/collectibles/v2/card_id", SearchPath: "/collectibles/v2/text_search"}
)

var categoryEndpoints = []Endpoint{sportEndpoint, tcgEndpoint, comicsEndpoint}

// Cascade returns the identification endpoints to try for category: the
// category's own endpoint first, the other category endpoints next, and the
// generic endpoint last.
func Cascade(category Category) []Endpoint {
	out := make([]Endpoint, 0, len(categoryEndpoints)+1)
	for _, ep := range categoryEndpoints {
		if ep.Category == category {
			out = append(out, ep)
		}
	}
	for _, ep := range categoryEndpoints {
		if ep.Category != category {
			out = append(out, ep)
		}
	}
	return append(out, genericEndpoint)
}

// SearchEndpoint returns the text-search lookup for category.
func SearchEndpoint(category Category) Endpoint {
	for _, ep := range categoryEndpoints {
		if ep.Category == category {
			return ep
		}
	}
	return genericEndpoint
}

// Analysis is the outcome of the analyze endpoint.
type Analysis struct {
	Category Category
	Slab     bool
	Tags     []string
}

// Hints tune an identification request.
type Hints struct {
	SlabGrade bool
	OCRText   string
}

// Match is one identity returned by the provider.
type Match struct {
	Name       string   `json:"name"`
	FullName   string   `json:"full_name"`
	Team       string   `json:"team"`
	Set        string   `json:"set_name"`
	Year       string   `json:"year"`
	CardNumber string   `json:"card_number"`
	Grade      string   `json:"grade"`
	Labels     []string `json:"tags"`
}

// DisplayName prefers the full name.
func (m Match) DisplayName() string {
	if name := strings.TrimSpace(m.FullName); name != "" {
		return name
	}
	return strings.TrimSpace(m.Name)
}

// Identification is the result of one identification endpoint.
type Identification struct {
	Endpoint     string
	Best         *Match
	Alternatives []Match
	SlabLabel    *Match
}

// Empty reports whether the endpoint recognized nothing.
func (i Identification) Empty() bool {
	return (i.Best == nil || i.Best.DisplayName() == "") && len(i.Alternatives) == 0 && i.SlabLabel == nil
}

// categoryFromTags maps provider category tags ("Card/Sport Card",
// "Card/Trading Card Game", "Comics") onto a Category.
func categoryFromTags(tags []string) Category {
	for _, tag := range tags {
		lower := strings.ToLower(tag)
		switch {
		case strings.Contains(lower, "sport"):
			return CategorySport
		case strings.Contains(lower, "trading card game"), strings.Contains(lower, "tcg"):
			return CategoryTCG
		case strings.Contains(lower, "comic"):
			return CategoryComics
		}
	}
	return CategoryUnknown
}
