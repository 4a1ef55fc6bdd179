package models

import (
	"strings"
	"time"
)

type Category string

const (
	CategoryFinance           Category = "Finance"
	CategoryEducation         Category = "Education"
	CategorySocialDevelopment Category = "Social Development"
	CategoryInfrastructure    Category = "Infrastructure"
	CategoryPlanning          Category = "Planning"
	CategorySportsCulture     Category = "Sports, Culture and Leisure"
	CategoryHealth            Category = "Health"
	CategoryOffice            Category = "Office"
	CategoryGeneral           Category = "General"
)

// Categories lists the accepted categories in display order.
var Categories = []Category{
	CategoryFinance,
	CategoryEducation,
	CategorySocialDevelopment,
	CategoryInfrastructure,
	CategoryPlanning,
	CategorySportsCulture,
	CategoryHealth,
	CategoryOffice,
	CategoryGeneral,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory maps an empty value to CategoryGeneral and reports whether
// the value is one of the known categories.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CategoryGeneral, true
	}
	c := Category(s)
	return c, c.Valid()
}

// Metadata is the user-supplied description of an upload.
type Metadata struct {
	Description string   `json:"description"`
	Source      string   `json:"source"`
	Period      string   `json:"period"`
	CaseName    string   `json:"caseName"`
	Category    Category `json:"category"`
}

type Document struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"createdAt"`
	Description string    `json:"description"`
	Source      string    `json:"source"`
	Period      string    `json:"period"`
	CaseName    string    `json:"caseName"`
	Category    Category  `json:"category"`
}

// Chunk carries a copy of its document's metadata so scoring and citation
// never need a join.
type Chunk struct {
	ID          string   `json:"id"`
	DocumentID  string   `json:"documentId"`
	Index       int      `json:"index"`
	Content     string   `json:"content"`
	Category    Category `json:"category"`
	CaseName    string   `json:"caseName"`
	Description string   `json:"description"`
	Source      string   `json:"source"`
	Period      string   `json:"period"`
	FileName    string   `json:"fileName"`
}
