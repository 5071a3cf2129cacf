// Package maintenance decides whether a vehicle is due for service and
// estimates parts consumption from recent maintenance.
package maintenance

import (
	"strings"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// Built-in category names as they appear in the interval settings.
const (
	CategoryOilChange       = "oilChange"
	CategoryTireRotation    = "tireRotation"
	CategoryBrakeInspection = "brakeInspection"
)

// DefaultUpcomingWindow applies to configured categories without a built-in rule.
const DefaultUpcomingWindow = 500.0

// Category is a maintenance type with its legacy keyword rule and upcoming window.
type Category struct {
	Name           string
	Label          string
	Keywords       []string
	UpcomingWindow float64 // km before the due point at which UPCOMING is raised
}

var builtinCategories = map[string]Category{
	CategoryOilChange: {
		Name:           CategoryOilChange,
		Label:          "Oil Change",
		Keywords:       []string{"oil"},
		UpcomingWindow: 500,
	},
	CategoryTireRotation: {
		Name:           CategoryTireRotation,
		Label:          "Tire Rotation",
		Keywords:       []string{"tire", "rotation"},
		UpcomingWindow: 1000,
	},
	CategoryBrakeInspection: {
		Name:           CategoryBrakeInspection,
		Label:          "Brake Inspection",
		Keywords:       []string{"brake"},
		UpcomingWindow: 1500,
	},
}

// LookupCategory returns the built-in rule for name. Unknown names get a
// category with no keywords, so only records carrying an explicit category match.
func LookupCategory(name string) Category {
	if c, ok := builtinCategories[name]; ok {
		return c
	}
	return Category{
		Name:           name,
		Label:          humanize(name),
		UpcomingWindow: DefaultUpcomingWindow,
	}
}

// LookupCategories resolves names in order. Custom categories whose label
// collides with another category's label get their name appended, so every
// category keeps a distinct alert title. Built-in labels never change.
func LookupCategories(names []string) []Category {
	categories := make([]Category, len(names))
	byLabel := make(map[string]int, len(names))
	for i, name := range names {
		categories[i] = LookupCategory(name)
		byLabel[strings.ToLower(categories[i].Label)]++
	}
	for i := range categories {
		c := &categories[i]
		if _, builtin := builtinCategories[c.Name]; builtin {
			continue
		}
		if byLabel[strings.ToLower(c.Label)] > 1 {
			c.Label = c.Label + " (" + c.Name + ")"
		}
	}
	return categories
}

// humanize turns "engineFlush" into "Engine Flush".
func humanize(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case i == 0:
			b.WriteString(strings.ToUpper(string(r)))
		case r >= 'A' && r <= 'Z':
			b.WriteByte(' ')
			b.WriteRune(r)
		case r == '_' || r == '-':
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Classifier decides whether a maintenance record belongs to a category.
type Classifier interface {
	Matches(record models.Maintenance, category Category) bool
}

// DefaultClassifier trusts the explicit record category and falls back to
// substring matching on the free-text service type for legacy records.
type DefaultClassifier struct{}

func (DefaultClassifier) Matches(record models.Maintenance, category Category) bool {
	if record.Category != "" {
		return strings.EqualFold(record.Category, category.Name)
	}
	return KeywordClassifier{}.Matches(record, category)
}

// KeywordClassifier only looks at the service type text.
type KeywordClassifier struct{}

func (KeywordClassifier) Matches(record models.Maintenance, category Category) bool {
	serviceType := strings.ToLower(record.ServiceType)
	for _, kw := range category.Keywords {
		if strings.Contains(serviceType, kw) {
			return true
		}
	}
	return false
}
