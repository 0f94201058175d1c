package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aluiziolira/go-scrape-parts/models"
)

var (
	trailingCountRe = regexp.MustCompile(`\s*\(\d+\)$`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
	cityStateRe     = regexp.MustCompile(`^(.+),\s*(\w\w)`)
)

var positionTokens = map[string]struct{}{
	"Left":  {},
	"Right": {},
	"Front": {},
	"Rear":  {},
}

var reservedColorTokens = map[string]struct{}{
	"VIN":  {},
	"SHOW": {},
	"INFO": {},
}

var gradeConditions = map[string]string{
	"A": "Very Good",
	"B": "Good",
	"C": "Fair",
}

// ValidateRecord ensures a record carries its provenance fields.
func ValidateRecord(r *models.ListingRecord) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	missing := make([]string, 0, 6)
	for name, value := range map[string]string{
		"source_year":      r.SourceYear,
		"source_make":      r.SourceMake,
		"source_model":     r.SourceModel,
		"source_part_name": r.SourcePartName,
		"source_part_slug": r.SourcePartSlug,
		"source_url":       r.SourceURL,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("record missing provenance %v", missing)
	}
	if strings.TrimSpace(r.RunTimestamp) == "" {
		return fmt.Errorf("record missing run timestamp")
	}
	return nil
}

// NormalizeText folds an application label for comparison: lowercase,
// collapsed whitespace, trailing "(N)" count removed.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)
	s = strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
	s = trailingCountRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// StripCount removes a trailing "(N)" facet count from a label.
func StripCount(s string) string {
	return strings.TrimSpace(trailingCountRe.ReplaceAllString(strings.TrimSpace(s), ""))
}

// ParseAddress pulls city, state and phone out of a seller address block.
// The third line is expected to read "City, ST ..." and the phone, when
// present, is the last line and contains a parenthesis.
func ParseAddress(lines []string) (city, state, phone *string) {
	if len(lines) >= 3 {
		if m := cityStateRe.FindStringSubmatch(lines[2]); m != nil {
			city = optional(m[1])
			state = optional(m[2])
		}
	}
	if len(lines) > 0 && strings.Contains(lines[len(lines)-1], "(") {
		phone = optional(lines[len(lines)-1])
	}
	return city, state, phone
}

// ConditionFor maps a yard grade letter to its condition description.
func ConditionFor(grade string) *string {
	if desc, ok := gradeConditions[strings.TrimSpace(grade)]; ok {
		return &desc
	}
	return nil
}

// ClassifyTokens scans info-cell tokens in order. A token exactly matching
// Left/Right/Front/Rear is a position; an all-uppercase token of at least
// three characters outside the reserved set is a color. The first match on
// each axis wins and later candidates are ignored.
func ClassifyTokens(tokens []string) (position, color *string) {
	for _, raw := range tokens {
		t := strings.TrimSpace(raw)
		if t == "" {
			continue
		}
		if _, ok := positionTokens[t]; ok {
			if position == nil {
				position = optional(t)
			}
			continue
		}
		if isColorToken(t) && color == nil {
			color = optional(t)
		}
	}
	return position, color
}

func isColorToken(t string) bool {
	if utf8.RuneCountInString(t) < 3 {
		return false
	}
	if _, reserved := reservedColorTokens[t]; reserved {
		return false
	}
	return isUpper(t)
}

// isUpper reports whether t has at least one cased letter and no lowercase ones.
func isUpper(t string) bool {
	cased := false
	for _, r := range t {
		if unicode.IsLower(r) || unicode.IsTitle(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

// NormalizePrice removes the currency symbol and surrounding whitespace.
func NormalizePrice(price string) string {
	price = strings.ReplaceAll(price, "$", "")
	return strings.TrimSpace(price)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
