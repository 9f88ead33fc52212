// Package columns maps free-form spreadsheet header cells onto canonical
// column names and turns names into safe SQL identifiers.
package columns

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const (
	DID     = "DID"
	Date    = "Date"
	DIDPlus = "DID_Plus"
	Price   = "Price"
	Vendor  = "Vendor"
)

// MaxIdentifierLength keeps generated names inside the Postgres limit,
// which is the strictest of the supported backends.
const MaxIdentifierLength = 63

// Rule assigns Name to any header cell its Match accepts. Rules are checked
// in order and the first match wins.
type Rule struct {
	Name  string
	Match func(lower string) bool
}

func containsAny(keywords ...string) func(string) bool {
	return func(s string) bool {
		for _, k := range keywords {
			if strings.Contains(s, k) {
				return true
			}
		}
		return false
	}
}

var DefaultRules = []Rule{
	{Name: DID, Match: func(s string) bool { return strings.Contains(s, "did") && !strings.Contains(s, "plus") }},
	{Name: Date, Match: containsAny("date")},
	{Name: DIDPlus, Match: containsAny("plus")},
	{Name: Price, Match: containsAny("price", "cost", "rate", "amount")},
	{Name: Vendor, Match: containsAny("vendor", "provider", "carrier")},
}

var headerKeywords = []string{"did", "date", "phone", "number", "price", "vendor", "cost", "rate"}

type Classifier struct {
	rules []Rule
}

func NewClassifier(rules []Rule) *Classifier {
	if rules == nil {
		rules = DefaultRules
	}
	return &Classifier{rules: rules}
}

// Classify returns the canonical name for a header cell, or "" when no rule
// matches.
func (c *Classifier) Classify(header string) string {
	lower := strings.ToLower(strings.TrimSpace(header))
	if lower == "" {
		return ""
	}
	for _, rule := range c.rules {
		if rule.Match(lower) {
			return rule.Name
		}
	}
	return ""
}

// Standardize classifies every header, keeping the original text for cells
// no rule recognises.
func (c *Classifier) Standardize(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		if name := c.Classify(h); name != "" {
			out[i] = name
		} else {
			out[i] = h
		}
	}
	return out
}

// Index returns the position of the first header classified as canonical,
// or -1.
func (c *Classifier) Index(headers []string, canonical string) int {
	for i, h := range headers {
		if c.Classify(h) == canonical {
			return i
		}
	}
	return -1
}

// LooksLikeHeader reports whether at least two cells contain typical header
// words.
func LooksLikeHeader(row []string) bool {
	score := 0
	for _, cell := range row {
		if containsAny(headerKeywords...)(strings.ToLower(strings.TrimSpace(cell))) {
			score++
		}
	}
	return score >= 2
}

var (
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	whitespace  = regexp.MustCompile(`\s+`)
	nonWord     = regexp.MustCompile(`[^\p{L}\p{N}_]`)
	underscores = regexp.MustCompile(`_+`)
)

// SanitizeColumn turns a header cell into a lowercase identifier. Names not
// starting with a letter or underscore get a leading underscore; blank cells
// become col_<position>.
func SanitizeColumn(name string, position int) string {
	cleaned := punctuation.ReplaceAllString(name, " ")
	cleaned = whitespace.ReplaceAllString(strings.TrimSpace(cleaned), "_")
	if cleaned == "" {
		return fmt.Sprintf("col_%d", position)
	}
	first := []rune(cleaned)[0]
	if !unicode.IsLetter(first) && first != '_' {
		cleaned = "_" + cleaned
	}
	return truncate(strings.ToLower(cleaned))
}

// SanitizeTable turns a sheet name into a lowercase table name prefixed with
// table_ when it does not start with a letter.
func SanitizeTable(name string) string {
	cleaned := nonWord.ReplaceAllString(name, "_")
	cleaned = underscores.ReplaceAllString(cleaned, "_")
	cleaned = strings.Trim(cleaned, "_")
	if cleaned == "" {
		return "table"
	}
	if first := []rune(cleaned)[0]; !unicode.IsLetter(first) {
		cleaned = "table_" + cleaned
	}
	return truncate(strings.ToLower(cleaned))
}

// Dedupe suffixes repeated names with _2, _3 and so on, keeping the first
// occurrence unchanged.
func Dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, len(names))
	for i, name := range names {
		candidate := name
		for n := 2; seen[candidate]; n++ {
			suffix := fmt.Sprintf("_%d", n)
			candidate = truncateTo(name, MaxIdentifierLength-len(suffix)) + suffix
		}
		seen[candidate] = true
		out[i] = candidate
	}
	return out
}

func truncate(s string) string {
	return truncateTo(s, MaxIdentifierLength)
}

func truncateTo(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	// cut on a rune boundary
	cut := limit
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
