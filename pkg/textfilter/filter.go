// Package textfilter softens profanity in generated scenes for players who
// enable the content filter.
package textfilter

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jwebster45206/storyforge/pkg/story"
)

const censored = "[censored]"

// replacements maps a lower-case word or phrase to its family-friendly form.
var replacements = map[string]string{
	"fuck":         "fudge",
	"motherfucker": "mother-trucker",
	"shit":         "shoot",
	"bullshit":     "baloney",
	"horseshit":    "nonsense",
	"dipshit":      "dummy",
	"shithead":     "jerk",
	"damn":         "dang",
	"goddamn":      "gosh-dang",
	"hell":         "heck",
	"ass":          "butt",
	"asshole":      "jerk",
	"dumbass":      "dummy",
	"jackass":      "jerk",
	"smartass":     "smarty",
	"badass":       "tough",
	"bitch":        "jerk",
	"bastard":      "jerk",
	"crap":         "crud",
	"piss":         "ticked",
	"dick":         "jerk",
	"dickhead":     "jerk",
	"prick":        "jerk",
	"douche":       "jerk",
	"douchebag":    "jerk",
	"cock":         censored,
	"pussy":        censored,
	"tits":         censored,
	"whore":        censored,
	"slut":         censored,
	"retard":       censored,
}

// Filter replaces listed words on word boundaries, keeping the case shape of
// the original (DAMN -> DANG, Hell -> Heck).
type Filter struct {
	pattern *regexp.Regexp
}

func New() *Filter {
	words := make([]string, 0, len(replacements))
	for w := range replacements {
		words = append(words, regexp.QuoteMeta(w))
	}
	// Longest first so "bullshit" wins over "shit".
	sort.Slice(words, func(i, j int) bool {
		if len(words[i]) != len(words[j]) {
			return len(words[i]) > len(words[j])
		}
		return words[i] < words[j]
	})
	return &Filter{
		pattern: regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`),
	}
}

// Clean returns text with every listed word replaced.
func (f *Filter) Clean(text string) string {
	return f.pattern.ReplaceAllStringFunc(text, func(match string) string {
		return matchCase(match, replacements[strings.ToLower(match)])
	})
}

// Contains reports whether text has any listed word.
func (f *Filter) Contains(text string) bool {
	return f.pattern.MatchString(text)
}

// Scene returns a copy of s with title, body and choice text cleaned.
func (f *Filter) Scene(s *story.Scene) *story.Scene {
	if s == nil {
		return nil
	}
	out := s.Clone()
	out.Title = f.Clean(out.Title)
	out.Content = f.Clean(out.Content)
	for i := range out.Choices {
		out.Choices[i].Text = f.Clean(out.Choices[i].Text)
		out.Choices[i].Consequence = f.Clean(out.Choices[i].Consequence)
	}
	return out
}

func matchCase(original, replacement string) string {
	if replacement == censored {
		return censored
	}
	// Casers are stateful and cannot be shared across goroutines.
	upper := cases.Upper(language.English)
	lower := cases.Lower(language.English)
	title := cases.Title(language.English)
	switch original {
	case upper.String(original):
		return upper.String(replacement)
	case lower.String(original):
		return replacement
	case title.String(lower.String(original)):
		return title.String(replacement)
	}

	// Mixed case: copy the case of each position that exists in both.
	orig := []rune(original)
	rep := []rune(replacement)
	for i := range rep {
		if i < len(orig) && upper.String(string(orig[i])) == string(orig[i]) {
			rep[i] = []rune(upper.String(string(rep[i])))[0]
		}
	}
	return string(rep)
}
