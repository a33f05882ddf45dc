package textutil

import (
	"regexp"
	"sort"
	"strings"
)

// GlossaryPattern compiles an alternation of every source term, longest
// first, so that a multi-word term always wins over a term that is its
// prefix. It returns nil for an empty glossary.
func GlossaryPattern(glossary map[string]string) *regexp.Regexp {
	terms := make([]string, 0, len(glossary))
	for term := range glossary {
		if term != "" {
			terms = append(terms, term)
		}
	}
	if len(terms) == 0 {
		return nil
	}
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i]) != len(terms[j]) {
			return len(terms[i]) > len(terms[j])
		}
		return terms[i] < terms[j]
	})
	quoted := make([]string, len(terms))
	for i, term := range terms {
		quoted[i] = regexp.QuoteMeta(term)
	}
	return regexp.MustCompile(strings.Join(quoted, "|"))
}

// ApplyGlossary replaces every glossary source term in text with its
// translation in a single left-to-right pass.
func ApplyGlossary(text string, glossary map[string]string, pattern *regexp.Regexp) string {
	if pattern == nil || len(glossary) == 0 {
		return text
	}
	return pattern.ReplaceAllStringFunc(text, func(m string) string {
		if repl, ok := glossary[m]; ok {
			return repl
		}
		return m
	})
}

// FilterGlossary keeps only the entries whose source term occurs in at
// least one of texts.
func FilterGlossary(glossary map[string]string, texts []string) map[string]string {
	out := make(map[string]string)
	for term, translated := range glossary {
		if term == "" {
			continue
		}
		for _, t := range texts {
			if strings.Contains(t, term) {
				out[term] = translated
				break
			}
		}
	}
	return out
}
