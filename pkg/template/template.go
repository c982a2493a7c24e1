// Package template implements $$name$$ placeholder extraction and
// substitution for SQL query templates.
//
// Placeholders are double-dollar delimited identifiers matching
// [A-Za-z0-9_]+. Unbalanced or malformed delimiters are not an error;
// they pass through as literal text. A placeholder with no supplied
// value substitutes to the bare identifier (delimiters stripped), so an
// unresolved parameter typically surfaces as a backend name error rather
// than a template failure. Callers that want an explicit missing-parameter
// check can diff Extract against the supplied keys, or use Available.
package template

import (
	"fmt"
	"regexp"
)

// placeholderRegex matches $$name$$ placeholders in SQL templates.
var placeholderRegex = regexp.MustCompile(`\$\$([A-Za-z0-9_]+)\$\$`)

// Extract finds all $$name$$ placeholders in a template and returns a
// deduplicated list of names in order of first appearance.
func Extract(tmpl string) []string {
	matches := placeholderRegex.FindAllStringSubmatch(tmpl, -1)
	seen := make(map[string]bool)
	var names []string

	for _, match := range matches {
		name := match[1]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	return names
}

// Substitute replaces every matched placeholder with the string form of
// its supplied value, or with the bare identifier when no value is
// supplied. Substitution is a single non-recursive pass: values that
// themselves contain $$ delimiters are not expanded again.
func Substitute(tmpl string, params map[string]interface{}) string {
	return placeholderRegex.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := placeholderRegex.FindStringSubmatch(match)[1]
		if value, ok := params[name]; ok {
			return fmt.Sprintf("%v", value)
		}
		return name
	})
}

// Available returns every placeholder declared in the template, nil by
// default, overlaid with any matching supplied value. Supplied keys that
// do not appear in the template are dropped.
func Available(tmpl string, params map[string]interface{}) map[string]interface{} {
	available := make(map[string]interface{})
	for _, name := range Extract(tmpl) {
		available[name] = nil
	}
	for name, value := range params {
		if _, declared := available[name]; declared {
			available[name] = value
		}
	}
	return available
}

// Unresolved returns the declared placeholders that have no supplied value.
func Unresolved(tmpl string, params map[string]interface{}) []string {
	var missing []string
	for _, name := range Extract(tmpl) {
		if _, ok := params[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
