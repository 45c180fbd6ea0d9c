// Package inflect converts between model type names, collection names and
// attribute keys.
package inflect

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Pluralize returns the plural form of word ("contact" -> "contacts").
func Pluralize(word string) string {
	return inflection.Plural(word)
}

// Singularize returns the singular form of word ("people" -> "person").
func Singularize(word string) string {
	return inflection.Singular(word)
}

// Camelize joins dash, underscore or space separated words into lower camel
// case: "blog_post" -> "blogPost", "author-id" -> "authorId".
func Camelize(s string) string {
	parts := splitWords(s)
	if len(parts) == 0 {
		return ""
	}
	// A Caser is stateful; never share one across calls.
	title := cases.Title(language.Und, cases.NoLower)
	var b strings.Builder
	b.WriteString(lowerFirst(parts[0]))
	for _, p := range parts[1:] {
		b.WriteString(title.String(p))
	}
	return b.String()
}

// Dasherize converts camel case or underscored words to lowercase dash
// separated words: "blogPost" -> "blog-post".
func Dasherize(s string) string {
	var words []string
	for _, p := range splitWords(s) {
		words = append(words, splitCamel(p)...)
	}
	lower := cases.Lower(language.Und)
	for i, w := range words {
		words[i] = lower.String(w)
	}
	return strings.Join(words, "-")
}

// CollectionName maps a model type to its collection name: "blogPost" and
// "blog-post" both become "blogPosts".
func CollectionName(modelType string) string {
	return Camelize(Pluralize(modelType))
}

// ModelName maps a collection or path segment back to a model type:
// "blog-posts" -> "blogPost".
func ModelName(segment string) string {
	return Camelize(Singularize(segment))
}

// ForeignKey returns the attribute holding a belongs-to reference:
// "author" -> "authorId".
func ForeignKey(association string) string {
	return Camelize(association) + "Id"
}

// PathSegment returns the URL segment used for a model's collection
// routes: "blogPost" -> "blog-posts".
func PathSegment(modelType string) string {
	return Dasherize(Pluralize(modelType))
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == '_' || unicode.IsSpace(r)
	})
}

func splitCamel(s string) []string {
	var words []string
	start := 0
	runes := []rune(s)
	for i := 1; i < len(runes); i++ {
		if unicode.IsUpper(runes[i]) && !unicode.IsUpper(runes[i-1]) {
			words = append(words, string(runes[start:i]))
			start = i
		}
	}
	return append(words, string(runes[start:]))
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
