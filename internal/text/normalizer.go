// Package text prepares reply text for speech synthesis. Chat replies
// carry markdown, links, and code spans that sound wrong when read
// verbatim, so the normalizer rewrites them into speakable phrases before
// the text reaches a synthesis backend.
package text

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Regex patterns for speakable-text rewriting.
const (
	urlRegexPattern        = `https?://\S+`
	emailRegexPattern      = `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`
	codeBlockRegexPattern  = "```[\\s\\S]*?```"
	inlineCodeRegexPattern = "`[^`]+`"
	headingRegexPattern    = `(?m)^#{1,6}\s+`
	listMarkerRegexPattern = `(?m)^\s*(?:[-*+]|\d+\.)\s+`
	mdLinkRegexPattern     = `\[([^\]]+)\]\([^)]+\)`
	whitespaceRegexPattern = `\s+`
)

// Spoken stand-ins for content that should not be read character by
// character.
const (
	spokenURL       = "a link"
	spokenEmail     = "an email address"
	spokenCodeBlock = "a code block"
)

// Normalizer rewrites chat text into a speakable form. Patterns are
// compiled once; the zero value is not usable.
type Normalizer struct {
	urlPattern        *regexp.Regexp
	emailPattern      *regexp.Regexp
	codeBlockPattern  *regexp.Regexp
	inlineCodePattern *regexp.Regexp
	headingPattern    *regexp.Regexp
	listMarkerPattern *regexp.Regexp
	mdLinkPattern     *regexp.Regexp
	whitespacePattern *regexp.Regexp
	symbolReplacer    *strings.Replacer
}

// NewNormalizer compiles the rewrite patterns and symbol replacements.
func NewNormalizer() *Normalizer {
	symbols := []string{
		"—", ", ",
		"–", ", ",
		"…", "...",
		"“", `"`,
		"”", `"`,
		"‘", "'",
		"’", "'",
		"**", "",
		"*", "",
		"__", "",
		"~~", "",
	}

	return &Normalizer{
		urlPattern:        regexp.MustCompile(urlRegexPattern),
		emailPattern:      regexp.MustCompile(emailRegexPattern),
		codeBlockPattern:  regexp.MustCompile(codeBlockRegexPattern),
		inlineCodePattern: regexp.MustCompile(inlineCodeRegexPattern),
		headingPattern:    regexp.MustCompile(headingRegexPattern),
		listMarkerPattern: regexp.MustCompile(listMarkerRegexPattern),
		mdLinkPattern:     regexp.MustCompile(mdLinkRegexPattern),
		whitespacePattern: regexp.MustCompile(whitespaceRegexPattern),
		symbolReplacer:    strings.NewReplacer(symbols...),
	}
}

// Speakable rewrites text for synthesis. Markdown structure is dropped,
// links and addresses become spoken phrases, and whitespace collapses to
// single spaces. Empty input stays empty.
func (n *Normalizer) Speakable(text string) string {
	if text == "" {
		return text
	}

	// Fenced blocks first so their contents never leak into later steps.
	result := n.codeBlockPattern.ReplaceAllString(text, spokenCodeBlock)
	result = n.inlineCodePattern.ReplaceAllStringFunc(result, stripInlineCode)

	// Markdown links keep their label, bare URLs become a phrase.
	result = n.mdLinkPattern.ReplaceAllString(result, "$1")
	result = n.urlPattern.ReplaceAllString(result, spokenURL)
	result = n.emailPattern.ReplaceAllString(result, spokenEmail)

	result = n.headingPattern.ReplaceAllString(result, "")
	result = n.listMarkerPattern.ReplaceAllString(result, "")
	result = n.symbolReplacer.Replace(result)

	result = n.whitespacePattern.ReplaceAllString(result, " ")
	result = strings.TrimSpace(result)

	return ensureSentenceEnding(result)
}

func stripInlineCode(match string) string {
	return strings.Trim(match, "`")
}

// ensureSentenceEnding closes the text with sentence punctuation so the
// synthesized prosody does not trail off.
func ensureSentenceEnding(text string) string {
	if text == "" {
		return ""
	}

	lastChar, _ := utf8.DecodeLastRuneInString(text)

	switch lastChar {
	case '.', '!', '?':
		return text
	}

	if unicode.IsPunct(lastChar) {
		trimmed := strings.TrimRightFunc(text, unicode.IsPunct)
		if trimmed == "" {
			return text
		}

		return trimmed + "."
	}

	return text + "."
}
