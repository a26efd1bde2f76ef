package core

import (
	"regexp"
	"unicode"
	"unicode/utf8"
)

var mentionRe = regexp.MustCompile(`@([a-z][a-z0-9]*(?:[-\.][a-z0-9]+)*)`)

// ExtractMentions returns mention targets without the @ prefix. When a
// roster is provided, only names in the roster (plus "all") qualify;
// without a roster, plausible-length names are kept.
func ExtractMentions(body string, roster map[string]struct{}) []string {
	matches := mentionRe.FindAllStringSubmatchIndex(body, -1)
	mentions := make([]string, 0, len(matches))
	seen := map[string]struct{}{}

	for _, match := range matches {
		if len(match) < 4 {
			continue
		}
		start := match[0]
		if start > 0 {
			prev, _ := utf8.DecodeLastRuneInString(body[:start])
			if unicode.IsLetter(prev) || unicode.IsDigit(prev) {
				continue
			}
		}

		name := body[match[2]:match[3]]
		if _, dup := seen[name]; dup {
			continue
		}

		if name == "all" {
			seen[name] = struct{}{}
			mentions = append(mentions, name)
			continue
		}
		if roster != nil {
			if _, ok := roster[name]; ok {
				seen[name] = struct{}{}
				mentions = append(mentions, name)
			}
			continue
		}
		if len(name) >= 2 && len(name) <= 32 {
			seen[name] = struct{}{}
			mentions = append(mentions, name)
		}
	}

	return mentions
}

// MentionsUser reports whether the mention list addresses the given user,
// either directly or via @all.
func MentionsUser(mentions []string, userID string) bool {
	for _, m := range mentions {
		if m == "all" || m == userID {
			return true
		}
	}
	return false
}
