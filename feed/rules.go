package feed

import (
	"strings"

	"relaybot/relay"
)

// Rule classifies a link. A link matches when it starts with Prefix and, if
// Contains is set, contains that substring.
type Rule struct {
	Prefix   string
	Contains string
	Category relay.Category
}

// Classify runs a link through an ordered rule table; the first match wins.
func Classify(rules []Rule, link string) (relay.Category, bool) {
	for _, r := range rules {
		if !strings.HasPrefix(link, r.Prefix) {
			continue
		}
		if r.Contains != "" && !strings.Contains(link, r.Contains) {
			continue
		}
		return r.Category, true
	}
	return "", false
}

// UpdateSource builds the forum update-information source: release notes
// classify as client updates, server maintenance notes as server updates.
func UpdateSource(pageURL, forumBase string) Source {
	return Source{
		Name:    "forum-updates",
		PageURL: pageURL,
		Rules: []Rule{
			{Prefix: forumBase, Contains: "server-update-information", Category: relay.CategoryServerUpdate},
			{Prefix: forumBase, Contains: "release-information", Category: relay.CategoryClientUpdate},
		},
	}
}

// BugSource builds the forum bug-report source: topic links under the bug
// index classify as bug fixes.
func BugSource(pageURL, forumBase string) Source {
	return Source{
		Name:    "forum-bugs",
		PageURL: pageURL,
		Rules: []Rule{
			{Prefix: forumBase, Contains: "/t/", Category: relay.CategoryBugFix},
		},
	}
}

// NewsSource builds the official news source: anything under the news path
// classifies as news.
func NewsSource(pageURL, newsPrefix string) Source {
	return Source{
		Name:    "official-news",
		PageURL: pageURL,
		Rules: []Rule{
			{Prefix: newsPrefix, Category: relay.CategoryNews},
		},
	}
}
