package feed

import (
	"testing"

	"relaybot/relay"
)

func TestClassifyFirstMatchWins(t *testing.T) {
	rules := []Rule{
		{Prefix: "https://forum.example.com", Contains: "server-update-information", Category: relay.CategoryServerUpdate},
		{Prefix: "https://forum.example.com", Contains: "release-information", Category: relay.CategoryClientUpdate},
	}

	got, ok := Classify(rules, "https://forum.example.com/t/server-update-information-release-information/9")
	if !ok || got != relay.CategoryServerUpdate {
		t.Errorf("Classify() = %q, %v; want earlier rule %q to win", got, ok, relay.CategoryServerUpdate)
	}
}

func TestSourceClassification(t *testing.T) {
	const (
		forumBase  = "https://forum.example.com"
		newsPrefix = "https://example.com/news/"
	)
	update := UpdateSource(forumBase+"/c/update-information", forumBase)
	bugs := BugSource(forumBase+"/c/bug-report", forumBase)
	news := NewsSource(newsPrefix, newsPrefix)

	tests := []struct {
		name     string
		rules    []Rule
		link     string
		want     relay.Category
		wantNone bool
	}{
		{
			name:  "release note is a client update",
			rules: update.Rules,
			link:  forumBase + "/t/release-information-v2-1/123",
			want:  relay.CategoryClientUpdate,
		},
		{
			name:  "maintenance note is a server update",
			rules: update.Rules,
			link:  forumBase + "/t/server-update-information-sept/456",
			want:  relay.CategoryServerUpdate,
		},
		{
			name:     "unrelated forum link does not classify",
			rules:    update.Rules,
			link:     forumBase + "/t/general-chat/789",
			wantNone: true,
		},
		{
			name:     "off-site link never classifies",
			rules:    update.Rules,
			link:     "https://elsewhere.example.org/t/release-information/1",
			wantNone: true,
		},
		{
			name:  "bug topic is a bug fix",
			rules: bugs.Rules,
			link:  forumBase + "/t/crash-on-login/55",
			want:  relay.CategoryBugFix,
		},
		{
			name:     "bug category index page does not classify",
			rules:    bugs.Rules,
			link:     forumBase + "/c/bug-report",
			wantNone: true,
		},
		{
			name:  "news article is news",
			rules: news.Rules,
			link:  newsPrefix + "2026-09-01-announcement",
			want:  relay.CategoryNews,
		},
		{
			name:     "link outside the news path does not classify",
			rules:    news.Rules,
			link:     "https://example.com/about",
			wantNone: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Classify(tt.rules, tt.link)
			if tt.wantNone {
				if ok {
					t.Errorf("Classify(%q) = %q, want no match", tt.link, got)
				}
				return
			}
			if !ok || got != tt.want {
				t.Errorf("Classify(%q) = %q, %v; want %q", tt.link, got, ok, tt.want)
			}
		})
	}
}
