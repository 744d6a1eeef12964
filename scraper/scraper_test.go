package scraper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"relaybot/relay"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const indexHTML = `<!DOCTYPE html>
<html>
<body>
	<nav><a href="/">Home</a></nav>
	<main>
		<a href="/t/release-information-v3/10">Release v3</a>
		<a href="t/server-update-information/11">Maintenance</a>
		<a href="https://other.example.org/external">External</a>
		<a href="#top">Top</a>
		<a href="javascript:void(0)">Noop</a>
		<a href="mailto:ops@example.com">Contact</a>
		<a href="">Blank</a>
		<span>Not a link</span>
	</main>
</body>
</html>`

func TestLinksExtractsAndResolves(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("request carried no User-Agent")
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(indexHTML))
	}))
	defer srv.Close()

	f := New(srv.Client(), testLogger())
	links, err := f.Links(context.Background(), srv.URL+"/c/update-information")
	if err != nil {
		t.Fatalf("Links() error = %v", err)
	}

	want := []string{
		srv.URL + "/",
		srv.URL + "/t/release-information-v3/10",
		srv.URL + "/c/t/server-update-information/11", // relative, resolved against the page URL
		"https://other.example.org/external",
	}
	if len(links) != len(want) {
		t.Fatalf("Links() = %v, want %d links", links, len(want))
	}
	for i, w := range want {
		if links[i] != w {
			t.Errorf("links[%d] = %q, want %q", i, links[i], w)
		}
	}
}

func TestLinksNon2xxIsFetchError(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"forbidden", http.StatusForbidden},
		{"not found", http.StatusNotFound},
		{"server error", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			f := New(srv.Client(), testLogger())
			_, err := f.Links(context.Background(), srv.URL)
			if !relay.IsFetch(err) {
				t.Fatalf("Links() error = %v, want fetch error", err)
			}
			var fe *relay.FetchError
			if !errors.As(err, &fe) || fe.Status != tt.status {
				t.Errorf("fetch error = %v, want status %d", err, tt.status)
			}
		})
	}
}

func TestLinksUnreachableHostIsFetchError(t *testing.T) {
	f := New(&http.Client{}, testLogger())
	_, err := f.Links(context.Background(), "http://127.0.0.1:1/unreachable")
	if !relay.IsFetch(err) {
		t.Errorf("Links() error = %v, want fetch error", err)
	}
}

func TestLinksNonHTMLBodyYieldsNoLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte{0x00, 0x01, 0x02})
	}))
	defer srv.Close()

	f := New(srv.Client(), testLogger())
	links, err := f.Links(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Links() error = %v, want parse failures treated as empty", err)
	}
	if len(links) != 0 {
		t.Errorf("Links() = %v, want none", links)
	}
}
