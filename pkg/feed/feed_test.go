package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const rssDoc = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
  <title>Lab Blog</title>
  <item>
    <title>Model launch</title>
    <link>https://lab.example/launch</link>
    <pubDate>Mon, 02 Jun 2025 10:00:00 GMT</pubDate>
    <description>short teaser</description>
    <content:encoded><![CDATA[<p>Full article body</p>]]></content:encoded>
    <dc:creator>Ada</dc:creator>
  </item>
  <item>
    <title>Undated note</title>
    <link>https://lab.example/note</link>
    <description>only a description</description>
  </item>
</channel>
</rss>`

const atomDoc = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Weblog</title>
  <entry>
    <title>Atom entry</title>
    <link href="https://blog.example/a"/>
    <updated>2025-06-01T08:30:00Z</updated>
    <author><name>Simon</name></author>
    <summary>summary text</summary>
  </entry>
</feed>`

func serve(t *testing.T, body string, status int, gotUA *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotUA != nil {
			*gotUA = r.Header.Get("User-Agent")
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchRSS(t *testing.T) {
	var ua string
	srv := serve(t, rssDoc, http.StatusOK, &ua)

	fixed := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	f := NewFetcher(5*time.Second, "test-agent/1.0")
	f.now = func() time.Time { return fixed }

	feed, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if ua != "test-agent/1.0" {
		t.Fatalf("user agent = %q", ua)
	}
	if feed.Title != "Lab Blog" || len(feed.Entries) != 2 {
		t.Fatalf("feed = %+v", feed)
	}

	first := feed.Entries[0]
	if first.Link != "https://lab.example/launch" {
		t.Fatalf("link = %q", first.Link)
	}
	if !first.Published.Equal(time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("published = %v", first.Published)
	}
	if !strings.Contains(first.Body, "Full article body") {
		t.Fatalf("body should prefer content, got %q", first.Body)
	}
	if first.Author != "Ada" {
		t.Fatalf("author = %q", first.Author)
	}

	second := feed.Entries[1]
	if !second.Published.Equal(fixed) {
		t.Fatalf("undated entry published = %v, want processing time", second.Published)
	}
	if second.Body != "only a description" {
		t.Fatalf("body = %q", second.Body)
	}
}

func TestFetchAtomUsesUpdated(t *testing.T) {
	srv := serve(t, atomDoc, http.StatusOK, nil)

	feed, err := NewFetcher(0, "").Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(feed.Entries) != 1 {
		t.Fatalf("entries = %d", len(feed.Entries))
	}
	e := feed.Entries[0]
	if e.Link != "https://blog.example/a" || e.Author != "Simon" {
		t.Fatalf("entry = %+v", e)
	}
	if !e.Published.Equal(time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)) {
		t.Fatalf("published = %v", e.Published)
	}
}

func TestFetchToleratesStrayAmpersand(t *testing.T) {
	doc := `<?xml version="1.0"?><rss version="2.0"><channel><title>x</title>
<item><title>AT&T partners with lab</title><link>https://n.example/1</link></item>
</channel></rss>`
	srv := serve(t, doc, http.StatusOK, nil)

	feed, err := NewFetcher(0, "").Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(feed.Entries) != 1 || !strings.HasPrefix(feed.Entries[0].Title, "AT") {
		t.Fatalf("entries = %+v", feed.Entries)
	}
}

func TestFetchErrors(t *testing.T) {
	srv := serve(t, "gone", http.StatusNotFound, nil)
	if _, err := NewFetcher(0, "").Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected status error")
	}

	junk := serve(t, "this is not a feed", http.StatusOK, nil)
	if _, err := NewFetcher(0, "").Fetch(context.Background(), junk.URL); err == nil {
		t.Fatal("expected parse error")
	}
}
