// Package feed fetches RSS and Atom documents and normalizes their entries.
package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
	"github.com/mmcdole/gofeed/rss"
)

const maxBodyBytes = 10 << 20

// Entry is one normalized feed entry.
type Entry struct {
	Title     string
	Link      string
	Published time.Time
	Body      string
	Author    string
}

// Feed is a parsed RSS or Atom document.
type Feed struct {
	Title   string
	Entries []Entry
}

// Fetcher downloads and parses RSS/Atom feeds.
type Fetcher struct {
	client    *http.Client
	parser    *gofeed.Parser
	userAgent string
	now       func() time.Time
}

// NewFetcher creates a fetcher with the given per-request timeout and user agent.
func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		parser:    gofeed.NewParser(),
		userAgent: userAgent,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Fetch retrieves url and parses it. Entries lacking both a published and an
// updated date are stamped with the current time.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request %s: %w", url, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("feed %s status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", url, err)
	}

	parsed, err := f.parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", url, err)
	}
	return f.normalize(parsed), nil
}

// parse tries format detection first, then the RSS and Atom parsers
// directly, so documents with a broken preamble still yield entries.
func (f *Fetcher) parse(data []byte) (*gofeed.Feed, error) {
	parsed, err := f.parser.Parse(bytes.NewReader(data))
	if err == nil {
		return parsed, nil
	}

	if rf, rerr := (&rss.Parser{}).Parse(bytes.NewReader(data)); rerr == nil {
		return (&gofeed.DefaultRSSTranslator{}).Translate(rf)
	}
	if af, aerr := (&atom.Parser{}).Parse(bytes.NewReader(data)); aerr == nil {
		return (&gofeed.DefaultAtomTranslator{}).Translate(af)
	}
	return nil, err
}

func (f *Fetcher) normalize(parsed *gofeed.Feed) *Feed {
	out := &Feed{Title: parsed.Title, Entries: make([]Entry, 0, len(parsed.Items))}

	for _, entry := range parsed.Items {
		if entry == nil {
			continue
		}

		published := f.now()
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}

		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}

		body := entry.Content
		if strings.TrimSpace(body) == "" {
			body = entry.Description
		}

		author := ""
		if entry.Author != nil {
			author = entry.Author.Name
		} else if len(entry.Authors) > 0 && entry.Authors[0] != nil {
			author = entry.Authors[0].Name
		}

		out.Entries = append(out.Entries, Entry{
			Title:     entry.Title,
			Link:      link,
			Published: published,
			Body:      body,
			Author:    author,
		})
	}
	return out
}
