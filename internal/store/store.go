package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrItemClaimed is returned when an item already belongs to a story.
var ErrItemClaimed = errors.New("item already assigned to a story")

// StoryListOpts controls the reader-facing story listing.
type StoryListOpts struct {
	Since    time.Time
	Persona  Persona
	Category string
	Limit    int
}

// Timeframe maps a reader preset to its look-back window and default limit.
// An empty preset means "today".
func Timeframe(preset string) (time.Duration, int, error) {
	switch preset {
	case "", "today":
		return 24 * time.Hour, 10, nil
	case "7d":
		return 7 * 24 * time.Hour, 30, nil
	case "30d":
		return 30 * 24 * time.Hour, 30, nil
	default:
		return 0, 0, fmt.Errorf("unknown timeframe %q (want today, 7d or 30d)", preset)
	}
}

// Store is the persistence interface.
type Store interface {
	UpsertSource(ctx context.Context, src *Source) error
	ListSources(ctx context.Context) ([]Source, error)
	CountItemsBySource(ctx context.Context) (map[int64]int, error)

	InsertItem(ctx context.Context, item *Item) (bool, error)
	ListUnclusteredItems(ctx context.Context) ([]Item, error)
	StoryItems(ctx context.Context, storyID string, limit int) ([]Item, error)

	ListStoriesSince(ctx context.Context, since time.Time) ([]Story, error)
	CreateStoryWithItem(ctx context.Context, story *Story, itemID string) error
	AttachItem(ctx context.Context, storyID, itemID string) error
	TopStories(ctx context.Context, limit int) ([]Story, error)
	ListStories(ctx context.Context, opts StoryListOpts) ([]StoryView, error)

	StorySummaries(ctx context.Context, storyID string) ([]StorySummary, error)
	SaveSummaries(ctx context.Context, storyID string, summaries []StorySummary) ([]StorySummary, error)

	Ping(ctx context.Context) error
	Close() error
}

// SQLStore implements Store over SQLite or PostgreSQL.
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open connects to the configured backend and applies the schema.
// driver is "sqlite" (target is a file path) or "postgres" (target is a DSN).
func Open(ctx context.Context, driver, target string) (*SQLStore, error) {
	var (
		db     *sqlx.DB
		schema string
		err    error
	)
	switch driver {
	case "sqlite", "":
		db, err = sqlx.Open("sqlite", sqliteDSN(target))
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", target, err)
		}
		// One writer at a time; WAL lets readers proceed.
		db.SetMaxOpenConns(1)
		schema = sqliteSchema
	case "postgres":
		db, err = sqlx.Open("pgx", target)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		schema = postgresSchema
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_time_format=sqlite"
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) UpsertSource(ctx context.Context, src *Source) error {
	if src.TrustLevel == "" {
		src.TrustLevel = TrustMedium
	}
	if src.FetchMethod == "" {
		src.FetchMethod = "rss"
	}
	err := s.db.GetContext(ctx, &src.ID, s.db.Rebind(`
		INSERT INTO sources (name, type, url, feed_url, trust_level, fetch_method)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			type = excluded.type,
			url = excluded.url,
			feed_url = excluded.feed_url,
			trust_level = excluded.trust_level,
			fetch_method = excluded.fetch_method
		RETURNING id
	`), src.Name, string(src.Type), src.URL, src.FeedURL, string(src.TrustLevel), src.FetchMethod)
	if err != nil {
		return fmt.Errorf("upsert source %s: %w", src.Name, err)
	}
	return nil
}

func (s *SQLStore) ListSources(ctx context.Context) ([]Source, error) {
	var sources []Source
	if err := s.db.SelectContext(ctx, &sources, "SELECT * FROM sources ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return sources, nil
}

func (s *SQLStore) CountItemsBySource(ctx context.Context) (map[int64]int, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT source_id, COUNT(*) AS cnt FROM items GROUP BY source_id")
	if err != nil {
		return nil, fmt.Errorf("count items by source: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var id int64
		var cnt int
		if err := rows.Scan(&id, &cnt); err != nil {
			return nil, fmt.Errorf("scan item count: %w", err)
		}
		counts[id] = cnt
	}
	return counts, rows.Err()
}

// InsertItem stores item unless an item with the same hash exists.
// It reports whether a row was written.
func (s *SQLStore) InsertItem(ctx context.Context, item *Item) (bool, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.IngestedAt.IsZero() {
		item.IngestedAt = s.now()
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO items (id, source_id, title, url, published_at, raw_text, content_type, hash, metadata, story_id, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`), item.ID, item.SourceID, item.Title, item.URL, item.PublishedAt.UTC(), item.RawText,
		string(item.ContentType), item.Hash, encodeJSON(item.Metadata, "{}"), nullString(item.StoryID), item.IngestedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("insert item %s: %w", item.Hash, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert item %s: %w", item.Hash, err)
	}
	return n > 0, nil
}

// ListUnclusteredItems returns items with no story, oldest first.
func (s *SQLStore) ListUnclusteredItems(ctx context.Context) ([]Item, error) {
	var items []Item
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM items WHERE story_id IS NULL ORDER BY published_at, id")
	if err != nil {
		return nil, fmt.Errorf("list unclustered items: %w", err)
	}
	for i := range items {
		items[i].decode()
	}
	return items, nil
}

// StoryItems returns the most recently published items of a story.
func (s *SQLStore) StoryItems(ctx context.Context, storyID string, limit int) ([]Item, error) {
	query := "SELECT * FROM items WHERE story_id = ? ORDER BY published_at DESC, id"
	args := []any{storyID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	var items []Item
	if err := s.db.SelectContext(ctx, &items, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list items of story %s: %w", storyID, err)
	}
	for i := range items {
		items[i].decode()
	}
	return items, nil
}

func (s *SQLStore) ListStoriesSince(ctx context.Context, since time.Time) ([]Story, error) {
	var stories []Story
	err := s.db.SelectContext(ctx, &stories, s.db.Rebind(`
		SELECT id, canonical_title, created_at, tags, score
		FROM stories WHERE created_at >= ?
		ORDER BY created_at, id
	`), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("list stories since %s: %w", since.Format(time.RFC3339), err)
	}
	for i := range stories {
		stories[i].decode()
	}
	return stories, nil
}

// CreateStoryWithItem inserts story and assigns itemID to it atomically.
func (s *SQLStore) CreateStoryWithItem(ctx context.Context, story *Story, itemID string) error {
	if story.ID == "" {
		story.ID = uuid.NewString()
	}
	if story.CreatedAt.IsZero() {
		story.CreatedAt = s.now()
	}
	if story.Tags == nil {
		story.Tags = []string{}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin story tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO stories (id, canonical_title, created_at, tags, score)
		VALUES (?, ?, ?, ?, ?)
	`), story.ID, story.CanonicalTitle, story.CreatedAt.UTC(), encodeJSON(story.Tags, "[]"), story.Score)
	if err != nil {
		return fmt.Errorf("insert story: %w", err)
	}

	if err := attach(ctx, tx, story.ID, itemID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit story %s: %w", story.ID, err)
	}
	return nil
}

// AttachItem assigns an unclustered item to an existing story.
func (s *SQLStore) AttachItem(ctx context.Context, storyID, itemID string) error {
	return attach(ctx, s.db, storyID, itemID)
}

func attach(ctx context.Context, ext sqlx.ExtContext, storyID, itemID string) error {
	res, err := ext.ExecContext(ctx, ext.Rebind(
		"UPDATE items SET story_id = ? WHERE id = ? AND story_id IS NULL"), storyID, itemID)
	if err != nil {
		return fmt.Errorf("attach item %s: %w", itemID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach item %s: %w", itemID, err)
	}
	if n == 0 {
		return fmt.Errorf("attach item %s: %w", itemID, ErrItemClaimed)
	}
	return nil
}

const storyColumns = "s.id, s.canonical_title, s.created_at, s.tags, s.score"

// TopStories returns stories with at least one item, most items first,
// newest first among equals.
func (s *SQLStore) TopStories(ctx context.Context, limit int) ([]Story, error) {
	if limit <= 0 {
		limit = 50
	}
	var stories []Story
	err := s.db.SelectContext(ctx, &stories, s.db.Rebind(`
		SELECT `+storyColumns+`, COUNT(i.id) AS item_count
		FROM stories s JOIN items i ON i.story_id = s.id
		GROUP BY `+storyColumns+`
		ORDER BY item_count DESC, s.created_at DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("top stories: %w", err)
	}
	for i := range stories {
		stories[i].decode()
	}
	return stories, nil
}

// ListStories is the reader-facing listing. Score is reported as the
// number of attached items.
func (s *SQLStore) ListStories(ctx context.Context, opts StoryListOpts) ([]StoryView, error) {
	query := `SELECT ` + storyColumns + `, COUNT(i.id) AS item_count
		FROM stories s JOIN items i ON i.story_id = s.id WHERE 1=1`
	var args []any

	if !opts.Since.IsZero() {
		query += " AND s.created_at >= ?"
		args = append(args, opts.Since.UTC())
	}
	if opts.Persona != "" || opts.Category != "" {
		query += " AND EXISTS (SELECT 1 FROM story_summaries ss WHERE ss.story_id = s.id"
		if opts.Persona != "" {
			query += " AND ss.persona = ?"
			args = append(args, string(opts.Persona))
		}
		if opts.Category != "" {
			query += " AND ss.category = ?"
			args = append(args, opts.Category)
		}
		query += ")"
	}

	query += " GROUP BY " + storyColumns + " ORDER BY item_count DESC, s.created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 30
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var stories []Story
	if err := s.db.SelectContext(ctx, &stories, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}

	views := make([]StoryView, 0, len(stories))
	for _, st := range stories {
		st.decode()
		st.Score = float64(st.ItemCount)

		items, err := s.StoryItems(ctx, st.ID, 0)
		if err != nil {
			return nil, err
		}
		summaries, err := s.StorySummaries(ctx, st.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, StoryView{Story: st, Items: items, Summaries: summaries})
	}
	return views, nil
}

func (s *SQLStore) StorySummaries(ctx context.Context, storyID string) ([]StorySummary, error) {
	var summaries []StorySummary
	err := s.db.SelectContext(ctx, &summaries, s.db.Rebind(
		"SELECT * FROM story_summaries WHERE story_id = ? ORDER BY persona, category"), storyID)
	if err != nil {
		return nil, fmt.Errorf("list summaries of story %s: %w", storyID, err)
	}
	for i := range summaries {
		summaries[i].decode()
	}
	return summaries, nil
}

// SaveSummaries writes the summaries of one story in a single transaction.
// A summary whose (persona, category) already exists for the story is skipped.
// It returns how many rows were written.
func (s *SQLStore) SaveSummaries(ctx context.Context, storyID string, summaries []StorySummary) ([]StorySummary, error) {
	if len(summaries) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin summaries tx: %w", err)
	}
	defer tx.Rollback()

	var written []StorySummary
	for i := range summaries {
		sm := &summaries[i]
		sm.StoryID = storyID

		var exists int
		err := tx.GetContext(ctx, &exists, tx.Rebind(
			"SELECT COUNT(*) FROM story_summaries WHERE story_id = ? AND persona = ? AND category = ?"),
			storyID, string(sm.Persona), sm.Category)
		if err != nil {
			return nil, fmt.Errorf("check summary %s/%s: %w", sm.Persona, sm.Category, err)
		}
		if exists > 0 {
			continue
		}

		if sm.ID == "" {
			sm.ID = uuid.NewString()
		}
		if sm.CreatedAt.IsZero() {
			sm.CreatedAt = s.now()
		}
		if sm.Confidence == "" {
			sm.Confidence = ConfidenceLow
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO story_summaries (id, story_id, persona, category, summary_short, summary_bullets, why_it_matters, key_entities, confidence, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(story_id, persona, category) DO NOTHING
		`), sm.ID, storyID, string(sm.Persona), sm.Category, sm.SummaryShort,
			encodeJSON(sm.Bullets, "[]"), sm.WhyItMatters, encodeJSON(sm.KeyEntities, "[]"),
			sm.Confidence, sm.CreatedAt.UTC())
		if err != nil {
			return nil, fmt.Errorf("insert summary %s/%s: %w", sm.Persona, sm.Category, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			written = append(written, *sm)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit summaries of story %s: %w", storyID, err)
	}
	return written, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
