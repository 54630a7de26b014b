package recents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"karolbroda.com/encore/internal/track"
)

const schema = `
	create table if not exists recents (
		position  integer primary key,
		song_id   integer not null,
		title     text not null,
		artist    text not null,
		artist_id integer not null default 0,
		album     text not null default '',
		cover     text not null default '',
		cover_xl  text not null default '',
		duration  integer not null default 0,
		cached    boolean not null default false
	);`

const settingsSchema = `
	create table if not exists settings (
		key   text primary key,
		value real not null
	);`

const volumeKey = "volume"

type recentRow struct {
	Position int    `db:"position"`
	SongID   int64  `db:"song_id"`
	Title    string `db:"title"`
	Artist   string `db:"artist"`
	ArtistID int64  `db:"artist_id"`
	Album    string `db:"album"`
	Cover    string `db:"cover"`
	CoverXL  string `db:"cover_xl"`
	Duration int64  `db:"duration"`
	Cached   bool   `db:"cached"`
}

func (r recentRow) song() track.Song {
	return track.Song{
		ID:           r.SongID,
		Title:        r.Title,
		Artist:       r.Artist,
		ArtistID:     r.ArtistID,
		Album:        r.Album,
		Cover:        r.Cover,
		CoverXL:      r.CoverXL,
		DurationSecs: r.Duration,
		Cached:       r.Cached,
	}
}

// SQLiteStore keeps the history in a single sqlite table, one row per slot.
type SQLiteStore struct {
	db *sqlx.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create recents dir: %w", err)
	}

	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open recents db %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create recents table: %w", err)
	}
	if _, err := db.Exec(settingsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create settings table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) ([]track.Song, error) {
	query := `
	  select position, song_id, title, artist, artist_id, album, cover, cover_xl, duration, cached
	  from recents
	  order by position;`

	var rows []recentRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	songs := make([]track.Song, 0, len(rows))
	for _, r := range rows {
		songs = append(songs, r.song())
	}
	return songs, nil
}

func (s *SQLiteStore) Save(ctx context.Context, songs []track.Song) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `delete from recents;`); err != nil {
		return err
	}

	query := `
	  insert into recents (position, song_id, title, artist, artist_id, album, cover, cover_xl, duration, cached)
	  values (:position, :song_id, :title, :artist, :artist_id, :album, :cover, :cover_xl, :duration, :cached);`

	for i, song := range songs {
		row := recentRow{
			Position: i,
			SongID:   song.ID,
			Title:    song.Title,
			Artist:   song.Artist,
			ArtistID: song.ArtistID,
			Album:    song.Album,
			Cover:    song.Cover,
			CoverXL:  song.CoverXL,
			Duration: song.DurationSecs,
			Cached:   song.Cached,
		}
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadVolume returns the last saved player volume. ok is false when none was
// saved yet.
func (s *SQLiteStore) LoadVolume(ctx context.Context) (volume float64, ok bool, err error) {
	err = s.db.GetContext(ctx, &volume, `select value from settings where key = ?;`, volumeKey)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load volume: %w", err)
	}
	return volume, true, nil
}

func (s *SQLiteStore) SaveVolume(ctx context.Context, volume float64) error {
	query := `
	  insert into settings (key, value) values (?, ?)
	  on conflict(key) do update set value = excluded.value;`

	if _, err := s.db.ExecContext(ctx, query, volumeKey, volume); err != nil {
		return fmt.Errorf("save volume: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
