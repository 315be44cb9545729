// internal/track/sqlstore.go
//
// MySQL-backed track store.
//
// Context
//   The store is the durable end of the create flow.  Duplicate
//   (artist, track_title) pairs are the only constraint the database
//   enforces beyond the Validator, and they surface as a RejectedError so
//   the form can show them like any other message.
//
// Notes
//   •  Empty release dates are stored as NULL and read back as "".
//   •  created_by comes from the authenticated user on ctx, if any.
//   •  The DSN must enable parseTime (database.Open does).
//
//------------------------------------------------------------------------------

package track

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/ingenius/internal/auth"
	"github.com/yanizio/ingenius/internal/metrics"
)

// MsgDuplicateTitle is reported when artist and title already exist.
const MsgDuplicateTitle = "Title already exists"

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// Schema creates the tracks table.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS tracks (
	id           BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
	track_title  VARCHAR(120)  NOT NULL,
	artist       VARCHAR(120)  NOT NULL,
	album        VARCHAR(120)  NOT NULL DEFAULT '',
	release_date DATE          NULL,
	produced_by  VARCHAR(120)  NOT NULL DEFAULT '',
	lyrics       TEXT          NOT NULL,
	track_art    VARCHAR(2048) NOT NULL DEFAULT '',
	track_url    VARCHAR(2048) NOT NULL DEFAULT '',
	created_by   BIGINT UNSIGNED NULL,
	created_at   DATETIME      NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE KEY uq_tracks_artist_title (artist, track_title)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

const (
	insertTrackSQL = `INSERT INTO tracks (track_title, artist, album, release_date, produced_by, lyrics, track_art, track_url, created_by, created_at) VALUES (?, ?, ?, NULLIF(?, ''), ?, ?, ?, ?, NULLIF(?, 0), ?)`

	selectTrackSQL = `SELECT id, track_title, artist, album, COALESCE(DATE_FORMAT(release_date, '%Y-%m-%d'), '') AS release_date, produced_by, lyrics, track_art, track_url, COALESCE(created_by, 0) AS created_by, created_at FROM tracks WHERE id = ?`
)

// SQLStore implements Store on sqlx.
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLStore wraps an open pool.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

// Create inserts rec and returns the stored track.
func (s *SQLStore) Create(ctx context.Context, rec Record) (*Track, error) {
	defer observe("sql", "create", time.Now())

	uid, _ := auth.UserID(ctx)
	created := s.now().UTC().Truncate(time.Second)

	res, err := s.db.ExecContext(ctx, insertTrackSQL,
		rec.Title, rec.Artist, rec.Album, rec.ReleaseDate, rec.ProducedBy,
		rec.Lyrics, rec.ArtURL, rec.VideoURL, uid, created)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return nil, &RejectedError{Messages: []string{MsgDuplicateTitle}}
		}
		return nil, fmt.Errorf("track: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("track: insert id: %w", err)
	}
	return &Track{ID: id, Record: rec, CreatedBy: uid, CreatedAt: created}, nil
}

// Get loads one track.
func (s *SQLStore) Get(ctx context.Context, id int64) (*Track, error) {
	defer observe("sql", "get", time.Now())

	var t Track
	if err := s.db.GetContext(ctx, &t, selectTrackSQL, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("track: select %d: %w", id, err)
	}
	return &t, nil
}

func observe(backend, op string, start time.Time) {
	metrics.StoreLatency.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}
