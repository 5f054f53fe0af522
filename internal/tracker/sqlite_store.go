package tracker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS stories (
	id           INTEGER PRIMARY KEY,
	timestamp    TEXT NOT NULL,
	run_id       TEXT NOT NULL DEFAULT '',
	user_request TEXT NOT NULL DEFAULT '',
	title        TEXT NOT NULL,
	content      TEXT NOT NULL,
	moral        TEXT NOT NULL,
	word_count   INTEGER NOT NULL,
	evaluation   TEXT NOT NULL,
	liked        INTEGER
)`

// SQLiteStore keeps records in a single sqlite table.
type SQLiteStore struct {
	db     *sql.DB
	logger logrus.FieldLogger
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string, logger logrus.FieldLogger) (*SQLiteStore, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	// a single connection serialises writers and keeps id assignment atomic
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create stories table: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger.WithField("component", "tracker")}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, rec Record) (Record, error) {
	evalJSON, err := json.Marshal(rec.Evaluation)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode evaluation: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM stories`).Scan(&count); err != nil {
		return Record{}, fmt.Errorf("failed to count stories: %w", err)
	}
	stamp(&rec, count+1)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO stories (id, timestamp, run_id, user_request, title, content, moral, word_count, evaluation, liked)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp, rec.RunID, rec.UserRequest,
		rec.Story.Title, rec.Story.Content, rec.Story.Moral, rec.Story.WordCount,
		string(evalJSON), likedValue(rec.Liked))
	if err != nil {
		return Record{}, fmt.Errorf("failed to insert story: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("failed to commit story: %w", err)
	}

	s.logger.Infof("Story #%d saved to sqlite", rec.ID)
	return rec, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM stories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Get(ctx context.Context, id int) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM stories WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %d", ErrRecordNotFound, id)
	}
	return rec, err
}

func (s *SQLiteStore) SetLiked(ctx context.Context, id int, liked bool) (Record, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE stories SET liked = ? WHERE id = ?`, likedValue(&liked), id)
	if err != nil {
		return Record{}, fmt.Errorf("failed to update story: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Record{}, fmt.Errorf("%w: %d", ErrRecordNotFound, id)
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const columns = `id, timestamp, run_id, user_request, title, content, moral, word_count, evaluation, liked`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		rec      Record
		evalJSON string
		liked    sql.NullInt64
	)
	err := sc.Scan(&rec.ID, &rec.Timestamp, &rec.RunID, &rec.UserRequest,
		&rec.Story.Title, &rec.Story.Content, &rec.Story.Moral, &rec.Story.WordCount,
		&evalJSON, &liked)
	if err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(evalJSON), &rec.Evaluation); err != nil {
		return Record{}, fmt.Errorf("failed to decode evaluation of story %d: %w", rec.ID, err)
	}
	if liked.Valid {
		v := liked.Int64 != 0
		rec.Liked = &v
	}
	return rec, nil
}

func likedValue(liked *bool) any {
	if liked == nil {
		return nil
	}
	if *liked {
		return 1
	}
	return 0
}
