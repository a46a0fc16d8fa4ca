package storage

import (
	"context"
	"database/sql"
	"fmt"
)

const (
	sqlReadChats     = `SELECT id, name FROM chats ORDER BY rowid`
	sqlReadChatWhere = `SELECT id, name FROM chats WHERE id = ?`

	sqlReadTitles     = `SELECT name, link, last_chapter FROM titles ORDER BY rowid`
	sqlReadTitleWhere = `SELECT name, link, last_chapter FROM titles WHERE name = ?`

	sqlReadChaptersWhereTitle = `SELECT name, number, url, date, title FROM chapters WHERE title = ? ORDER BY rowid`

	sqlReadSubscriptions           = `SELECT chat, title, last FROM subscriptions ORDER BY rowid`
	sqlReadSubscriptionsWhereChat  = `SELECT chat, title, last FROM subscriptions WHERE chat = ? ORDER BY rowid`
	sqlReadSubscriptionsWhereTitle = `SELECT chat, title, last FROM subscriptions WHERE title = ? ORDER BY rowid`

	sqlInsertChat         = `INSERT INTO chats (id, name) VALUES (?, ?)`
	sqlInsertTitle        = `INSERT INTO titles (name, link, last_chapter) VALUES (?, ?, ?)`
	sqlInsertChapter      = `INSERT INTO chapters (name, number, url, date, title) VALUES (?, ?, ?, ?, ?)`
	sqlInsertSubscription = `INSERT INTO subscriptions (chat, title, last) VALUES (?, ?, ?)`

	sqlUpdateChatName         = `UPDATE chats SET name = ? WHERE id = ?`
	sqlUpdateSubscriptionLast = `UPDATE subscriptions SET last = ? WHERE chat = ? AND title = ?`
	sqlUpdateTitleLast        = `UPDATE titles SET last_chapter = ? WHERE name = ?`

	sqlDeleteChat                 = `DELETE FROM chats WHERE id = ?`
	sqlDeleteTitle                = `DELETE FROM titles WHERE name = ?`
	sqlDeleteChapter              = `DELETE FROM chapters WHERE title = ? AND name = ?`
	sqlDeleteChaptersWhereTitle   = `DELETE FROM chapters WHERE title = ?`
	sqlDeleteSubscription         = `DELETE FROM subscriptions WHERE chat = ? AND title = ?`
	sqlDeleteSubscriptionsOfChat  = `DELETE FROM subscriptions WHERE chat = ?`
	sqlDeleteSubscriptionsOfTitle = `DELETE FROM subscriptions WHERE title = ?`
)

type chatRow struct {
	ID   int64
	Name string
}

type titleRow struct {
	Name        string
	Link        string
	LastChapter string
}

type chapterRow struct {
	Name   string
	Number string
	URL    string
	Date   string
	Title  string
}

type subscriptionRow struct {
	Chat  int64
	Title string
	Last  string
}

func (s *SQLite) readChats(ctx context.Context, query string, args ...any) ([]chatRow, error) {
	var out []chatRow
	err := s.Query(ctx, query, func(rows *sql.Rows) error {
		var r chatRow
		var name sql.NullString
		if err := rows.Scan(&r.ID, &name); err != nil {
			return err
		}
		r.Name = name.String
		out = append(out, r)
		return nil
	}, args...)
	if err != nil {
		return nil, fmt.Errorf("read chats: %w", err)
	}
	return out, nil
}

func (s *SQLite) readTitles(ctx context.Context, query string, args ...any) ([]titleRow, error) {
	var out []titleRow
	err := s.Query(ctx, query, func(rows *sql.Rows) error {
		var r titleRow
		var last sql.NullString
		if err := rows.Scan(&r.Name, &r.Link, &last); err != nil {
			return err
		}
		r.LastChapter = last.String
		out = append(out, r)
		return nil
	}, args...)
	if err != nil {
		return nil, fmt.Errorf("read titles: %w", err)
	}
	return out, nil
}

func (s *SQLite) readChapters(ctx context.Context, title string) ([]chapterRow, error) {
	var out []chapterRow
	err := s.Query(ctx, sqlReadChaptersWhereTitle, func(rows *sql.Rows) error {
		var r chapterRow
		var number, url, date sql.NullString
		if err := rows.Scan(&r.Name, &number, &url, &date, &r.Title); err != nil {
			return err
		}
		r.Number, r.URL, r.Date = number.String, url.String, date.String
		out = append(out, r)
		return nil
	}, title)
	if err != nil {
		return nil, fmt.Errorf("read chapters: %w", err)
	}
	return out, nil
}

func (s *SQLite) readSubscriptions(ctx context.Context, query string, args ...any) ([]subscriptionRow, error) {
	var out []subscriptionRow
	err := s.Query(ctx, query, func(rows *sql.Rows) error {
		var r subscriptionRow
		var last sql.NullString
		if err := rows.Scan(&r.Chat, &r.Title, &last); err != nil {
			return err
		}
		r.Last = last.String
		out = append(out, r)
		return nil
	}, args...)
	if err != nil {
		return nil, fmt.Errorf("read subscriptions: %w", err)
	}
	return out, nil
}

func (s *SQLite) deleteCascade(ctx context.Context, children []string, parent string, key any) error {
	return s.Tx(ctx, func(tx *sql.Tx) error {
		for _, q := range children {
			if _, err := tx.ExecContext(ctx, q, key); err != nil {
				return fmt.Errorf("exec: %w", err)
			}
		}
		res, err := tx.ExecContext(ctx, parent, key)
		if err != nil {
			return fmt.Errorf("exec: %w", err)
		}
		return checkAffected(res)
	})
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
