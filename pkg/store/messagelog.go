package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// dbMessage is the database model of one message log row.
type dbMessage struct {
	TS     string `db:"ts"`
	ConvID string `db:"conv_id"`
	Role   string `db:"role"`
	Lang   string `db:"lang"`
	Text   string `db:"text"`
}

// LogMessage appends one row to the conversation log. role is one of
// client/agent/bot; lang is a language tag ("fr", "zh", "img", ...).
func (s *Store) LogMessage(ctx context.Context, role, lang, text, cid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO messages (ts, conv_id, role, lang, text)
		VALUES (:ts, :conv_id, :role, :lang, :text)
	`, dbMessage{
		TS:     time.Now().Format(time.RFC3339),
		ConvID: cid,
		Role:   role,
		Lang:   lang,
		Text:   text,
	})
	return errors.Wrap(err, "failed to append message log")
}
