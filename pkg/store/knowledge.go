package store

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lingodesk/lingodesk/pkg/telemetry"
)

var tracer = telemetry.Tracer("lingodesk.store")

// maxFTSTerms caps the number of terms in a full-text match expression.
const maxFTSTerms = 8

// likePrefixRunes caps how much of a raw query feeds the substring fallback.
const likePrefixRunes = 50

// Provenance labels recorded on knowledge entries.
const (
	// SourceAgentAuto marks pairs learned by watching agent replies.
	SourceAgentAuto = "agent_auto"
	// SourceTemplateSeed marks pairs imported from the built-in templates.
	SourceTemplateSeed = "template_seed"
)

// Match is the best knowledge entry found for a query.
type Match struct {
	ID       int64   `db:"id" json:"id"`
	AnswerZH string  `db:"answer_zh" json:"answer_zh"`
	Score    float64 `db:"score" json:"score"`
}

// wordRuns extracts Unicode word characters, the equivalent of \w+ with
// full Unicode classes so CJK text tokenizes too.
var wordRuns = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// fingerprint is the stable digest of a normalized Chinese question,
// the unique key for knowledge entries.
func fingerprint(qZH string) string {
	sum := sha1.Sum([]byte(qZH))
	return hex.EncodeToString(sum[:])
}

// ftsMatchQuery converts raw text into a safe FTS5 MATCH expression: strip
// embedded quotes, keep word runs, cap the term count, quote each term and
// join with AND. Returns "" when no terms survive.
func ftsMatchQuery(text string, maxTerms int) string {
	text = strings.ReplaceAll(text, `"`, " ")
	terms := wordRuns.FindAllString(text, -1)
	if len(terms) == 0 {
		return ""
	}
	if len(terms) > maxTerms {
		terms = terms[:maxTerms]
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	return strings.Join(quoted, " AND ")
}

// UpsertQA inserts or merges one Q/A entry and keeps the full-text index
// row aligned (fts rowid == knowledge id). Empty Chinese question or answer
// is a no-op returning id 0. Merging bumps upvotes and overwrites the
// answer; the source-language question is only backfilled when missing.
func (s *Store) UpsertQA(ctx context.Context, qFR, qZH, aZH, source string) (int64, error) {
	qFR = strings.TrimSpace(qFR)
	qZH = strings.TrimSpace(qZH)
	aZH = strings.TrimSpace(aZH)
	if qZH == "" || aZH == "" {
		return 0, nil
	}

	hash := fingerprint(qZH)
	now := time.Now().Format(time.RFC3339)

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin upsert transaction")
	}
	defer tx.Rollback()

	var id int64
	err = tx.GetContext(ctx, &id, "SELECT id FROM knowledge WHERE q_hash = ?", hash)
	switch {
	case err == nil:
		_, err = tx.ExecContext(ctx, `
			UPDATE knowledge
			   SET q_fr = COALESCE(NULLIF(q_fr, ''), ?),
			       q_zh = COALESCE(NULLIF(?, ''), q_zh),
			       a_zh = ?,
			       updated_at = ?,
			       upvotes = upvotes + 1,
			       source = COALESCE(NULLIF(?, ''), source)
			 WHERE id = ?
		`, qFR, qZH, aZH, now, source, id)
		if err != nil {
			return 0, errors.Wrap(err, "failed to merge knowledge entry")
		}
	case errors.Is(err, sql.ErrNoRows):
		res, insertErr := tx.ExecContext(ctx, `
			INSERT INTO knowledge (q_fr, q_zh, a_zh, q_hash, hits, upvotes, source, created_at, updated_at)
			VALUES (?, ?, ?, ?, 0, 1, ?, ?, ?)
		`, qFR, qZH, aZH, hash, source, now, now)
		if insertErr != nil {
			return 0, errors.Wrap(insertErr, "failed to insert knowledge entry")
		}
		if id, insertErr = res.LastInsertId(); insertErr != nil {
			return 0, errors.Wrap(insertErr, "failed to read knowledge entry id")
		}
	default:
		return 0, errors.Wrap(err, "failed to look up question fingerprint")
	}

	// Rebuild the index row from the stored entry so a merge that omitted
	// the source-language question keeps it searchable.
	var stored struct {
		QFR string `db:"q_fr"`
		QZH string `db:"q_zh"`
	}
	err = tx.GetContext(ctx, &stored,
		"SELECT COALESCE(q_fr, '') AS q_fr, COALESCE(q_zh, '') AS q_zh FROM knowledge WHERE id = ?", id)
	if err != nil {
		return 0, errors.Wrap(err, "failed to read back knowledge entry")
	}
	questionAll := strings.TrimSpace(stored.QFR + " " + stored.QZH)

	if _, err := tx.ExecContext(ctx, "DELETE FROM knowledge_fts WHERE rowid = ?", id); err != nil {
		return 0, errors.Wrap(err, "failed to clear full-text row")
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO knowledge_fts (rowid, question_all, answer_zh) VALUES (?, ?, ?)",
		id, questionAll, aZH); err != nil {
		return 0, errors.Wrap(err, "failed to index full-text row")
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "failed to commit upsert")
	}
	return id, nil
}

// RetrieveBest returns the best-matching knowledge entry for the two query
// variants, or (nil, nil) when nothing matches. Lower score ranks first
// (bm25; the substring fallback scores a flat 1.0), ties break on lower id.
// The winning entry's hit counter is bumped.
func (s *Store) RetrieveBest(ctx context.Context, qFR, qZH string, k int) (*Match, error) {
	if k <= 0 {
		k = 3
	}

	ctx, span := tracer.Start(ctx, "knowledge_retrieve", trace.WithAttributes(
		attribute.Int("knowledge.k", k),
	))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []Match
	for _, raw := range []string{qFR, qZH} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		rows, err := s.searchOne(ctx, raw, k)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, rows...)
	}
	if len(candidates) == 0 {
		span.SetAttributes(attribute.Bool("knowledge.hit", false))
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score < candidates[j].Score
		}
		return candidates[i].ID < candidates[j].ID
	})
	best := candidates[0]

	_, err := s.db.ExecContext(ctx,
		"UPDATE knowledge SET hits = hits + 1, updated_at = ? WHERE id = ?",
		time.Now().Format(time.RFC3339), best.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to record retrieval hit")
	}
	span.SetAttributes(attribute.Bool("knowledge.hit", true))
	return &best, nil
}

// searchOne runs a ranked full-text search for one query variant, falling
// back to a substring match when the expression is empty or FTS rejects it.
func (s *Store) searchOne(ctx context.Context, raw string, k int) ([]Match, error) {
	expr := ftsMatchQuery(raw, maxFTSTerms)
	if expr == "" {
		return s.searchLike(ctx, raw, k)
	}

	// The index is contentless, so the answer text comes from the knowledge
	// row sharing the rowid.
	var rows []Match
	err := s.db.SelectContext(ctx, &rows, `
		SELECT knowledge_fts.rowid AS id, knowledge.a_zh AS answer_zh, bm25(knowledge_fts) AS score
		  FROM knowledge_fts
		  JOIN knowledge ON knowledge.id = knowledge_fts.rowid
		 WHERE knowledge_fts MATCH ?
		 ORDER BY score
		 LIMIT ?
	`, expr, k)
	if err != nil {
		// Malformed MATCH expressions surface as query errors.
		return s.searchLike(ctx, raw, k)
	}
	return rows, nil
}

// searchLike is the substring fallback over both stored question columns,
// keyed on the first 50 characters of the raw query.
func (s *Store) searchLike(ctx context.Context, raw string, k int) ([]Match, error) {
	pattern := "%" + truncateRunes(raw, likePrefixRunes) + "%"

	var rows []Match
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, a_zh AS answer_zh, 1.0 AS score
		  FROM knowledge
		 WHERE q_fr LIKE ? OR q_zh LIKE ?
		 LIMIT ?
	`, pattern, pattern, k)
	return rows, errors.Wrap(err, "failed to run substring search")
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
