// Package seed imports the built-in bilingual reply templates into the
// knowledge store, giving a fresh deployment useful answers before any
// learning has happened.
package seed

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/lingodesk/lingodesk/pkg/store"
)

// maxAnswerTriggerRunes bounds how long a French answer may be before it is
// too noisy to double as retrieval terms.
const maxAnswerTriggerRunes = 200

// Upserter is the slice of the knowledge store the importer needs.
type Upserter interface {
	UpsertQA(ctx context.Context, qFR, qZH, aZH, source string) (int64, error)
}

// Import writes every built-in template into dst. Running it repeatedly is
// safe: templates merge into their existing entries instead of duplicating.
// Returns how many templates were imported and how many were skipped for
// lacking a Chinese answer.
func Import(ctx context.Context, dst Upserter) (imported, skipped int, err error) {
	for _, tpl := range Templates() {
		if strings.TrimSpace(tpl.AnswerZH) == "" {
			skipped++
			continue
		}

		qFR := tpl.TriggerFR
		if fr := strings.TrimSpace(tpl.AnswerFR); fr != "" && utf8.RuneCountInString(fr) < maxAnswerTriggerRunes {
			// A short French answer doubles as extra retrieval terms.
			qFR = qFR + " " + fr
		}

		if _, err := dst.UpsertQA(ctx, qFR, tpl.TriggerZH, tpl.AnswerZH, store.SourceTemplateSeed); err != nil {
			return imported, skipped, errors.Wrapf(err, "importing template %s", tpl.Key)
		}
		imported++
	}
	return imported, skipped, nil
}
