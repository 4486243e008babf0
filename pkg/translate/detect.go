package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/lingodesk/lingodesk/pkg/logger"
)

// detectTimeout is deliberately shorter than the translation timeout;
// detection is advisory and the heuristics below are an acceptable answer.
const detectTimeout = 3 * time.Second

var (
	frenchMarkers   = []string{" le ", " la ", " de ", " je ", "vous", "avoir", "être", "pour", " s'"}
	latinDiacritics = regexp.MustCompile(`[áéíóúñçàèùâêîôûëïüœ]`)
)

// Detect guesses the 2-letter language code of text. Endpoint failures fall
// back to lightweight heuristics, so detection never errors.
func (t *Translator) Detect(ctx context.Context, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "en"
	}

	for _, endpoint := range t.detectEndpoints {
		code, err := t.detectOnce(ctx, endpoint, text)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("endpoint", endpoint).Debug("language detection endpoint failed")
			continue
		}
		if code != "" {
			return code
		}
	}
	return heuristicLang(text)
}

func (t *Translator) detectOnce(ctx context.Context, endpoint, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()

	encoded, err := json.Marshal(map[string]string{"q": text})
	if err != nil {
		return "", errors.Wrap(err, "encoding detection request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", errors.Wrapf(err, "building request for %s", endpoint)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "calling %s", endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", &httpStatusError{status: resp.StatusCode, endpoint: endpoint}
	}

	var result []struct {
		Language string `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", errors.Wrapf(err, "decoding detection response from %s", endpoint)
	}
	if len(result) == 0 {
		return "", nil
	}

	code := strings.ToLower(result[0].Language)
	if code == "" {
		return "en", nil
	}
	if len(code) > 2 {
		code = code[:2]
	}
	return code, nil
}

// heuristicLang is the offline guess used when every detection endpoint is
// unreachable: CJK ideographs mean Chinese, common French function words or
// Latin diacritics mean French, anything else is treated as English.
func heuristicLang(text string) string {
	if containsCJK(text) {
		return "zh"
	}
	lower := strings.ToLower(text)
	for _, marker := range frenchMarkers {
		if strings.Contains(lower, marker) {
			return "fr"
		}
	}
	if latinDiacritics.MatchString(lower) {
		return "fr"
	}
	return "en"
}
