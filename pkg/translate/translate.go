// Package translate implements best-effort machine translation over a
// cascade of LibreTranslate-compatible HTTP endpoints, with an
// OpenAI-compatible chat model as the final fallback when every endpoint
// returns the text unchanged. Translation never fails hard: callers always
// get usable text back, at worst the original input.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lingodesk/lingodesk/pkg/logger"
	"github.com/lingodesk/lingodesk/pkg/telemetry"
)

var tracer = telemetry.Tracer("lingodesk.translate")

// Config carries the translator settings resolved at startup.
type Config struct {
	// Endpoints are LibreTranslate-compatible /translate URLs, tried in order.
	Endpoints []string
	// DetectEndpoints are the matching /detect URLs.
	DetectEndpoints []string
	// Enabled short-circuits the whole pipeline when false.
	Enabled bool
	// Timeout applies per translation request.
	Timeout time.Duration

	// LLMBaseURL, LLMAPIKey and LLMModel configure the chat-completion
	// fallback. An empty base URL or model disables it.
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
}

// Translator drives the endpoint cascade. Safe for concurrent use.
type Translator struct {
	endpoints       []string
	detectEndpoints []string
	enabled         bool
	timeout         time.Duration
	client          *http.Client
	llm             *modelFallback
}

// New builds a Translator from cfg.
func New(cfg Config) *Translator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Translator{
		endpoints:       cfg.Endpoints,
		detectEndpoints: cfg.DetectEndpoints,
		enabled:         cfg.Enabled,
		timeout:         timeout,
		client:          &http.Client{},
		llm:             newModelFallback(cfg),
	}
}

// Translate converts text into the target language. source may be a 2-letter
// code or "auto". On any endpoint or model failure the input is returned
// unchanged.
func (t *Translator) Translate(ctx context.Context, text, target, source string) string {
	text = strings.TrimSpace(text)
	if text == "" || !t.enabled {
		return text
	}

	tgt := normalizeTarget(target)
	src := strings.ToLower(strings.TrimSpace(source))
	if src == "" {
		src = "auto"
	}

	ctx, span := tracer.Start(ctx, "translate", trace.WithAttributes(
		attribute.String("translate.target", tgt),
		attribute.String("translate.source", src),
	))
	defer span.End()

	// Chinese targets keep CJK input untouched, skipping detection and any
	// network round-trip.
	if tgt == "zh" && containsCJK(text) {
		return text
	}
	if src != "auto" && strings.HasPrefix(src, tgt) {
		return text
	}

	detected := ""
	if src == "auto" {
		detected = t.Detect(ctx, text)
		if strings.HasPrefix(detected, tgt) {
			return text
		}
		src = detected
	}

	// An endpoint that cannot handle the language pair tends to echo the
	// input back; treat that like a miss so the model gets its turn.
	out, err := t.cascade(ctx, text, tgt, src)
	if out != "" && out != text {
		return out
	}
	if err != nil {
		logger.G(ctx).WithError(err).WithField("target", tgt).Warn("translation cascade exhausted")
	}

	// The caller supplied an explicit source; confirm the pair really
	// crosses languages before burning model tokens.
	if detected == "" {
		detected = t.Detect(ctx, text)
		if strings.HasPrefix(detected, tgt) {
			return text
		}
	}

	if out := t.llm.translate(ctx, text, tgt); out != "" {
		return out
	}
	return text
}

type endpointRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
}

// cascade tries every endpoint in order, falling back from JSON to
// form-encoded submission when an endpoint rejects the content type. It
// returns the first non-empty translation, or an aggregate of everything
// that went wrong.
func (t *Translator) cascade(ctx context.Context, text, target, source string) (string, error) {
	if source == "" {
		source = "auto"
	}
	req := endpointRequest{Q: text, Source: source, Target: target, Format: "text"}

	var errs *multierror.Error
	for _, endpoint := range t.endpoints {
		out, err := t.post(ctx, endpoint, req, false)
		if err == nil && out != "" {
			return out, nil
		}
		if formRetryable(err) {
			out, err = t.post(ctx, endpoint, req, true)
			if err == nil && out != "" {
				return out, nil
			}
		}
		if err == nil {
			err = errors.Errorf("empty translation from %s", endpoint)
		}
		logger.G(ctx).WithError(err).WithField("endpoint", endpoint).Debug("translation endpoint failed")
		errs = multierror.Append(errs, err)
	}
	return "", errs.ErrorOrNil()
}

func (t *Translator) post(ctx context.Context, endpoint string, payload endpointRequest, form bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var (
		body        io.Reader
		contentType string
	)
	if form {
		values := url.Values{
			"q":      {payload.Q},
			"source": {payload.Source},
			"target": {payload.Target},
			"format": {payload.Format},
		}
		body = strings.NewReader(values.Encode())
		contentType = "application/x-www-form-urlencoded"
	} else {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return "", errors.Wrap(err, "encoding translation request")
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", errors.Wrapf(err, "building request for %s", endpoint)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "calling %s", endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", &httpStatusError{status: resp.StatusCode, endpoint: endpoint}
	}

	var result struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", errors.Wrapf(err, "decoding response from %s", endpoint)
	}
	return strings.TrimSpace(result.TranslatedText), nil
}

// httpStatusError reports a non-OK response from a translation endpoint.
type httpStatusError struct {
	status   int
	endpoint string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("%s responded with status %d", e.endpoint, e.status)
}

// formRetryable reports whether the endpoint rejected the JSON body in a way
// that a form-encoded resubmission might fix.
func formRetryable(err error) bool {
	var statusErr *httpStatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	switch statusErr.status {
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// normalizeTarget lowers a language tag to its 2-letter code, defaulting to
// English.
func normalizeTarget(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return "en"
	}
	if len(lang) > 2 {
		lang = lang[:2]
	}
	return lang
}

// containsCJK reports whether s holds any CJK Unified Ideograph.
func containsCJK(s string) bool {
	for _, r := range s {
		if r >= 0x4E00 && r <= 0x9FFF {
			return true
		}
	}
	return false
}
