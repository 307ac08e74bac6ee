package intake

import (
	"crypto/hmac"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// SecretHeader carries the webhook secret when the provider supports
// custom headers.
const SecretHeader = "X-Intake-Webhook-Secret"

// ErrBadSecret indicates the delivery could not be authenticated.
var ErrBadSecret = errors.New("intake: webhook secret mismatch")

// IncomingSubmission is a webhook delivery after parsing, before storage.
type IncomingSubmission struct {
	FormID       string
	SubmissionID string
	FormTitle    string
	Payload      map[string]any
	Parsed       map[string]any
	SubmittedAt  *time.Time
}

// SecretFromRequest extracts the delivery secret. Form vendors differ in
// where they can place it: a trailing path segment, a query parameter,
// or a custom header.
func SecretFromRequest(r *http.Request) string {
	if secret := chi.URLParam(r, "secret"); secret != "" {
		return secret
	}
	if secret := r.URL.Query().Get("secret"); secret != "" {
		return secret
	}
	return r.Header.Get(SecretHeader)
}

// VerifySecret compares the presented secret in constant time.
func VerifySecret(presented, expected string) error {
	if expected == "" || !hmac.Equal([]byte(presented), []byte(expected)) {
		return ErrBadSecret
	}
	return nil
}

// ParseRequest decodes a webhook body. JotForm-style providers post
// either JSON or form-encoded data with the interesting fields inside a
// rawRequest JSON string.
func ParseRequest(r *http.Request) (*IncomingSubmission, error) {
	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var fields map[string]any
	switch {
	case contentType == "application/json":
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			return nil, err
		}
	case contentType == "application/x-www-form-urlencoded", strings.HasPrefix(contentType, "multipart/"):
		if err := parseForm(r); err != nil {
			return nil, err
		}
		fields = make(map[string]any, len(r.PostForm))
		for key := range r.PostForm {
			fields[key] = r.PostForm.Get(key)
		}
	default:
		return nil, errors.New("intake: unsupported content type " + contentType)
	}

	sub := &IncomingSubmission{
		FormID:       stringField(fields, "formID"),
		SubmissionID: stringField(fields, "submissionID"),
		FormTitle:    stringField(fields, "formTitle"),
		Payload:      fields,
	}
	if sub.SubmissionID == "" {
		return nil, errors.New("intake: submissionID missing")
	}

	sub.Parsed = unwrapRawRequest(fields)
	if at := parseSubmitTime(sub.Parsed); at != nil {
		sub.SubmittedAt = at
	}
	return sub, nil
}

func parseForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		return r.ParseMultipartForm(1 << 20)
	}
	return r.ParseForm()
}

// unwrapRawRequest pulls the nested answer document out of the
// rawRequest field when present; it arrives either as a JSON string or
// an already-decoded object.
func unwrapRawRequest(fields map[string]any) map[string]any {
	raw, ok := fields["rawRequest"]
	if !ok {
		return nil
	}
	switch value := raw.(type) {
	case string:
		var parsed map[string]any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			return nil
		}
		return parsed
	case map[string]any:
		return value
	default:
		return nil
	}
}

func stringField(fields map[string]any, key string) string {
	value, _ := fields[key].(string)
	return value
}

func parseSubmitTime(parsed map[string]any) *time.Time {
	if parsed == nil {
		return nil
	}
	value, _ := parsed["submitDate"].(string)
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if at, err := time.Parse(layout, value); err == nil {
			return &at
		}
	}
	return nil
}
