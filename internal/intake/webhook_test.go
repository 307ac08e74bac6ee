package intake

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretFromPathSegment(t *testing.T) {
	router := chi.NewRouter()
	var got string
	router.Post("/hooks/intake/{secret}", func(w http.ResponseWriter, r *http.Request) {
		got = SecretFromRequest(r)
	})
	req := httptest.NewRequest(http.MethodPost, "/hooks/intake/s3cret", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "s3cret", got)
}

func TestSecretFromQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/hooks/intake?secret=s3cret", nil)
	assert.Equal(t, "s3cret", SecretFromRequest(req))
}

func TestSecretFromHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/hooks/intake", nil)
	req.Header.Set(SecretHeader, "s3cret")
	assert.Equal(t, "s3cret", SecretFromRequest(req))
}

func TestVerifySecret(t *testing.T) {
	assert.NoError(t, VerifySecret("s3cret", "s3cret"))
	assert.ErrorIs(t, VerifySecret("wrong", "s3cret"), ErrBadSecret)
	assert.ErrorIs(t, VerifySecret("", "s3cret"), ErrBadSecret)
	// An unset expected secret never verifies.
	assert.ErrorIs(t, VerifySecret("", ""), ErrBadSecret)
}

func TestParseRequestJSON(t *testing.T) {
	body := `{"formID":"form-9","submissionID":"sub-42","formTitle":"Intake","rawRequest":{"q3_name":"Dana"}}`
	req := httptest.NewRequest(http.MethodPost, "/hooks/intake", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	sub, err := ParseRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "form-9", sub.FormID)
	assert.Equal(t, "sub-42", sub.SubmissionID)
	assert.Equal(t, "Intake", sub.FormTitle)
	assert.Equal(t, "Dana", sub.Parsed["q3_name"])
}

func TestParseRequestFormEncodedRawRequestString(t *testing.T) {
	form := url.Values{
		"formID":       {"form-9"},
		"submissionID": {"sub-42"},
		"rawRequest":   {`{"q3_name":"Dana","submitDate":"2026-08-30 10:15:00"}`},
	}
	req := httptest.NewRequest(http.MethodPost, "/hooks/intake", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	sub, err := ParseRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "sub-42", sub.SubmissionID)
	assert.Equal(t, "Dana", sub.Parsed["q3_name"])
	require.NotNil(t, sub.SubmittedAt)
	assert.Equal(t, 2026, sub.SubmittedAt.Year())
}

func TestParseRequestMalformedRawRequestKeepsPayload(t *testing.T) {
	form := url.Values{
		"submissionID": {"sub-42"},
		"rawRequest":   {"not json"},
	}
	req := httptest.NewRequest(http.MethodPost, "/hooks/intake", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	sub, err := ParseRequest(req)
	require.NoError(t, err)
	assert.Nil(t, sub.Parsed)
	assert.Equal(t, "not json", sub.Payload["rawRequest"])
}

func TestParseRequestMissingSubmissionID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/hooks/intake", strings.NewReader(`{"formID":"form-9"}`))
	req.Header.Set("Content-Type", "application/json")

	_, err := ParseRequest(req)
	assert.Error(t, err)
}

func TestParseRequestUnsupportedContentType(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/hooks/intake", strings.NewReader("<xml/>"))
	req.Header.Set("Content-Type", "text/xml")

	_, err := ParseRequest(req)
	assert.Error(t, err)
}
