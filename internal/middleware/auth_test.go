package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc.def", "abc.def"},
		{"bearer abc", "abc"},
		{"  Bearer   spaced  ", "spaced"},
		{"raw-token", "raw-token"},
		{"Basic dXNlcjpwYXNz", "Basic dXNlcjpwYXNz"},
		{"Bearer", "Bearer"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractBearerToken(tt.header), tt.header)
	}
}

func TestBearerTokenMiddleware(t *testing.T) {
	var (
		got string
		ok  bool
	)
	handler := BearerTokenMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = GetBearerToken(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/products", nil)
	req.Header.Set("Authorization", "Bearer caller")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, ok)
	assert.Equal(t, "caller", got)

	// missing header never rejects the request
	req = httptest.NewRequest("GET", "/products", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestProperty_BearerPrefixIsStripped(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("Bearer <token> yields token, anything else is verbatim", prop.ForAll(
		func(token string) bool {
			return ExtractBearerToken("Bearer "+token) == token && ExtractBearerToken(token) == token
		},
		gen.Identifier(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
