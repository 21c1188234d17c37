package jubelio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront-gateway/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeAuthServer answers every login path; hits counts calls per path
type fakeAuthServer struct {
	srv   *httptest.Server
	hits  sync.Map
	total atomic.Int32
}

func newFakeAuthServer(t *testing.T, handler func(path string, body map[string]string) (int, any)) *fakeAuthServer {
	t.Helper()
	f := &fakeAuthServer{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.total.Add(1)
		n, _ := f.hits.LoadOrStore(r.URL.Path, new(atomic.Int32))
		n.(*atomic.Int32).Add(1)

		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		status, payload := handler(r.URL.Path, body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAuthServer) count(path string) int {
	n, ok := f.hits.Load(path)
	if !ok {
		return 0
	}
	return int(n.(*atomic.Int32).Load())
}

func cachedCredential(c *CredentialCache) domain.Credential {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cred
}

func newTestProvider(f *fakeAuthServer, creds Credentials, clock *fakeClock) *TokenProvider {
	client := NewClient(Options{BaseURL: f.srv.URL, LoginURL: f.srv.URL + "/login"}, zap.NewNop())
	p := NewTokenProvider(client, creds, NewCredentialCache(), zap.NewNop())
	p.now = clock.Now
	return p
}

func TestTokenNoCredentials(t *testing.T) {
	f := newFakeAuthServer(t, func(string, map[string]string) (int, any) { return 200, nil })
	p := newTestProvider(f, Credentials{}, &fakeClock{now: time.Now()})

	_, err := p.Token(context.Background(), TokenOptions{})
	assert.ErrorIs(t, err, ErrNoCredentialsConfigured)
	assert.Zero(t, f.total.Load())
}

func TestTokenStaticAPIKey(t *testing.T) {
	f := newFakeAuthServer(t, func(string, map[string]string) (int, any) { return 200, nil })
	clock := &fakeClock{now: time.Now()}
	p := newTestProvider(f, Credentials{APIKey: "static-key", Email: "a@b.test", Password: "pw"}, clock)

	token, err := p.Token(context.Background(), TokenOptions{Email: "x@y.test", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "static-key", token)
	assert.Zero(t, f.total.Load())

	cred := cachedCredential(p.cache)
	assert.Equal(t, clock.Now().Add(StaticKeyLifetime), cred.ExpiresAt)
}

func TestTokenCachedWithinExpiry(t *testing.T) {
	f := newFakeAuthServer(t, func(path string, body map[string]string) (int, any) {
		return 200, map[string]any{"token": "tok-" + body["email"], "expires_in": 3600}
	})
	clock := &fakeClock{now: time.Now()}
	p := newTestProvider(f, Credentials{Email: "svc@b.test", Password: "pw"}, clock)

	first, err := p.Token(context.Background(), TokenOptions{})
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)
	second, err := p.Token(context.Background(), TokenOptions{})
	require.NoError(t, err)

	assert.Equal(t, "tok-svc@b.test", first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.count("/login"))

	// expiry is declared lifetime minus the safety margin
	clock.Advance(30*time.Minute - ExpirySafetyMargin)
	_, err = p.Token(context.Background(), TokenOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, f.count("/login"))
}

func TestTokenForceRefresh(t *testing.T) {
	var n atomic.Int32
	f := newFakeAuthServer(t, func(string, map[string]string) (int, any) {
		return 200, map[string]any{"data": map[string]any{"access_token": "t" + string(rune('0'+n.Add(1)))}}
	})
	p := newTestProvider(f, Credentials{Email: "svc@b.test", Password: "pw"}, &fakeClock{now: time.Now()})

	first, err := p.Token(context.Background(), TokenOptions{})
	require.NoError(t, err)
	forced, err := p.Token(context.Background(), TokenOptions{Force: true})
	require.NoError(t, err)

	assert.Equal(t, "t1", first)
	assert.Equal(t, "t2", forced)
	assert.Equal(t, 2, f.count("/login"))
}

func TestTokenInvalidate(t *testing.T) {
	f := newFakeAuthServer(t, func(string, map[string]string) (int, any) {
		return 200, map[string]any{"token": "abc", "expires_in": 3600}
	})
	p := newTestProvider(f, Credentials{Email: "svc@b.test", Password: "pw"}, &fakeClock{now: time.Now()})

	_, err := p.Token(context.Background(), TokenOptions{})
	require.NoError(t, err)
	p.Invalidate()
	_, err = p.Token(context.Background(), TokenOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, f.count("/login"))
}

func TestTokenClientCredentialsUseCandidateList(t *testing.T) {
	f := newFakeAuthServer(t, func(path string, body map[string]string) (int, any) {
		switch path {
		case "/login":
			return http.StatusNotFound, map[string]any{"message": "nope"}
		case "/api/v1/login":
			return http.StatusUnauthorized, nil
		case "/api/v1/auth/login":
			assert.Equal(t, "id-1", body["client_id"])
			assert.Equal(t, "secret-1", body["client_secret"])
			return 200, map[string]any{"access_token": "cc-token", "expires_in": 120}
		}
		return http.StatusNotFound, nil
	})
	clock := &fakeClock{now: time.Now()}
	p := newTestProvider(f, Credentials{ClientID: "id-1", ClientSecret: "secret-1"}, clock)

	token, err := p.Token(context.Background(), TokenOptions{})
	require.NoError(t, err)
	assert.Equal(t, "cc-token", token)
	assert.Zero(t, f.count("/api/login"))
	assert.Equal(t, clock.Now().Add(60*time.Second), cachedCredential(p.cache).ExpiresAt)
}

func TestTokenCandidate500StopsSearch(t *testing.T) {
	f := newFakeAuthServer(t, func(path string, body map[string]string) (int, any) {
		return http.StatusInternalServerError, map[string]any{"error": "invalid"}
	})
	p := newTestProvider(f, Credentials{}, &fakeClock{now: time.Now()})

	_, err := p.Token(context.Background(), TokenOptions{ClientID: "id", ClientSecret: "secret"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 1, int(f.total.Load()))
}

func TestTokenCandidatesExhausted(t *testing.T) {
	f := newFakeAuthServer(t, func(string, map[string]string) (int, any) {
		return 200, map[string]any{"message": "ok but no token"}
	})
	p := newTestProvider(f, Credentials{ClientID: "id", ClientSecret: "secret"}, &fakeClock{now: time.Now()})

	_, err := p.Token(context.Background(), TokenOptions{})
	assert.ErrorIs(t, err, ErrUnableToObtainToken)
	assert.Equal(t, 4, int(f.total.Load()))
}

func TestTokenEmailLoginFallsBackWhenNoToken(t *testing.T) {
	var loginCalls atomic.Int32
	f := newFakeAuthServer(t, func(path string, body map[string]string) (int, any) {
		if path == "/login" && loginCalls.Add(1) == 1 {
			return 200, map[string]any{"message": "welcome"}
		}
		if path == "/api/v1/login" {
			return 200, map[string]any{"token": "fallback-token"}
		}
		return http.StatusNotFound, nil
	})
	p := newTestProvider(f, Credentials{}, &fakeClock{now: time.Now()})

	token, err := p.Token(context.Background(), TokenOptions{Email: "a@b.test", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "fallback-token", token)
}

func TestTokenEmailLoginRejected(t *testing.T) {
	f := newFakeAuthServer(t, func(string, map[string]string) (int, any) {
		return http.StatusInternalServerError, map[string]any{"error": "bad password"}
	})
	p := newTestProvider(f, Credentials{}, &fakeClock{now: time.Now()})

	_, err := p.Token(context.Background(), TokenOptions{Email: "a@b.test", Password: "bad"})
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusInternalServerError, authErr.Status)
}

func TestTokenLifetimeFromJWT(t *testing.T) {
	clock := &fakeClock{now: time.Now().Truncate(time.Second)}
	jwtToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": clock.Now().Add(2 * time.Hour).Unix(),
	}).SignedString([]byte("upstream-secret"))
	require.NoError(t, err)

	f := newFakeAuthServer(t, func(string, map[string]string) (int, any) {
		return 200, map[string]any{"token": jwtToken}
	})
	p := newTestProvider(f, Credentials{Email: "svc@b.test", Password: "pw"}, clock)

	_, err = p.Token(context.Background(), TokenOptions{})
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(2*time.Hour-ExpirySafetyMargin), cachedCredential(p.cache).ExpiresAt)
}

func TestTokenDefaultLifetime(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	f := newFakeAuthServer(t, func(string, map[string]string) (int, any) {
		return 200, map[string]any{"token": "opaque"}
	})
	p := newTestProvider(f, Credentials{Email: "svc@b.test", Password: "pw"}, clock)

	_, err := p.Token(context.Background(), TokenOptions{})
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(DefaultTokenLifetime-ExpirySafetyMargin), cachedCredential(p.cache).ExpiresAt)
}

func TestTokenConcurrentMissesShareOneLogin(t *testing.T) {
	release := make(chan struct{})
	f := newFakeAuthServer(t, func(string, map[string]string) (int, any) {
		<-release
		return 200, map[string]any{"token": "shared", "expires_in": 3600}
	})
	p := newTestProvider(f, Credentials{Email: "svc@b.test", Password: "pw"}, &fakeClock{now: time.Now()})

	const callers = 8
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], _ = p.Token(context.Background(), TokenOptions{})
		}(i)
	}

	// let every caller reach the shared flight before the login answers
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, tok := range tokens {
		assert.Equal(t, "shared", tok)
	}
	assert.Equal(t, 1, f.count("/login"))
}

func TestTokenConcurrentCallersWithDifferentPasswords(t *testing.T) {
	release := make(chan struct{})
	f := newFakeAuthServer(t, func(_ string, body map[string]string) (int, any) {
		<-release
		return 200, map[string]any{"token": "tok-" + body["password"], "expires_in": 3600}
	})
	p := newTestProvider(f, Credentials{}, &fakeClock{now: time.Now()})

	passwords := []string{"alpha", "beta"}
	tokens := make([]string, len(passwords))
	var wg sync.WaitGroup
	for i, pw := range passwords {
		wg.Add(1)
		go func(i int, pw string) {
			defer wg.Done()
			tokens[i], _ = p.Token(context.Background(), TokenOptions{Email: "a@b.test", Password: pw})
		}(i, pw)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, "tok-alpha", tokens[0])
	assert.Equal(t, "tok-beta", tokens[1])
	assert.Equal(t, 2, f.count("/login"))
}

func TestTokenOptionsKeyCoversSecrets(t *testing.T) {
	base := TokenOptions{Email: "a@b.test", Password: "alpha", ClientID: "id", ClientSecret: "s1"}

	variants := []TokenOptions{
		{Email: "a@b.test", Password: "beta", ClientID: "id", ClientSecret: "s1"},
		{Email: "a@b.test", Password: "alpha", ClientID: "id", ClientSecret: "s2"},
		{Email: "a@b.test", Password: "alpha", ClientID: "id", ClientSecret: "s1", Force: true},
		// field boundaries are unambiguous
		{Email: "a@b.testalpha", ClientID: "id", ClientSecret: "s1"},
	}
	for _, v := range variants {
		assert.NotEqual(t, base.key(), v.key(), "%+v", v)
	}
	assert.Equal(t, base.key(), base.key())
	assert.NotContains(t, base.key(), "alpha")
	assert.NotContains(t, base.key(), "s1")
}
