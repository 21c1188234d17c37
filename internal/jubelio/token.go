package jubelio

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"storefront-gateway/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// StaticKeyLifetime is how long a configured API key stays cached
	StaticKeyLifetime = 24 * time.Hour
	// DefaultTokenLifetime applies when a login response declares no expiry
	DefaultTokenLifetime = time.Hour
	// ExpirySafetyMargin is subtracted from every declared token lifetime
	ExpirySafetyMargin = 60 * time.Second
)

// Credentials are the configured credential sources, tried in field order
type Credentials struct {
	APIKey       string
	ClientID     string
	ClientSecret string
	Email        string
	Password     string
}

// TokenOptions carries caller-supplied credentials for a single lookup
type TokenOptions struct {
	Email        string
	Password     string
	ClientID     string
	ClientSecret string
	Force        bool
}

// explicit reports whether the caller supplied a usable credential pair
func (o TokenOptions) explicit() bool {
	return (o.ClientID != "" && o.ClientSecret != "") || (o.Email != "" && o.Password != "")
}

// key identifies a flight. Secrets are hashed so they never sit in the
// singleflight map.
func (o TokenOptions) key() string {
	h := sha256.New()
	for _, field := range []string{strconv.FormatBool(o.Force), o.ClientID, o.ClientSecret, o.Email, o.Password} {
		h.Write([]byte(strconv.Itoa(len(field))))
		h.Write([]byte{':'})
		h.Write([]byte(field))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// TokenProvider resolves upstream bearer tokens and caches them in a CredentialCache.
// Concurrent misses share one acquisition.
type TokenProvider struct {
	client *Client
	creds  Credentials
	cache  *CredentialCache
	group  singleflight.Group
	logger *zap.Logger
	now    func() time.Time
}

// NewTokenProvider creates a TokenProvider backed by cache
func NewTokenProvider(client *Client, creds Credentials, cache *CredentialCache, logger *zap.Logger) *TokenProvider {
	return &TokenProvider{
		client: client,
		creds:  creds,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// Token returns a usable bearer token.
//
// Resolution order: cached token (unless Force), static API key, client
// credentials from opts, email/password from opts, configured client
// credentials, configured email/password. With none available it fails
// with ErrNoCredentialsConfigured.
func (p *TokenProvider) Token(ctx context.Context, opts TokenOptions) (string, error) {
	if !opts.Force {
		if token, ok := p.cache.Get(p.now()); ok {
			return token, nil
		}
	}

	// the shared acquisition must not die with whichever caller started it
	shared := context.WithoutCancel(ctx)
	v, err, _ := p.group.Do(opts.key(), func() (any, error) {
		// a token stored meanwhile may belong to other credentials
		if !opts.Force && !opts.explicit() {
			if token, ok := p.cache.Get(p.now()); ok {
				return token, nil
			}
		}
		return p.acquire(shared, opts)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate forgets the cached token
func (p *TokenProvider) Invalidate() {
	p.cache.Invalidate()
}

func (p *TokenProvider) acquire(ctx context.Context, opts TokenOptions) (string, error) {
	if p.creds.APIKey != "" {
		p.store(p.creds.APIKey, StaticKeyLifetime)
		return p.creds.APIKey, nil
	}

	switch {
	case opts.ClientID != "" && opts.ClientSecret != "":
		return p.requestTokenWithBody(ctx, map[string]string{
			"client_id":     opts.ClientID,
			"client_secret": opts.ClientSecret,
		})
	case opts.Email != "" && opts.Password != "":
		return p.authenticate(ctx, opts.Email, opts.Password)
	case p.creds.ClientID != "" && p.creds.ClientSecret != "":
		return p.requestTokenWithBody(ctx, map[string]string{
			"client_id":     p.creds.ClientID,
			"client_secret": p.creds.ClientSecret,
		})
	case p.creds.Email != "" && p.creds.Password != "":
		return p.authenticate(ctx, p.creds.Email, p.creds.Password)
	}

	return "", ErrNoCredentialsConfigured
}

// authenticate uses the official login URL and falls back to the candidate
// list when the response carries no token.
func (p *TokenProvider) authenticate(ctx context.Context, email, password string) (string, error) {
	payload, err := p.client.AuthenticateWithEmailPassword(ctx, email, password)
	if err != nil {
		return "", err
	}

	if token, lifetime := p.parseLogin(payload); token != "" {
		p.store(token, lifetime-ExpirySafetyMargin)
		return token, nil
	}

	p.logger.Debug("Login response carried no token, trying fallback endpoints")
	return p.requestTokenWithBody(ctx, map[string]string{
		"email":    email,
		"password": password,
	})
}

// requestTokenWithBody tries every login candidate in order. An upstream 500
// means invalid credentials and stops the search.
func (p *TokenProvider) requestTokenWithBody(ctx context.Context, body map[string]string) (string, error) {
	for _, candidate := range p.client.loginCandidates() {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		status, payload, err := p.client.postLogin(ctx, candidate, body)
		if err != nil {
			p.logger.Debug("Login candidate unreachable", zap.String("url", candidate), zap.Error(err))
			continue
		}
		if status == http.StatusInternalServerError {
			return "", &AuthError{Status: status, Raw: payload}
		}
		if status < 200 || status > 299 {
			p.logger.Debug("Login candidate rejected request", zap.String("url", candidate), zap.Int("status", status))
			continue
		}

		if token, lifetime := p.parseLogin(payload); token != "" {
			p.store(token, lifetime-ExpirySafetyMargin)
			return token, nil
		}
	}

	return "", ErrUnableToObtainToken
}

func (p *TokenProvider) store(token string, lifetime time.Duration) {
	p.cache.Set(domain.Credential{
		Token:     token,
		ExpiresAt: p.now().Add(lifetime),
	})
}

// parseLogin finds the token and its lifetime in a login response.
// Both may sit at the top level or under "data".
func (p *TokenProvider) parseLogin(payload any) (string, time.Duration) {
	obj, _ := payload.(map[string]any)
	if obj == nil {
		return "", 0
	}
	nested, _ := obj["data"].(map[string]any)

	var token string
	for _, candidate := range []any{obj["token"], nested["token"], obj["access_token"], nested["access_token"]} {
		if s, ok := candidate.(string); ok && s != "" {
			token = s
			break
		}
	}
	if token == "" {
		return "", 0
	}

	for _, candidate := range []any{obj["expires_in"], nested["expires_in"]} {
		if secs, ok := domain.Float(candidate); ok && secs > 0 {
			return token, time.Duration(secs * float64(time.Second))
		}
	}
	return token, p.jwtLifetime(token)
}

// jwtLifetime reads the unverified exp claim when the token is a JWT
func (p *TokenProvider) jwtLifetime(token string) time.Duration {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return DefaultTokenLifetime
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return DefaultTokenLifetime
	}
	if remaining := exp.Sub(p.now()); remaining > 0 {
		return remaining
	}
	return 0
}
