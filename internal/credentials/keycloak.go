package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gogotex/todo-api/internal/apperr"
	"github.com/gogotex/todo-api/pkg/logger"
)

// KeycloakConfig addresses one realm. The admin client needs a service account
// with the realm-management manage-users role.
type KeycloakConfig struct {
	URL               string
	Realm             string
	ClientID          string
	ClientSecret      string
	AdminClientID     string
	AdminClientSecret string
}

// Keycloak implements Service with the Keycloak admin REST API, and password
// sign-in through the realm's token endpoint.
type Keycloak struct {
	cfg    KeycloakConfig
	client *http.Client

	mu         sync.Mutex
	adminToken string
	adminExp   time.Time
}

func NewKeycloak(cfg KeycloakConfig, client *http.Client) *Keycloak {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &Keycloak{cfg: cfg, client: client}
}

// Issuer is the OIDC issuer URL of the realm.
func (k *Keycloak) Issuer() string {
	return k.cfg.URL + "/realms/" + k.cfg.Realm
}

func (k *Keycloak) tokenURL() string {
	return k.Issuer() + "/protocol/openid-connect/token"
}

func (k *Keycloak) adminURL(parts ...string) string {
	return k.cfg.URL + "/admin/realms/" + k.cfg.Realm + "/" + path.Join(parts...)
}

// TokenResponse is the subset of the token endpoint response we use.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	IDToken          string `json:"id_token"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
}

type keycloakError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorMessage     string `json:"errorMessage"`
}

func (e keycloakError) message(status int) string {
	switch {
	case e.ErrorMessage != "":
		return e.ErrorMessage
	case e.ErrorDescription != "":
		return e.ErrorDescription
	case e.Error != "":
		return e.Error
	}
	return fmt.Sprintf("identity server returned %d", status)
}

func (k *Keycloak) postForm(ctx context.Context, endpoint string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return k.client.Do(req)
}

// tokenError is a non-200 answer from the token endpoint.
type tokenError struct {
	status int
	body   keycloakError
}

func (e *tokenError) Error() string {
	return fmt.Sprintf("token endpoint returned %d: %s", e.status, e.body.message(e.status))
}

// requestToken posts a grant to the token endpoint. Rejections come back as
// *tokenError; only user-facing grants turn them into credential errors.
func (k *Keycloak) requestToken(ctx context.Context, form url.Values) (*TokenResponse, error) {
	resp, err := k.postForm(ctx, k.tokenURL(), form)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		terr := &tokenError{status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(&terr.body)
		return nil, terr
	}
	var tr TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// userGrant runs a password or refresh_token grant. A rejected grant means the
// caller's credentials are wrong, not that the service is misconfigured.
func (k *Keycloak) userGrant(ctx context.Context, form url.Values) (*TokenResponse, error) {
	tr, err := k.requestToken(ctx, form)
	var terr *tokenError
	if errors.As(err, &terr) && (terr.status == http.StatusUnauthorized || terr.body.Error == "invalid_grant") {
		return nil, invalidCredential()
	}
	return tr, err
}

// admin returns a cached service-account token, renewed shortly before expiry.
func (k *Keycloak) admin(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.adminToken != "" && time.Now().Before(k.adminExp) {
		return k.adminToken, nil
	}
	tr, err := k.requestToken(ctx, url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {k.cfg.AdminClientID},
		"client_secret": {k.cfg.AdminClientSecret},
	})
	if err != nil {
		return "", fmt.Errorf("keycloak admin token: %w", err)
	}
	k.adminToken = tr.AccessToken
	k.adminExp = time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - 10*time.Second)
	return k.adminToken, nil
}

// do sends an admin API request; body is JSON-encoded when non-nil.
func (k *Keycloak) do(ctx context.Context, method, endpoint string, body any) (*http.Response, error) {
	token, err := k.admin(ctx)
	if err != nil {
		return nil, err
	}
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return k.client.Do(req)
}

// check maps a non-2xx admin response to a credential error and closes it.
func check(resp *http.Response, key string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()
	var kerr keycloakError
	_ = json.NewDecoder(resp.Body).Decode(&kerr)
	switch resp.StatusCode {
	case http.StatusNotFound:
		return userNotFound(key)
	case http.StatusConflict:
		return emailExists()
	}
	logger.Warnf("keycloak admin request failed: status=%d message=%s", resp.StatusCode, kerr.message(resp.StatusCode))
	return apperr.Credential(CodeInternal, kerr.message(resp.StatusCode), http.StatusBadRequest)
}

type keycloakUser struct {
	ID            string               `json:"id,omitempty"`
	Username      string               `json:"username,omitempty"`
	Email         string               `json:"email,omitempty"`
	FirstName     string               `json:"firstName,omitempty"`
	Enabled       *bool                `json:"enabled,omitempty"`
	EmailVerified *bool                `json:"emailVerified,omitempty"`
	Credentials   []keycloakCredential `json:"credentials,omitempty"`
	NotBefore     int64                `json:"notBefore,omitempty"`
}

type keycloakCredential struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

func (u keycloakUser) record() *Record {
	r := &Record{UID: u.ID, Email: u.Email, DisplayName: u.FirstName}
	if u.Enabled != nil {
		r.Disabled = !*u.Enabled
	}
	if u.NotBefore > 0 {
		t := time.Unix(u.NotBefore, 0).UTC()
		r.TokensValidAfter = &t
	}
	return r
}

func boolPtr(b bool) *bool { return &b }

func (k *Keycloak) Create(ctx context.Context, req CreateRequest) (string, error) {
	if len(req.Password) < MinPasswordLength {
		return "", invalidPassword()
	}
	email := normalizeEmail(req.Email)
	resp, err := k.do(ctx, http.MethodPost, k.adminURL("users"), keycloakUser{
		Username:      email,
		Email:         email,
		FirstName:     req.DisplayName,
		Enabled:       boolPtr(true),
		EmailVerified: boolPtr(false),
		Credentials:   []keycloakCredential{{Type: "password", Value: req.Password}},
	})
	if err != nil {
		return "", err
	}
	if err := check(resp, email); err != nil {
		return "", err
	}
	resp.Body.Close()
	// The new id is the last segment of the Location header.
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", fmt.Errorf("keycloak create user: missing Location header")
	}
	return path.Base(loc), nil
}

func (k *Keycloak) Get(ctx context.Context, uid string) (*Record, error) {
	if uid == "" {
		return nil, userNotFound(uid)
	}
	resp, err := k.do(ctx, http.MethodGet, k.adminURL("users", url.PathEscape(uid)), nil)
	if err != nil {
		return nil, err
	}
	if err := check(resp, uid); err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var u keycloakUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, err
	}
	return u.record(), nil
}

func (k *Keycloak) Delete(ctx context.Context, uid string) error {
	resp, err := k.do(ctx, http.MethodDelete, k.adminURL("users", url.PathEscape(uid)), nil)
	if err != nil {
		return err
	}
	if err := check(resp, uid); err != nil {
		return err
	}
	return resp.Body.Close()
}

func (k *Keycloak) Update(ctx context.Context, uid string, req UpdateRequest) error {
	var body keycloakUser
	changed := false
	if req.Email != nil {
		body.Email = normalizeEmail(*req.Email)
		body.Username = body.Email
		changed = true
	}
	if req.DisplayName != nil {
		body.FirstName = *req.DisplayName
		changed = true
	}
	if req.Disabled != nil {
		body.Enabled = boolPtr(!*req.Disabled)
		changed = true
	}
	if changed {
		resp, err := k.do(ctx, http.MethodPut, k.adminURL("users", url.PathEscape(uid)), body)
		if err != nil {
			return err
		}
		if err := check(resp, uid); err != nil {
			return err
		}
		resp.Body.Close()
	}
	if req.Password != nil {
		if len(*req.Password) < MinPasswordLength {
			return invalidPassword()
		}
		resp, err := k.do(ctx, http.MethodPut, k.adminURL("users", url.PathEscape(uid), "reset-password"),
			keycloakCredential{Type: "password", Value: *req.Password})
		if err != nil {
			return err
		}
		if err := check(resp, uid); err != nil {
			return err
		}
		resp.Body.Close()
	}
	return nil
}

func (k *Keycloak) GetByEmail(ctx context.Context, email string) (*Record, error) {
	q := url.Values{"email": {normalizeEmail(email)}, "exact": {"true"}}
	resp, err := k.do(ctx, http.MethodGet, k.adminURL("users")+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if err := check(resp, email); err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var users []keycloakUser
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, userNotFound(email)
	}
	return users[0].record(), nil
}

// RevokeRefreshTokens ends every session of uid on the identity server.
func (k *Keycloak) RevokeRefreshTokens(ctx context.Context, uid string) error {
	resp, err := k.do(ctx, http.MethodPost, k.adminURL("users", url.PathEscape(uid), "logout"), nil)
	if err != nil {
		return err
	}
	if err := check(resp, uid); err != nil {
		return err
	}
	return resp.Body.Close()
}

// SignIn runs the password grant for the public client.
func (k *Keycloak) SignIn(ctx context.Context, email, password string) (*TokenResponse, error) {
	return k.userGrant(ctx, url.Values{
		"grant_type":    {"password"},
		"client_id":     {k.cfg.ClientID},
		"client_secret": {k.cfg.ClientSecret},
		"username":      {normalizeEmail(email)},
		"password":      {password},
		"scope":         {"openid"},
	})
}

// Refresh exchanges a refresh token for a new token set.
func (k *Keycloak) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return k.userGrant(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {k.cfg.ClientID},
		"client_secret": {k.cfg.ClientSecret},
		"refresh_token": {refreshToken},
	})
}

// SignOut ends the session the refresh token belongs to.
func (k *Keycloak) SignOut(ctx context.Context, refreshToken string) error {
	resp, err := k.postForm(ctx, k.Issuer()+"/protocol/openid-connect/logout", url.Values{
		"client_id":     {k.cfg.ClientID},
		"client_secret": {k.cfg.ClientSecret},
		"refresh_token": {refreshToken},
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("logout endpoint returned %d", resp.StatusCode)
	}
	return nil
}
