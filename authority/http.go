package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/docuflow/authsession"
)

// HTTPConfig configures the HTTP authority client.
type HTTPConfig struct {
	// BaseURL is the authority root, e.g. "https://auth.internal".
	BaseURL string
	// ClientID is the per-installation identifier forwarded with login and
	// refresh for device correlation. Optional.
	ClientID string
	// HTTPClient overrides the transport. Optional.
	HTTPClient *http.Client
	// Timeout is the default bound when the caller's context has no deadline.
	Timeout time.Duration
}

// HTTP talks to the authority over HTTP+JSON:
//
//	POST {base}/auth/login    {"username","password","client_id"}
//	POST {base}/auth/refresh  {"refresh_token","client_id"}
//	GET  {base}/auth/session  Authorization: Bearer <access>
//	GET  {base}/auth/me       Authorization: Bearer <access>
type HTTP struct {
	cfg    HTTPConfig
	base   *url.URL
	client *http.Client
}

// NewHTTP creates the client with sane defaults.
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.New("authority base URL invalid")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &HTTP{cfg: cfg, base: base, client: client}, nil
}

type identityPayload struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles"`
	OrgUnit     string   `json:"org_unit"`
}

type loginResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	User         identityPayload `json:"user"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type validateResponse struct {
	Valid     bool       `json:"valid"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
func (h *HTTP) Login(ctx context.Context, username, password string) (authsession.TokenPair, authsession.Identity, error) {
	body := map[string]string{
		"username":  username,
		"password":  password,
		"client_id": h.cfg.ClientID,
	}

	var out loginResponse
	status, err := h.do(ctx, http.MethodPost, "/auth/login", body, "", &out)
	if err != nil {
		return authsession.TokenPair{}, authsession.Identity{}, err
	}
	switch {
	case status == http.StatusOK:
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return authsession.TokenPair{}, authsession.Identity{}, authsession.ErrInvalidCredentials
	default:
		return authsession.TokenPair{}, authsession.Identity{}, statusError(status)
	}

	if out.AccessToken == "" || out.User.ID == "" {
		return authsession.TokenPair{}, authsession.Identity{},
			fmt.Errorf("%w: login response incomplete", authsession.ErrAuthorityUnavailable)
	}

	return authsession.TokenPair{Access: out.AccessToken, Refresh: out.RefreshToken},
		toIdentity(out.User), nil
}

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
func (h *HTTP) Refresh(ctx context.Context, refreshToken string) (authsession.TokenPair, error) {
	body := map[string]string{
		"refresh_token": refreshToken,
		"client_id":     h.cfg.ClientID,
	}

	var out refreshResponse
	status, err := h.do(ctx, http.MethodPost, "/auth/refresh", body, "", &out)
	if err != nil {
		return authsession.TokenPair{}, err
	}
	switch {
	case status == http.StatusOK:
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return authsession.TokenPair{}, authsession.ErrRefreshRejected
	default:
		return authsession.TokenPair{}, statusError(status)
	}

	if out.AccessToken == "" {
		return authsession.TokenPair{}, fmt.Errorf("%w: refresh response incomplete", authsession.ErrAuthorityUnavailable)
	}
	return authsession.TokenPair{Access: out.AccessToken, Refresh: out.RefreshToken}, nil
}

// Validate describes the validate operation and its observable behavior.
//
// A 401 from the session endpoint is an authoritative "no longer honored",
// reported as Valid=false with a nil error so the caller applies session
// policy rather than transport policy.
func (h *HTTP) Validate(ctx context.Context, accessToken string) (authsession.Validity, error) {
	var out validateResponse
	status, err := h.do(ctx, http.MethodGet, "/auth/session", nil, accessToken, &out)
	if err != nil {
		return authsession.Validity{}, err
	}
	switch {
	case status == http.StatusOK:
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return authsession.Validity{Valid: false}, nil
	default:
		return authsession.Validity{}, statusError(status)
	}

	v := authsession.Validity{Valid: out.Valid}
	if out.ExpiresAt != nil {
		v.ExpiresAt = *out.ExpiresAt
	}
	return v, nil
}

// FetchIdentity describes the fetchidentity operation and its observable behavior.
//
// FetchIdentity may return an error when input validation, dependency calls, or security checks fail.
func (h *HTTP) FetchIdentity(ctx context.Context, accessToken string) (authsession.Identity, error) {
	var out identityPayload
	status, err := h.do(ctx, http.MethodGet, "/auth/me", nil, accessToken, &out)
	if err != nil {
		return authsession.Identity{}, err
	}
	switch {
	case status == http.StatusOK:
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return authsession.Identity{}, authsession.ErrSessionInvalid
	default:
		return authsession.Identity{}, statusError(status)
	}
	if out.ID == "" {
		return authsession.Identity{}, fmt.Errorf("%w: identity response incomplete", authsession.ErrAuthorityUnavailable)
	}
	return toIdentity(out), nil
}

func (h *HTTP) do(ctx context.Context, method, path string, body any, bearer string, out any) (int, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.Timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.base.String()+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", authsession.ErrAuthorityUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK && out != nil {
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("%w: decode response: %v", authsession.ErrAuthorityUnavailable, err)
		}
	}
	return resp.StatusCode, nil
}

func statusError(status int) error {
	return fmt.Errorf("%w: authority returned status %d", authsession.ErrAuthorityUnavailable, status)
}

func toIdentity(p identityPayload) authsession.Identity {
	return authsession.Identity{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Roles:       append([]string(nil), p.Roles...),
		OrgUnit:     p.OrgUnit,
	}
}
