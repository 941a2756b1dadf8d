package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"spotd/internal/config"
)

// API is the surface the session manager and publisher need from the
// platform. The production implementation is Client; tests substitute
// doubles.
type API interface {
	ValidateSession(ctx context.Context) error
	Login(ctx context.Context, username, password string) error
	SelectChallengeMethod(ctx context.Context, apiPath, method string) error
	SubmitChallengeCode(ctx context.Context, apiPath, code string) error
	SubmitTwoFactor(ctx context.Context, identifier, code string) error
	UploadStory(ctx context.Context, image []byte, caption string) (string, error)
	ExportState() ([]byte, error)
	ImportState(blob []byte) error
	SetDeviceProfile(profile string)
}

// Client is the HTTP implementation of API against the platform's mobile
// endpoints. It is not safe for concurrent use; the session manager and
// publisher serialize access.
type Client struct {
	httpClient *http.Client
	jar        *cookiejar.Jar
	baseURL    *url.URL
	device     string
	username   string
}

// clientState is the serialized session blob: cookies plus the device
// profile they were minted under. The platform binds sessions to devices,
// so restoring one without the other produces immediate login_required.
type clientState struct {
	Device  string            `json:"device"`
	Cookies []json.RawMessage `json:"cookies"`
}

type storedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path"`
	Domain  string    `json:"domain"`
	Expires time.Time `json:"expires"`
	Secure  bool      `json:"secure"`
	HTTP    bool      `json:"http_only"`
}

// NewClient builds a platform client from configuration.
func NewClient(cfg *config.Config) (*Client, error) {
	base, err := url.Parse(cfg.Platform.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse platform base URL: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	timeout := time.Duration(cfg.Platform.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Jar: jar, Timeout: timeout},
		jar:        jar,
		baseURL:    base,
		device:     cfg.Platform.DeviceProfile,
		username:   cfg.Platform.Username,
	}, nil
}

// SetDeviceProfile swaps the user-agent profile sent on every request. The
// session manager uses this to present a current profile before a full
// login when the cached one is rejected as outdated.
func (c *Client) SetDeviceProfile(profile string) {
	if profile != "" {
		c.device = profile
	}
}

// ValidateSession performs the cheapest authenticated read the platform
// offers. A rejection here is classified exactly like any other call.
func (c *Client) ValidateSession(ctx context.Context) error {
	_, err := c.call(ctx, http.MethodGet, "feed/timeline/", nil)
	return err
}

// Login submits credentials for a full authentication.
func (c *Client) Login(ctx context.Context, username, password string) error {
	payload := map[string]string{
		"username":  username,
		"password":  password,
		"device_id": uuid.NewString(),
	}
	_, err := c.call(ctx, http.MethodPost, "accounts/login/", payload)
	return err
}

// SelectChallengeMethod picks a verification delivery method on a pending
// challenge.
func (c *Client) SelectChallengeMethod(ctx context.Context, apiPath, method string) error {
	payload := map[string]string{"choice": method}
	_, err := c.call(ctx, http.MethodPost, strings.TrimPrefix(apiPath, "/"), payload)
	return err
}

// SubmitChallengeCode answers a pending challenge with the delivered code.
func (c *Client) SubmitChallengeCode(ctx context.Context, apiPath, code string) error {
	payload := map[string]string{"security_code": code}
	_, err := c.call(ctx, http.MethodPost, strings.TrimPrefix(apiPath, "/"), payload)
	return err
}

// SubmitTwoFactor answers a two-factor prompt raised during login.
func (c *Client) SubmitTwoFactor(ctx context.Context, identifier, code string) error {
	payload := map[string]string{
		"username":              c.username,
		"two_factor_identifier": identifier,
		"verification_code":     code,
	}
	_, err := c.call(ctx, http.MethodPost, "accounts/two_factor_login/", payload)
	return err
}

// UploadStory posts an image to the account's story and returns the
// platform-assigned media identifier.
func (c *Client) UploadStory(ctx context.Context, image []byte, caption string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("photo", "story.png")
	if err != nil {
		return "", fmt.Errorf("build upload body: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", fmt.Errorf("build upload body: %w", err)
	}
	if caption != "" {
		if err := writer.WriteField("caption", caption); err != nil {
			return "", fmt.Errorf("build upload body: %w", err)
		}
	}
	if err := writer.WriteField("upload_id", uuid.NewString()); err != nil {
		return "", fmt.Errorf("build upload body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("build upload body: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "media/configure_to_story/", writer.FormDataContentType(), &body)
	if err != nil {
		return "", err
	}
	if resp.Media.PK == "" {
		return "", fmt.Errorf("story upload: %w", errNoResult)
	}
	return resp.Media.PK, nil
}

// ExportState serializes the authenticated cookies and device profile.
func (c *Client) ExportState() ([]byte, error) {
	cookies := c.jar.Cookies(c.baseURL)
	state := clientState{Device: c.device}
	for _, cookie := range cookies {
		raw, err := json.Marshal(storedCookie{
			Name:    cookie.Name,
			Value:   cookie.Value,
			Path:    cookie.Path,
			Domain:  cookie.Domain,
			Expires: cookie.Expires,
			Secure:  cookie.Secure,
			HTTP:    cookie.HttpOnly,
		})
		if err != nil {
			return nil, fmt.Errorf("serialize session cookie: %w", err)
		}
		state.Cookies = append(state.Cookies, raw)
	}
	blob, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("serialize session state: %w", err)
	}
	return blob, nil
}

// ImportState restores a previously exported session blob.
func (c *Client) ImportState(blob []byte) error {
	var state clientState
	if err := json.Unmarshal(blob, &state); err != nil {
		return fmt.Errorf("parse session state: %w", err)
	}
	if state.Device != "" {
		c.device = state.Device
	}
	cookies := make([]*http.Cookie, 0, len(state.Cookies))
	for _, raw := range state.Cookies {
		var stored storedCookie
		if err := json.Unmarshal(raw, &stored); err != nil {
			return fmt.Errorf("parse session cookie: %w", err)
		}
		cookies = append(cookies, &http.Cookie{
			Name:     stored.Name,
			Value:    stored.Value,
			Path:     stored.Path,
			Domain:   stored.Domain,
			Expires:  stored.Expires,
			Secure:   stored.Secure,
			HttpOnly: stored.HTTP,
		})
	}
	c.jar.SetCookies(c.baseURL, cookies)
	return nil
}

// apiResponse is the envelope every platform endpoint answers with.
type apiResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	ErrorType string `json:"error_type"`
	Challenge struct {
		APIPath string   `json:"api_path"`
		Methods []string `json:"methods"`
	} `json:"challenge"`
	TwoFactorInfo struct {
		Identifier string `json:"two_factor_identifier"`
	} `json:"two_factor_info"`
	TwoFactorRequired bool `json:"two_factor_required"`
	Media             struct {
		PK string `json:"pk"`
	} `json:"media"`
}

func (c *Client) call(ctx context.Context, method, path string, payload map[string]string) (*apiResponse, error) {
	var body io.Reader
	contentType := ""
	if payload != nil {
		form := url.Values{}
		for key, value := range payload {
			form.Set(key, value)
		}
		body = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}
	return c.do(ctx, method, path, contentType, body)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (*apiResponse, error) {
	endpoint := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build platform request: %w", err)
	}
	req.Header.Set("User-Agent", c.device)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("platform request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read platform response: %w", err)
	}
	var parsed apiResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil && resp.StatusCode < 400 {
			return nil, fmt.Errorf("parse platform response: %w", err)
		}
	}
	if err := c.responseError(resp.StatusCode, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// responseError translates a platform rejection into one of the typed
// errors Classify understands.
func (c *Client) responseError(statusCode int, parsed *apiResponse) error {
	if statusCode == http.StatusTooManyRequests {
		return &throttledError{message: parsed.Message}
	}
	if parsed.TwoFactorRequired || parsed.ErrorType == "two_factor_required" {
		return &TwoFactorRequiredError{Identifier: parsed.TwoFactorInfo.Identifier}
	}
	if parsed.ErrorType == "checkpoint_challenge_required" || parsed.Message == "challenge_required" {
		return &ChallengeRequiredError{
			APIPath: parsed.Challenge.APIPath,
			Methods: parsed.Challenge.Methods,
		}
	}
	lower := strings.ToLower(parsed.Message)
	switch {
	case parsed.ErrorType == "login_required" || lower == "login_required" || strings.Contains(lower, "login required"):
		return &loginRequiredError{message: parsed.Message}
	case strings.Contains(lower, "latest version"):
		return &clientOutdatedError{message: parsed.Message}
	case strings.Contains(lower, "please wait a few minutes"):
		return &throttledError{message: parsed.Message}
	}
	if statusCode >= 400 {
		return &apiError{StatusCode: statusCode, Message: parsed.Message}
	}
	if parsed.Status != "" && parsed.Status != "ok" {
		return &apiError{StatusCode: statusCode, Message: parsed.Message}
	}
	return nil
}
