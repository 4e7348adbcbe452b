package github

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prsignal-dev/prsignal/pkg/cache"
)

// Authentication constants.
const (
	maxTokenLength     = 100
	minTokenLength     = 40
	classicTokenLength = 40
	maxAppID           = 999999999
	filePermReadOnly   = 0o400
	filePermOwnerRW    = 0o600
)

// generateJWT generates a JWT token for GitHub App authentication.
func generateJWT(appID string, privateKey []byte) (string, error) {
	block, _ := pem.Decode(privateKey)
	if block == nil {
		return "", errors.New("failed to parse PEM block containing the private key")
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		// Try PKCS8 format if PKCS1 fails
		parsedKey, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return "", fmt.Errorf("failed to parse private key: %w", err)
		}
		var ok bool
		key, ok = parsedKey.(*rsa.PrivateKey)
		if !ok {
			return "", errors.New("private key is not RSA")
		}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(10 * time.Minute).Unix(), // GitHub App JWTs expire after 10 minutes max
		"iss": appID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(key)
}

// newAppAuthClient creates a GitHub client with App authentication.
func newAppAuthClient(cfg Config) (*Client, error) {
	appID, privateKey, err := resolveAppCredentials(cfg.AppID, cfg.AppKeyPath)
	if err != nil {
		return nil, err
	}
	if err := validateAppID(appID); err != nil {
		return nil, err
	}

	jwtToken, err := generateJWT(appID, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to generate JWT: %w", err)
	}
	slog.Info("generated JWT for GitHub App", "app_id", appID)

	return &Client{
		httpClient:  &http.Client{Timeout: cfg.HTTPTimeout},
		cache:       cache.New(cfg.CacheTTL),
		userCache:   newUserCache(),
		baseURL:     apiBase,
		token:       jwtToken,
		isAppAuth:   true,
		appID:       appID,
		privateKey:  privateKey,
		org:         cfg.Org,
		tokenExpiry: time.Now().Add(9 * time.Minute), // refresh 1 minute before expiry
	}, nil
}

// newPersonalTokenClient creates a GitHub client with personal token authentication.
func newPersonalTokenClient(ctx context.Context, cfg Config) (*Client, error) {
	token := cfg.Token
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token == "" {
		cmd := exec.CommandContext(ctx, "gh", "auth", "token")
		output, err := cmd.Output()
		if err != nil {
			return nil, fmt.Errorf("failed to get GitHub token: %w", err)
		}
		token = strings.TrimSpace(string(output))
	}

	if err := validateToken(token); err != nil {
		return nil, err
	}

	slog.Info("using personal access token authentication")

	return &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		cache:      cache.New(cfg.CacheTTL),
		userCache:  newUserCache(),
		baseURL:    apiBase,
		token:      token,
		org:        cfg.Org,
	}, nil
}

// resolveAppCredentials resolves app credentials from flags or environment variables.
func resolveAppCredentials(appID, keyPath string) (string, []byte, error) {
	if appID == "" {
		appID = os.Getenv("GITHUB_APP_ID")
	}
	if appID == "" {
		return "", nil, errors.New("GitHub App ID is required: use --app-id or set GITHUB_APP_ID")
	}

	var privateKey []byte
	switch {
	case keyPath != "":
		key, err := readPrivateKeyFile(keyPath)
		if err != nil {
			return "", nil, err
		}
		privateKey = key
	case os.Getenv("GITHUB_APP_KEY") != "":
		privateKey = []byte(os.Getenv("GITHUB_APP_KEY"))
	case os.Getenv("GITHUB_APP_KEY_PATH") != "":
		key, err := readPrivateKeyFile(os.Getenv("GITHUB_APP_KEY_PATH"))
		if err != nil {
			return "", nil, err
		}
		privateKey = key
	default:
		return "", nil, errors.New("GitHub App private key is required: use --app-key-path, " +
			"set GITHUB_APP_KEY (key content), or GITHUB_APP_KEY_PATH (file path)")
	}

	if !bytes.Contains(privateKey, []byte("BEGIN RSA PRIVATE KEY")) &&
		!bytes.Contains(privateKey, []byte("BEGIN PRIVATE KEY")) {
		return "", nil, errors.New("private key does not appear to be a valid PEM private key")
	}

	return appID, privateKey, nil
}

// validateAppID validates the GitHub App ID.
func validateAppID(appID string) error {
	appIDNum, err := strconv.Atoi(appID)
	if err != nil {
		return fmt.Errorf("GITHUB_APP_ID must be numeric: %w", err)
	}
	if appIDNum <= 0 || appIDNum > maxAppID {
		return errors.New("GITHUB_APP_ID out of valid range")
	}
	return nil
}

// readPrivateKeyFile reads and validates a private key file.
func readPrivateKeyFile(keyPath string) ([]byte, error) {
	cleanPath := filepath.Clean(keyPath)
	if !filepath.IsAbs(cleanPath) {
		return nil, errors.New("private key path must be absolute")
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("cannot access private key file: %w", err)
	}
	if fileInfo.IsDir() {
		return nil, errors.New("private key path must be a file, not a directory")
	}

	// Must be exactly 0600 or 0400
	perm := fileInfo.Mode().Perm()
	if perm != filePermOwnerRW && perm != filePermReadOnly {
		return nil, fmt.Errorf("private key file has insecure permissions %04o (must be 0600 or 0400)", perm)
	}

	return os.ReadFile(cleanPath)
}

// validateToken validates a GitHub personal access token.
func validateToken(token string) error {
	if token == "" {
		return errors.New("no GitHub token found")
	}
	if len(token) > maxTokenLength || len(token) < minTokenLength {
		return errors.New("invalid token length")
	}

	validPrefixes := []string{"ghp_", "gho_", "ghu_", "ghs_", "ghr_"}
	for _, prefix := range validPrefixes {
		if strings.HasPrefix(token, prefix) {
			return nil
		}
	}

	// Could be a classic token (40 hex chars)
	if len(token) != classicTokenLength {
		return errors.New("invalid token format")
	}
	for _, r := range token {
		if (r < 'a' || r > 'f') && (r < '0' || r > '9') {
			return errors.New("invalid classic token format")
		}
	}

	return nil
}

// refreshJWTIfNeeded regenerates the app JWT when it is close to expiry.
func (c *Client) refreshJWTIfNeeded() error {
	if !c.isAppAuth {
		return nil
	}

	c.tokenMutex.RLock()
	needsRefresh := time.Now().After(c.tokenExpiry)
	c.tokenMutex.RUnlock()
	if !needsRefresh {
		return nil
	}

	c.tokenMutex.Lock()
	defer c.tokenMutex.Unlock()
	if time.Now().Before(c.tokenExpiry) {
		return nil
	}

	newToken, err := generateJWT(c.appID, c.privateKey)
	if err != nil {
		return fmt.Errorf("failed to generate JWT for refresh: %w", err)
	}

	c.token = newToken
	c.tokenExpiry = time.Now().Add(9 * time.Minute)
	slog.Info("refreshed GitHub App JWT")
	return nil
}

// installation mirrors the app installation listing response.
type installation struct {
	Account struct {
		Login string `json:"login"`
		Type  string `json:"type"`
	} `json:"account"`
	ID int `json:"id"`
}

// installationToken returns a valid installation access token for the
// configured organization, creating or refreshing one as needed.
func (c *Client) installationToken(ctx context.Context) (string, error) {
	if !c.isAppAuth {
		c.tokenMutex.RLock()
		defer c.tokenMutex.RUnlock()
		return c.token, nil
	}
	if c.org == "" {
		return "", errors.New("organization is required for installation tokens")
	}

	c.tokenMutex.RLock()
	if c.installToken != "" && time.Now().Before(c.installExpiry) {
		token := c.installToken
		c.tokenMutex.RUnlock()
		return token, nil
	}
	c.tokenMutex.RUnlock()

	if err := c.refreshJWTIfNeeded(); err != nil {
		return "", fmt.Errorf("failed to refresh JWT: %w", err)
	}

	c.tokenMutex.Lock()
	defer c.tokenMutex.Unlock()

	if c.installToken != "" && time.Now().Before(c.installExpiry) {
		return c.installToken, nil
	}

	if c.installID == 0 {
		id, err := c.findInstallationID(ctx)
		if err != nil {
			return "", err
		}
		c.installID = id
	}

	slog.Info("creating installation access token", "org", c.org, "installation_id", c.installID)
	apiURL := fmt.Sprintf("%s/app/installations/%d/access_tokens", c.baseURL, c.installID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get installation token: %w", err)
	}
	defer drainAndCloseBody(resp.Body)

	if resp.StatusCode != http.StatusCreated {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return "", fmt.Errorf("failed to create installation token (status %d)", resp.StatusCode)
		}
		return "", fmt.Errorf("failed to create installation token (status %d): %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		ExpiresAt time.Time `json:"expires_at"`
		Token     string    `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.Token == "" {
		return "", errors.New("received empty installation token")
	}

	// Expire 5 minutes early for safety.
	c.installToken = tokenResp.Token
	c.installExpiry = tokenResp.ExpiresAt.Add(-5 * time.Minute)
	return tokenResp.Token, nil
}

// findInstallationID lists app installations and picks the configured org's.
// Caller holds the write lock.
func (c *Client) findInstallationID(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/app/installations", http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to list installations: %w", err)
	}
	defer drainAndCloseBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("failed to list installations (status %d)", resp.StatusCode)
	}

	var installations []installation
	if err := json.NewDecoder(resp.Body).Decode(&installations); err != nil {
		return 0, fmt.Errorf("failed to decode installations: %w", err)
	}

	for _, inst := range installations {
		if strings.EqualFold(inst.Account.Login, c.org) {
			slog.Info("found app installation", "org", inst.Account.Login, "installation_id", inst.ID)
			return inst.ID, nil
		}
	}
	return 0, fmt.Errorf("no installation found for organization %s (is the app installed?)", c.org)
}
