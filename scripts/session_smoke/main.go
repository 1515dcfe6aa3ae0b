// Command session_smoke drives the full credential lifecycle against a
// running instance: authenticate, use, refresh, logout, verify revocation.
// It exits non-zero on the first contract violation, so it can gate deploys.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type step struct {
	Name     string
	Err      error
	Duration time.Duration
}

type client struct {
	base         string
	http         *http.Client
	jwt          string
	refresh      *http.Cookie
	staleRefresh *http.Cookie
}

func main() {
	var (
		base     string
		username string
		password string
		timeout  time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&username, "username", "admin", "Login username")
	flag.StringVar(&password, "password", "Admin@123", "Login password")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	c := &client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"authenticate", func() error { return c.authenticate(username, password) }},
		{"access protected route", c.accessProtected},
		{"refresh rotates credential", c.refreshSession},
		{"old refresh token rejected", c.oldRefreshRejected},
		{"logout", c.logout},
		{"revoked token rejected", c.revokedTokenRejected},
	}

	var results []step
	failed := false
	for _, s := range steps {
		start := time.Now()
		err := s.run()
		results = append(results, step{Name: s.name, Err: err, Duration: time.Since(start)})
		if err != nil {
			failed = true
			break
		}
	}

	printReport(results)
	if failed {
		os.Exit(1)
	}
}

func (c *client) authenticate(username, password string) error {
	body := fmt.Sprintf(`{"username":%q,"password":%q}`, username, password)
	resp, err := c.do(http.MethodPost, "/authenticate", body, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expected 200, got %d", resp.StatusCode)
	}
	jwt, err := readJWT(resp.Body)
	if err != nil {
		return err
	}
	cookie := refreshCookie(resp)
	if cookie == nil {
		return fmt.Errorf("refreshToken cookie not set")
	}
	if !cookie.HttpOnly || cookie.Path != "/" || cookie.MaxAge < 1 {
		return fmt.Errorf("refreshToken cookie attributes wrong: httpOnly=%t path=%q maxAge=%d",
			cookie.HttpOnly, cookie.Path, cookie.MaxAge)
	}
	c.jwt = jwt
	c.refresh = cookie
	return nil
}

func (c *client) accessProtected() error {
	resp, err := c.do(http.MethodGet, "/students", "", c.jwt, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expected 200, got %d", resp.StatusCode)
	}
	return nil
}

func (c *client) refreshSession() error {
	resp, err := c.do(http.MethodPost, "/refresh", "", "", c.refresh)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expected 200, got %d", resp.StatusCode)
	}
	jwt, err := readJWT(resp.Body)
	if err != nil {
		return err
	}
	rotated := refreshCookie(resp)
	if rotated == nil {
		return fmt.Errorf("rotated refreshToken cookie not set")
	}
	if rotated.Value == c.refresh.Value {
		return fmt.Errorf("refresh token was not rotated")
	}

	// Keep the stale cookie around for the next step.
	c.jwt = jwt
	stale := c.refresh
	c.refresh = rotated
	c.staleRefresh = stale
	return nil
}

func (c *client) oldRefreshRejected() error {
	resp, err := c.do(http.MethodPost, "/refresh", "", "", c.staleRefresh)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		return fmt.Errorf("expected 403 for replaced token, got %d", resp.StatusCode)
	}
	return nil
}

func (c *client) logout() error {
	resp, err := c.do(http.MethodPost, "/logout", "", c.jwt, c.refresh)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expected 200, got %d", resp.StatusCode)
	}
	return nil
}

func (c *client) revokedTokenRejected() error {
	resp, err := c.do(http.MethodGet, "/students", "", c.jwt, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		return fmt.Errorf("expected 401 for revoked token, got %d", resp.StatusCode)
	}
	return nil
}

func (c *client) do(method, path, body, bearer string, cookie *http.Cookie) (*http.Response, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return c.http.Do(req)
}

func readJWT(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	var payload struct {
		JWT string `json:"jwt"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if payload.JWT == "" {
		return "", fmt.Errorf("response missing jwt field")
	}
	return payload.JWT, nil
}

func refreshCookie(resp *http.Response) *http.Cookie {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "refreshToken" {
			return cookie
		}
	}
	return nil
}

func printReport(results []step) {
	fmt.Println("Session Lifecycle Smoke")
	fmt.Println("=======================")
	for _, res := range results {
		status := "OK"
		if res.Err != nil {
			status = "FAIL"
		}
		fmt.Printf("[%s] %s (%s)\n", status, res.Name, res.Duration)
		if res.Err != nil {
			fmt.Printf("  %v\n", res.Err)
		}
	}
}
