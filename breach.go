package authkit

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// BreachChecker reports whether a password appears in a known breach
// corpus. Implementations must fail open: availability problems return
// (false, error) and never block the caller's flow.
type BreachChecker interface {
	IsBreached(ctx context.Context, password string) (bool, error)
}

// hibpChecker queries the Have I Been Pwned range API using the
// k-anonymity scheme: only the first five hex characters of the SHA-1
// digest ever leave the process.
type hibpChecker struct {
	cfg    BreachCheckConfig
	client *http.Client
}

func newHIBPChecker(cfg BreachCheckConfig, client *http.Client) *hibpChecker {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &hibpChecker{cfg: cfg, client: client}
}

// IsBreached describes the isbreached operation and its observable behavior.
//
// IsBreached may return an error when input validation, dependency calls, or security checks fail.
// IsBreached does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *hibpChecker) IsBreached(ctx context.Context, password string) (bool, error) {
	digest := sha1.Sum([]byte(password))
	full := strings.ToUpper(hex.EncodeToString(digest[:]))
	prefix, suffix := full[:5], full[5:]

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.cfg.BaseURL+prefix, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBreachCheckUnavailable, err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBreachCheckUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: status %d", ErrBreachCheckUnavailable, resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		candidate, _, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(candidate), suffix) {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrBreachCheckUnavailable, err)
	}

	return false, nil
}

// noopBreachChecker is used when breach checking is disabled.
type noopBreachChecker struct{}

func (noopBreachChecker) IsBreached(context.Context, string) (bool, error) {
	return false, nil
}
