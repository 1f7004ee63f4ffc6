package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"linkpage/internal/event"
	"linkpage/internal/validation"
)

// wellKnownPath is the fixed location of a domain's identity mapping.
const wellKnownPath = "/.well-known/nostr.json"

// maxWellKnownBody bounds how much of a response we read. Identity
// documents are tiny; anything larger is not one.
const maxWellKnownBody = 64 << 10

// wellKnownClient performs verified-identity lookups. Every failure mode
// (timeout, non-200, malformed body, wrong key shape) is a miss.
type wellKnownClient struct {
	client *http.Client
	logger *slog.Logger

	// base overrides the https://<domain> target and allowPrivate skips
	// the private-host guard. Tests only.
	base         string
	allowPrivate bool
}

func newWellKnownClient(timeout time.Duration, logger *slog.Logger) *wellKnownClient {
	return &wellKnownClient{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
		logger: logger,
	}
}

// resolve returns the hex key registered for local@domain, or "". The
// local part is matched case-sensitively and the key must be exactly
// 64 lowercase hex characters.
func (w *wellKnownClient) resolve(ctx context.Context, local, domain string) string {
	if local == "" || !validation.ValidateIdentityDomain(domain) {
		return ""
	}
	// Identity domains are user-supplied; refuse to probe internal hosts.
	if !w.allowPrivate {
		if private, err := validation.IsPrivateHost(domain); private {
			w.logger.Debug("refusing identity lookup on private host", "domain", domain, "error", err)
			return ""
		}
	}

	target := "https://" + domain
	if w.base != "" {
		target = w.base
	}
	target += wellKnownPath + "?name=" + url.QueryEscape(local)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "linkpage/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Debug("identity lookup failed", "domain", domain, "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		w.logger.Debug("identity lookup refused", "domain", domain, "status", resp.StatusCode)
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWellKnownBody))
	if err != nil {
		return ""
	}
	var doc struct {
		Names map[string]string `json:"names"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		w.logger.Debug("identity document malformed", "domain", domain, "error", err)
		return ""
	}

	pub := doc.Names[local]
	if !event.IsHexKey(pub) {
		return ""
	}
	return pub
}
