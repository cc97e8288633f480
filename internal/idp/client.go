// Package idp reads users and group memberships from an Okta-style
// identity provider.
package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PratikDhanave/identity-sync-service/internal/apperr"
	"github.com/PratikDhanave/identity-sync-service/internal/models"
)

// unavailableMessage is all API clients see of an IdP failure; the cause is logged.
const unavailableMessage = "identity provider unavailable"

// maxPages bounds pagination against a server that keeps returning next links.
const maxPages = 1000

// Config holds the connection settings for Client.
type Config struct {
	BaseURL    string
	APIToken   string
	AuthScheme string
	PageLimit  int
}

// Client issues authenticated GETs against the IdP API. It never retries:
// one failed request fails the whole fetch.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient returns a Client. AuthScheme defaults to SSWS.
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "SSWS"
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

// FetchAllUsers returns every user. On failure it returns an empty,
// non-nil slice together with a fetch_failure error: empty never means
// "the IdP has no users".
func (c *Client) FetchAllUsers(ctx context.Context) ([]models.RawUser, error) {
	return c.fetchAll(ctx, "idp.FetchAllUsers", "/api/v1/users")
}

func unavailable(op string, err error) error {
	return apperr.WrapMessage(apperr.KindFetchFailure, op, unavailableMessage, err)
}

// FetchGroupMembers returns the members of groupID, degrading the same way
// as FetchAllUsers.
func (c *Client) FetchGroupMembers(ctx context.Context, groupID string) ([]models.RawUser, error) {
	if groupID == "" {
		return []models.RawUser{}, apperr.InvalidInput("idp.FetchGroupMembers", "group id required")
	}
	return c.fetchAll(ctx, "idp.FetchGroupMembers", "/api/v1/groups/"+url.PathEscape(groupID)+"/users")
}

func (c *Client) fetchAll(ctx context.Context, op, path string) ([]models.RawUser, error) {
	next, err := url.Parse(c.cfg.BaseURL + path)
	if err != nil {
		return []models.RawUser{}, unavailable(op, err)
	}
	if c.cfg.PageLimit > 0 {
		q := next.Query()
		q.Set("limit", strconv.Itoa(c.cfg.PageLimit))
		next.RawQuery = q.Encode()
	}

	all := []models.RawUser{}
	seen := make(map[string]struct{})
	for page := 0; next != nil; page++ {
		if page >= maxPages {
			return []models.RawUser{}, unavailable(op, fmt.Errorf("more than %d pages", maxPages))
		}
		if _, dup := seen[next.String()]; dup {
			return []models.RawUser{}, unavailable(op, fmt.Errorf("pagination loop at %s", next.Redacted()))
		}
		seen[next.String()] = struct{}{}

		users, link, err := c.getPage(ctx, next)
		if err != nil {
			c.logger.ErrorContext(ctx, "idp fetch failed",
				slog.String("op", op),
				slog.Int("page", page),
				slog.String("error", err.Error()),
			)
			return []models.RawUser{}, unavailable(op, err)
		}
		all = append(all, users...)
		next = link
	}

	c.logger.DebugContext(ctx, "idp fetch complete", slog.String("op", op), slog.Int("records", len(all)))
	return all, nil
}

func (c *Client) getPage(ctx context.Context, u *url.URL) ([]models.RawUser, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", c.cfg.AuthScheme+" "+c.cfg.APIToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, nil, fmt.Errorf("GET %s: status %d: %s", u.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var users []models.RawUser
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", u.Path, err)
	}

	return users, nextLink(u, resp.Header), nil
}

// nextLink returns the rel="next" target of the Link headers, resolved
// against the current page URL, or nil on the last page.
func nextLink(current *url.URL, h http.Header) *url.URL {
	for _, header := range h.Values("Link") {
		for _, part := range strings.Split(header, ",") {
			segments := strings.Split(part, ";")
			if len(segments) < 2 {
				continue
			}
			target := strings.TrimSpace(segments[0])
			if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
				continue
			}
			for _, param := range segments[1:] {
				param = strings.ReplaceAll(strings.TrimSpace(param), " ", "")
				if param != `rel="next"` && param != "rel=next" {
					continue
				}
				ref, err := url.Parse(target[1 : len(target)-1])
				if err != nil {
					return nil
				}
				return current.ResolveReference(ref)
			}
		}
	}
	return nil
}
