// Package discord is the REST side of the platform client: entity fetches
// for gateway-event resolution and the live reactor count. All fetches are
// cache-first (redis) and sit behind a shared rate limiter and circuit
// breaker.
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"starboard-bot/internal/models"
	"starboard-bot/internal/redis"
)

const defaultBaseURL = "https://discord.com/api/v10"

var (
	// ErrNotFound covers deleted or never-existing entities (HTTP 404).
	// Routine on the resolution path; callers discard, not retry.
	ErrNotFound = errors.New("discord: entity not found")

	// ErrForbidden covers missing permissions (HTTP 401/403).
	ErrForbidden = errors.New("discord: access denied")

	// ErrCircuitOpen means the breaker is rejecting calls.
	ErrCircuitOpen = errors.New("discord: circuit breaker open")
)

const (
	channelCacheTTL = 10 * time.Minute
	userCacheTTL    = 10 * time.Minute
	// Message cache is short-lived: its reaction summary is stale the moment
	// another reaction lands.
	messageCacheTTL = 30 * time.Second
)

type Client struct {
	log     *slog.Logger
	http    *http.Client
	token   string
	cache   *redis.Client // nil disables caching
	limiter *rate.Limiter
	breaker *CircuitBreaker
	retry   RetryConfig
	baseURL string
}

type ClientOption func(*Client)

// WithBaseURL overrides the API base URL. Used by tests.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

func NewClient(log *slog.Logger, token string, cache *redis.Client, opts ...ClientOption) *Client {
	c := &Client{
		log:   log,
		http:  newHTTPClient(),
		token: token,
		cache: cache,
		// Discord's global REST budget is 50 req/s; stay under it.
		limiter: rate.NewLimiter(rate.Limit(45), 5),
		breaker: NewCircuitBreaker(),
		retry:   DefaultRetryConfig(),
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) FetchChannel(ctx context.Context, channelID string) (*models.Channel, error) {
	key := "discord:channel:" + channelID
	var channel models.Channel
	if c.cacheGet(ctx, key, &channel) {
		return &channel, nil
	}

	if err := c.get(ctx, "/channels/"+channelID, &channel); err != nil {
		return nil, err
	}

	c.cacheSet(ctx, key, &channel, channelCacheTTL)
	return &channel, nil
}

func (c *Client) FetchMessage(ctx context.Context, channelID, messageID string) (*models.Message, error) {
	key := "discord:message:" + channelID + ":" + messageID
	var msg models.Message
	if c.cacheGet(ctx, key, &msg) {
		return &msg, nil
	}

	if err := c.get(ctx, "/channels/"+channelID+"/messages/"+messageID, &msg); err != nil {
		return nil, err
	}

	c.cacheSet(ctx, key, &msg, messageCacheTTL)
	return &msg, nil
}

func (c *Client) FetchUser(ctx context.Context, userID string) (*models.User, error) {
	key := "discord:user:" + userID
	var user models.User
	if c.cacheGet(ctx, key, &user) {
		return &user, nil
	}

	if err := c.get(ctx, "/users/"+userID, &user); err != nil {
		return nil, err
	}

	c.cacheSet(ctx, key, &user, userCacheTTL)
	return &user, nil
}

// CountReactors returns the number of distinct users who reacted with the
// emoji. Always a live read, never cached: this is the vote count and must
// not drift from platform truth.
func (c *Client) CountReactors(ctx context.Context, channelID, messageID string, emoji models.Emoji) (int, error) {
	base := fmt.Sprintf("/channels/%s/messages/%s/reactions/%s",
		channelID, messageID, url.PathEscape(emoji.APIPath()))

	seen := make(map[string]struct{})
	after := ""
	for {
		path := base + "?limit=100"
		if after != "" {
			path += "&after=" + after
		}

		var users []models.User
		if err := c.get(ctx, path, &users); err != nil {
			return 0, err
		}

		for _, u := range users {
			seen[u.ID] = struct{}{}
		}

		if len(users) < 100 {
			return len(seen), nil
		}
		after = users[len(users)-1].ID
	}
}

// get performs one authenticated GET with rate limiting, retry on 429 and
// transport errors, and breaker accounting. 404 and permission errors map to
// sentinels without tripping the breaker; they are states of the entity, not
// of the API.
func (c *Client) get(ctx context.Context, path string, out any) error {
	if !c.breaker.Allow() {
		return ErrCircuitOpen
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Bot "+c.token)
		req.Header.Set("User-Agent", "DiscordBot (starboard-bot, 1.0)")

		resp, err = c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			c.log.Debug("api_request_failed", "path", path, "attempt", attempt+1, "error", err)
			sleepCtx(ctx, CalculateBackoff(c.retry, attempt, 0))
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := time.Second
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, parseErr := strconv.ParseFloat(ra, 64); parseErr == nil {
					retryAfter = time.Duration(secs * float64(time.Second))
				}
			}
			c.log.Warn("rate_limited", "path", path, "retry_after", retryAfter, "attempt", attempt+1)
			resp.Body.Close()
			resp = nil
			sleepCtx(ctx, CalculateBackoff(c.retry, attempt, retryAfter))
			continue
		}

		break
	}

	if resp == nil {
		c.breaker.RecordFailure()
		if lastErr != nil {
			return lastErr
		}
		return fmt.Errorf("no response after %d attempts", c.retry.MaxRetries+1)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.breaker.RecordSuccess()
		return ErrNotFound

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.breaker.RecordSuccess()
		return ErrForbidden

	case resp.StatusCode != http.StatusOK:
		c.breaker.RecordFailure()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("discord api error: status=%d body=%s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("decode response: %w", err)
	}

	c.breaker.RecordSuccess()
	return nil
}

// cacheGet reports whether key was found and decoded into out.
func (c *Client) cacheGet(ctx context.Context, key string, out any) bool {
	if c.cache == nil {
		return false
	}
	cached, err := c.cache.Get(ctx, key)
	if err != nil || cached == "" {
		return false
	}
	if err := json.Unmarshal([]byte(cached), out); err != nil {
		return false
	}
	return true
}

func (c *Client) cacheSet(ctx context.Context, key string, v any, ttl time.Duration) {
	if c.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, string(data), ttl); err != nil {
		c.log.Debug("cache_set_failed", "key", key, "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
