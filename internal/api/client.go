package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/chatsync/internal/model"
)

const (
	apiPrefix  = "/api/v4"
	appsPrefix = "/plugins/com.mattermost.apps/api/v1"
)

// Client interface for testability
type Client interface {
	GetMe(ctx context.Context) (*model.User, error)
	GetMyTeams(ctx context.Context) ([]*model.Team, error)
	GetMyTeamMembers(ctx context.Context) ([]*model.TeamMember, error)
	GetMyTeamUnreads(ctx context.Context) ([]*model.TeamUnread, error)
	GetMyPreferences(ctx context.Context) ([]model.Preference, error)
	GetRolesByNames(ctx context.Context, names []string) ([]*model.Role, error)

	GetProfilesByIDs(ctx context.Context, ids []string, since int64) ([]*model.User, error)
	GetUser(ctx context.Context, userID string) (*model.User, error)
	GetStatusesByIDs(ctx context.Context, ids []string) ([]*model.Status, error)

	GetTeam(ctx context.Context, teamID string) (*model.Team, error)
	GetMyChannels(ctx context.Context, teamID string) ([]*model.Channel, error)
	GetMyChannelMembers(ctx context.Context, teamID string) ([]*model.ChannelMember, error)
	GetChannel(ctx context.Context, channelID string) (*model.Channel, error)
	GetChannelMember(ctx context.Context, channelID, userID string) (*model.ChannelMember, error)
	GetCategories(ctx context.Context, userID, teamID string) (*model.SidebarCategories, error)

	GetPostsSince(ctx context.Context, channelID string, since int64) (*model.PostList, error)
	GetPost(ctx context.Context, postID string) (*model.Post, error)
	GetThreads(ctx context.Context, userID, teamID string, since int64) (*model.ThreadList, error)
	GetThread(ctx context.Context, userID, teamID, threadID string) (*model.Thread, error)

	GetClientConfig(ctx context.Context) (model.ClientConfig, error)
	GetAppBindings(ctx context.Context, userID, channelID, teamID string) ([]model.AppBinding, error)
	GetCustomEmoji(ctx context.Context, emojiID string) (*model.Emoji, error)
}

type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
	retryCount int
	retryDelay time.Duration
	logger     *zap.Logger
}

var _ Client = (*HTTPClient)(nil)

func NewClient(baseURL, token string, ratePerSec int, timeout, retryDelay time.Duration, retryCount int, logger *zap.Logger) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:       100,
		MaxConnsPerHost:    10,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: false,
	}

	return &HTTPClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec*2),
		retryCount: retryCount,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// do performs a request with rate limiting and retry on 429/5xx, decoding
// a 200 response body into out when out is non-nil.
func (c *HTTPClient) do(ctx context.Context, method, path string, body any, out any) error {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}

	reqURL := c.baseURL + path
	requestID := uuid.NewString()
	c.logger.Debug("requesting",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("requestID", requestID),
	)

	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // Exponential backoff
			c.logger.Debug("retrying request", zap.Int("attempt", attempt), zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", requestID)
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		// Read body before closing for error messages
		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if readErr != nil {
			lastErr = readErr
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return ErrNotFound
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return ErrAuthFailed
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = ErrRateLimited
			continue
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *HTTPClient) GetMe(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/users/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *HTTPClient) GetMyTeams(ctx context.Context) ([]*model.Team, error) {
	var teams []*model.Team
	err := c.do(ctx, http.MethodGet, apiPrefix+"/users/me/teams", nil, &teams)
	return teams, err
}

func (c *HTTPClient) GetMyTeamMembers(ctx context.Context) ([]*model.TeamMember, error) {
	var members []*model.TeamMember
	err := c.do(ctx, http.MethodGet, apiPrefix+"/users/me/teams/members", nil, &members)
	return members, err
}

func (c *HTTPClient) GetMyTeamUnreads(ctx context.Context) ([]*model.TeamUnread, error) {
	var unreads []*model.TeamUnread
	err := c.do(ctx, http.MethodGet, apiPrefix+"/users/me/teams/unread", nil, &unreads)
	return unreads, err
}

func (c *HTTPClient) GetMyPreferences(ctx context.Context) ([]model.Preference, error) {
	var prefs []model.Preference
	err := c.do(ctx, http.MethodGet, apiPrefix+"/users/me/preferences", nil, &prefs)
	return prefs, err
}

func (c *HTTPClient) GetRolesByNames(ctx context.Context, names []string) ([]*model.Role, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var roles []*model.Role
	err := c.do(ctx, http.MethodPost, apiPrefix+"/roles/names", names, &roles)
	return roles, err
}

// GetProfilesByIDs fetches the given users. A non-zero since limits the
// result to profiles updated after that timestamp.
func (c *HTTPClient) GetProfilesByIDs(ctx context.Context, ids []string, since int64) ([]*model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	path := apiPrefix + "/users/ids"
	if since > 0 {
		path += "?since=" + strconv.FormatInt(since, 10)
	}
	var users []*model.User
	err := c.do(ctx, http.MethodPost, path, ids, &users)
	return users, err
}

func (c *HTTPClient) GetUser(ctx context.Context, userID string) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/users/"+url.PathEscape(userID), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *HTTPClient) GetStatusesByIDs(ctx context.Context, ids []string) ([]*model.Status, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var statuses []*model.Status
	err := c.do(ctx, http.MethodPost, apiPrefix+"/users/status/ids", ids, &statuses)
	return statuses, err
}

func (c *HTTPClient) GetTeam(ctx context.Context, teamID string) (*model.Team, error) {
	var t model.Team
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/teams/"+url.PathEscape(teamID), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetMyChannels includes deleted channels so archived ones can be kept visible.
func (c *HTTPClient) GetMyChannels(ctx context.Context, teamID string) ([]*model.Channel, error) {
	path := fmt.Sprintf("%s/users/me/teams/%s/channels?include_deleted=true", apiPrefix, url.PathEscape(teamID))
	var channels []*model.Channel
	err := c.do(ctx, http.MethodGet, path, nil, &channels)
	return channels, err
}

func (c *HTTPClient) GetMyChannelMembers(ctx context.Context, teamID string) ([]*model.ChannelMember, error) {
	path := fmt.Sprintf("%s/users/me/teams/%s/channels/members", apiPrefix, url.PathEscape(teamID))
	var members []*model.ChannelMember
	err := c.do(ctx, http.MethodGet, path, nil, &members)
	return members, err
}

func (c *HTTPClient) GetChannel(ctx context.Context, channelID string) (*model.Channel, error) {
	var ch model.Channel
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/channels/"+url.PathEscape(channelID), nil, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (c *HTTPClient) GetChannelMember(ctx context.Context, channelID, userID string) (*model.ChannelMember, error) {
	path := fmt.Sprintf("%s/channels/%s/members/%s", apiPrefix, url.PathEscape(channelID), url.PathEscape(userID))
	var m model.ChannelMember
	if err := c.do(ctx, http.MethodGet, path, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *HTTPClient) GetCategories(ctx context.Context, userID, teamID string) (*model.SidebarCategories, error) {
	path := fmt.Sprintf("%s/users/%s/teams/%s/channels/categories", apiPrefix, url.PathEscape(userID), url.PathEscape(teamID))
	var cats model.SidebarCategories
	if err := c.do(ctx, http.MethodGet, path, nil, &cats); err != nil {
		return nil, err
	}
	return &cats, nil
}

func (c *HTTPClient) GetPostsSince(ctx context.Context, channelID string, since int64) (*model.PostList, error) {
	path := fmt.Sprintf("%s/channels/%s/posts?since=%d", apiPrefix, url.PathEscape(channelID), since)
	var list model.PostList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *HTTPClient) GetPost(ctx context.Context, postID string) (*model.Post, error) {
	var p model.Post
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/posts/"+url.PathEscape(postID), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) GetThreads(ctx context.Context, userID, teamID string, since int64) (*model.ThreadList, error) {
	q := url.Values{}
	q.Set("extended", "true")
	if since > 0 {
		q.Set("since", strconv.FormatInt(since, 10))
	}
	path := fmt.Sprintf("%s/users/%s/teams/%s/threads?%s", apiPrefix, url.PathEscape(userID), url.PathEscape(teamID), q.Encode())
	var list model.ThreadList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *HTTPClient) GetThread(ctx context.Context, userID, teamID, threadID string) (*model.Thread, error) {
	path := fmt.Sprintf("%s/users/%s/teams/%s/threads/%s", apiPrefix, url.PathEscape(userID), url.PathEscape(teamID), url.PathEscape(threadID))
	var th model.Thread
	if err := c.do(ctx, http.MethodGet, path, nil, &th); err != nil {
		return nil, err
	}
	return &th, nil
}

func (c *HTTPClient) GetClientConfig(ctx context.Context) (model.ClientConfig, error) {
	cfg := model.ClientConfig{}
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/config/client?format=old", nil, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *HTTPClient) GetAppBindings(ctx context.Context, userID, channelID, teamID string) ([]model.AppBinding, error) {
	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("channel_id", channelID)
	q.Set("team_id", teamID)
	var bindings []model.AppBinding
	err := c.do(ctx, http.MethodGet, appsPrefix+"/bindings?"+q.Encode(), nil, &bindings)
	return bindings, err
}

func (c *HTTPClient) GetCustomEmoji(ctx context.Context, emojiID string) (*model.Emoji, error) {
	var e model.Emoji
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/emoji/"+url.PathEscape(emojiID), nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
