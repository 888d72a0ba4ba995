package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Notifier sends connection alerts.
type Notifier interface {
	SendConnectionLost(ctx context.Context, server string, failCount int, since time.Time) error
	SendConnectionRestored(ctx context.Context, server string, downtime time.Duration) error
}

// ntfyMessage is one publish to the configured topic.
type ntfyMessage struct {
	title    string
	body     string
	tags     []string
	priority string
	click    string
}

// Client publishes alerts to an ntfy topic.
type Client struct {
	httpClient *http.Client
	config     *Config
	logger     *zap.Logger
}

func NewClient(cfg *Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
	}
}

// SendConnectionLost publishes an outage alert. Outages are always sent
// at high priority.
func (c *Client) SendConnectionLost(ctx context.Context, server string, failCount int, since time.Time) error {
	if !c.config.Enabled {
		return nil
	}
	return c.publish(ctx, ntfyMessage{
		title:    "Connection Lost",
		body:     FormatLostMessage(server, failCount, since),
		tags:     c.tags("x"),
		priority: "high",
		click:    clickURL(server),
	})
}

// SendConnectionRestored publishes a recovery notice.
func (c *Client) SendConnectionRestored(ctx context.Context, server string, downtime time.Duration) error {
	if !c.config.Enabled {
		return nil
	}
	return c.publish(ctx, ntfyMessage{
		title:    "Connection Restored",
		body:     FormatRestoredMessage(server, downtime),
		tags:     c.tags("white_check_mark"),
		priority: c.config.Priority,
		click:    clickURL(server),
	})
}

func (c *Client) tags(extra string) []string {
	var tags []string
	for _, t := range strings.Split(c.config.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return append(tags, extra)
}

// clickURL returns server when it can be opened from a notification.
func clickURL(server string) string {
	if strings.HasPrefix(server, "https://") || strings.HasPrefix(server, "http://") {
		return server
	}
	return ""
}

func (c *Client) publish(ctx context.Context, msg ntfyMessage) error {
	topicURL := strings.TrimSuffix(c.config.Server, "/") + "/" + c.config.Topic

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, topicURL, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Title", msg.title)
	req.Header.Set("Priority", msg.priority)
	req.Header.Set("Tags", strings.Join(msg.tags, ","))
	if msg.click != "" {
		req.Header.Set("Click", msg.click)
	}
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", c.config.Topic, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("ntfy rejected alert",
			zap.Int("status", resp.StatusCode),
			zap.String("topic", c.config.Topic),
		)
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}

	c.logger.Debug("alert published", zap.String("title", msg.title))
	return nil
}

// NoopNotifier drops every alert.
type NoopNotifier struct{}

func (NoopNotifier) SendConnectionLost(context.Context, string, int, time.Time) error {
	return nil
}

func (NoopNotifier) SendConnectionRestored(context.Context, string, time.Duration) error {
	return nil
}

// New returns an ntfy client, or a NoopNotifier when alerts are disabled.
func New(cfg *Config, logger *zap.Logger) Notifier {
	if !cfg.Enabled {
		return NoopNotifier{}
	}
	return NewClient(cfg, logger)
}
