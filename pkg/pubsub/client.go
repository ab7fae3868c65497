// Package pubsub owns the Google Pub/Sub connection the outbox publisher
// ships domain events through.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/promoredeem/pkg/config"
	"github.com/angelmondragon/promoredeem/pkg/logger"
)

var (
	ErrTopicMissing = errors.New("pubsub topic does not exist")
	errNoProject    = errors.New("gcp project id is required")
	errNoTopics     = errors.New("no pubsub topics configured")
	errClosed       = errors.New("pubsub client closed")
)

// Client keeps one publisher per topic so batching state survives across
// outbox batches. Close flushes every publisher it handed out.
type Client struct {
	api     *pubsub.Client
	project string
	topics  []string

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient dials Pub/Sub and fails unless every configured topic exists.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errNoProject
	}
	topics := topicNames(cfg)
	if len(topics) == 0 {
		return nil, errNoTopics
	}

	api, err := pubsub.NewClient(ctx, project, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("pubsub dial: %w", err)
	}
	c := &Client{api: api, project: project, topics: topics, publishers: map[string]*pubsub.Publisher{}}
	if err := c.Ping(ctx); err != nil {
		_ = api.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topics", strings.Join(topics, ",")), "pubsub.ready")
	}
	return c, nil
}

// clientOptions: inline JSON beats a credentials file; neither means ADC.
func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if js := strings.TrimSpace(gcp.CredentialsJSON); js != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(js))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

func topicNames(cfg config.PubSubConfig) []string {
	var out []string
	for _, raw := range []string{cfg.RedemptionTopic, cfg.PointsTopic} {
		name := strings.TrimSpace(raw)
		if name == "" || containsString(out, name) {
			continue
		}
		out = append(out, name)
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// topicPath qualifies a bare topic ID with project. Fully qualified names
// pass through untouched.
func topicPath(project, name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/topics/"):
		return name
	case project == "":
		return ""
	}
	return "projects/" + project + "/topics/" + name
}

// Ping checks that every configured topic is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.api == nil {
		return errClosed
	}
	for _, name := range c.topics {
		path := topicPath(c.project, name)
		_, err := c.api.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: path})
		switch {
		case status.Code(err) == codes.NotFound:
			return fmt.Errorf("%w: %s", ErrTopicMissing, path)
		case err != nil:
			return fmt.Errorf("pubsub get topic %s: %w", path, err)
		}
	}
	return nil
}

// Publisher returns the shared publisher for name, or nil when the client
// is unusable or name cannot be resolved.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.api == nil {
		return nil
	}
	path := topicPath(c.project, name)
	if path == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishers == nil {
		return nil
	}
	p, ok := c.publishers[path]
	if !ok {
		p = c.api.Publisher(path)
		c.publishers[path] = p
	}
	return p
}

// Close flushes outstanding publishes and releases the connection.
func (c *Client) Close() error {
	if c == nil || c.api == nil {
		return nil
	}
	c.mu.Lock()
	pubs := c.publishers
	c.publishers = nil
	c.mu.Unlock()
	for _, p := range pubs {
		p.Stop()
	}
	return c.api.Close()
}
