package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dezko/dezko-backend/pkg/config"
	"github.com/dezko/dezko-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopics          = errors.New("pubsub topic name is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// lookup abstracts the two admin calls used to verify wiring.
type lookup interface {
	topic(ctx context.Context, fullName string) error
	subscription(ctx context.Context, fullName string) error
}

type adminLookup struct {
	client *pubsub.Client
}

func (a adminLookup) topic(ctx context.Context, fullName string) error {
	_, err := a.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: fullName})
	return err
}

func (a adminLookup) subscription(ctx context.Context, fullName string) error {
	_, err := a.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: fullName})
	return err
}

// resource is a topic or subscription the process expects to exist.
type resource struct {
	kind     string
	name     string
	fullName string
}

// Client wraps a Pub/Sub v2 client bound to one GCP project. Topics and
// subscriptions are provisioned outside the service; the client only checks
// that they exist.
type Client struct {
	client    *pubsub.Client
	admin     lookup
	projectID string
	resources []resource
}

// NewClient dials Pub/Sub and fails unless every configured topic and
// subscription is present.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	resources, err := resourcesFor(projectID, cfg)
	if err != nil {
		return nil, err
	}

	psClient, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("dial pubsub: %w", err)
	}
	c := &Client{
		client:    psClient,
		admin:     adminLookup{client: psClient},
		projectID: projectID,
		resources: resources,
	}
	if err := c.verify(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"project":   projectID,
		"resources": len(resources),
	}), "pubsub.connected")
	return c, nil
}

func resourcesFor(projectID string, cfg config.PubSubConfig) ([]resource, error) {
	var out []resource
	add := func(kind, name string) {
		if full := resourceName(projectID, kind, name); full != "" {
			out = append(out, resource{kind: kind, name: strings.TrimSpace(name), fullName: full})
		}
	}
	add("topics", cfg.BookingsTopic)
	add("topics", cfg.BillingTopic)
	if len(out) == 0 {
		return nil, errNoTopics
	}
	add("subscriptions", cfg.BookingsSubscription)
	add("subscriptions", cfg.BillingSubscription)
	return out, nil
}

// verify checks every resource concurrently and reports all that are missing
// or unreachable.
func (c *Client) verify(ctx context.Context) error {
	var (
		mu     sync.Mutex
		failed error
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, res := range c.resources {
		g.Go(func() error {
			check := c.admin.topic
			if res.kind == "subscriptions" {
				check = c.admin.subscription
			}
			err := check(gctx, res.fullName)
			switch {
			case err == nil:
				return nil
			case status.Code(err) == codes.NotFound:
				err = fmt.Errorf("%s %q does not exist", strings.TrimSuffix(res.kind, "s"), res.name)
			default:
				err = fmt.Errorf("check %s %q: %w", strings.TrimSuffix(res.kind, "s"), res.name, err)
			}
			mu.Lock()
			failed = multierr.Append(failed, err)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return failed
}

// Publisher returns an ordering-enabled publisher for a topic name or full
// resource path. Events sharing an ordering key arrive in publish order.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := resourceName(c.projectID, "topics", name)
	if fullName == "" {
		return nil
	}
	p := c.client.Publisher(fullName)
	p.EnableMessageOrdering = true
	return p
}

// Ping re-runs the existence checks; readiness probes use it.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.admin == nil {
		return errNotInitialized
	}
	return c.verify(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands a short name to projects/<p>/<kind>/<name>. Names
// already in that form pass through unchanged.
func resourceName(projectID, kind, name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/"):
		return name
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/" + kind + "/" + name
}
