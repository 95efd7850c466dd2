package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dezko/dezko-backend/pkg/config"
)

type fakeLookup struct {
	errs map[string]error
}

func (f fakeLookup) topic(_ context.Context, fullName string) error {
	return f.errs[fullName]
}

func (f fakeLookup) subscription(_ context.Context, fullName string) error {
	return f.errs[fullName]
}

func testConfig() config.PubSubConfig {
	return config.PubSubConfig{
		BookingsTopic:       "dezko-bookings",
		BillingTopic:        "dezko-billing",
		BillingSubscription: "billing-sub",
	}
}

func TestResourceName(t *testing.T) {
	assert.Equal(t, "projects/p1/topics/dezko-bookings", resourceName("p1", "topics", "dezko-bookings"))
	assert.Equal(t, "projects/other/topics/x", resourceName("p1", "topics", "projects/other/topics/x"))
	assert.Equal(t, "projects/p1/subscriptions/billing-sub", resourceName("p1", "subscriptions", " billing-sub "))
	assert.Empty(t, resourceName("p1", "topics", "  "))
	assert.Empty(t, resourceName("", "topics", "x"))
}

func TestResourcesFor(t *testing.T) {
	got, err := resourcesFor("p1", testConfig())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, resource{kind: "subscriptions", name: "billing-sub", fullName: "projects/p1/subscriptions/billing-sub"}, got[2])

	_, err = resourcesFor("p1", config.PubSubConfig{BookingsSubscription: "orphan"})
	assert.ErrorIs(t, err, errNoTopics)
}

func TestVerifyReportsEveryMissingResource(t *testing.T) {
	resources, err := resourcesFor("p1", testConfig())
	require.NoError(t, err)
	c := &Client{
		projectID: "p1",
		resources: resources,
		admin: fakeLookup{errs: map[string]error{
			"projects/p1/topics/dezko-billing":      status.Error(codes.NotFound, "nope"),
			"projects/p1/subscriptions/billing-sub": errors.New("deadline exceeded"),
		}},
	}

	err = c.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `topic "dezko-billing" does not exist`)
	assert.Contains(t, err.Error(), `check subscription "billing-sub": deadline exceeded`)
	assert.NotContains(t, err.Error(), "dezko-bookings")
}

func TestVerifySucceedsWhenAllPresent(t *testing.T) {
	resources, err := resourcesFor("p1", testConfig())
	require.NoError(t, err)
	c := &Client{projectID: "p1", resources: resources, admin: fakeLookup{}}
	assert.NoError(t, c.Ping(context.Background()))
}

func TestNilClient(t *testing.T) {
	var c *Client
	assert.ErrorIs(t, c.Ping(context.Background()), errNotInitialized)
	assert.NoError(t, c.Close())
	assert.Nil(t, c.Publisher("dezko-bookings"))
}
