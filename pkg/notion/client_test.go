package notion

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	args := m.Called(ctx, dbID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.DatabaseQueryResponse), args.Error(1)
}

func (m *MockClient) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

func (m *MockClient) UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, pageID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

func TestMockClientSatisfiesInterface(t *testing.T) {
	t.Parallel()
	var _ Client = (*MockClient)(nil)
}

func TestNewClient_DefaultLimit(t *testing.T) {
	c, ok := NewClient("test-token").(*notionClient)
	require.True(t, ok)
	require.NotNil(t, c.limiter)
	assert.Equal(t, rate.Limit(DefaultRequestsPerSecond), c.limiter.Limit())
	assert.Equal(t, 1, c.limiter.Burst())
}

func TestWithRateLimit(t *testing.T) {
	c := NewClient("test-token", WithRateLimit(10)).(*notionClient)
	assert.Equal(t, rate.Limit(10), c.limiter.Limit())
	assert.Equal(t, 10, c.limiter.Burst())

	c = NewClient("test-token", WithRateLimit(0.5)).(*notionClient)
	assert.Equal(t, 1, c.limiter.Burst())

	c = NewClient("test-token", WithRateLimit(0)).(*notionClient)
	assert.Nil(t, c.limiter)
	assert.NoError(t, c.wait(context.Background()))
}

func TestWait_CancelledContext(t *testing.T) {
	c := NewClient("test-token", WithRateLimit(1.0/3600)).(*notionClient)
	c.limiter.Allow() // drain the single token

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.wait(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion: rate limit")

	_, err = c.CreatePage(ctx, &notionapi.PageCreateRequest{})
	require.Error(t, err)
}

func TestIsNotFound(t *testing.T) {
	notFound := &notionapi.Error{Status: 404, Code: "object_not_found", Message: "Could not find page"}
	assert.True(t, IsNotFound(notFound))
	assert.True(t, IsNotFound(eris.Wrap(notFound, "notion: update page p1")))
	assert.False(t, IsNotFound(&notionapi.Error{Status: 400, Message: "validation"}))
	assert.False(t, IsNotFound(assert.AnError))
	assert.False(t, IsNotFound(nil))
}
