package notion

import (
	"context"
	"fmt"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestQueryAll_FollowsCursor(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	cursors := []notionapi.Cursor{"", "c-2", "c-3"}
	for i, cur := range cursors {
		resp := &notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{{ID: notionapi.ObjectID(fmt.Sprintf("app-%d", i+1))}},
		}
		if i < len(cursors)-1 {
			resp.HasMore = true
			resp.NextCursor = cursors[i+1]
		}
		want := cur
		mc.On("QueryDatabase", ctx, "db-apps", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
			return req.StartCursor == want
		})).Return(resp, nil).Once()
	}

	pages, err := QueryAll(ctx, mc, "db-apps", nil)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	for i, p := range pages {
		assert.Equal(t, notionapi.ObjectID(fmt.Sprintf("app-%d", i+1)), p.ID)
	}
	mc.AssertExpectations(t)
}

func TestQueryAll_WithFilter(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-1", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		// Verify the filter was passed through.
		if req.Filter == nil {
			return false
		}
		pf, ok := req.Filter.(notionapi.PropertyFilter)
		if !ok {
			return false
		}
		return pf.Property == PropStatus && pf.Select != nil && pf.Select.Equals == "Requires Manual" && req.PageSize == 50
	})).Return(&notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{{ID: "p1"}},
		HasMore: false,
	}, nil).Once()

	filter := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: PropStatus,
			Select:   &notionapi.SelectFilterCondition{Equals: "Requires Manual"},
		},
		PageSize: 50,
	}

	pages, err := QueryAll(ctx, mc, "db-1", filter)
	require.NoError(t, err)
	assert.Len(t, pages, 1)
	mc.AssertExpectations(t)
}

func TestQueryAll_Error(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-1", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(nil, assert.AnError).Once()

	pages, err := QueryAll(ctx, mc, "db-1", nil)
	assert.Error(t, err)
	assert.Nil(t, pages)
	mc.AssertExpectations(t)
}

func TestQueryAll_StopsOnEmptyCursor(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-1", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{Results: []notionapi.Page{{ID: "p1"}}, HasMore: true}, nil).Once()

	pages, err := QueryAll(ctx, mc, "db-1", nil)
	require.NoError(t, err)
	assert.Len(t, pages, 1)
	mc.AssertExpectations(t)
}

func TestPageIDsByURL(t *testing.T) {
	pages := []notionapi.Page{
		{ID: "p1", Properties: notionapi.Properties{PropURL: &notionapi.URLProperty{URL: "https://jobs.example.com/1"}}},
		{ID: "p2", Properties: notionapi.Properties{PropURL: notionapi.URLProperty{URL: "https://jobs.example.com/2"}}},
		{ID: "p3", Properties: notionapi.Properties{PropURL: &notionapi.URLProperty{URL: "https://jobs.example.com/1"}}},
		{ID: "p4", Properties: notionapi.Properties{PropURL: &notionapi.URLProperty{}}},
		{ID: "p5", Properties: notionapi.Properties{}},
	}

	got := PageIDsByURL(pages, PropURL)
	assert.Equal(t, map[string]string{
		"https://jobs.example.com/1": "p1",
		"https://jobs.example.com/2": "p2",
	}, got)
}
