package notion

import (
	"context"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/apply-cli/internal/model"
)

type fakeSource struct {
	apps []*model.Application
	meta map[string]map[string]any
}

func (f *fakeSource) List() []*model.Application { return f.apps }

func (f *fakeSource) Annotate(id, key string, value any) {
	if f.meta == nil {
		f.meta = map[string]map[string]any{}
	}
	if f.meta[id] == nil {
		f.meta[id] = map[string]any{}
	}
	f.meta[id][key] = value
}

func testApp(id, url string, meta map[string]any) *model.Application {
	ts := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	if meta == nil {
		meta = map[string]any{}
	}
	return &model.Application{
		ID:        id,
		URL:       url,
		Company:   "Acme",
		Position:  "Engineer",
		Status:    model.StatusRequiresManual,
		CreatedAt: ts,
		UpdatedAt: ts,
		Attempts:  2,
		Metadata:  meta,
		Errors: []model.ErrorEntry{{Timestamp: ts, Error: model.ErrorInfo{
			Category: "captcha", Message: "Please complete CAPTCHA",
		}}},
	}
}

func emptyDatabase(mc *MockClient) {
	mc.On("QueryDatabase", mock.Anything, "db-apps", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{}, nil).Once()
}

func TestApplicationProperties(t *testing.T) {
	props := ApplicationProperties(testApp("a1", "https://jobs.example.com/1", nil))

	title, ok := props[PropPosition].(notionapi.TitleProperty)
	require.True(t, ok)
	assert.Equal(t, "Engineer", title.Title[0].Text.Content)

	company := props[PropCompany].(notionapi.RichTextProperty)
	assert.Equal(t, "Acme", company.RichText[0].Text.Content)

	assert.Equal(t, "https://jobs.example.com/1", props[PropURL].(notionapi.URLProperty).URL)
	assert.Equal(t, "Requires Manual", props[PropStatus].(notionapi.SelectProperty).Select.Name)
	assert.Equal(t, float64(2), props[PropAttempts].(notionapi.NumberProperty).Number)

	date := props[PropUpdated].(notionapi.DateProperty)
	require.NotNil(t, date.Date)
	assert.True(t, time.Time(*date.Date.Start).Equal(time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)))

	lastErr := props[PropLastError].(notionapi.RichTextProperty)
	assert.Equal(t, "captcha: Please complete CAPTCHA", lastErr.RichText[0].Text.Content)
}

func TestSyncApplications_CreatesAndUpdates(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()
	emptyDatabase(mc)

	src := &fakeSource{apps: []*model.Application{
		testApp("a1", "https://jobs.example.com/1", nil),
		testApp("a2", "https://jobs.example.com/2", map[string]any{MetaPageID: "page-2"}),
	}}

	mc.On("CreatePage", ctx, mock.MatchedBy(func(req *notionapi.PageCreateRequest) bool {
		return req.Parent.DatabaseID == "db-apps" &&
			req.Properties[PropURL].(notionapi.URLProperty).URL == "https://jobs.example.com/1"
	})).Return(&notionapi.Page{ID: "page-1"}, nil).Once()
	mc.On("UpdatePage", ctx, "page-2", mock.AnythingOfType("*notionapi.PageUpdateRequest")).
		Return(&notionapi.Page{ID: "page-2"}, nil).Once()

	res, err := SyncApplications(ctx, mc, "db-apps", src)
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Created: 1, Updated: 1}, res)
	assert.Equal(t, "page-1", src.meta["a1"][MetaPageID])
	assert.NotContains(t, src.meta, "a2", "known page ids are not rewritten")
	mc.AssertExpectations(t)
}

func TestSyncApplications_LinksExistingPageByURL(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-apps", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{Results: []notionapi.Page{{
			ID:         "page-9",
			Properties: notionapi.Properties{PropURL: &notionapi.URLProperty{URL: "https://jobs.example.com/1"}},
		}}}, nil).Once()
	mc.On("UpdatePage", ctx, "page-9", mock.AnythingOfType("*notionapi.PageUpdateRequest")).
		Return(&notionapi.Page{ID: "page-9"}, nil).Once()

	src := &fakeSource{apps: []*model.Application{testApp("a1", "https://jobs.example.com/1", nil)}}
	res, err := SyncApplications(ctx, mc, "db-apps", src)
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Updated: 1}, res)
	assert.Equal(t, "page-9", src.meta["a1"][MetaPageID])
	mc.AssertExpectations(t)
}

func TestSyncApplications_RecreatesDeletedPage(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()
	emptyDatabase(mc)

	mc.On("UpdatePage", ctx, "page-gone", mock.AnythingOfType("*notionapi.PageUpdateRequest")).
		Return(nil, &notionapi.Error{Status: 404, Code: "object_not_found", Message: "Could not find page"}).Once()
	mc.On("CreatePage", ctx, mock.AnythingOfType("*notionapi.PageCreateRequest")).
		Return(&notionapi.Page{ID: "page-new"}, nil).Once()

	src := &fakeSource{apps: []*model.Application{
		testApp("a1", "https://jobs.example.com/1", map[string]any{MetaPageID: "page-gone"}),
	}}
	res, err := SyncApplications(ctx, mc, "db-apps", src)
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Created: 1}, res)
	assert.Equal(t, "page-new", src.meta["a1"][MetaPageID])
	mc.AssertExpectations(t)
}

func TestSyncApplications_Errors(t *testing.T) {
	ctx := context.Background()
	app := testApp("a1", "https://jobs.example.com/1", nil)

	t.Run("query", func(t *testing.T) {
		mc := new(MockClient)
		mc.On("QueryDatabase", ctx, "db-apps", mock.Anything).Return(nil, assert.AnError).Once()

		_, err := SyncApplications(ctx, mc, "db-apps", &fakeSource{apps: []*model.Application{app}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "notion: sync applications")
	})

	t.Run("create", func(t *testing.T) {
		mc := new(MockClient)
		emptyDatabase(mc)
		mc.On("CreatePage", ctx, mock.Anything).Return(nil, assert.AnError).Once()

		src := &fakeSource{apps: []*model.Application{app}}
		res, err := SyncApplications(ctx, mc, "db-apps", src)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "notion: sync application a1")
		assert.Equal(t, SyncResult{}, res)
		assert.Empty(t, src.meta)
	})

	t.Run("update", func(t *testing.T) {
		mc := new(MockClient)
		emptyDatabase(mc)
		mc.On("UpdatePage", ctx, "page-1", mock.Anything).Return(nil, assert.AnError).Once()

		linked := testApp("a1", "https://jobs.example.com/1", map[string]any{MetaPageID: "page-1"})
		_, err := SyncApplications(ctx, mc, "db-apps", &fakeSource{apps: []*model.Application{linked}})
		require.Error(t, err)
		mc.AssertNotCalled(t, "CreatePage", mock.Anything, mock.Anything)
	})
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "ab", truncateRunes("abc", 2))
}
