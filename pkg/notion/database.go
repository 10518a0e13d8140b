package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// QueryAll pages through a database query and returns every result. filter
// may be nil; its Filter, Sorts and PageSize apply to every page.
func QueryAll(ctx context.Context, c Client, dbID string, filter *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	var all []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{StartCursor: cursor}
		if filter != nil {
			req.Filter = filter.Filter
			req.Sorts = filter.Sorts
			req.PageSize = filter.PageSize
		}

		resp, err := c.QueryDatabase(ctx, dbID, req)
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all")
		}
		all = append(all, resp.Results...)

		if !resp.HasMore || resp.NextCursor == "" {
			return all, nil
		}
		cursor = resp.NextCursor
	}
}

// PageIDsByURL indexes pages by the value of their URL property prop. Pages
// without a value are skipped; on duplicates the first page wins.
func PageIDsByURL(pages []notionapi.Page, prop string) map[string]string {
	ids := make(map[string]string, len(pages))
	for _, p := range pages {
		var u string
		switch v := p.Properties[prop].(type) {
		case *notionapi.URLProperty:
			u = v.URL
		case notionapi.URLProperty:
			u = v.URL
		}
		if u == "" {
			continue
		}
		if _, ok := ids[u]; !ok {
			ids[u] = string(p.ID)
		}
	}
	return ids
}
