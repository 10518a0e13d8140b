package notion

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"

	"github.com/sells-group/apply-cli/internal/model"
)

// Property names of the applications database.
const (
	PropPosition  = "Position"
	PropCompany   = "Company"
	PropURL       = "Job Posting URL"
	PropStatus    = "Status"
	PropAttempts  = "Attempts"
	PropUpdated   = "Updated"
	PropLastError = "Last Error"
)

// MetaPageID is the application metadata key remembering its Notion page.
const MetaPageID = "notion_page_id"

// ApplicationSource is the store being mirrored.
type ApplicationSource interface {
	List() []*model.Application
	Annotate(id, key string, value any)
}

// SyncResult counts the pages written by SyncApplications.
type SyncResult struct {
	Created int
	Updated int
}

// SyncApplications upserts one page per application into the database dbID.
// An application is matched to its page by the stored page id, or else by the
// posting URL of an existing page; unmatched applications get a new page. New
// page ids are written back to the source.
func SyncApplications(ctx context.Context, c Client, dbID string, src ApplicationSource) (SyncResult, error) {
	var res SyncResult

	pages, err := QueryAll(ctx, c, dbID, nil)
	if err != nil {
		return res, eris.Wrap(err, "notion: sync applications")
	}
	byURL := PageIDsByURL(pages, PropURL)

	for _, app := range src.List() {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "notion: sync applications cancelled")
		}

		props := ApplicationProperties(app)
		pageID, _ := app.Metadata[MetaPageID].(string)
		if pageID == "" {
			pageID = byURL[app.URL]
		}

		if pageID != "" {
			_, err := c.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{Properties: props})
			switch {
			case err == nil:
				if app.Metadata[MetaPageID] != pageID {
					src.Annotate(app.ID, MetaPageID, pageID)
				}
				res.Updated++
				continue
			case !IsNotFound(err):
				return res, eris.Wrap(err, fmt.Sprintf("notion: sync application %s", app.ID))
			}
			// The page is gone; fall through and recreate it.
		}

		page, err := c.CreatePage(ctx, &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(dbID),
			},
			Properties: props,
		})
		if err != nil {
			return res, eris.Wrap(err, fmt.Sprintf("notion: sync application %s", app.ID))
		}
		src.Annotate(app.ID, MetaPageID, string(page.ID))
		res.Created++
	}

	return res, nil
}

// ApplicationProperties renders an application as page properties.
func ApplicationProperties(app *model.Application) notionapi.Properties {
	updated := notionapi.Date(app.UpdatedAt)
	lastErr := ""
	if e, ok := app.LastError(); ok {
		lastErr = e.Error.Category + ": " + e.Error.Message
	}

	return notionapi.Properties{
		PropPosition: notionapi.TitleProperty{
			Type:  notionapi.PropertyTypeTitle,
			Title: richText(app.Position),
		},
		PropCompany: notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(app.Company),
		},
		PropURL: notionapi.URLProperty{
			Type: notionapi.PropertyTypeURL,
			URL:  app.URL,
		},
		PropStatus: notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: app.Status.Label()},
		},
		PropAttempts: notionapi.NumberProperty{
			Type:   notionapi.PropertyTypeNumber,
			Number: float64(app.Attempts),
		},
		PropUpdated: notionapi.DateProperty{
			Type: notionapi.PropertyTypeDate,
			Date: &notionapi.DateObject{Start: &updated},
		},
		PropLastError: notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(truncateRunes(lastErr, maxRichText)),
		},
	}
}

// maxRichText is Notion's limit for one rich text item.
const maxRichText = 2000

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}}}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
