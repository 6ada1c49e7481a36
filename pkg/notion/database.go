package notion

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// DefaultDomainProperty is the page property read when none is configured.
const DefaultDomainProperty = "URL"

// QueryAll fetches all pages from a Notion database, handling pagination.
// The next page is fetched in the background while the current one is
// appended.
func QueryAll(ctx context.Context, c Client, dbID string, filter *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	newReq := func(cursor notionapi.Cursor) *notionapi.DatabaseQueryRequest {
		req := &notionapi.DatabaseQueryRequest{StartCursor: cursor}
		if filter != nil {
			req.Filter = filter.Filter
			req.Sorts = filter.Sorts
			req.PageSize = filter.PageSize
		}
		return req
	}

	type pageResult struct {
		resp *notionapi.DatabaseQueryResponse
		err  error
	}

	var (
		all      []notionapi.Page
		prefetch <-chan pageResult
	)
	for {
		var (
			resp *notionapi.DatabaseQueryResponse
			err  error
		)
		if prefetch != nil {
			r := <-prefetch
			resp, err = r.resp, r.err
		} else {
			resp, err = c.QueryDatabase(ctx, dbID, newReq(""))
		}
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all page")
		}

		all = append(all, resp.Results...)
		if !resp.HasMore {
			return all, nil
		}

		ch := make(chan pageResult, 1)
		prefetch = ch
		next := newReq(resp.NextCursor)
		go func() {
			r, e := c.QueryDatabase(ctx, dbID, next)
			ch <- pageResult{resp: r, err: e}
		}()
	}
}

// CompanyRow is one company read from a Notion database.
type CompanyRow struct {
	PageID string
	Domain string
}

// QueryCompanies reads every page of dbID and returns the text of property
// as the company identifier. Pages whose property is missing or blank are
// skipped.
func QueryCompanies(ctx context.Context, c Client, dbID, property string) ([]CompanyRow, error) {
	if dbID == "" {
		return nil, eris.New("notion: query companies: empty database id")
	}
	if property == "" {
		property = DefaultDomainProperty
	}

	pages, err := QueryAll(ctx, c, dbID, nil)
	if err != nil {
		return nil, eris.Wrap(err, "notion: query companies")
	}

	rows := make([]CompanyRow, 0, len(pages))
	for _, p := range pages {
		v := strings.TrimSpace(propertyText(p.Properties[property]))
		if v == "" {
			continue
		}
		rows = append(rows, CompanyRow{PageID: string(p.ID), Domain: v})
	}
	return rows, nil
}

// propertyText returns the plain text of URL, title, rich text and email
// properties. Decoded pages carry pointers; locally built ones carry values.
func propertyText(prop notionapi.Property) string {
	switch p := prop.(type) {
	case *notionapi.URLProperty:
		return p.URL
	case notionapi.URLProperty:
		return p.URL
	case *notionapi.TitleProperty:
		return plainText(p.Title)
	case notionapi.TitleProperty:
		return plainText(p.Title)
	case *notionapi.RichTextProperty:
		return plainText(p.RichText)
	case notionapi.RichTextProperty:
		return plainText(p.RichText)
	case *notionapi.EmailProperty:
		return p.Email
	default:
		return ""
	}
}

func plainText(rt []notionapi.RichText) string {
	var b strings.Builder
	for _, r := range rt {
		if r.PlainText != "" {
			b.WriteString(r.PlainText)
		} else if r.Text != nil {
			b.WriteString(r.Text.Content)
		}
	}
	return b.String()
}

// UpdateStatus writes status as rich text into property on pageID.
func UpdateStatus(ctx context.Context, c Client, pageID, property, status string) error {
	req := &notionapi.PageUpdateRequest{
		Properties: notionapi.Properties{
			property: notionapi.RichTextProperty{
				Type: notionapi.PropertyTypeRichText,
				RichText: []notionapi.RichText{
					{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: status}},
				},
			},
		},
	}
	if _, err := c.UpdatePage(ctx, pageID, req); err != nil {
		return eris.Wrapf(err, "notion: update status for %s", pageID)
	}
	return nil
}
