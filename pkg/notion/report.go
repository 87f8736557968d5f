package notion

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Risk-summary database property names. The operations team owns the schema.
const (
	propTitle       = "商户"
	propMerchantID  = "商户ID"
	propPeriod      = "周期"
	propRiskLevel   = "风险等级"
	propHealthScore = "健康分"
	propSummary     = "摘要"
)

// ReportRow is one merchant line in a risk summary.
type ReportRow struct {
	MerchantID  string
	Name        string
	RiskLevel   string
	HealthScore float64
	Summary     string
}

// UpsertResult counts what a summary push did.
type UpsertResult struct {
	Created int
	Updated int
}

// UpsertRiskSummary pushes one period's risk rows into the summary database.
// Rows are keyed by (merchant id, period): an existing page is updated in
// place, anything else becomes a new page.
func UpsertRiskSummary(ctx context.Context, c Client, dbID, period string, rows []ReportRow) (UpsertResult, error) {
	var res UpsertResult

	for _, row := range rows {
		existing, err := findRow(ctx, c, dbID, row.MerchantID, period)
		if err != nil {
			return res, err
		}

		props := rowProperties(row, period)

		if existing != "" {
			if _, err := c.UpdatePage(ctx, existing, &notionapi.PageUpdateRequest{Properties: props}); err != nil {
				return res, eris.Wrap(err, fmt.Sprintf("notion: update summary row %s", row.MerchantID))
			}
			res.Updated++
			continue
		}

		req := &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(dbID),
			},
			Properties: props,
		}
		if _, err := c.CreatePage(ctx, req); err != nil {
			return res, eris.Wrap(err, fmt.Sprintf("notion: create summary row %s", row.MerchantID))
		}
		res.Created++
	}

	zap.L().Info("risk summary pushed",
		zap.String("period", period),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
	)
	return res, nil
}

// findRow returns the page id for (merchantID, period), or "" when absent.
func findRow(ctx context.Context, c Client, dbID, merchantID, period string) (string, error) {
	req := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.AndCompoundFilter{
			notionapi.PropertyFilter{
				Property: propMerchantID,
				RichText: &notionapi.TextFilterCondition{Equals: merchantID},
			},
			notionapi.PropertyFilter{
				Property: propPeriod,
				RichText: &notionapi.TextFilterCondition{Equals: period},
			},
		},
		PageSize: 1,
	}

	resp, err := c.QueryDatabase(ctx, dbID, req)
	if err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("notion: find summary row %s", merchantID))
	}
	if len(resp.Results) == 0 {
		return "", nil
	}
	return string(resp.Results[0].ID), nil
}

func rowProperties(row ReportRow, period string) notionapi.Properties {
	return notionapi.Properties{
		propTitle: notionapi.TitleProperty{
			Title: []notionapi.RichText{{Text: &notionapi.Text{Content: row.Name}}},
		},
		propMerchantID: notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: row.MerchantID}}},
		},
		propPeriod: notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: period}}},
		},
		propRiskLevel: notionapi.SelectProperty{
			Select: notionapi.Option{Name: row.RiskLevel},
		},
		propHealthScore: notionapi.NumberProperty{
			Number: row.HealthScore,
		},
		propSummary: notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: row.Summary}}},
		},
	}
}
