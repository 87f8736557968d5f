package notion

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClient is a testify mock implementing Client.
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

func TestUpsertRiskSummaryCreatesMissingRows(t *testing.T) {
	ctx := context.Background()
	mc := &MockClient{}

	mc.On("QueryDatabase", ctx, "db-risk", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{}, nil)
	mc.On("CreatePage", ctx, mock.AnythingOfType("*notionapi.PageCreateRequest")).
		Return(&notionapi.Page{ID: "page-new"}, nil)

	res, err := UpsertRiskSummary(ctx, mc, "db-risk", "2026-W35", []ReportRow{
		{MerchantID: "m-004", Name: "优衣库", RiskLevel: "high", HealthScore: 55, Summary: "健康分连续下滑"},
		{MerchantID: "m-005", Name: "星悦KTV", RiskLevel: "critical", HealthScore: 30, Summary: "欠租两期"},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 0, res.Updated)
	mc.AssertNumberOfCalls(t, "CreatePage", 2)
}

func TestUpsertRiskSummaryUpdatesExistingRow(t *testing.T) {
	ctx := context.Background()
	mc := &MockClient{}

	mc.On("QueryDatabase", ctx, "db-risk", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(&notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{{ID: "page-existing"}},
		}, nil)
	mc.On("UpdatePage", ctx, "page-existing", mock.AnythingOfType("*notionapi.PageUpdateRequest")).
		Return(&notionapi.Page{ID: "page-existing"}, nil)

	res, err := UpsertRiskSummary(ctx, mc, "db-risk", "2026-W35", []ReportRow{
		{MerchantID: "m-004", Name: "优衣库", RiskLevel: "high", HealthScore: 55},
	})

	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 1, res.Updated)
	mc.AssertNotCalled(t, "CreatePage")
}

func TestUpsertRiskSummaryPropagatesQueryError(t *testing.T) {
	ctx := context.Background()
	mc := &MockClient{}

	mc.On("QueryDatabase", ctx, "db-risk", mock.AnythingOfType("*notionapi.DatabaseQueryRequest")).
		Return(nil, eris.New("boom"))

	_, err := UpsertRiskSummary(ctx, mc, "db-risk", "2026-W35", []ReportRow{
		{MerchantID: "m-004", Name: "优衣库"},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "find summary row m-004")
}

func TestRowProperties(t *testing.T) {
	props := rowProperties(ReportRow{
		MerchantID:  "m-005",
		Name:        "星悦KTV",
		RiskLevel:   "critical",
		HealthScore: 30,
		Summary:     "欠租两期",
	}, "2026-W35")

	title := props[propTitle].(notionapi.TitleProperty)
	require.Len(t, title.Title, 1)
	assert.Equal(t, "星悦KTV", title.Title[0].Text.Content)

	sel := props[propRiskLevel].(notionapi.SelectProperty)
	assert.Equal(t, "critical", sel.Select.Name)

	num := props[propHealthScore].(notionapi.NumberProperty)
	assert.Equal(t, float64(30), num.Number)
}
