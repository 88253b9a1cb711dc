package analytics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	analyticsadmin "google.golang.org/api/analyticsadmin/v1beta"
	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
)

// fakeAPI records every call and returns canned responses.
type fakeAPI struct {
	calls      int
	property   string
	report     *analyticsdata.RunReportRequest
	realtime   *analyticsdata.RunRealtimeReportRequest
	reportResp *analyticsdata.RunReportResponse
	summaries  []*AccountSummary
	err        error
}

func (f *fakeAPI) RunReport(_ context.Context, property string, req *analyticsdata.RunReportRequest) (*analyticsdata.RunReportResponse, error) {
	f.calls++
	f.property = property
	f.report = req
	if f.err != nil {
		return nil, f.err
	}
	if f.reportResp != nil {
		return f.reportResp, nil
	}
	return &analyticsdata.RunReportResponse{RowCount: 1}, nil
}

func (f *fakeAPI) RunRealtimeReport(_ context.Context, property string, req *analyticsdata.RunRealtimeReportRequest) (*analyticsdata.RunRealtimeReportResponse, error) {
	f.calls++
	f.property = property
	f.realtime = req
	return &analyticsdata.RunRealtimeReportResponse{}, f.err
}

func (f *fakeAPI) ListAccountSummaries(context.Context) ([]*AccountSummary, error) {
	f.calls++
	return f.summaries, f.err
}

func (f *fakeAPI) GetProperty(_ context.Context, name string) (*Property, error) {
	f.calls++
	f.property = name
	return &Property{Name: name, TimeZone: "Europe/Berlin"}, f.err
}

func (f *fakeAPI) ListCustomDimensions(_ context.Context, parent string) ([]*CustomDimension, error) {
	f.calls++
	f.property = parent
	return []*CustomDimension{{ParameterName: "plan"}}, f.err
}

func (f *fakeAPI) ListCustomMetrics(_ context.Context, parent string) ([]*CustomMetric, error) {
	f.calls++
	f.property = parent
	return []*CustomMetric{{ParameterName: "revenue"}}, f.err
}

func (f *fakeAPI) ListGoogleAdsLinks(_ context.Context, parent string) ([]*GoogleAdsLink, error) {
	f.calls++
	f.property = parent
	return []*GoogleAdsLink{{CustomerId: "111-222-3333"}}, f.err
}

func metricNames(ms []*analyticsdata.Metric) []string {
	var out []string
	for _, m := range ms {
		out = append(out, m.Name)
	}
	return out
}

func dimensionNames(ds []*analyticsdata.Dimension) []string {
	var out []string
	for _, d := range ds {
		out = append(out, d.Name)
	}
	return out
}

func TestEveryToolHasHandler(t *testing.T) {
	assert.Len(t, registry, len(AllTools))
	for _, tool := range AllTools {
		spec, ok := registry[tool]
		require.True(t, ok, "missing handler for %s", tool)
		assert.NotNil(t, spec.handle)
		assert.NotEmpty(t, spec.description)

		parsed, err := ParseTool(string(tool))
		require.NoError(t, err)
		assert.Equal(t, tool, parsed)
	}
}

func TestParseTool_Unknown(t *testing.T) {
	_, err := ParseTool("drop_tables")
	require.Error(t, err)

	var unknown *UnknownToolError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "Unknown tool: drop_tables", err.Error())
}

func TestExecute_UnknownToolMakesNoCalls(t *testing.T) {
	api := &fakeAPI{}
	_, err := Execute(context.Background(), api, Tool("get_everything"), Params{"property_id": "1"})

	var unknown *UnknownToolError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, 0, api.calls)
}

func TestExecute_TopPages(t *testing.T) {
	want := &analyticsdata.RunReportResponse{RowCount: 5}
	api := &fakeAPI{reportResp: want}

	got, err := Execute(context.Background(), api, ToolTopPages, Params{"property_id": "123", "limit": float64(5)})
	require.NoError(t, err)

	assert.Same(t, want, got)
	assert.Equal(t, 1, api.calls)
	assert.Equal(t, "properties/123", api.property)
	assert.Equal(t, []string{"pagePath"}, dimensionNames(api.report.Dimensions))
	assert.Equal(t, []string{"screenPageViews", "activeUsers"}, metricNames(api.report.Metrics))
	assert.Equal(t, int64(5), api.report.Limit)
	require.Len(t, api.report.DateRanges, 1)
	assert.Equal(t, "30daysAgo", api.report.DateRanges[0].StartDate)
	assert.Equal(t, "today", api.report.DateRanges[0].EndDate)
}

func TestExecute_TopPagesDefaultLimit(t *testing.T) {
	api := &fakeAPI{}
	_, err := Execute(context.Background(), api, ToolTopPages, Params{"property_id": "properties/9"})
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultTopPagesLimit), api.report.Limit)
	assert.Equal(t, "properties/9", api.property)
}

func TestExecute_FixedReports(t *testing.T) {
	tests := []struct {
		tool       Tool
		metrics    []string
		dimensions []string
	}{
		{
			tool:       ToolTrafficOverview,
			metrics:    []string{"sessions", "activeUsers", "screenPageViews", "bounceRate"},
			dimensions: []string{"date"},
		},
		{
			tool:       ToolTrafficSources,
			metrics:    []string{"sessions", "activeUsers"},
			dimensions: []string{"sessionSource", "sessionMedium"},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.tool), func(t *testing.T) {
			api := &fakeAPI{}
			_, err := Execute(context.Background(), api, tt.tool, Params{
				"property_id": "42",
				"start_date":  "2024-01-01",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.metrics, metricNames(api.report.Metrics))
			assert.Equal(t, tt.dimensions, dimensionNames(api.report.Dimensions))
			assert.Equal(t, "2024-01-01", api.report.DateRanges[0].StartDate)
			assert.Equal(t, "today", api.report.DateRanges[0].EndDate)
			assert.Zero(t, api.report.Limit)
		})
	}
}

func TestExecute_MissingProperty(t *testing.T) {
	for _, tool := range AllTools {
		if !RequiresProperty(tool) {
			continue
		}
		t.Run(string(tool), func(t *testing.T) {
			api := &fakeAPI{}
			_, err := Execute(context.Background(), api, tool, nil)

			var invalid *InvalidParamError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, "property_id", invalid.Param)
			assert.Equal(t, 0, api.calls)
		})
	}
}

func TestExecute_ListProperties(t *testing.T) {
	api := &fakeAPI{summaries: []*AccountSummary{{Account: "accounts/1", DisplayName: "Acme"}}}

	got, err := Execute(context.Background(), api, ToolListProperties, nil)
	require.NoError(t, err)

	resp, ok := got.(*analyticsadmin.GoogleAnalyticsAdminV1betaListAccountSummariesResponse)
	require.True(t, ok)
	require.Len(t, resp.AccountSummaries, 1)
	assert.Equal(t, "Acme", resp.AccountSummaries[0].DisplayName)
	assert.False(t, RequiresProperty(ToolListProperties))
}

func TestExecute_RunReport(t *testing.T) {
	api := &fakeAPI{}
	_, err := Execute(context.Background(), api, ToolRunReport, Params{
		"property_id": "7",
		"dimensions":  []interface{}{"country", "city"},
		"metrics":     "sessions, newUsers",
		"date_range":  "7d",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"country", "city"}, dimensionNames(api.report.Dimensions))
	assert.Equal(t, []string{"sessions", "newUsers"}, metricNames(api.report.Metrics))
	assert.Equal(t, "7daysAgo", api.report.DateRanges[0].StartDate)
	assert.Equal(t, int64(DefaultReportLimit), api.report.Limit)
}

func TestExecute_RunReportDefaults(t *testing.T) {
	api := &fakeAPI{}
	_, err := Execute(context.Background(), api, ToolRunReport, Params{"property_id": "7"})
	require.NoError(t, err)

	assert.Equal(t, []string{"date"}, dimensionNames(api.report.Dimensions))
	assert.Equal(t, []string{"activeUsers", "sessions"}, metricNames(api.report.Metrics))
	assert.Equal(t, DefaultStartDate, api.report.DateRanges[0].StartDate)
	assert.Equal(t, DefaultEndDate, api.report.DateRanges[0].EndDate)
}

func TestExecute_RunRealtimeReport(t *testing.T) {
	api := &fakeAPI{}
	_, err := Execute(context.Background(), api, ToolRunRealtimeReport, Params{"property_id": "7"})
	require.NoError(t, err)

	assert.Equal(t, []string{"country"}, dimensionNames(api.realtime.Dimensions))
	assert.Equal(t, []string{"activeUsers"}, metricNames(api.realtime.Metrics))
	assert.Zero(t, api.realtime.Limit)
}

func TestExecute_CustomDefinitions(t *testing.T) {
	api := &fakeAPI{}
	got, err := Execute(context.Background(), api, ToolCustomDefinitions, Params{"property_id": "7"})
	require.NoError(t, err)

	defs, ok := got.(*CustomDefinitions)
	require.True(t, ok)
	assert.Equal(t, "properties/7", defs.Property)
	assert.Len(t, defs.CustomDimensions, 1)
	assert.Len(t, defs.CustomMetrics, 1)
	assert.Equal(t, 2, api.calls)
}

func TestExecute_PropagatesAPIError(t *testing.T) {
	api := &fakeAPI{err: errors.New("quota exceeded")}
	_, err := Execute(context.Background(), api, ToolTrafficOverview, Params{"property_id": "7"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestDefinitions(t *testing.T) {
	defs := Definitions()
	require.Len(t, defs, len(AllTools))
	assert.Equal(t, ToolTrafficOverview, defs[0].Tool)
	assert.Equal(t, "property_id", defs[0].Params[0].Name)
	assert.True(t, defs[0].Params[0].Required)
}
