package analytics

import (
	"context"

	analyticsadmin "google.golang.org/api/analyticsadmin/v1beta"
	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
)

// Tool names a supported report. The set is closed: every Tool declared
// here has exactly one entry in registry.
type Tool string

const (
	ToolTrafficOverview   Tool = "get_traffic_overview"
	ToolTopPages          Tool = "get_top_pages"
	ToolTrafficSources    Tool = "get_traffic_sources"
	ToolListProperties    Tool = "list_properties"
	ToolPropertyDetails   Tool = "get_property_details"
	ToolRunReport         Tool = "run_report"
	ToolRunRealtimeReport Tool = "run_realtime_report"
	ToolCustomDefinitions Tool = "get_custom_dimensions_and_metrics"
	ToolGoogleAdsLinks    Tool = "list_google_ads_links"
)

// AllTools lists every Tool in presentation order.
var AllTools = []Tool{
	ToolTrafficOverview,
	ToolTopPages,
	ToolTrafficSources,
	ToolListProperties,
	ToolPropertyDetails,
	ToolRunReport,
	ToolRunRealtimeReport,
	ToolCustomDefinitions,
	ToolGoogleAdsLinks,
}

// Row limits applied when the caller does not pass one.
const (
	DefaultTopPagesLimit = 10
	DefaultReportLimit   = 100
)

// UnknownToolError is returned for names outside the Tool set.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return "Unknown tool: " + e.Name
}

// ParseTool maps a name to its Tool.
func ParseTool(name string) (Tool, error) {
	t := Tool(name)
	if _, ok := registry[t]; !ok {
		return "", &UnknownToolError{Name: name}
	}
	return t, nil
}

// ParamType is the JSON type of a tool parameter.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamArray   ParamType = "array"
)

// ParamSpec documents one tool parameter.
type ParamSpec struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

// Definition describes a Tool for listings such as the MCP tools/list.
type Definition struct {
	Tool        Tool
	Description string
	Params      []ParamSpec
}

type handlerFunc func(ctx context.Context, api API, p Params) (interface{}, error)

type toolSpec struct {
	description string
	params      []ParamSpec
	handle      handlerFunc
}

var (
	propertyParam = ParamSpec{
		Name:        "property_id",
		Type:        ParamString,
		Description: "GA4 property ID, e.g. '123456789' or 'properties/123456789'",
		Required:    true,
	}
	startDateParam = ParamSpec{
		Name:        "start_date",
		Type:        ParamString,
		Description: "Start date (YYYY-MM-DD or relative such as '30daysAgo'), default 30daysAgo",
	}
	endDateParam = ParamSpec{
		Name:        "end_date",
		Type:        ParamString,
		Description: "End date (YYYY-MM-DD or 'today'), default today",
	}
)

var registry = map[Tool]toolSpec{
	ToolTrafficOverview: {
		description: "Daily sessions, active users, page views and bounce rate for a property.",
		params:      []ParamSpec{propertyParam, startDateParam, endDateParam},
		handle:      trafficOverview,
	},
	ToolTopPages: {
		description: "Most viewed pages of a property by screen page views.",
		params: []ParamSpec{propertyParam, startDateParam, endDateParam, {
			Name:        "limit",
			Type:        ParamInteger,
			Description: "Maximum number of pages to return (default: 10)",
		}},
		handle: topPages,
	},
	ToolTrafficSources: {
		description: "Sessions and active users broken down by source and medium.",
		params:      []ParamSpec{propertyParam, startDateParam, endDateParam},
		handle:      trafficSources,
	},
	ToolListProperties: {
		description: "List all Google Analytics 4 accounts and properties the connection has access to.",
		handle:      listProperties,
	},
	ToolPropertyDetails: {
		description: "Get the configuration of a GA4 property such as time zone and currency.",
		params:      []ParamSpec{propertyParam},
		handle:      propertyDetails,
	},
	ToolRunReport: {
		description: "Run a GA4 report with custom dimensions, metrics and date range.",
		params: []ParamSpec{propertyParam, {
			Name:        "dimensions",
			Type:        ParamArray,
			Description: "Dimensions to include (default: ['date'])",
		}, {
			Name:        "metrics",
			Type:        ParamArray,
			Description: "Metrics to include (default: ['activeUsers', 'sessions'])",
		}, {
			Name:        "date_range",
			Type:        ParamString,
			Description: "Date range: '7d', '30d', '90d' or 'YYYY-MM-DD,YYYY-MM-DD' (default: 30d)",
		}, {
			Name:        "limit",
			Type:        ParamInteger,
			Description: "Maximum number of rows to return (default: 100)",
		}},
		handle: runReport,
	},
	ToolRunRealtimeReport: {
		description: "Run a realtime report covering activity in the last 30 minutes.",
		params: []ParamSpec{propertyParam, {
			Name:        "dimensions",
			Type:        ParamArray,
			Description: "Realtime dimensions (default: ['country'])",
		}, {
			Name:        "metrics",
			Type:        ParamArray,
			Description: "Realtime metrics (default: ['activeUsers'])",
		}, {
			Name:        "limit",
			Type:        ParamInteger,
			Description: "Maximum number of rows to return",
		}},
		handle: runRealtimeReport,
	},
	ToolCustomDefinitions: {
		description: "Get the custom dimensions and metrics configured for a GA4 property.",
		params:      []ParamSpec{propertyParam},
		handle:      customDefinitions,
	},
	ToolGoogleAdsLinks: {
		description: "List Google Ads account links of a GA4 property.",
		params:      []ParamSpec{propertyParam},
		handle:      googleAdsLinks,
	},
}

// Definitions returns the description of every Tool in AllTools order.
func Definitions() []Definition {
	out := make([]Definition, 0, len(AllTools))
	for _, t := range AllTools {
		spec := registry[t]
		out = append(out, Definition{Tool: t, Description: spec.description, Params: spec.params})
	}
	return out
}

// Execute runs tool against api. The result is the API response, unmodified.
func Execute(ctx context.Context, api API, tool Tool, params Params) (interface{}, error) {
	spec, ok := registry[tool]
	if !ok {
		return nil, &UnknownToolError{Name: string(tool)}
	}
	if params == nil {
		params = Params{}
	}
	return spec.handle(ctx, api, params)
}

// RequiresProperty reports whether tool needs a property_id.
func RequiresProperty(tool Tool) bool {
	for _, p := range registry[tool].params {
		if p.Name == propertyParam.Name {
			return true
		}
	}
	return false
}

func metrics(names ...string) []*analyticsdata.Metric {
	out := make([]*analyticsdata.Metric, 0, len(names))
	for _, n := range names {
		out = append(out, &analyticsdata.Metric{Name: n})
	}
	return out
}

func dimensions(names ...string) []*analyticsdata.Dimension {
	out := make([]*analyticsdata.Dimension, 0, len(names))
	for _, n := range names {
		out = append(out, &analyticsdata.Dimension{Name: n})
	}
	return out
}

// windowedReport runs a fixed-shape report over the caller's date range.
func windowedReport(ctx context.Context, api API, p Params, req *analyticsdata.RunReportRequest) (interface{}, error) {
	property, err := p.PropertyName()
	if err != nil {
		return nil, err
	}
	start, end, err := p.DateRange()
	if err != nil {
		return nil, err
	}
	req.DateRanges = []*analyticsdata.DateRange{{StartDate: start, EndDate: end}}
	return api.RunReport(ctx, property, req)
}

func trafficOverview(ctx context.Context, api API, p Params) (interface{}, error) {
	return windowedReport(ctx, api, p, &analyticsdata.RunReportRequest{
		Metrics:    metrics("sessions", "activeUsers", "screenPageViews", "bounceRate"),
		Dimensions: dimensions("date"),
	})
}

func topPages(ctx context.Context, api API, p Params) (interface{}, error) {
	limit, err := p.Int("limit", DefaultTopPagesLimit)
	if err != nil {
		return nil, err
	}
	return windowedReport(ctx, api, p, &analyticsdata.RunReportRequest{
		Metrics:    metrics("screenPageViews", "activeUsers"),
		Dimensions: dimensions("pagePath"),
		Limit:      limit,
	})
}

func trafficSources(ctx context.Context, api API, p Params) (interface{}, error) {
	return windowedReport(ctx, api, p, &analyticsdata.RunReportRequest{
		Metrics:    metrics("sessions", "activeUsers"),
		Dimensions: dimensions("sessionSource", "sessionMedium"),
	})
}

func listProperties(ctx context.Context, api API, _ Params) (interface{}, error) {
	summaries, err := api.ListAccountSummaries(ctx)
	if err != nil {
		return nil, err
	}
	return &analyticsadmin.GoogleAnalyticsAdminV1betaListAccountSummariesResponse{
		AccountSummaries: summaries,
	}, nil
}

func propertyDetails(ctx context.Context, api API, p Params) (interface{}, error) {
	property, err := p.PropertyName()
	if err != nil {
		return nil, err
	}
	return api.GetProperty(ctx, property)
}

func runReport(ctx context.Context, api API, p Params) (interface{}, error) {
	property, err := p.PropertyName()
	if err != nil {
		return nil, err
	}
	dims, err := p.Strings("dimensions", []string{"date"})
	if err != nil {
		return nil, err
	}
	mets, err := p.Strings("metrics", []string{"activeUsers", "sessions"})
	if err != nil {
		return nil, err
	}
	limit, err := p.Int("limit", DefaultReportLimit)
	if err != nil {
		return nil, err
	}

	var start, end string
	if dr, _ := p.String("date_range", ""); dr != "" {
		start, end, err = ParseDateRange(dr)
	} else {
		start, end, err = p.DateRange()
	}
	if err != nil {
		return nil, err
	}

	return api.RunReport(ctx, property, &analyticsdata.RunReportRequest{
		DateRanges: []*analyticsdata.DateRange{{StartDate: start, EndDate: end}},
		Dimensions: dimensions(dims...),
		Metrics:    metrics(mets...),
		Limit:      limit,
	})
}

func runRealtimeReport(ctx context.Context, api API, p Params) (interface{}, error) {
	property, err := p.PropertyName()
	if err != nil {
		return nil, err
	}
	dims, err := p.Strings("dimensions", []string{"country"})
	if err != nil {
		return nil, err
	}
	mets, err := p.Strings("metrics", []string{"activeUsers"})
	if err != nil {
		return nil, err
	}

	req := &analyticsdata.RunRealtimeReportRequest{
		Dimensions: dimensions(dims...),
		Metrics:    metrics(mets...),
	}
	if _, ok := p["limit"]; ok {
		if req.Limit, err = p.Int("limit", 0); err != nil {
			return nil, err
		}
	}
	return api.RunRealtimeReport(ctx, property, req)
}

// CustomDefinitions is the result of get_custom_dimensions_and_metrics.
type CustomDefinitions struct {
	Property         string             `json:"property"`
	CustomDimensions []*CustomDimension `json:"customDimensions"`
	CustomMetrics    []*CustomMetric    `json:"customMetrics"`
}

func customDefinitions(ctx context.Context, api API, p Params) (interface{}, error) {
	property, err := p.PropertyName()
	if err != nil {
		return nil, err
	}
	dims, err := api.ListCustomDimensions(ctx, property)
	if err != nil {
		return nil, err
	}
	mets, err := api.ListCustomMetrics(ctx, property)
	if err != nil {
		return nil, err
	}
	return &CustomDefinitions{Property: property, CustomDimensions: dims, CustomMetrics: mets}, nil
}

func googleAdsLinks(ctx context.Context, api API, p Params) (interface{}, error) {
	property, err := p.PropertyName()
	if err != nil {
		return nil, err
	}
	links, err := api.ListGoogleAdsLinks(ctx, property)
	if err != nil {
		return nil, err
	}
	return &analyticsadmin.GoogleAnalyticsAdminV1betaListGoogleAdsLinksResponse{GoogleAdsLinks: links}, nil
}
