package analytics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	analyticsadmin "google.golang.org/api/analyticsadmin/v1beta"
	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
	"google.golang.org/api/option"

	"github.com/teemow/garelay/internal/google"
	"github.com/teemow/garelay/internal/instrumentation"
)

// Admin API response types, aliased for readability.
type (
	AccountSummary  = analyticsadmin.GoogleAnalyticsAdminV1betaAccountSummary
	Property        = analyticsadmin.GoogleAnalyticsAdminV1betaProperty
	CustomDimension = analyticsadmin.GoogleAnalyticsAdminV1betaCustomDimension
	CustomMetric    = analyticsadmin.GoogleAnalyticsAdminV1betaCustomMetric
	GoogleAdsLink   = analyticsadmin.GoogleAnalyticsAdminV1betaGoogleAdsLink
)

// API is the set of Google Analytics calls the tools are built on.
type API interface {
	RunReport(ctx context.Context, property string, req *analyticsdata.RunReportRequest) (*analyticsdata.RunReportResponse, error)
	RunRealtimeReport(ctx context.Context, property string, req *analyticsdata.RunRealtimeReportRequest) (*analyticsdata.RunRealtimeReportResponse, error)
	ListAccountSummaries(ctx context.Context) ([]*AccountSummary, error)
	GetProperty(ctx context.Context, name string) (*Property, error)
	ListCustomDimensions(ctx context.Context, parent string) ([]*CustomDimension, error)
	ListCustomMetrics(ctx context.Context, parent string) ([]*CustomMetric, error)
	ListGoogleAdsLinks(ctx context.Context, parent string) ([]*GoogleAdsLink, error)
}

// Factory builds an API bound to one token.
type Factory interface {
	NewAPI(ctx context.Context, token *oauth2.Token) (API, error)
}

// Client implements API with the Google API Go clients.
type Client struct {
	data    *analyticsdata.Service
	admin   *analyticsadmin.Service
	metrics *instrumentation.Metrics
}

var _ API = (*Client)(nil)

// NewClient creates both services on httpClient. metrics may be nil.
func NewClient(ctx context.Context, httpClient *http.Client, metrics *instrumentation.Metrics, opts ...option.ClientOption) (*Client, error) {
	clientOpts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)

	data, err := analyticsdata.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Analytics Data service: %w", err)
	}
	admin, err := analyticsadmin.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Analytics Admin service: %w", err)
	}

	return &Client{data: data, admin: admin, metrics: metrics}, nil
}

// observe wraps one API call in a span and records its outcome.
func (c *Client) observe(ctx context.Context, service, operation string, fn func(ctx context.Context) error) error {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, service, operation)
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordGoogleAPIOperation(ctx, service, operation, status, time.Since(start))
	return err
}

func (c *Client) RunReport(ctx context.Context, property string, req *analyticsdata.RunReportRequest) (*analyticsdata.RunReportResponse, error) {
	var resp *analyticsdata.RunReportResponse
	err := c.observe(ctx, instrumentation.ServiceAnalyticsData, instrumentation.OperationRunReport, func(ctx context.Context) error {
		var err error
		resp, err = c.data.Properties.RunReport(property, req).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run report: %w", err)
	}
	return resp, nil
}

func (c *Client) RunRealtimeReport(ctx context.Context, property string, req *analyticsdata.RunRealtimeReportRequest) (*analyticsdata.RunRealtimeReportResponse, error) {
	var resp *analyticsdata.RunRealtimeReportResponse
	err := c.observe(ctx, instrumentation.ServiceAnalyticsData, instrumentation.OperationRunRealtimeReport, func(ctx context.Context) error {
		var err error
		resp, err = c.data.Properties.RunRealtimeReport(property, req).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run realtime report: %w", err)
	}
	return resp, nil
}

func (c *Client) ListAccountSummaries(ctx context.Context) ([]*AccountSummary, error) {
	var out []*AccountSummary
	err := c.observe(ctx, instrumentation.ServiceAnalyticsAdmin, instrumentation.OperationList, func(ctx context.Context) error {
		return c.admin.AccountSummaries.List().Pages(ctx, func(page *analyticsadmin.GoogleAnalyticsAdminV1betaListAccountSummariesResponse) error {
			out = append(out, page.AccountSummaries...)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list account summaries: %w", err)
	}
	return out, nil
}

func (c *Client) GetProperty(ctx context.Context, name string) (*Property, error) {
	var prop *Property
	err := c.observe(ctx, instrumentation.ServiceAnalyticsAdmin, instrumentation.OperationGet, func(ctx context.Context) error {
		var err error
		prop, err = c.admin.Properties.Get(name).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	return prop, nil
}

func (c *Client) ListCustomDimensions(ctx context.Context, parent string) ([]*CustomDimension, error) {
	var out []*CustomDimension
	err := c.observe(ctx, instrumentation.ServiceAnalyticsAdmin, instrumentation.OperationList, func(ctx context.Context) error {
		return c.admin.Properties.CustomDimensions.List(parent).Pages(ctx, func(page *analyticsadmin.GoogleAnalyticsAdminV1betaListCustomDimensionsResponse) error {
			out = append(out, page.CustomDimensions...)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list custom dimensions: %w", err)
	}
	return out, nil
}

func (c *Client) ListCustomMetrics(ctx context.Context, parent string) ([]*CustomMetric, error) {
	var out []*CustomMetric
	err := c.observe(ctx, instrumentation.ServiceAnalyticsAdmin, instrumentation.OperationList, func(ctx context.Context) error {
		return c.admin.Properties.CustomMetrics.List(parent).Pages(ctx, func(page *analyticsadmin.GoogleAnalyticsAdminV1betaListCustomMetricsResponse) error {
			out = append(out, page.CustomMetrics...)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list custom metrics: %w", err)
	}
	return out, nil
}

func (c *Client) ListGoogleAdsLinks(ctx context.Context, parent string) ([]*GoogleAdsLink, error) {
	var out []*GoogleAdsLink
	err := c.observe(ctx, instrumentation.ServiceAnalyticsAdmin, instrumentation.OperationList, func(ctx context.Context) error {
		return c.admin.Properties.GoogleAdsLinks.List(parent).Pages(ctx, func(page *analyticsadmin.GoogleAnalyticsAdminV1betaListGoogleAdsLinksResponse) error {
			out = append(out, page.GoogleAdsLinks...)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list google ads links: %w", err)
	}
	return out, nil
}

// ClientFactory builds a Client per token through the OAuth client.
type ClientFactory struct {
	oauth   *google.Client
	metrics *instrumentation.Metrics
	opts    []option.ClientOption
}

var _ Factory = (*ClientFactory)(nil)

// NewClientFactory creates a factory. opts are appended to every service,
// e.g. option.WithEndpoint in tests.
func NewClientFactory(oauth *google.Client, metrics *instrumentation.Metrics, opts ...option.ClientOption) *ClientFactory {
	return &ClientFactory{oauth: oauth, metrics: metrics, opts: opts}
}

// NewAPI returns a Client authorized with token only.
func (f *ClientFactory) NewAPI(ctx context.Context, token *oauth2.Token) (API, error) {
	return NewClient(ctx, f.oauth.HTTPClient(ctx, token), f.metrics, f.opts...)
}
