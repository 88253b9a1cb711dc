package google

import (
	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
)

// AnalyticsScopes are requested on every authorization. The read-only scope
// covers reporting, the full scope is needed by the Admin API listings.
var AnalyticsScopes = []string{
	analyticsdata.AnalyticsReadonlyScope,
	analyticsdata.AnalyticsScope,
}
