package observability

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"
	MCheckoutEvents          MetricKey = "checkout_events_total"
)

// MetricSpec describes how a key is registered with the metrics backend.
type MetricSpec struct {
	Key    MetricKey
	Help   string
	Labels []string
}

// CounterSpecs lists every counter the service emits.
var CounterSpecs = []MetricSpec{
	{MUsecaseRequests, "Total number of use case invocations.", []string{"use_case", "outcome"}},
	{MHTTPRequests, "Total number of HTTP requests.", []string{"method", "route", "status"}},
	{MExternalRequests, "Total number of calls to external peers.", []string{"peer", "endpoint", "outcome"}},
	{MCheckoutEvents, "Checkout events observed by the audit worker.", []string{"event"}},
}

// HistogramSpecs lists every histogram the service emits.
var HistogramSpecs = []MetricSpec{
	{MUsecaseDuration, "Duration of use case execution in seconds.", []string{"use_case"}},
	{MHTTPRequestDuration, "HTTP request latency in seconds.", []string{"method", "route", "status"}},
	{MExternalRequestDuration, "Latency of calls to external peers in seconds.", []string{"peer", "endpoint"}},
}
