// Package processors provides cross-cutting services that plug into the container's
// invocation chain: authorization, transaction demarcation, interception, asynchronous
// dispatch and metering.
//
// Each processor decides whether it applies to an operation from the operation's tags:
//
//	TagRoles         "roles"          Security; the value is a comma separated role list
//	TagTransactional "transactional"  Transaction
//	TagIntercept     "intercept"      Interceptor; the value names the hook
//	TagAsync         "async"          Async
//	TagMetrics       "metrics"        Metrics, when created with OnlyTagged
package processors

const (
	TagRoles         = "roles"
	TagTransactional = "transactional"
	TagIntercept     = "intercept"
	TagAsync         = "async"
	TagMetrics       = "metrics"
)
