package ratelimit

// RequestContext is the identity and routing information resolved by the
// request-handling layer before admission control runs.
type RequestContext struct {
	Method        string
	Path          string
	SourceAddress string
	PrincipalID   string
	APIKey        string
}

// HasAPIKey reports whether the request carries an API key discriminator.
func (r RequestContext) HasAPIKey() bool {
	return r.APIKey != ""
}
