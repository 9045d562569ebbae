package handshake

import (
	"net/url"
	"strings"
)

// ExtractParameters reads code and state from the redirect query.
// It returns false when either value is missing or blank. Present values are kept verbatim.
func ExtractParameters(query url.Values) (RedirectParameters, bool) {
	params := RedirectParameters{
		Code:  query.Get("code"),
		State: query.Get("state"),
	}
	if strings.TrimSpace(params.Code) == "" || strings.TrimSpace(params.State) == "" {
		return RedirectParameters{}, false
	}
	return params, true
}

// ProviderError returns the error reported by the identity provider on the redirect, if any.
func ProviderError(query url.Values) (code, description string) {
	return strings.TrimSpace(query.Get("error")), strings.TrimSpace(query.Get("error_description"))
}
