// Package misc holds small helpers shared by the command-line entry points.
package misc

import (
	"fmt"
	"net/url"
	"strings"
)

// OAuthCallback captures the parameters of a pasted redirect URL.
type OAuthCallback struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// Values returns the callback as a redirect query.
func (c *OAuthCallback) Values() url.Values {
	values := url.Values{}
	if c == nil {
		return values
	}
	set := func(key, value string) {
		if value != "" {
			values.Set(key, value)
		}
	}
	set("code", c.Code)
	set("state", c.State)
	set("error", c.Error)
	set("error_description", c.ErrorDescription)
	return values
}

// ParseOAuthCallback extracts OAuth parameters from a redirect URL the user pasted into the
// terminal. Scheme-less URLs, bare query strings and fragment-carried parameters are
// accepted. It returns nil, nil when the input is empty.
func ParseOAuthCallback(input string) (*OAuthCallback, error) {
	candidate, err := normalizeCallbackInput(input)
	if err != nil || candidate == "" {
		return nil, err
	}

	parsedURL, err := url.Parse(candidate)
	if err != nil {
		return nil, err
	}

	query := parsedURL.Query()
	if parsedURL.Fragment != "" {
		if fragment, errFrag := url.ParseQuery(parsedURL.Fragment); errFrag == nil {
			for _, key := range []string{"code", "state", "error", "error_description"} {
				if strings.TrimSpace(query.Get(key)) == "" && fragment.Get(key) != "" {
					query.Set(key, fragment.Get(key))
				}
			}
		}
	}

	result := &OAuthCallback{
		Code:             strings.TrimSpace(query.Get("code")),
		State:            strings.TrimSpace(query.Get("state")),
		Error:            strings.TrimSpace(query.Get("error")),
		ErrorDescription: strings.TrimSpace(query.Get("error_description")),
	}
	if result.Code != "" && result.State == "" && strings.Contains(result.Code, "#") {
		parts := strings.SplitN(result.Code, "#", 2)
		result.Code, result.State = parts[0], parts[1]
	}
	if result.Error == "" && result.ErrorDescription != "" {
		result.Error, result.ErrorDescription = result.ErrorDescription, ""
	}
	if result.Code == "" && result.Error == "" {
		return nil, fmt.Errorf("callback URL missing code")
	}
	return result, nil
}

func normalizeCallbackInput(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	switch {
	case trimmed == "":
		return "", nil
	case strings.Contains(trimmed, "://"):
		return trimmed, nil
	case strings.HasPrefix(trimmed, "?"):
		return "http://localhost" + trimmed, nil
	case strings.ContainsAny(trimmed, "/?#:"):
		return "http://" + trimmed, nil
	case strings.Contains(trimmed, "="):
		return "http://localhost/?" + trimmed, nil
	default:
		return "", fmt.Errorf("invalid callback URL")
	}
}
