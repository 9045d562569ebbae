package handshake

import (
	"bytes"
	"mime"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Classify maps a completed exchange response to a Result.
//
// Precedence:
//  1. 2xx with a JSON content type and a non-empty body: parse it; failure is a
//     MalformedPayload, otherwise Success with the optional "username" field.
//  2. non-2xx: HTTPFailure with the best diagnostic message the body offers.
//  3. 2xx with any other content type or no body: Success with an absent identity.
func Classify(resp *Response) Result {
	if resp == nil {
		return MalformedPayload{Detail: "no response"}
	}
	if !resp.OK() {
		return HTTPFailure{Status: resp.Status, Message: failureMessage(resp)}
	}
	if !isJSONContentType(resp.Header) {
		return Success{}
	}
	if resp.BodyErr != nil {
		return MalformedPayload{Detail: resp.BodyErr.Error()}
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return Success{}
	}
	if !gjson.ValidBytes(resp.Body) {
		return MalformedPayload{Detail: "response body is not valid JSON"}
	}
	return Success{Identity: identityFrom(resp.Body)}
}

func identityFrom(body []byte) Identity {
	username, ok := scalarText(gjson.GetBytes(body, "username"))
	if !ok {
		return Identity{}
	}
	return NewIdentity(username)
}

// failureMessage prefers a JSON "message" field, then the raw text, then a status message.
// The raw text is returned as received; a blank body counts as empty.
func failureMessage(resp *Response) string {
	if resp.BodyErr != nil {
		return GenericStatusMessage(resp.Status)
	}
	text := string(resp.Body)
	if strings.TrimSpace(text) == "" {
		return GenericStatusMessage(resp.Status)
	}
	if gjson.Valid(text) {
		if message, ok := scalarText(gjson.Get(text, "message")); ok && strings.TrimSpace(message) != "" {
			return message
		}
	}
	return text
}

// scalarText returns the textual form of a JSON string, number or boolean.
// Missing fields, null, objects and arrays yield false.
func scalarText(value gjson.Result) (string, bool) {
	switch value.Type {
	case gjson.String:
		return value.Str, true
	case gjson.Number, gjson.True, gjson.False:
		return value.String(), true
	default:
		return "", false
	}
}

func isJSONContentType(header http.Header) bool {
	raw := strings.TrimSpace(header.Get("Content-Type"))
	if raw == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.Contains(strings.ToLower(raw), "application/json")
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
