package hubspot

import (
	"encoding/json"
	"fmt"
	"strings"
)

// APIError is a non-2xx response from the HubSpot API.
type APIError struct {
	StatusCode    int    `json:"-"`
	Status        string `json:"status"`
	Message       string `json:"message"`
	Category      string `json:"category"`
	ErrorType     string `json:"errorType"`
	PolicyName    string `json:"policyName"`
	CorrelationID string `json:"correlationId"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "status %d", e.StatusCode)
	if e.ErrorType != "" {
		fmt.Fprintf(&b, " %s", e.ErrorType)
	} else if e.Category != "" {
		fmt.Fprintf(&b, " %s", e.Category)
	}
	if e.PolicyName != "" {
		fmt.Fprintf(&b, " (%s)", e.PolicyName)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	return b.String()
}

// HTTPStatusCode returns the response status code.
func (e *APIError) HTTPStatusCode() int {
	return e.StatusCode
}

// parseAPIError builds an APIError from a response body. Bodies that are not
// HubSpot error JSON are kept verbatim as the message.
func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	apiErr.StatusCode = statusCode
	return apiErr
}
