package sms

import (
	"fmt"
	"net/http"
)

const (
	CodeInvalidTrafficType   = "INVALID_TRAFFIC_TYPE"
	CodeInvalidPhone         = "INVALID_PHONE"
	CodeUnknownTemplate      = "UNKNOWN_TEMPLATE"
	CodeUnresolvedVariables  = "UNRESOLVED_VARIABLES"
	CodeLaneViolation        = "LANE_VIOLATION"
	CodeComplianceViolation  = "COMPLIANCE_VIOLATION"
	CodeRoutingNotConfigured = "ROUTING_NOT_CONFIGURED"
	CodeProviderUnavailable  = "PROVIDER_UNAVAILABLE"
	CodeInvalidRequest       = "INVALID_REQUEST"
)

// RouteError is a rejected or failed send. It maps 1:1 to the HTTP error body.
type RouteError struct {
	Status           int
	Message          string
	Code             string
	DetectedKeywords []string
	Lane             Lane
	Template         string
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func badRequest(code, message string) *RouteError {
	return &RouteError{Status: http.StatusBadRequest, Code: code, Message: message}
}

// ProviderError is an error response returned by the telephony provider.
type ProviderError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned %d (code %d): %s", e.StatusCode, e.Code, e.Message)
}
