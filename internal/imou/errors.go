package imou

import (
	"errors"
	"fmt"
)

// InvalidResponseError describes a cloud payload missing an expected field or
// carrying an unrecognized enumeration value.
type InvalidResponseError struct {
	Detail string
}

func (e *InvalidResponseError) Error() string {
	if e == nil {
		return "invalid response"
	}
	return fmt.Sprintf("invalid response: %s", e.Detail)
}

// APIError is a failure reported by the cloud side (rate limit, auth failure,
// unknown device). Code is the vendor error code from the result envelope.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e == nil {
		return "api error"
	}
	return fmt.Sprintf("api error %s: %s", e.Code, e.Message)
}

// NotConnectedError means an operation was attempted before a token/credential
// check succeeded.
type NotConnectedError struct {
	Reason string
}

func (e *NotConnectedError) Error() string {
	if e == nil {
		return "not connected"
	}
	return fmt.Sprintf("not connected: %s", e.Reason)
}

func IsInvalidResponse(err error) bool {
	var target *InvalidResponseError
	return errors.As(err, &target)
}

func IsAPIError(err error) bool {
	var target *APIError
	return errors.As(err, &target)
}

func IsNotConnected(err error) bool {
	var target *NotConnectedError
	return errors.As(err, &target)
}

// IsDomain reports whether err belongs to the imou error family.
func IsDomain(err error) bool {
	return IsInvalidResponse(err) || IsAPIError(err) || IsNotConnected(err)
}
