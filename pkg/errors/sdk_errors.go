// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const errKey = "message"

var (
	// errJSONKey indicates response body did not contain an error message.
	errJSONKey = New("response body expected error message json key not found")

	// ErrUnknown indicates that an unknown error was found in the response body.
	errUnknown = New("unknown error")
)

// SDKError is an error type for the agent SDK.
type SDKError interface {
	Error
	StatusCode() int
}

var _ SDKError = (*sdkError)(nil)

type sdkError struct {
	*customError
	statusCode int
}

func (ce *sdkError) Error() string {
	if ce == nil {
		return ""
	}
	if ce.customError == nil || ce.customError.msg == "" {
		return http.StatusText(ce.statusCode)
	}
	return fmt.Sprintf("Status: %s: %s", http.StatusText(ce.statusCode), ce.customError.Error())
}

func (ce *sdkError) StatusCode() int {
	return ce.statusCode
}

// NewSDKError returns an SDK Error that is initialized with provided error.
func NewSDKError(e error) SDKError {
	if e == nil {
		return nil
	}
	if ce, ok := e.(*customError); ok {
		return &sdkError{
			customError: ce,
			statusCode:  0,
		}
	}

	return &sdkError{
		customError: &customError{
			msg: e.Error(),
			err: nil,
		},
		statusCode: 0,
	}
}

// NewSDKErrorWithStatus returns an SDK Error setting the status code.
func NewSDKErrorWithStatus(e error, statusCode int) SDKError {
	if e == nil {
		return nil
	}
	if ce, ok := e.(*customError); ok {
		return &sdkError{
			statusCode:  statusCode,
			customError: ce,
		}
	}

	return &sdkError{
		statusCode: statusCode,
		customError: &customError{
			msg: e.Error(),
			err: nil,
		},
	}
}

// CheckError will check the HTTP response status code and matches it with the
// given status codes. Since multiple status codes can be valid, we can pass
// multiple status codes to the function. The function then checks for errors
// in the HTTP response.
func CheckError(resp *http.Response, expectedStatusCodes ...int) SDKError {
	if resp == nil {
		return nil
	}
	for _, expectedStatusCode := range expectedStatusCodes {
		if resp.StatusCode == expectedStatusCode {
			return nil
		}
	}

	var content map[string]interface{}
	body, bErr := io.ReadAll(resp.Body)
	if bErr != nil {
		return NewSDKError(bErr)
	}
	if err := json.Unmarshal(body, &content); err != nil {
		return NewSDKErrorWithStatus(errUnknown, resp.StatusCode)
	}

	if msg, ok := content[errKey]; ok {
		if v, ok := msg.(string); ok {
			return NewSDKErrorWithStatus(New(v), resp.StatusCode)
		}
		return NewSDKErrorWithStatus(errUnknown, resp.StatusCode)
	}

	return NewSDKErrorWithStatus(errJSONKey, resp.StatusCode)
}
