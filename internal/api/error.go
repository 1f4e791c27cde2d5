// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"aead.dev/mem"
	"github.com/minio/fckv/internal/headers"
)

// Failr responds to the client with err. The response
// status code is set to err.Status. Handlers should
// return after calling Failr.
func Failr(r http.ResponseWriter, err Error) error {
	return Fail(r, err.Status(), err.Error())
}

// Failf is like Fail but formats the error message
// according to the format specifier.
func Failf(r http.ResponseWriter, code int, format string, a ...any) error {
	return Fail(r, code, fmt.Sprintf(format, a...))
}

// Fail responds to the client with the given status code
// and a JSON error message of the form {"message":msg}.
// Handlers should return after calling Fail.
func Fail(r http.ResponseWriter, code int, msg string) error {
	body, err := json.Marshal(ErrorResponse{Message: msg})
	if err != nil {
		return err
	}

	r.Header().Set(headers.ContentType, headers.ContentTypeJSON)
	r.Header().Set(headers.XContentTypeOptions, "nosniff")
	r.Header().Set(headers.ContentLength, strconv.Itoa(len(body)))
	r.WriteHeader(code)
	_, err = r.Write(body)
	return err
}

// ErrorResponse is the response body of a failed request.
type ErrorResponse struct {
	Message string `json:"message"`
}

// Error is an API error. Its status code is within
// 400 (inclusive) and 600 (exclusive).
type Error interface {
	error

	// Status returns the Error's HTTP status code.
	Status() int
}

// NewError returns a new Error from the given status code
// and error message. Errors with the same status code and
// message are equal and can be compared with errors.Is.
func NewError(code int, msg string) Error {
	return codeError{
		code: code,
		msg:  msg,
	}
}

// IsError returns the first error in err's tree that
// is an Error, if any.
func IsError(err error) (Error, bool) {
	var e Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ReadError decodes the error message of a failed request
// from the response body. Error messages larger than 5 KB
// are rejected.
func ReadError(resp *http.Response) Error {
	const MaxSize = 5 * mem.KB

	size := mem.Size(resp.ContentLength)
	if size <= 0 || size > MaxSize {
		size = MaxSize
	}
	body := mem.LimitReader(resp.Body, size)

	switch resp.Header.Get(headers.ContentType) {
	case headers.ContentTypeJSON:
		var response ErrorResponse
		if err := json.NewDecoder(body).Decode(&response); err != nil {
			return NewError(resp.StatusCode, err.Error())
		}
		return NewError(resp.StatusCode, response.Message)
	default:
		msg, err := io.ReadAll(body)
		if err != nil {
			return NewError(resp.StatusCode, err.Error())
		}
		if len(msg) == 0 {
			return NewError(resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		return NewError(resp.StatusCode, strings.TrimSpace(string(msg)))
	}
}

type codeError struct {
	code int
	msg  string
}

func (e codeError) Error() string { return e.msg }

func (e codeError) Status() int { return e.code }
