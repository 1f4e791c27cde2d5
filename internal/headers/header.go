// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

// Package headers defines the HTTP headers and content
// types used by FCKV servers and clients.
package headers

// HTTP headers.
const (
	Allow               = "Allow"                  // RFC 9110
	ContentType         = "Content-Type"           // RFC 9110
	ContentLength       = "Content-Length"         // RFC 9110
	XContentTypeOptions = "X-Content-Type-Options" // Non-standard
)

// HTTP content types.
const (
	ContentTypeBinary    = "application/octet-stream"
	ContentTypeJSON      = "application/json"
	ContentTypeJSONLines = "application/x-ndjson"
)
