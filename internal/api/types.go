// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package api

import (
	"time"

	"github.com/minio/fckv/internal/hash"
)

// VersionResponse is the response sent to clients by the Version API.
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// StatusResponse is the response sent to clients by the Status API.
type StatusResponse struct {
	Version    string `json:"version"`
	OS         string `json:"os"`
	Arch       string `json:"arch"`
	UpTime     uint64 `json:"uptime"` // in seconds
	CPUs       int    `json:"num_cpu"`
	UsableCPUs int    `json:"num_cpu_used"`
	HeapAlloc  uint64 `json:"mem_heap_used"`
	StackAlloc uint64 `json:"mem_stack_used"`

	LockHolder   string `json:"lock_holder,omitempty"`
	LockExpiry   int64  `json:"lock_expiry,omitempty"` // in seconds, relative to now
	LedgerSize   int    `json:"ledger_size"`
	TamperMode   string `json:"tamper_mode,omitempty"`
	StoreLatency int64  `json:"store_latency,omitempty"` // in microseconds

	StoreUnreachable bool `json:"store_unreachable,omitempty"`
}

// DescribeRouteResponse describes a single API route. It is part of
// a List API response.
type DescribeRouteResponse struct {
	Method  string `json:"method"`
	Path    string `json:"path"`
	MaxBody int64  `json:"max_body"`
	Timeout int64  `json:"timeout"` // in seconds
}

// ListAPIsResponse is the response sent to clients by the List APIs API.
type ListAPIsResponse []DescribeRouteResponse

// StartOpResponse is the response sent to clients by the StartOp API.
// Each record is a binary-encoded version record.
type StartOpResponse struct {
	Records [][]byte `json:"records"`
}

// PutContentResponse is the response sent to clients by the PutContent API.
type PutContentResponse struct {
	Hash hash.Sum `json:"hash"`
}

// TamperRequest is the request sent by clients when calling the Tamper API.
type TamperRequest struct {
	Mode string   `json:"mode"`
	Hash hash.Sum `json:"hash,omitempty"`
}

// AuditLogEvent is one line of the AuditLog API stream.
type AuditLogEvent struct {
	Time     time.Time `json:"time"`
	Method   string    `json:"method"`
	Path     string    `json:"path"`
	Identity string    `json:"identity,omitempty"`
	IP       string    `json:"ip,omitempty"`
	Status   int       `json:"status"`
	Latency  int64     `json:"latency"` // in microseconds
}

// ErrorLogEvent is one line of the ErrorLog API stream.
type ErrorLogEvent struct {
	Message string `json:"message"`
}
