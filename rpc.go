// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package fckv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"aead.dev/mem"
	"github.com/minio/fckv/internal/api"
	"github.com/minio/fckv/internal/hash"
	"github.com/minio/fckv/internal/headers"
	"github.com/minio/fckv/internal/history"
)

// startOp acquires the server's operation lock and returns
// all ledger entries. It releases the lock again if the
// server's response cannot be decoded.
func (c *Client) startOp(ctx context.Context) ([][]byte, error) {
	// Every record is base64-encoded within a JSON string.
	const MaxResponseSize = history.MaxParticipants*mem.Size(4*history.MaxSize/3+8) + 1*mem.KiB

	resp, err := c.send(ctx, http.MethodPost, api.PathOpStart, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var response api.StartOpResponse
	if err = json.NewDecoder(mem.LimitReader(resp.Body, MaxResponseSize)).Decode(&response); err != nil {
		return nil, c.abort(ctx, fmt.Errorf("fckv: invalid start operation response: %v", err))
	}
	if len(response.Records) > history.MaxParticipants {
		return nil, c.abort(ctx, fmt.Errorf("fckv: server returned more than %d version records", history.MaxParticipants))
	}
	return response.Records, nil
}

// commitOp sends the binary-encoded record to the server
// which stores it and releases the operation lock.
func (c *Client) commitOp(ctx context.Context, record []byte) error {
	resp, err := c.send(ctx, http.MethodPost, api.PathOpCommit, record, headers.ContentTypeBinary)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// abortOp releases the server's operation lock.
func (c *Client) abortOp(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodPost, api.PathOpAbort, nil, "")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// getContent returns the content with the given hash.
// It does not verify the content.
func (c *Client) getContent(ctx context.Context, sum hash.Sum) ([]byte, error) {
	resp, err := c.send(ctx, http.MethodGet, api.PathContentGet+sum.String(), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(mem.LimitReader(resp.Body, maxContentSize+1))
	if err != nil {
		return nil, err
	}
	if mem.Size(len(b)) > maxContentSize {
		return nil, fmt.Errorf("fckv: content '%s' exceeds %d bytes", sum, int64(maxContentSize))
	}
	return b, nil
}

// putContent stores value and returns the hash reported by
// the server.
func (c *Client) putContent(ctx context.Context, value []byte) (hash.Sum, error) {
	const MaxResponseSize = 1 * mem.KiB

	resp, err := c.send(ctx, http.MethodPut, api.PathContentPut, value, headers.ContentTypeBinary)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var response api.PutContentResponse
	if err = json.NewDecoder(mem.LimitReader(resp.Body, MaxResponseSize)).Decode(&response); err != nil {
		return 0, err
	}
	return response.Hash, nil
}

// send sends a request to the server and returns the response
// if the server responds with 200 OK. Otherwise, it returns the
// server's error as api.Error.
//
// Requests that don't change server state are retried a few
// times when they fail due to a network error.
func (c *Client) send(ctx context.Context, method, path string, body []byte, contentType string) (*http.Response, error) {
	u, err := url.JoinPath(c.endpoint, path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, "/") && !strings.HasSuffix(u, "/") {
		u += "/"
	}

	var resp *http.Response
	for retry := 2; ; retry-- {
		req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		if contentType != "" {
			req.Header.Set(headers.ContentType, contentType)
		}

		resp, err = c.client.Do(req)
		if err == nil {
			break
		}
		if retry == 0 || method != http.MethodGet || !isNetworkError(err) {
			return nil, err
		}

		const (
			MinRetryDelay     = 200 * time.Millisecond
			MaxRandRetryDelay = 800 * time.Millisecond
		)
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(MinRetryDelay + rand.N(MaxRandRetryDelay)):
		}
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, api.ReadError(resp)
	}
	return resp, nil
}

// isNetworkError reports whether err is network error.
//
// A network error may occur due to a timeout or other
// network-related issues, like premature closing a
// network connection.
func isNetworkError(err error) bool {
	if err == nil { // fast path
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// If a connection drops (e.g. server dies) while sending the request
	// http.Do returns either io.EOF or io.ErrUnexpectedEOF. We treat that as
	// temporary since the server may get restarted such that the retry may
	// succeed.
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
