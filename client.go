// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package fckv

import (
	"context"
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"aead.dev/mem"
	"github.com/minio/fckv/internal/api"
	"github.com/minio/fckv/internal/hash"
	"github.com/minio/fckv/internal/headers"
	"github.com/minio/fckv/internal/history"
	"github.com/minio/fckv/internal/https"
	"github.com/minio/fckv/internal/itable"
	cache "github.com/patrickmn/go-cache"
)

// MaxValueSize is the maximum size of a value.
const MaxValueSize = maxContentSize

// ClientConfig is a structure containing the FCKV client configuration.
type ClientConfig struct {
	// Endpoint is the FCKV server endpoint.
	// For example: https://127.0.0.1:7474
	Endpoint string

	// Certificate is the client's TLS certificate. Its private
	// key must be an RSA key of at least 2048 bits. The client
	// signs its version records with this key.
	Certificate tls.Certificate

	// RootCAs is the set of root CAs used to verify the server
	// certificate. If nil, the host's root CA set is used.
	RootCAs *x509.CertPool

	// InsecureSkipVerify disables verification of the server
	// certificate. It must only be used for testing.
	InsecureSkipVerify bool

	// HTTPClient is an optional HTTP client used to send requests.
	// It must present the Certificate during the TLS handshake.
	// If nil, the client uses an http.Transport with reasonable
	// defaults.
	HTTPClient *http.Client

	// Log is an optional handler for client log records, like
	// detected forks. If nil, the client does not log.
	Log slog.Handler

	// CacheExpiry controls how long the client caches verified
	// content. Content is immutable for a given hash. If <= 0,
	// the client does not cache content.
	CacheExpiry time.Duration

	// State is the client state of a previous client with the same
	// certificate. If nil, the client starts with an empty history.
	State *ClientState
}

// Client is a FCKV client.
//
// A client executes Get and Put operations against a FCKV server.
// It verifies that the server presents a history that is consistent
// with every history the client has seen before. If the server shows
// this client a history that diverges from what it has shown to other
// clients, the client detects this on its next operation that observes
// a history of one of those clients.
//
// The operations of one Client are executed sequentially.
type Client struct {
	endpoint string
	client   *http.Client
	key      crypto.Signer
	owner    []byte
	identity string
	log      *slog.Logger
	cache    *cache.Cache

	mu        sync.Mutex
	accepted  *history.Record
	table     *itable.Table
	tableHash hash.Sum
}

// NewClient returns a new Client for the given configuration.
func NewClient(conf *ClientConfig) (*Client, error) {
	if conf.Endpoint == "" {
		return nil, errors.New("fckv: no server endpoint")
	}
	key, ok := conf.Certificate.PrivateKey.(crypto.Signer)
	if !ok {
		return nil, errors.New("fckv: client certificate has no private key")
	}
	owner, err := history.Owner(key.Public())
	if err != nil {
		return nil, fmt.Errorf("fckv: invalid client key: %v", err)
	}
	identity := history.Identity(owner)

	leaf := conf.Certificate.Leaf
	if leaf == nil && len(conf.Certificate.Certificate) > 0 {
		if leaf, err = x509.ParseCertificate(conf.Certificate.Certificate[0]); err != nil {
			return nil, err
		}
	}
	if leaf == nil {
		return nil, errors.New("fckv: no client certificate")
	}
	if https.Identity(leaf) != identity {
		return nil, errors.New("fckv: client certificate does not match private key")
	}

	c := &Client{
		endpoint: conf.Endpoint,
		client:   conf.HTTPClient,
		key:      key,
		owner:    owner,
		identity: identity,
		log:      slog.New(discard{}),
	}
	if !strings.HasPrefix(c.endpoint, "https://") && !strings.HasPrefix(c.endpoint, "http://") {
		c.endpoint = "https://" + c.endpoint
	}
	if conf.Log != nil {
		c.log = slog.New(conf.Log)
	}
	if conf.CacheExpiry > 0 {
		c.cache = cache.New(conf.CacheExpiry, 2*conf.CacheExpiry)
	}
	if conf.State != nil && len(conf.State.Accepted) > 0 {
		var r history.Record
		if err = r.UnmarshalBinary(conf.State.Accepted); err != nil {
			return nil, fmt.Errorf("fckv: invalid client state: %v", err)
		}
		if r.Identity() != identity {
			return nil, errors.New("fckv: invalid client state: state belongs to a different identity")
		}
		if err = r.Verify(); err != nil {
			return nil, fmt.Errorf("fckv: invalid client state: %v", err)
		}
		c.accepted = &r
	}
	if c.client == nil {
		c.client = &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				TLSClientConfig: &tls.Config{
					MinVersion:         tls.VersionTLS12,
					Certificates:       []tls.Certificate{conf.Certificate},
					RootCAs:            conf.RootCAs,
					InsecureSkipVerify: conf.InsecureSkipVerify,
				},
			},
		}
	}
	return c, nil
}

// Identity returns the client's identity. It is the identity
// the server sees for the client's certificate.
func (c *Client) Identity() string { return c.identity }

// State returns a snapshot of the client state.
func (c *Client) State() *ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accepted == nil {
		return &ClientState{}
	}
	b, _ := c.accepted.MarshalBinary()
	return &ClientState{Accepted: b}
}

// Seq returns the sequence number of the client's most recently
// committed operation, or 0 if the client hasn't committed any.
func (c *Client) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accepted == nil {
		return 0
	}
	return c.accepted.Seq
}

// Get returns the value of the given key.
//
// It returns ErrKeyNotFound if no such key exists. It returns
// ErrSignatureMismatch, ErrIncompatibleHistory, ErrInvalidSignature
// or ErrIntegrity if the server misbehaves.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	op, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	value, err := c.get(ctx, op, key)
	if err != nil {
		return nil, c.abort(ctx, err)
	}
	if err = c.commit(ctx, op); err != nil {
		return nil, err
	}
	return value, nil
}

// Put sets the value of the given key.
//
// It returns ErrSignatureMismatch, ErrIncompatibleHistory,
// ErrInvalidSignature or ErrIntegrity if the server misbehaves.
func (c *Client) Put(ctx context.Context, key string, value []byte) error {
	if mem.Size(len(value)) > MaxValueSize {
		return fmt.Errorf("fckv: value exceeds %d bytes", int64(MaxValueSize))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	op, err := c.begin(ctx)
	if err != nil {
		return err
	}
	if err = c.put(ctx, op, key, value); err != nil {
		return c.abort(ctx, err)
	}
	return c.commit(ctx, op)
}

// Keys returns all keys in sorted order.
func (c *Client) Keys(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	op, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	keys := op.table.Keys()
	if err = c.commit(ctx, op); err != nil {
		return nil, err
	}
	return keys, nil
}

// begin starts a new operation. It acquires the server's
// operation lock, validates the ledger and refreshes the
// indirection table. It releases the lock if any of these
// steps fail.
func (c *Client) begin(ctx context.Context) (*operation, error) {
	entries, err := c.startOp(ctx)
	if err != nil {
		return nil, err
	}
	op, err := c.validate(entries)
	if err != nil {
		return nil, c.abort(ctx, err)
	}
	if err = c.refreshTable(ctx, op); err != nil {
		return nil, c.abort(ctx, err)
	}
	return op, nil
}

// commit commits the operation's record. Once committed,
// the record becomes the client's accepted record.
func (c *Client) commit(ctx context.Context, op *operation) error {
	b, err := op.record.MarshalBinary()
	if err != nil {
		return c.abort(ctx, err)
	}
	if err = c.commitOp(ctx, b); err != nil {
		return c.abort(ctx, err)
	}

	c.accepted = &op.record
	c.table, c.tableHash = op.table, op.record.Table
	return nil
}

// abort releases the server's operation lock and returns err.
func (c *Client) abort(ctx context.Context, err error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if aErr := c.abortOp(ctx); aErr != nil {
		c.log.Debug("fckv: failed to abort operation", "err", aErr)
	}
	return err
}

func (c *Client) get(ctx context.Context, op *operation, key string) ([]byte, error) {
	sum, ok := op.table.Lookup(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	if c.cache != nil {
		if v, ok := c.cache.Get(sum.String()); ok {
			return slices.Clone(v.([]byte)), nil
		}
	}

	value, err := c.getContent(ctx, sum)
	if err != nil {
		return nil, err
	}
	if got := hash.Of(value); got != sum {
		c.log.Warn("fckv: server returned content with wrong hash", "key", key, "hash", sum, "got", got)
		return nil, fmt.Errorf("%w: content of '%s' has hash '%s' - want '%s'", ErrIntegrity, key, got, sum)
	}
	if c.cache != nil {
		c.cache.SetDefault(sum.String(), slices.Clone(value))
	}
	return value, nil
}

func (c *Client) put(ctx context.Context, op *operation, key string, value []byte) error {
	sum, err := c.putContent(ctx, value)
	if err != nil {
		return err
	}
	if want := hash.Of(value); sum != want {
		c.log.Warn("fckv: server reported wrong content hash", "key", key, "hash", sum, "want", want)
		return fmt.Errorf("%w: server reported hash '%s' for '%s' - want '%s'", ErrIntegrity, sum, key, want)
	}

	table := op.table.Clone()
	table.Set(key, sum)
	b, err := table.MarshalBinary()
	if err != nil {
		return err
	}
	tableSum, err := c.putContent(ctx, b)
	if err != nil {
		return err
	}
	if want := table.Hash(); tableSum != want {
		c.log.Warn("fckv: server reported wrong indirection table hash", "hash", tableSum, "want", want)
		return fmt.Errorf("%w: server reported hash '%s' for indirection table - want '%s'", ErrIntegrity, tableSum, want)
	}

	op.table = table
	op.record.Table = tableSum
	return op.record.Sign(c.key)
}

// Status describes the state of a FCKV server.
type Status struct {
	Version    string        // Server version
	OS         string        // OS running the server
	Arch       string        // CPU architecture the server is running on
	UpTime     time.Duration // Time the server has been up and running
	CPUs       int           // Number of available logical CPU cores
	UsableCPUs int           // Number of usable logical CPU cores
	HeapAlloc  uint64        // Number of bytes currently allocated on the heap
	StackAlloc uint64        // Number of bytes currently allocated on the stack

	LockHolder string        // Identity holding the operation lock, if any
	LockExpiry time.Duration // Time until the lock lease expires
	LedgerSize int           // Number of ledger entries
	TamperMode string        // Tamper mode applied to content writes

	StoreLatency     time.Duration // Latency of the storage engine
	StoreUnreachable bool          // Whether the storage engine is unreachable
}

// Status returns the current state of the server.
func (c *Client) Status(ctx context.Context) (Status, error) {
	const MaxResponseSize = 1 * mem.MiB

	resp, err := c.send(ctx, http.MethodGet, api.PathStatus, nil, "")
	if err != nil {
		return Status{}, err
	}
	defer resp.Body.Close()

	var response api.StatusResponse
	if err = json.NewDecoder(mem.LimitReader(resp.Body, MaxResponseSize)).Decode(&response); err != nil {
		return Status{}, err
	}
	return Status{
		Version:          response.Version,
		OS:               response.OS,
		Arch:             response.Arch,
		UpTime:           time.Duration(response.UpTime) * time.Second,
		CPUs:             response.CPUs,
		UsableCPUs:       response.UsableCPUs,
		HeapAlloc:        response.HeapAlloc,
		StackAlloc:       response.StackAlloc,
		LockHolder:       response.LockHolder,
		LockExpiry:       time.Duration(response.LockExpiry) * time.Second,
		LedgerSize:       response.LedgerSize,
		TamperMode:       response.TamperMode,
		StoreLatency:     time.Duration(response.StoreLatency) * time.Microsecond,
		StoreUnreachable: response.StoreUnreachable,
	}, nil
}

// Version returns the version of the server.
func (c *Client) Version(ctx context.Context) (string, error) {
	const MaxResponseSize = 1 * mem.KiB

	resp, err := c.send(ctx, http.MethodGet, api.PathVersion, nil, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var response api.VersionResponse
	if err = json.NewDecoder(mem.LimitReader(resp.Body, MaxResponseSize)).Decode(&response); err != nil {
		return "", err
	}
	return response.Version, nil
}

// Tamper changes the server's tamper mode. The hash is only used
// by TamperBadData and identifies the content to overwrite.
//
// Only the server admin can tamper with a server that has
// tampering enabled. Tamper must only be used for testing.
func (c *Client) Tamper(ctx context.Context, mode TamperMode, sum hash.Sum) error {
	body, err := json.Marshal(api.TamperRequest{
		Mode: mode.String(),
		Hash: sum,
	})
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, http.MethodPut, api.PathTamper, body, headers.ContentTypeJSON)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

type discard struct{}

func (discard) Enabled(context.Context, slog.Level) bool  { return false }
func (discard) Handle(context.Context, slog.Record) error { return nil }
func (d discard) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discard) WithGroup(string) slog.Handler           { return d }
