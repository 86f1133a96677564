// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package acme implements the RFC 8555 client side: directory discovery,
// account management, the order/challenge state machine and certificate
// retrieval. One Client is one protocol session; it owns the directory
// cache and the single replay-nonce slot, so it must not be shared across
// concurrently renewing domains.
package acme

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/absmach/acme-agent/pkg/errors"
	"github.com/mitchellh/mapstructure"
)

const (
	contentTypeJOSE    = "application/jose+json"
	headerReplayNonce  = "Replay-Nonce"
	headerLocation     = "Location"
	maxResponseBody    = 1024 * 1024
	defaultHTTPTimeout = 30 * time.Second
)

var (
	// ErrDirectoryIncomplete indicates the CA directory lacks a mandatory endpoint.
	ErrDirectoryIncomplete = errors.New("directory missing required endpoint")

	// ErrMissingNonce indicates no replay nonce is held and none can be fetched.
	ErrMissingNonce = errors.New("no replay nonce available and no newNonce endpoint known")

	// ErrNonceHeader indicates the newNonce endpoint answered without a Replay-Nonce header.
	ErrNonceHeader = errors.New("newNonce response missing Replay-Nonce header")

	// ErrMissingLocation indicates a resource-creating response carried no Location header.
	ErrMissingLocation = errors.New("response missing Location header")

	// ErrTransport indicates a network-level failure talking to the CA;
	// retried by the next control-loop iteration.
	ErrTransport = errors.New("request to CA failed")
)

// Config carries the session parameters of one Client.
type Config struct {
	// BaseURL is the root of the CA, e.g. https://ca:9000.
	BaseURL string
	// ProvisionerPath is appended to BaseURL to form the directory URL,
	// e.g. /acme/acme/directory for a step-ca provisioner.
	ProvisionerPath string
	// InsecureSkipVerify disables TLS verification of the CA endpoint.
	// Development-profile opt-in only.
	InsecureSkipVerify bool
	// Timeout bounds every single HTTP exchange with the CA.
	Timeout time.Duration
}

// Client is a single ACME session against one CA.
type Client struct {
	directoryURL string
	httpClient   *http.Client
	logger       *slog.Logger

	// Session state: cached directory and the single unconsumed nonce.
	// Single-writer by contract; see the package comment.
	directory *Directory
	nonce     string

	pollInterval time.Duration
	authzTimeout time.Duration
	orderTimeout time.Duration
}

// NewClient builds a Client for the CA rooted at cfg.BaseURL.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultHTTPTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		directoryURL: strings.TrimRight(cfg.BaseURL, "/") + cfg.ProvisionerPath,
		httpClient:   &http.Client{Timeout: timeout, Transport: transport},
		logger:       logger,
		pollInterval: 2 * time.Second,
		authzTimeout: 30 * time.Second,
		orderTimeout: 60 * time.Second,
	}
}

// SetPollingBounds overrides the challenge/order polling parameters.
// Used by tests and by deployments with slow validation paths.
func (c *Client) SetPollingBounds(interval, authzTimeout, orderTimeout time.Duration) {
	c.pollInterval = interval
	c.authzTimeout = authzTimeout
	c.orderTimeout = orderTimeout
}

// Directory returns the CA endpoint map, fetching and caching it on first
// use. force bypasses the cache. The response is decoded into a raw map
// first so that missing mandatory endpoints are rejected here rather than
// surfacing later as empty request URLs.
func (c *Client) Directory(force bool) (Directory, error) {
	if c.directory != nil && !force {
		return *c.directory, nil
	}

	resp, err := c.httpClient.Get(c.directoryURL)
	if err != nil {
		return Directory{}, errors.Wrap(ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Directory{}, errors.Wrap(ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Directory{}, problemOrStatus(resp, body)
	}

	raw := map[string]any{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Directory{}, errors.Wrap(ErrDirectoryIncomplete, err)
	}
	for _, field := range []string{"newNonce", "newAccount", "newOrder"} {
		v, ok := raw[field].(string)
		if !ok || v == "" {
			return Directory{}, errors.Wrap(ErrDirectoryIncomplete, errors.New(field))
		}
	}

	var dir Directory
	if err := mapstructure.Decode(raw, &dir); err != nil {
		return Directory{}, errors.Wrap(ErrDirectoryIncomplete, err)
	}

	c.directory = &dir
	c.logger.Debug("fetched ACME directory", "url", c.directoryURL)
	return dir, nil
}

// takeNonce returns the held nonce, or fetches a fresh one when the slot is
// empty. The caller is about to embed it in a signature, so the slot is
// cleared: the next signed request must use the Replay-Nonce of the
// response that follows, or fetch again.
func (c *Client) takeNonce() (string, error) {
	if c.nonce != "" {
		n := c.nonce
		c.nonce = ""
		return n, nil
	}

	dir, err := c.Directory(false)
	if err != nil {
		return "", err
	}
	if dir.NewNonce == "" {
		return "", ErrMissingNonce
	}
	return c.freshNonce(dir.NewNonce)
}

// freshNonce performs the unauthenticated HEAD against newNonce.
func (c *Client) freshNonce(url string) (string, error) {
	resp, err := c.httpClient.Head(url)
	if err != nil {
		return "", errors.Wrap(ErrTransport, err)
	}
	defer resp.Body.Close()

	nonce := resp.Header.Get(headerReplayNonce)
	if nonce == "" {
		return "", ErrNonceHeader
	}
	return nonce, nil
}

// storeNonce replaces the held nonce with the Replay-Nonce of a response,
// if the server supplied one.
func (c *Client) storeNonce(resp *http.Response) {
	if n := resp.Header.Get(headerReplayNonce); n != "" {
		c.nonce = n
	}
}

// signedPost signs payload for url on behalf of acct and posts it. A nil
// payload produces a POST-as-GET. useJWK selects the embedded-key header
// used for account creation and lookup; every other request identifies the
// account by kid. Responses with status >= 400 are returned as *Problem.
func (c *Client) signedPost(acct *Account, url string, payload []byte, useJWK bool) ([]byte, *http.Response, error) {
	nonce, err := c.takeNonce()
	if err != nil {
		return nil, nil, err
	}

	header := protectedHeader{Alg: algRS256, Nonce: nonce, URL: url}
	if useJWK {
		jwk := acct.jwk
		header.JWK = &jwk
	} else {
		header.Kid = acct.URL
	}

	body, err := signJWS(acct.key, header, payload)
	if err != nil {
		return nil, nil, err
	}

	resp, err := c.httpClient.Post(url, contentTypeJOSE, bytes.NewReader(body))
	if err != nil {
		return nil, nil, errors.Wrap(ErrTransport, err)
	}
	defer resp.Body.Close()
	c.storeNonce(resp)

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, nil, errors.Wrap(ErrTransport, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, nil, problemOrStatus(resp, respBody)
	}
	return respBody, resp, nil
}

// postAsGet is the authenticated idempotent read of RFC 8555 §6.3: a signed
// POST whose payload segment base64url-encodes to the empty string.
func (c *Client) postAsGet(acct *Account, url string) ([]byte, *http.Response, error) {
	return c.signedPost(acct, url, nil, false)
}

// problemOrStatus decodes an ACME problem document, falling back to a bare
// HTTP status when the body is not one.
func problemOrStatus(resp *http.Response, body []byte) error {
	p := Problem{}
	if err := json.Unmarshal(body, &p); err == nil && (p.Type != "" || p.Detail != "") {
		p.Status = resp.StatusCode
		return &p
	}
	return &Problem{
		Type:   "about:blank",
		Detail: fmt.Sprintf("unexpected response: %s", strings.TrimSpace(string(body))),
		Status: resp.StatusCode,
	}
}
