// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package sdk

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/absmach/acme-agent/pkg/errors"
	"moul.io/http2curl"
)

const (
	statusEndpoint   = "agent/status"
	renewEndpoint    = "agent/renew"
	revokeEndpoint   = "agent/revoke"
	renewalsEndpoint = "agent/renewals"
	healthEndpoint   = "health"
)

const (
	// CTJSON represents JSON content type.
	CTJSON ContentType = "application/json"

	// CTBinary represents binary content type.
	CTBinary ContentType = "application/octet-stream"
)

// ContentType represents all possible content types.
type ContentType string

type PageMetadata struct {
	Total  uint64 `json:"total,omitempty"`
	Offset uint64 `json:"offset,omitempty"`
	Limit  uint64 `json:"limit,omitempty"`
	Domain string `json:"domain,omitempty"`
}

type Status struct {
	Domain             string    `json:"domain"`
	CertificatePresent bool      `json:"certificate_present"`
	SerialNumber       string    `json:"serial_number,omitempty"`
	NotBefore          time.Time `json:"not_before,omitempty"`
	NotAfter           time.Time `json:"not_after,omitempty"`
	LifetimeElapsedPct float64   `json:"lifetime_elapsed_pct"`
	ThresholdPct       float64   `json:"threshold_pct"`
	Revocation         string    `json:"revocation,omitempty"`
	RenewalDue         bool      `json:"renewal_due"`
	Reason             string    `json:"reason,omitempty"`
}

type Renewal struct {
	ID           string    `json:"id"`
	Domain       string    `json:"domain"`
	SerialNumber string    `json:"serial_number,omitempty"`
	Outcome      string    `json:"outcome,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	Reloaded     bool      `json:"reloaded"`
	StartedAt    time.Time `json:"started_at,omitempty"`
	FinishedAt   time.Time `json:"finished_at"`
}

type RenewalPage struct {
	Total    uint64    `json:"total"`
	Offset   uint64    `json:"offset"`
	Limit    uint64    `json:"limit"`
	Renewals []Renewal `json:"records,omitempty"`
}

type Health struct {
	Status     string `json:"status"`
	Service    string `json:"service"`
	InstanceID string `json:"instance_id"`
}

type Config struct {
	AgentURL string

	MsgContentType  ContentType
	TLSVerification bool
	CurlFlag        bool
}

type agentSDK struct {
	agentURL string

	msgContentType ContentType
	client         *http.Client
	curlFlag       bool
}

type SDK interface {
	// Status reports the certificate state and the pending policy decision.
	//
	// example:
	//  status, _ := sdk.Status()
	//  fmt.Println(status)
	Status() (Status, errors.SDKError)

	// Renew triggers an immediate renewal regardless of policy.
	//
	// example:
	//  renewal, _ := sdk.Renew()
	//  fmt.Println(renewal)
	Renew() (Renewal, errors.SDKError)

	// Revoke asks the agent to revoke the installed certificate at the CA.
	//
	// example:
	//  err := sdk.Revoke()
	//  fmt.Println(err)
	Revoke() errors.SDKError

	// Renewals lists past renewal attempts, newest first.
	//
	// example:
	//  page, _ := sdk.Renewals(PageMetadata{Limit: 10, Offset: 0})
	//  fmt.Println(page)
	Renewals(pm PageMetadata) (RenewalPage, errors.SDKError)

	// Health checks agent liveness.
	//
	// example:
	//  health, _ := sdk.Health()
	//  fmt.Println(health)
	Health() (Health, errors.SDKError)
}

func (sdk agentSDK) Status() (Status, errors.SDKError) {
	url := fmt.Sprintf("%s/%s", sdk.agentURL, statusEndpoint)
	_, body, sdkerr := sdk.processRequest(http.MethodGet, url, nil, nil, http.StatusOK)
	if sdkerr != nil {
		return Status{}, sdkerr
	}

	var status Status
	if err := json.Unmarshal(body, &status); err != nil {
		return Status{}, errors.NewSDKError(err)
	}
	return status, nil
}

func (sdk agentSDK) Renew() (Renewal, errors.SDKError) {
	url := fmt.Sprintf("%s/%s", sdk.agentURL, renewEndpoint)
	_, body, sdkerr := sdk.processRequest(http.MethodPost, url, nil, nil, http.StatusOK)
	if sdkerr != nil {
		return Renewal{}, sdkerr
	}

	var renewal Renewal
	if err := json.Unmarshal(body, &renewal); err != nil {
		return Renewal{}, errors.NewSDKError(err)
	}
	return renewal, nil
}

func (sdk agentSDK) Revoke() errors.SDKError {
	url := fmt.Sprintf("%s/%s", sdk.agentURL, revokeEndpoint)
	_, _, sdkerr := sdk.processRequest(http.MethodPost, url, nil, nil, http.StatusNoContent)
	return sdkerr
}

func (sdk agentSDK) Renewals(pm PageMetadata) (RenewalPage, errors.SDKError) {
	url, err := sdk.withQueryParams(sdk.agentURL, renewalsEndpoint, pm)
	if err != nil {
		return RenewalPage{}, errors.NewSDKError(err)
	}
	_, body, sdkerr := sdk.processRequest(http.MethodGet, url, nil, nil, http.StatusOK)
	if sdkerr != nil {
		return RenewalPage{}, sdkerr
	}

	var page RenewalPage
	if err := json.Unmarshal(body, &page); err != nil {
		return RenewalPage{}, errors.NewSDKError(err)
	}
	return page, nil
}

func (sdk agentSDK) Health() (Health, errors.SDKError) {
	url := fmt.Sprintf("%s/%s", sdk.agentURL, healthEndpoint)
	_, body, sdkerr := sdk.processRequest(http.MethodGet, url, nil, nil, http.StatusOK)
	if sdkerr != nil {
		return Health{}, sdkerr
	}

	var health Health
	if err := json.Unmarshal(body, &health); err != nil {
		return Health{}, errors.NewSDKError(err)
	}
	return health, nil
}

func NewSDK(conf Config) SDK {
	return &agentSDK{
		agentURL: conf.AgentURL,

		msgContentType: conf.MsgContentType,
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !conf.TLSVerification,
				},
			},
		},
		curlFlag: conf.CurlFlag,
	}
}

// processRequest creates and send a new HTTP request, and checks for errors in the HTTP response.
// It then returns the response headers, the response body, and the associated error(s) (if any).
func (sdk agentSDK) processRequest(method, reqUrl string, data []byte, headers map[string]string, expectedRespCodes ...int) (http.Header, []byte, errors.SDKError) {
	req, err := http.NewRequest(method, reqUrl, bytes.NewReader(data))
	if err != nil {
		return make(http.Header), []byte{}, errors.NewSDKError(err)
	}

	// Sets a default value for the Content-Type.
	// Overridden if Content-Type is passed in the headers arguments.
	req.Header.Add("Content-Type", string(CTJSON))

	for key, value := range headers {
		req.Header.Add(key, value)
	}

	if sdk.curlFlag {
		curlCommand, err := http2curl.GetCurlCommand(req)
		if err != nil {
			return nil, nil, errors.NewSDKError(err)
		}
		log.Println(curlCommand.String())
	}

	resp, err := sdk.client.Do(req)
	if err != nil {
		return make(http.Header), []byte{}, errors.NewSDKError(err)
	}
	defer resp.Body.Close()
	sdkerr := errors.CheckError(resp, expectedRespCodes...)
	if sdkerr != nil {
		return make(http.Header), []byte{}, sdkerr
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return make(http.Header), []byte{}, errors.NewSDKError(err)
	}
	return resp.Header, body, nil
}

func (sdk agentSDK) withQueryParams(baseURL, endpoint string, pm PageMetadata) (string, error) {
	q, err := pm.query()
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/%s?%s", baseURL, endpoint, q), nil
}

func (pm PageMetadata) query() (string, error) {
	q := url.Values{}
	if pm.Offset != 0 {
		q.Add("offset", strconv.FormatUint(pm.Offset, 10))
	}
	if pm.Limit != 0 {
		q.Add("limit", strconv.FormatUint(pm.Limit, 10))
	}
	if pm.Domain != "" {
		q.Add("domain", pm.Domain)
	}

	return q.Encode(), nil
}
