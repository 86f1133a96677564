// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package acme

import (
	"fmt"
	"time"
)

// Order status values (RFC 8555 §7.1.6).
const (
	StatusPending    = "pending"
	StatusReady      = "ready"
	StatusProcessing = "processing"
	StatusValid      = "valid"
	StatusInvalid    = "invalid"
	StatusExpired    = "expired"
)

// ChallengeHTTP01 is the only challenge type this agent fulfils.
const ChallengeHTTP01 = "http-01"

// Directory holds the endpoint URLs advertised by the CA. It is fetched
// once per session and cached; newNonce, newAccount and newOrder are
// mandatory and validated at the deserialization boundary.
type Directory struct {
	NewNonce   string `json:"newNonce"   mapstructure:"newNonce"`
	NewAccount string `json:"newAccount" mapstructure:"newAccount"`
	NewOrder   string `json:"newOrder"   mapstructure:"newOrder"`
	NewAuthz   string `json:"newAuthz"   mapstructure:"newAuthz"`
	RevokeCert string `json:"revokeCert" mapstructure:"revokeCert"`
	KeyChange  string `json:"keyChange"  mapstructure:"keyChange"`
}

// Identifier names a single subject of an order. The agent only ever
// requests "dns" identifiers.
type Identifier struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Order is the CA-side resource tracking one issuance attempt. URL is taken
// from the Location header of the newOrder response, never from the body.
type Order struct {
	URL            string       `json:"-"`
	Status         string       `json:"status"`
	Expires        time.Time    `json:"expires,omitempty"`
	Identifiers    []Identifier `json:"identifiers"`
	Authorizations []string     `json:"authorizations"`
	Finalize       string       `json:"finalize"`
	Certificate    string       `json:"certificate,omitempty"`
	Error          *Problem     `json:"error,omitempty"`
}

// Authorization carries the challenges offered for one identifier.
type Authorization struct {
	URL        string      `json:"-"`
	Status     string      `json:"status"`
	Expires    time.Time   `json:"expires,omitempty"`
	Identifier Identifier  `json:"identifier"`
	Challenges []Challenge `json:"challenges"`
	Wildcard   bool        `json:"wildcard,omitempty"`
}

// HTTP01 returns the http-01 challenge of the authorization, if offered.
func (a Authorization) HTTP01() (Challenge, bool) {
	for _, ch := range a.Challenges {
		if ch.Type == ChallengeHTTP01 {
			return ch, true
		}
	}
	return Challenge{}, false
}

// Challenge is a single validation method offered by the CA.
type Challenge struct {
	Type      string   `json:"type"`
	URL       string   `json:"url"`
	Status    string   `json:"status"`
	Token     string   `json:"token"`
	Validated string   `json:"validated,omitempty"`
	Error     *Problem `json:"error,omitempty"`
}

// Problem is the machine-readable error document (RFC 7807) returned by the
// CA on request rejection. It is terminal for the order it concerns: the
// agent abandons the order and starts a fresh one on the next cycle.
type Problem struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
	Status int    `json:"status,omitempty"`
}

func (p *Problem) Error() string {
	if p.Detail == "" {
		return fmt.Sprintf("acme problem %s (HTTP %d)", p.Type, p.Status)
	}
	return fmt.Sprintf("acme problem %s: %s (HTTP %d)", p.Type, p.Detail, p.Status)
}

type accountRequest struct {
	TermsOfServiceAgreed bool     `json:"termsOfServiceAgreed,omitempty"`
	OnlyReturnExisting   bool     `json:"onlyReturnExisting,omitempty"`
	Contact              []string `json:"contact,omitempty"`
}

type accountResponse struct {
	Status  string   `json:"status"`
	Contact []string `json:"contact,omitempty"`
	Orders  string   `json:"orders,omitempty"`
}

type orderRequest struct {
	Identifiers []Identifier `json:"identifiers"`
}

type finalizeRequest struct {
	CSR string `json:"csr"`
}

type revokeRequest struct {
	Certificate string `json:"certificate"`
	Reason      int    `json:"reason,omitempty"`
}
