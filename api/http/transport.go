// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	agent "github.com/absmach/acme-agent"
	"github.com/absmach/acme-agent/internal/api"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	offsetKey = "offset"
	limitKey  = "limit"
	domainKey = "domain"
	defOffset = 0
	defLimit  = 10

	challengeContentType = "application/octet-stream"
)

// MakeHandler returns a HTTP handler for API endpoints.
func MakeHandler(r *chi.Mux, svc agent.Service, challengeDir string, logger *slog.Logger, instanceID string) http.Handler {
	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(api.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	r.Route("/agent", func(r chi.Router) {
		r.Get("/status", kithttp.NewServer(
			statusEndpoint(svc),
			decodeStatus,
			api.EncodeResponse,
			opts...,
		).ServeHTTP)

		r.Post("/renew", kithttp.NewServer(
			renewEndpoint(svc),
			decodeRenew,
			api.EncodeResponse,
			opts...,
		).ServeHTTP)

		r.Post("/revoke", kithttp.NewServer(
			revokeEndpoint(svc),
			decodeRevoke,
			api.EncodeResponse,
			opts...,
		).ServeHTTP)

		r.Get("/renewals", kithttp.NewServer(
			listRenewalsEndpoint(svc),
			decodeListRenewals,
			api.EncodeResponse,
			opts...,
		).ServeHTTP)
	})

	r.Get("/.well-known/acme-challenge/{token}", challengeHandler(challengeDir, logger))

	r.Get("/health", api.Health("acme-agent", instanceID))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func decodeStatus(_ context.Context, r *http.Request) (interface{}, error) {
	return statusReq{}, nil
}

func decodeRenew(_ context.Context, r *http.Request) (interface{}, error) {
	return renewReq{}, nil
}

func decodeRevoke(_ context.Context, r *http.Request) (interface{}, error) {
	return revokeReq{}, nil
}

func decodeListRenewals(_ context.Context, r *http.Request) (interface{}, error) {
	o, err := api.ReadUintQuery(r, offsetKey, defOffset)
	if err != nil {
		return nil, err
	}

	l, err := api.ReadUintQuery(r, limitKey, defLimit)
	if err != nil {
		return nil, err
	}

	domain, err := api.ReadStringQuery(r, domainKey, "")
	if err != nil {
		return nil, err
	}

	req := listRenewalsReq{
		pm: agent.PageMetadata{
			Offset: o,
			Limit:  l,
			Domain: domain,
		},
	}
	return req, nil
}

// challengeHandler serves key authorizations written by the order pipeline.
// Tokens are base64url, so anything else is rejected before touching the
// filesystem.
func challengeHandler(challengeDir string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")
		if token == "" || !validToken(token) {
			http.NotFound(w, r)
			return
		}

		body, err := os.ReadFile(filepath.Join(challengeDir, ".well-known", "acme-challenge", token))
		if err != nil {
			if !os.IsNotExist(err) {
				logger.Warn("failed to read challenge file", "token", token, "error", err)
			}
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", challengeContentType)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(body); err != nil {
			logger.Warn("failed to write challenge response", "token", token, "error", err)
		}
	}
}

func validToken(token string) bool {
	for _, c := range token {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
