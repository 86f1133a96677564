// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/absmach/acme-agent/acme"
	"github.com/absmach/acme-agent/install"
	"github.com/absmach/acme-agent/internal/uuid"
	"github.com/absmach/acme-agent/pkg/errors"
	"github.com/absmach/acme-agent/reload"
	"github.com/absmach/acme-agent/revocation"
)

// DefaultThresholdPct is the elapsed-lifetime percentage past which renewal
// is due.
const DefaultThresholdPct = 75

var (
	ErrMissingDomain      = errors.New("no domain configured")
	ErrMissingPaths       = errors.New("certificate, key and account-key paths are required")
	ErrMissingChallenge   = errors.New("no challenge directory configured")
	ErrReadCertificate    = errors.New("failed to read installed certificate")
	ErrRenewalFailed      = errors.New("renewal attempt failed")
	ErrRevokeFailed       = errors.New("failed to revoke certificate")
	ErrInstallFailed      = errors.New("failed to install renewed certificate")
	ErrHistoryUnavailable = errors.New("failed to read renewal history")
)

// Config carries the renewal policy and filesystem layout of one managed
// domain. Validation failures are fatal at startup: the loop never runs on
// an invalid configuration.
type Config struct {
	Domain          string
	Contacts        []string
	AccountKeyPath  string
	CertPath        string
	KeyPath         string
	ChallengeDir    string
	ThresholdPct    float64
	ForceMarkerPath string
}

func (c *Config) validate() error {
	if c.Domain == "" {
		return ErrMissingDomain
	}
	if c.CertPath == "" || c.KeyPath == "" || c.AccountKeyPath == "" {
		return ErrMissingPaths
	}
	if c.ChallengeDir == "" {
		return ErrMissingChallenge
	}
	if c.ThresholdPct <= 0 || c.ThresholdPct >= 100 {
		c.ThresholdPct = DefaultThresholdPct
	}
	return nil
}

type service struct {
	cfg      Config
	client   *acme.Client
	reloader reload.Reloader
	crl      *revocation.Cache
	repo     Repository
	idp      uuid.IDProvider
	logger   *slog.Logger

	// pipeline serializes all signing against the CA: the client holds a
	// single nonce slot, so only one order or revocation may run at a time.
	pipeline sync.Mutex
}

var _ Service = (*service)(nil)

// NewService wires the renewal pipeline for one domain. crl may be nil when
// no CRL distribution point is configured; repo may be a noop store.
func NewService(cfg Config, client *acme.Client, reloader reload.Reloader, crl *revocation.Cache, repo Repository, idp uuid.IDProvider, logger *slog.Logger) (Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &service{
		cfg:      cfg,
		client:   client,
		reloader: reloader,
		crl:      crl,
		repo:     repo,
		idp:      idp,
		logger:   logger,
	}, nil
}

func (s *service) Status(ctx context.Context) (Status, error) {
	return s.inspect(), nil
}

func (s *service) CheckAndRenew(ctx context.Context) (RenewalRecord, bool, error) {
	status := s.inspect()
	if !status.RenewalDue {
		s.logger.Debug("renewal not due",
			"domain", status.Domain,
			"elapsed_pct", status.LifetimeElapsedPct,
			"threshold_pct", status.ThresholdPct)
		return RenewalRecord{}, false, nil
	}

	s.logger.Info("renewal due", "domain", status.Domain, "reason", status.Reason)
	record, err := s.renew(ctx, status.Reason)
	return record, true, err
}

func (s *service) Renew(ctx context.Context) (RenewalRecord, error) {
	return s.renew(ctx, "manual request")
}

// Revoke tells the CA the installed certificate is no longer trustworthy.
// The certificate stays on disk so serving does not break mid-flight; the
// force marker makes the next cycle replace it.
func (s *service) Revoke(ctx context.Context) error {
	s.pipeline.Lock()
	defer s.pipeline.Unlock()

	leaf, err := readLeaf(s.cfg.CertPath)
	if err != nil {
		return errors.Wrap(ErrRevokeFailed, err)
	}

	acct, err := s.client.EnsureAccount(s.cfg.AccountKeyPath, s.cfg.Contacts)
	if err != nil {
		return errors.Wrap(ErrRevokeFailed, err)
	}
	defer acct.Close()

	if err := s.client.RevokeCertificate(acct, leaf.Raw); err != nil {
		return errors.Wrap(ErrRevokeFailed, err)
	}
	s.logger.Info("certificate revoked", "domain", s.cfg.Domain, "serial_number", leaf.SerialNumber.String())

	if s.cfg.ForceMarkerPath != "" {
		if err := install.WriteFileAtomic(s.cfg.ForceMarkerPath, nil, install.CertMode); err != nil {
			s.logger.Warn("failed to write force-renew marker", "path", s.cfg.ForceMarkerPath, "error", err)
		}
	}
	return nil
}

func (s *service) History(ctx context.Context, pm PageMetadata) (RenewalPage, error) {
	page, err := s.repo.ListRenewals(ctx, pm)
	if err != nil {
		return RenewalPage{}, errors.Wrap(ErrHistoryUnavailable, err)
	}
	return page, nil
}

// inspect is the DETECT/DECIDE half of one cycle: read the installed
// certificate, compute elapsed lifetime, consult the CRL, check the force
// marker and produce the policy decision.
func (s *service) inspect() Status {
	status := Status{
		Domain:       s.cfg.Domain,
		ThresholdPct: s.cfg.ThresholdPct,
	}

	leaf, err := readLeaf(s.cfg.CertPath)
	switch {
	case err != nil && os.IsNotExist(err):
		status.RenewalDue = true
		status.Reason = "certificate absent"
		return status
	case err != nil:
		// Unreadable or unparseable is treated as absent: serving cannot
		// be depending on it, and renewal is the only way back.
		s.logger.Warn("installed certificate unreadable, forcing renewal", "path", s.cfg.CertPath, "error", err)
		status.RenewalDue = true
		status.Reason = "certificate unreadable"
		return status
	}

	status.CertificatePresent = true
	status.SerialNumber = leaf.SerialNumber.String()
	status.NotBefore = leaf.NotBefore
	status.NotAfter = leaf.NotAfter
	status.LifetimeElapsedPct = elapsedPct(leaf.NotBefore, leaf.NotAfter, time.Now())

	if s.crl != nil {
		res := s.crl.Refresh()
		if res.Err != nil {
			s.logger.Warn("CRL refresh failed", "age", res.Age, "error", res.Err)
		}
		revStatus, err := revocation.IsRevoked(s.cfg.CertPath, s.crl.Path())
		status.Revocation = revStatus.String()
		switch revStatus {
		case revocation.StatusRevoked:
			// Revocation overrides the threshold entirely.
			status.RenewalDue = true
			status.Reason = "certificate revoked per CRL"
			return status
		case revocation.StatusUnknown:
			// Unknown is not not-revoked; log and fall through to the
			// threshold check rather than suppressing it. OCSP gets a say
			// first when the chain names a responder.
			s.logger.Warn("CRL check inconclusive", "error", err)
			if ocspStatus := s.probeOCSP(); ocspStatus == revocation.StatusRevoked {
				status.Revocation = ocspStatus.String()
				status.RenewalDue = true
				status.Reason = "certificate revoked per OCSP"
				return status
			}
		}
	}

	if status.LifetimeElapsedPct > s.cfg.ThresholdPct {
		status.RenewalDue = true
		status.Reason = "lifetime threshold exceeded"
		return status
	}

	if s.forceMarkerPresent() {
		status.RenewalDue = true
		status.Reason = "force-renew marker present"
	}
	return status
}

// renew is the ACT half: account, order pipeline, install, reload. The
// force marker is consumed only on success so a failed forced renewal
// retries next cycle. A reload failure does not fail the renewal; the
// certificate is on disk and a later reload picks it up.
func (s *service) renew(ctx context.Context, reason string) (RenewalRecord, error) {
	s.pipeline.Lock()
	defer s.pipeline.Unlock()

	id, err := s.idp.ID()
	if err != nil {
		return RenewalRecord{}, err
	}
	record := RenewalRecord{
		ID:        id,
		Domain:    s.cfg.Domain,
		StartedAt: time.Now(),
	}

	artifact, err := s.obtain()
	if err != nil {
		record.Outcome = OutcomeFailed
		record.Detail = err.Error()
		record.FinishedAt = time.Now()
		s.saveRecord(ctx, record)
		return record, errors.Wrap(ErrRenewalFailed, err)
	}
	record.SerialNumber = artifact.SerialNumber

	if err := install.Install(artifact.PrivateKeyPEM, artifact.ChainPEM, s.cfg.KeyPath, s.cfg.CertPath); err != nil {
		record.Outcome = OutcomeFailed
		record.Detail = err.Error()
		record.FinishedAt = time.Now()
		s.saveRecord(ctx, record)
		return record, errors.Wrap(ErrInstallFailed, err)
	}
	s.logger.Info("certificate installed",
		"domain", s.cfg.Domain,
		"serial_number", artifact.SerialNumber,
		"not_after", artifact.NotAfter,
		"cert_path", s.cfg.CertPath)

	record.Reloaded = s.triggerReload(ctx)
	record.Outcome = OutcomeRenewed
	record.Detail = reason
	record.FinishedAt = time.Now()

	s.consumeForceMarker()
	s.saveRecord(ctx, record)

	s.logger.Info("renewal complete",
		"domain", s.cfg.Domain,
		"serial_number", record.SerialNumber,
		"reloaded", record.Reloaded,
		"elapsed", record.FinishedAt.Sub(record.StartedAt).Round(time.Millisecond))
	return record, nil
}

// obtain holds the account for exactly one order pipeline run.
func (s *service) obtain() (acme.Artifact, error) {
	acct, err := s.client.EnsureAccount(s.cfg.AccountKeyPath, s.cfg.Contacts)
	if err != nil {
		return acme.Artifact{}, err
	}
	defer acct.Close()

	return s.client.Obtain(acct, []string{s.cfg.Domain}, s.cfg.ChallengeDir)
}

func (s *service) triggerReload(ctx context.Context) bool {
	if s.reloader == nil {
		return false
	}
	if err := s.reloader.Reload(ctx); err != nil {
		// Recoverable: renewal still counts, operators get a distinct signal.
		s.logger.Error("certificate installed but not activated: reload failed",
			"domain", s.cfg.Domain, "error", err)
		return false
	}
	s.logger.Info("serving process reloaded", "domain", s.cfg.Domain)
	return true
}

// probeOCSP asks the responder named in the installed chain's AIA about the
// leaf. It needs the issuer certificate from the chain; a leaf-only file or
// a chain without a responder URL leaves the answer unknown.
func (s *service) probeOCSP() revocation.Status {
	certs, err := readChain(s.cfg.CertPath)
	if err != nil || len(certs) < 2 {
		return revocation.StatusUnknown
	}
	leaf, issuer := certs[0], certs[1]
	if len(leaf.OCSPServer) == 0 {
		return revocation.StatusUnknown
	}

	ocspStatus, err := revocation.CheckOCSP(leaf.OCSPServer[0], leaf, issuer)
	if err != nil {
		s.logger.Warn("OCSP check inconclusive", "responder", leaf.OCSPServer[0], "error", err)
	}
	return ocspStatus
}

func (s *service) forceMarkerPresent() bool {
	if s.cfg.ForceMarkerPath == "" {
		return false
	}
	_, err := os.Stat(s.cfg.ForceMarkerPath)
	return err == nil
}

func (s *service) consumeForceMarker() {
	if s.cfg.ForceMarkerPath == "" {
		return
	}
	if err := os.Remove(s.cfg.ForceMarkerPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove force-renew marker", "path", s.cfg.ForceMarkerPath, "error", err)
	}
}

func (s *service) saveRecord(ctx context.Context, record RenewalRecord) {
	if err := s.repo.SaveRenewal(ctx, record); err != nil {
		s.logger.Warn("failed to persist renewal record", "id", record.ID, "error", err)
	}
}

func readChain(path string) ([]*x509.Certificate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, raw = pem.Decode(raw)
		if block == nil {
			break
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(ErrReadCertificate, err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, errors.Wrap(ErrReadCertificate, errors.New("no PEM block"))
	}
	return certs, nil
}

func readLeaf(path string) (*x509.Certificate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.Wrap(ErrReadCertificate, errors.New("no PEM block"))
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(ErrReadCertificate, err)
	}
	return cert, nil
}

func elapsedPct(notBefore, notAfter, now time.Time) float64 {
	total := notAfter.Sub(notBefore)
	if total <= 0 {
		return 100
	}
	pct := float64(now.Sub(notBefore)) / float64(total) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
