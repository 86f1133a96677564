// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package install writes renewed key material to its serving locations.
// Every write is atomic (temp file in the target directory, then rename) so
// a reader never observes a truncated file, and the previous artifact stays
// intact until the new one is fully staged.
package install

import (
	"os"
	"path/filepath"

	"github.com/absmach/acme-agent/pkg/errors"
)

const (
	// KeyMode is owner-read-write; private keys are never group or world readable.
	KeyMode os.FileMode = 0o600
	// CertMode is world readable; certificates are public material.
	CertMode os.FileMode = 0o644
)

var (
	ErrStageFile   = errors.New("failed to stage file")
	ErrReplaceFile = errors.New("failed to replace file")
)

// WriteFileAtomic writes data to path via a temp file in the same directory
// followed by a rename. The mode is applied to the temp file before the
// rename, so the final path never exists with looser permissions.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(ErrStageFile, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(ErrStageFile, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return errors.Wrap(ErrStageFile, err)
	}
	// Flush to stable storage before the rename makes the file visible.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(ErrStageFile, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(ErrStageFile, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrap(ErrReplaceFile, err)
	}
	return nil
}

// Install places a renewed key/certificate pair on disk. The key lands
// first with 0600, then the chain with 0644: a reader that picks up the new
// certificate is guaranteed to find its key already in place. Callers
// wanting the pair to switch as a unit reload the consumer only after
// Install returns.
func Install(keyPEM, certChainPEM []byte, keyPath, certPath string) error {
	if err := WriteFileAtomic(keyPath, keyPEM, KeyMode); err != nil {
		return err
	}
	return WriteFileAtomic(certPath, certChainPEM, CertMode)
}
