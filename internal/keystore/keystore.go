// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package keystore

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/jeranaias/costlens/internal/util"
)

// EnvAPIKey is the environment override checked before the keystore.
const EnvAPIKey = "COSTLENS_API_KEY"

// ErrNoCredential indicates no API credential has been stored and the
// environment override is unset.
var ErrNoCredential = errors.New("no analysis API credential configured")

const (
	keyFile        = "key.bin"
	credentialFile = "credential.enc"
	nonceSize      = 24
	keySize        = 32
)

// Keystore persists one encrypted credential under dir.
type Keystore struct {
	dir string
}

// New returns a keystore rooted at dir. The directory is created lazily
// on first Store with owner-only permissions.
func New(dir string) *Keystore {
	return &Keystore{dir: dir}
}

// Store encrypts and saves the credential. Both the key material and
// the ciphertext are written atomically with 0600 permissions.
func (k *Keystore) Store(credential string) error {
	if credential == "" {
		return errors.New("credential must not be empty")
	}
	if err := os.MkdirAll(k.dir, 0700); err != nil {
		return fmt.Errorf("failed to create keystore directory: %w", err)
	}

	key, err := k.loadOrCreateKey()
	if err != nil {
		return err
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(credential), &nonce, key)

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(filepath.Join(k.dir, credentialFile), sealed, 0600); err != nil {
		return fmt.Errorf("failed to write credential: %w", err)
	}
	return nil
}

// Retrieve returns the credential, preferring the environment override.
func (k *Keystore) Retrieve() (string, error) {
	if env := os.Getenv(EnvAPIKey); env != "" {
		return env, nil
	}

	sealed, err := os.ReadFile(filepath.Join(k.dir, credentialFile))
	if os.IsNotExist(err) {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("failed to read credential: %w", err)
	}
	if len(sealed) < nonceSize {
		return "", errors.New("credential file is truncated")
	}

	key, err := k.loadKey()
	if err != nil {
		return "", err
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, key)
	if !ok {
		return "", errors.New("failed to decrypt credential")
	}
	return string(plain), nil
}

// Delete removes the stored credential; the key material stays so a
// re-stored credential does not churn it.
func (k *Keystore) Delete() error {
	err := os.Remove(filepath.Join(k.dir, credentialFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// Exists reports whether a credential is available from any source.
func (k *Keystore) Exists() bool {
	if os.Getenv(EnvAPIKey) != "" {
		return true
	}
	_, err := os.Stat(filepath.Join(k.dir, credentialFile))
	return err == nil
}

func (k *Keystore) loadOrCreateKey() (*[keySize]byte, error) {
	key, err := k.loadKey()
	if err == nil {
		return key, nil
	}

	var fresh [keySize]byte
	if _, err := rand.Read(fresh[:]); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	if err := util.AtomicWriteFile(filepath.Join(k.dir, keyFile), fresh[:], 0600); err != nil {
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}
	return &fresh, nil
}

func (k *Keystore) loadKey() (*[keySize]byte, error) {
	data, err := os.ReadFile(filepath.Join(k.dir, keyFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	if len(data) != keySize {
		return nil, errors.New("key file has wrong size")
	}
	var key [keySize]byte
	copy(key[:], data)
	return &key, nil
}
