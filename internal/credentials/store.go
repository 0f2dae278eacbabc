// Package credentials keeps secrets such as API keys and gateway passwords encrypted
// on disk, one file per key.
package credentials

import (
	"context"
	"crypto/rand"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/lean-toolbox/internal/utils"
	"github.com/rxtech-lab/lean-toolbox/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keyFileName = "secret.key"
	fileSuffix  = ".bin"
	keySize     = 32
	nonceSize   = 24
	invalidName = "<>:\"/\\|?*\x00"
)

// Store saves, loads and deletes secrets by key.
type Store interface {
	Save(ctx context.Context, key, secret string) error
	// Load returns None when no secret is stored under key.
	Load(ctx context.Context, key string) (optional.Option[string], error)
	Delete(ctx context.Context, key string) error
}

// FileStore seals each secret with a per-installation key kept next to the secrets
// with owner-only permissions.
type FileStore struct {
	dir string
}

// NewFileStore creates the store directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeCredentialStore, err, "failed to create credential directory %s", dir)
	}

	return &FileStore{
		dir: dir,
	}, nil
}

// DefaultDir is {UserConfigDir}/lean-toolbox/credentials.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(base, "lean-toolbox", "credentials"), nil
}

func (s *FileStore) Save(ctx context.Context, key, secret string) error {
	if err := requireKey(ctx, key); err != nil {
		return err
	}

	secretKey, err := s.loadOrCreateKey()
	if err != nil {
		return err
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return errors.Wrap(errors.ErrCodeCredentialStore, "failed to generate nonce", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(secret), &nonce, secretKey)

	if err := utils.WriteFileAtomic(s.pathFor(key), sealed, 0600); err != nil {
		return errors.Wrapf(errors.ErrCodeCredentialStore, err, "failed to save credential %s", key)
	}

	return nil
}

func (s *FileStore) Load(ctx context.Context, key string) (optional.Option[string], error) {
	if err := requireKey(ctx, key); err != nil {
		return optional.None[string](), err
	}

	sealed, err := os.ReadFile(s.pathFor(key))
	if os.IsNotExist(err) {
		return optional.None[string](), nil
	}

	if err != nil {
		return optional.None[string](), errors.Wrapf(errors.ErrCodeCredentialStore, err, "failed to read credential %s", key)
	}

	secretKey, err := s.loadOrCreateKey()
	if err != nil {
		return optional.None[string](), err
	}

	if len(sealed) < nonceSize+secretbox.Overhead {
		return optional.None[string](), errors.Newf(errors.ErrCodeCredentialStore, "credential %s is truncated", key)
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, secretKey)
	if !ok {
		return optional.None[string](), errors.Newf(errors.ErrCodeCredentialStore, "credential %s cannot be decrypted", key)
	}

	return optional.Some(string(plain)), nil
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := requireKey(ctx, key); err != nil {
		return err
	}

	err := os.Remove(s.pathFor(key))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(errors.ErrCodeCredentialStore, err, "failed to delete credential %s", key)
	}

	return nil
}

func (s *FileStore) pathFor(key string) string {
	return filepath.Join(s.dir, SanitizeKey(key)+fileSuffix)
}

func (s *FileStore) loadOrCreateKey() (*[keySize]byte, error) {
	path := filepath.Join(s.dir, keyFileName)

	var secretKey [keySize]byte

	existing, err := os.ReadFile(path)
	if err == nil {
		if len(existing) != keySize {
			return nil, errors.Newf(errors.ErrCodeCredentialStore, "key file %s has %d bytes, expected %d", path, len(existing), keySize)
		}

		copy(secretKey[:], existing)

		return &secretKey, nil
	}

	if !os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeCredentialStore, "failed to read key file", err)
	}

	if _, err := io.ReadFull(rand.Reader, secretKey[:]); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCredentialStore, "failed to generate key", err)
	}

	if err := utils.WriteFileAtomic(path, secretKey[:], 0600); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCredentialStore, "failed to write key file", err)
	}

	return &secretKey, nil
}

// SanitizeKey turns a key into a safe file name: runs of characters that are not
// allowed in file names collapse into single underscores.
func SanitizeKey(key string) string {
	parts := strings.FieldsFunc(key, func(r rune) bool {
		return r < 0x20 || strings.ContainsRune(invalidName, r)
	})

	return strings.Join(parts, "_")
}

func requireKey(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if strings.TrimSpace(key) == "" || SanitizeKey(key) == "" {
		return errors.New(errors.ErrCodeMissingParameter, "credential key is required")
	}

	return nil
}
