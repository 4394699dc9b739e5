package storage

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidObject = errors.New("invalid object name")
	ErrNotFound      = errors.New("object not found")
	ErrBadSignature  = errors.New("invalid or expired preview link")
)

// Storage defines the interface for staged file backends
type Storage interface {
	PresignGet(ctx context.Context, objectName string, expiresIn time.Duration) (string, error)
	Put(ctx context.Context, objectName string, reader io.Reader) error
	Get(ctx context.Context, objectName string) (io.ReadCloser, error)
	Exists(ctx context.Context, objectName string) bool
	Delete(ctx context.Context, objectName string) error
	PurgePrefix(ctx context.Context, prefix string) error
}

// LocalStorage implements Storage using local filesystem
type LocalStorage struct {
	baseDir string
	baseURL string
	secret  []byte
}

// NewLocalStorage creates a new local filesystem storage backend. Preview links are
// signed with secret.
func NewLocalStorage(baseDir, baseURL, secret string) (*LocalStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &LocalStorage{
		baseDir: baseDir,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  []byte(secret),
	}, nil
}

func (s *LocalStorage) path(objectName string) (string, error) {
	clean := filepath.Clean("/" + objectName)
	if objectName == "" || strings.Contains(objectName, "..") || clean == "/" {
		return "", fmt.Errorf("%w: %q", ErrInvalidObject, objectName)
	}
	return filepath.Join(s.baseDir, clean), nil
}

type previewClaims struct {
	Object string `json:"obj"`
	jwt.RegisteredClaims
}

// PresignGet returns a short-lived preview URL for a staged object
func (s *LocalStorage) PresignGet(ctx context.Context, objectName string, expiresIn time.Duration) (string, error) {
	if _, err := s.path(objectName); err != nil {
		return "", err
	}
	claims := previewClaims{
		Object: objectName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign preview link: %w", err)
	}
	return fmt.Sprintf("%s/v1/files/%s?token=%s", s.baseURL, objectName, url.QueryEscape(token)), nil
}

// VerifyPreview checks a preview token and returns the object it grants
func (s *LocalStorage) VerifyPreview(token string) (string, error) {
	var claims previewClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid || claims.Object == "" {
		return "", ErrBadSignature
	}
	return claims.Object, nil
}

func (s *LocalStorage) Put(ctx context.Context, objectName string, reader io.Reader) error {
	fullPath, err := s.path(objectName)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

func (s *LocalStorage) Get(ctx context.Context, objectName string) (io.ReadCloser, error) {
	fullPath, err := s.path(objectName)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, objectName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

func (s *LocalStorage) Exists(ctx context.Context, objectName string) bool {
	fullPath, err := s.path(objectName)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}

func (s *LocalStorage) Delete(ctx context.Context, objectName string) error {
	fullPath, err := s.path(objectName)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// PurgePrefix removes a directory of staged objects, e.g. everything of one session
func (s *LocalStorage) PurgePrefix(ctx context.Context, prefix string) error {
	fullPath, err := s.path(prefix)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(fullPath); err != nil {
		return fmt.Errorf("failed to purge %s: %w", prefix, err)
	}
	return nil
}

// EncodeBase64 reads a staged object into raw base64 without a data: prefix.
func EncodeBase64(ctx context.Context, st Storage, objectName string) (string, error) {
	rc, err := st.Get(ctx, objectName)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var b strings.Builder
	enc := base64.NewEncoder(base64.StdEncoding, &b)
	if _, err := io.Copy(enc, rc); err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", objectName, err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return b.String(), nil
}

// CalculateSHA256 calculates SHA256 hash of file content
func CalculateSHA256(reader io.Reader) (string, error) {
	hash := sha256.New()
	if _, err := io.Copy(hash, reader); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
