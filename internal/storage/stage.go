package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"fmconsole/internal/model"

	"github.com/oklog/ulid/v2"
)

// PreviewTTL bounds how long a preview link stays valid.
const PreviewTTL = 30 * time.Minute

// SessionPrefix is the directory holding one session's staged files
func SessionPrefix(sessionID string) string {
	return path.Join("sessions", sessionID)
}

// Stager validates and stores attachments for editing sessions.
type Stager struct {
	st     Storage
	policy *FilePolicy
}

func NewStager(st Storage, policy *FilePolicy) *Stager {
	return &Stager{st: st, policy: policy}
}

func (s *Stager) Storage() Storage { return s.st }

// Stage checks the file against the policy and stores it under the session prefix.
// Nothing leaves the service until submission.
func (s *Stager) Stage(ctx context.Context, sessionID, slot, name, contentType string, size int64, r io.Reader) (*model.Attachment, error) {
	if err := s.policy.ValidateFile(name, contentType, size); err != nil {
		return nil, err
	}

	// size is client-declared; read one byte past the limit to catch liars
	limit := size + 1
	if s.policy != nil && s.policy.MaxFileMB > 0 {
		limit = int64(s.policy.MaxFileMB*1024*1024) + 1
	}
	body, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := s.policy.ValidateFile(name, contentType, int64(len(body))); err != nil {
		return nil, err
	}

	sum, err := CalculateSHA256(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	object := path.Join(SessionPrefix(sessionID), safeSlot(slot)+"-"+ulid.Make().String()+strings.ToLower(filepath.Ext(name)))
	if err := s.st.Put(ctx, object, bytes.NewReader(body)); err != nil {
		return nil, err
	}

	preview, err := s.st.PresignGet(ctx, object, PreviewTTL)
	if err != nil {
		return nil, err
	}

	return &model.Attachment{
		Name:       filepath.Base(name),
		MIME:       contentType,
		Size:       int64(len(body)),
		Object:     object,
		SHA256:     sum,
		PreviewURL: preview,
	}, nil
}

// Release deletes a staged attachment that was replaced or removed.
func (s *Stager) Release(ctx context.Context, a *model.Attachment) error {
	if a == nil {
		return nil
	}
	return s.st.Delete(ctx, a.Object)
}

// Purge removes every staged file of a session
func (s *Stager) Purge(ctx context.Context, sessionID string) error {
	return s.st.PurgePrefix(ctx, SessionPrefix(sessionID))
}

// Encode returns the raw base64 body of a staged attachment.
func (s *Stager) Encode(ctx context.Context, a *model.Attachment) (string, error) {
	if a == nil {
		return "", nil
	}
	return EncodeBase64(ctx, s.st, a.Object)
}

func safeSlot(slot string) string {
	var b strings.Builder
	for _, r := range slot {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}
