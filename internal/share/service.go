// Package share implements the object lifecycle core: creating, resolving
// and lazily expiring shared files across the blob store and the metadata
// index.
package share

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/marianozunino/vanish/internal/blob"
	"github.com/marianozunino/vanish/internal/config"
	"github.com/marianozunino/vanish/internal/index"
	"github.com/marianozunino/vanish/internal/model"
)

// tokenAttempts bounds how often an upload retries after a token
// collision before giving up.
const tokenAttempts = 5

// Service coordinates the blob store and the metadata index so that
// neither ever references content the other has lost.
type Service struct {
	cfg       *config.Config
	blobs     blob.Store
	index     *index.Index
	retention time.Duration
}

// NewService creates the lifecycle service
func NewService(cfg *config.Config, blobs blob.Store, ix *index.Index) *Service {
	return &Service{
		cfg:       cfg,
		blobs:     blobs,
		index:     ix,
		retention: cfg.Retention(),
	}
}

// Download is what a successful token resolution hands back: the record
// plus a reader over the exact uploaded bytes. The caller owns Close.
type Download struct {
	Record model.ShareRecord
	Body   io.ReadCloser
}

// Upload validates and stores a new payload and returns its record. The
// blob is written before the metadata record: a crash between the two
// leaves an orphaned blob the sweeper reclaims, never a record pointing
// at nothing.
func (s *Service) Upload(ctx context.Context, filename, contentType string, r io.Reader) (model.ShareRecord, error) {
	var rec model.ShareRecord

	if contentType == "" {
		return rec, fmt.Errorf("%w: content type is required", ErrInvalidInput)
	}

	maxSize := s.cfg.MaxSizeToBytes()

	// Buffer the payload so size is checked against what actually
	// arrived, not a declared header, and so a token collision can
	// retry the blob write.
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return rec, storageErr("read payload", err)
	}
	if int64(len(data)) > maxSize {
		return rec, fmt.Errorf("%w: payload exceeds %d bytes", ErrTooLarge, maxSize)
	}
	if len(data) == 0 {
		return rec, fmt.Errorf("%w: empty payload", ErrInvalidInput)
	}

	now := time.Now()
	rec = model.ShareRecord{
		Filename:    filename,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.retention),
		Status:      model.StatusActive,
	}

	for attempt := 0; attempt < tokenAttempts; attempt++ {
		token, err := generateToken(s.cfg.IDLength)
		if err != nil {
			return model.ShareRecord{}, fmt.Errorf("failed to generate token: %w", err)
		}
		rec.Token = token

		if err := s.blobs.Put(ctx, token, bytes.NewReader(data), rec.SizeBytes); err != nil {
			return model.ShareRecord{}, storageErr("write blob", err)
		}

		err = s.index.Put(&rec)
		if err == nil {
			return rec, nil
		}

		// The blob under the losing token is unreferenced; reclaim it
		// now rather than waiting for the orphan scan.
		if cleanupErr := s.blobs.Delete(ctx, token); cleanupErr != nil {
			log.Printf("Warning: Failed to clean up blob after index failure: %v", cleanupErr)
		}

		if !errors.Is(err, index.ErrIDTaken) {
			return model.ShareRecord{}, storageErr("write record", err)
		}
		log.Printf("Warning: Share token collision on %q, retrying", token)
	}

	return model.ShareRecord{}, storageErr("allocate token",
		fmt.Errorf("gave up after %d collisions", tokenAttempts))
}

// Resolve looks up a token and opens its content. Reads are
// non-consuming: a live share can be downloaded any number of times until
// it expires. Hitting an expired share triggers lazy deletion in the
// background.
func (s *Service) Resolve(ctx context.Context, token string) (*Download, error) {
	rec, err := s.index.Get(token)
	if err != nil {
		if errors.Is(err, index.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, token)
		}
		return nil, storageErr("read record", err)
	}

	if !rec.Live(time.Now()) {
		// Best effort and off the request path: the expired response
		// must not wait on either store.
		go s.lazyDelete(rec.Token)
		return nil, fmt.Errorf("%w: %s", ErrExpired, token)
	}

	body, err := s.blobs.Get(ctx, token)
	if err != nil {
		// A live record whose blob is gone is an inconsistency, not an
		// expiry. Keep the metadata so a transient outage cannot be
		// amplified into data loss.
		return nil, storageErr("read blob", err)
	}

	return &Download{Record: rec, Body: body}, nil
}

// lazyDelete tears down an expired share discovered by a read: blob
// first, then the tombstone mark, mirroring the sweeper's ordering.
func (s *Service) lazyDelete(token string) {
	ctx := context.Background()

	if err := s.blobs.Delete(ctx, token); err != nil {
		log.Printf("Warning: Lazy delete failed to remove blob %q: %v", token, err)
		return
	}

	if err := s.index.MarkDeleted(token); err != nil {
		log.Printf("Warning: Lazy delete failed to mark %q deleted: %v", token, err)
		return
	}

	log.Printf("Lazily deleted expired share %q", token)
}

// generateToken returns a cryptographically random hex token of the given
// length. Hex keeps the token URL-safe.
func generateToken(length int) (string, error) {
	b := make([]byte, length/2+1)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b)[:length], nil
}
