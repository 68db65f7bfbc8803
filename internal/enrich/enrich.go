// Package enrich implements the avatar thumbnail and caption pipeline.
//
// One Process call handles one queue job: fetch the original avatar, ask the
// analysis service for a caption, render a 128x128 thumbnail, store it, then
// patch the client record. Delivery is at-least-once; every step is written to
// be safe under redelivery.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mzieba/client-manager/internal/blobio"
	"github.com/mzieba/client-manager/internal/models"
	"github.com/mzieba/client-manager/internal/queue"
	"github.com/mzieba/client-manager/internal/records"
	"github.com/mzieba/client-manager/internal/thumb"
	"github.com/mzieba/client-manager/internal/vision"
)

// Placeholder captions recorded when the analysis service fails. The two
// failure modes stay distinguishable in the stored record.
const (
	CaptionServiceError = "description unavailable (analysis service error)"
	CaptionUnreachable  = "description unavailable (analysis service unreachable)"
)

// patchAttempts bounds retries of the record patch when a concurrent writer
// bumps the record version between the read and the conditional replace.
const patchAttempts = 3

// BlobStore is the blob access the pipeline needs.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte, contentType string) error
	URL(key string) string
}

// RecordStore is the client record access the pipeline needs.
type RecordStore interface {
	FindClientByID(ctx context.Context, id string) (*models.Client, error)
	ReplaceClient(ctx context.Context, c models.Client, expectedVersion int64) error
}

// Captioner produces a short natural-language description of an image.
type Captioner interface {
	Describe(ctx context.Context, image []byte) (string, error)
}

// Pipeline holds the collaborators of the enrichment worker.
type Pipeline struct {
	Blobs     BlobStore
	Records   RecordStore
	Vision    Captioner
	ThumbSize int
}

func (p *Pipeline) size() int {
	if p.ThumbSize > 0 {
		return p.ThumbSize
	}
	return 128
}

// Process runs the pipeline for one job. A returned error signals the queue
// runtime to redeliver; a nil return acknowledges the message, including the
// benign terminal cases (client deleted, job already applied, job superseded).
func (p *Pipeline) Process(ctx context.Context, job queue.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}

	src, err := p.Blobs.Get(ctx, job.BlobPath)
	if err != nil {
		return fmt.Errorf("fetch original: %w", err)
	}

	// Captioning is best-effort and must not block thumbnail generation.
	caption := p.caption(ctx, job, src)

	thumbBytes, err := thumb.SquareJPEG(src, p.size())
	if err != nil {
		return fmt.Errorf("render thumbnail: %w", err)
	}

	thumbKey := blobio.ThumbKey(job.ClientID)
	if err := p.Blobs.Put(ctx, thumbKey, thumbBytes, blobio.ThumbContentType); err != nil {
		return fmt.Errorf("store thumbnail: %w", err)
	}
	thumbURL := p.Blobs.URL(thumbKey)

	return p.patchRecord(ctx, job, thumbURL, caption)
}

func (p *Pipeline) caption(ctx context.Context, job queue.Job, img []byte) string {
	caption, err := p.Vision.Describe(ctx, img)
	if err == nil {
		return caption
	}
	log.Printf("enrich: caption for client %s failed: %v", job.ClientID, err)
	if errors.Is(err, vision.ErrUnavailable) {
		return CaptionUnreachable
	}
	return CaptionServiceError
}

// patchRecord locates the client and writes the thumbnail fields back with a
// version check-and-set, retrying a bounded number of times on conflict.
func (p *Pipeline) patchRecord(ctx context.Context, job queue.Job, thumbURL, caption string) error {
	for attempt := 1; attempt <= patchAttempts; attempt++ {
		c, err := p.Records.FindClientByID(ctx, job.ClientID)
		if errors.Is(err, records.ErrNotFound) {
			// The client was deleted between upload and processing.
			log.Printf("enrich: client %s not found, dropping job %s", job.ClientID, job.JobID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("find client %s: %w", job.ClientID, err)
		}

		if job.JobID != "" && c.EnrichmentJobID != nil && *c.EnrichmentJobID == job.JobID {
			log.Printf("enrich: job %s already applied to client %s, redelivery", job.JobID, job.ClientID)
			return nil
		}
		if c.AvatarURL == nil {
			// Thumbnail fields are only ever set after avatarUrl exists.
			log.Printf("enrich: client %s has no avatar anymore, dropping job %s", job.ClientID, job.JobID)
			return nil
		}
		if job.AvatarURL != "" && *c.AvatarURL != job.AvatarURL {
			// A newer upload owns the record now; its own job carries the patch.
			log.Printf("enrich: job %s superseded for client %s, skipping patch", job.JobID, job.ClientID)
			return nil
		}

		now := records.NowISO()
		c.AvatarThumbnailURL = &thumbURL
		c.ThumbnailUpdatedAt = &now
		c.AIDescription = &caption
		if job.JobID != "" {
			c.EnrichmentJobID = &job.JobID
		}

		err = p.Records.ReplaceClient(ctx, *c, c.Version)
		if errors.Is(err, records.ErrVersionConflict) {
			log.Printf("enrich: version conflict on client %s (attempt %d), re-reading", job.ClientID, attempt)
			continue
		}
		if err != nil {
			return fmt.Errorf("patch client %s: %w", job.ClientID, err)
		}
		return nil
	}
	return fmt.Errorf("patch client %s: gave up after %d version conflicts", job.ClientID, patchAttempts)
}
