// Package models defines the records stored in the client table.
package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ClientSchemaVersion is the current layout of the client record. Records are
// validated against it at the repository boundary before any write.
const ClientSchemaVersion = 2

var emailRx = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Document describes one file attached to a client.
type Document struct {
	ID         string `dynamodbav:"id" json:"id"`
	Name       string `dynamodbav:"name" json:"name"`
	URL        string `dynamodbav:"url" json:"url"`
	UploadedAt string `dynamodbav:"uploaded_at" json:"uploadedAt"`
}

// Client is one customer record. Optional fields are pointers; absence of
// AvatarThumbnailURL and AIDescription is the "not yet processed" signal the
// frontend polls for after an avatar upload.
type Client struct {
	// DynamoDB keys
	PK string `dynamodbav:"PK" json:"-"` // CLIENT#<id>
	SK string `dynamodbav:"SK" json:"-"` // PROFILE

	ID        string  `dynamodbav:"id" json:"id"`
	FirstName string  `dynamodbav:"first_name" json:"firstName"`
	LastName  string  `dynamodbav:"last_name" json:"lastName"`
	Email     string  `dynamodbav:"email" json:"email"`
	Phone     *string `dynamodbav:"phone,omitempty" json:"phone,omitempty"`

	AvatarURL          *string `dynamodbav:"avatar_url,omitempty" json:"avatarUrl,omitempty"`
	AvatarThumbnailURL *string `dynamodbav:"avatar_thumbnail_url,omitempty" json:"avatarThumbnailUrl,omitempty"`
	AIDescription      *string `dynamodbav:"ai_description,omitempty" json:"aiDescription,omitempty"`

	Documents []Document `dynamodbav:"documents" json:"documents"`

	IsVIP         *bool `dynamodbav:"is_vip,omitempty" json:"isVip,omitempty"`
	IsBlacklisted *bool `dynamodbav:"is_blacklisted,omitempty" json:"isBlacklisted,omitempty"`

	CreatedAt          string  `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt          *string `dynamodbav:"updated_at,omitempty" json:"updatedAt,omitempty"`
	ThumbnailUpdatedAt *string `dynamodbav:"thumbnail_updated_at,omitempty" json:"thumbnailUpdatedAt,omitempty"`

	SchemaVersion int   `dynamodbav:"schema_version" json:"schemaVersion"`
	Version       int64 `dynamodbav:"version" json:"version"`

	// EnrichmentJobID is the token of the last enrichment job applied to this
	// record, used to detect queue redeliveries.
	EnrichmentJobID *string `dynamodbav:"enrichment_job_id,omitempty" json:"enrichmentJobId,omitempty"`
}

// Validate checks the record shape before it is written to the store.
func (c Client) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("client id required")
	}
	if strings.TrimSpace(c.FirstName) == "" || strings.TrimSpace(c.LastName) == "" {
		return errors.New("firstName and lastName required")
	}
	if !emailRx.MatchString(c.Email) {
		return fmt.Errorf("invalid email %q", c.Email)
	}
	if c.SchemaVersion != ClientSchemaVersion {
		return fmt.Errorf("unsupported schema version %d", c.SchemaVersion)
	}
	if c.Version < 1 {
		return fmt.Errorf("invalid record version %d", c.Version)
	}
	if (c.AvatarThumbnailURL != nil || c.AIDescription != nil) && c.AvatarURL == nil {
		return errors.New("thumbnail fields require avatarUrl")
	}
	return nil
}

// FindDocument returns the index of the document with the given id, or -1.
func (c Client) FindDocument(docID string) int {
	for i, d := range c.Documents {
		if d.ID == docID {
			return i
		}
	}
	return -1
}
