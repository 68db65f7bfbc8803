// Package api contains types for the API requests and responses.
package api

// ClientRequest represents the payload for creating or updating a client.
type ClientRequest struct {
	FirstName     string  `json:"firstName"`
	LastName      string  `json:"lastName"`
	Email         string  `json:"email"`
	Phone         *string `json:"phone,omitempty"`
	IsVIP         *bool   `json:"isVip,omitempty"`
	IsBlacklisted *bool   `json:"isBlacklisted,omitempty"`

	// Version is required on update: omitting it yields a 400, and the
	// write is rejected with 409 when it does not match the stored record.
	Version int64 `json:"version,omitempty"`
}

// AvatarUploadRequest carries an avatar image as a base64-encoded body.
type AvatarUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        string `json:"data"` // base64
}

// AvatarUploadResponse confirms the stored original and the enqueued job.
type AvatarUploadResponse struct {
	AvatarURL string `json:"avatarUrl"`
	JobID     string `json:"jobId"`
}

// DocPresignRequest represents the request for a presigned document upload URL.
type DocPresignRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// DocPresignResponse contains the presigned S3 upload URL and related info.
type DocPresignResponse struct {
	DocID         string            `json:"doc_id"`
	S3Key         string            `json:"s3_key"`
	PresignedURL  string            `json:"presigned_url"`
	ExpiresIn     int               `json:"expires_in"`
	ContentType   string            `json:"content_type"`
	UploadHeaders map[string]string `json:"upload_headers"`
}

// OrderRequest represents the payload for creating an order.
type OrderRequest struct {
	ClientID string  `json:"clientId"`
	Title    string  `json:"title"`
	Amount   float64 `json:"amount"`
}
