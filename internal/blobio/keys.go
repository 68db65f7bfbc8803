package blobio

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Key prefixes for the three logical blob groups sharing one bucket.
const (
	AvatarPrefix = "avatars"
	ThumbPrefix  = "thumbs"
	DocPrefix    = "docs"

	ThumbContentType = "image/jpeg"
)

// AvatarKey constructs the key for an uploaded original avatar image.
func AvatarKey(clientID, fileID, ext string) string {
	return fmt.Sprintf("%s/%s/%s.%s", AvatarPrefix, clientID, fileID, ext)
}

// ThumbKey constructs the deterministic key for a client's thumbnail. Every
// enrichment run for the same client overwrites the same object.
func ThumbKey(clientID string) string {
	return fmt.Sprintf("%s/%s/thumb.jpg", ThumbPrefix, clientID)
}

// DocKey constructs the key for an uploaded client document.
func DocKey(clientID, docID string) string {
	return fmt.Sprintf("%s/%s/%s.pdf", DocPrefix, clientID, docID)
}

// ParseDocKey extracts clientID and docID from a document key path.
func ParseDocKey(key string) (clientID, docID string, ok bool) {
	if strings.ToLower(filepath.Ext(key)) != ".pdf" {
		return "", "", false
	}
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != DocPrefix {
		return "", "", false
	}
	return parts[1], strings.TrimSuffix(parts[2], ".pdf"), true
}

// DocUploadHeaders builds the headers the client must send on the presigned PUT.
func DocUploadHeaders(clientID, docID, name, contentType string) map[string]string {
	return map[string]string{
		"Content-Type":         contentType,
		"x-amz-meta-client_id": clientID,
		"x-amz-meta-doc_id":    docID,
		"x-amz-meta-doc_name":  name,
	}
}
