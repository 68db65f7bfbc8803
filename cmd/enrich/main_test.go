package main

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJobPlainJSON(t *testing.T) {
	job, err := decodeJob(`{"jobId":"j1","clientId":"c1","blobPath":"avatars/c1/a.png","avatarUrl":"https://x/a.png"}`)
	require.NoError(t, err)
	assert.Equal(t, "c1", job.ClientID)
	assert.Equal(t, "avatars/c1/a.png", job.BlobPath)
}

func TestDecodeJobBase64Wrapped(t *testing.T) {
	wrapped := base64.StdEncoding.EncodeToString([]byte(`{"clientId":"c1","blobPath":"p"}`))

	job, err := decodeJob(wrapped)
	require.NoError(t, err)
	assert.Equal(t, "c1", job.ClientID)
}

func TestDecodeJobGarbage(t *testing.T) {
	_, err := decodeJob("!!! not json, not base64 !!!")
	require.Error(t, err)

	_, err = decodeJob(`{"clientId": 42}`)
	require.Error(t, err)
}
