package enrich

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzieba/client-manager/internal/models"
	"github.com/mzieba/client-manager/internal/queue"
	"github.com/mzieba/client-manager/internal/records"
	"github.com/mzieba/client-manager/internal/vision"
)

// -------- test fakes --------

type fakeBlobs struct {
	objects  map[string][]byte
	types    map[string]string
	getCalls int
	putCalls int
	putErr   error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	f.getCalls++
	b, ok := f.objects[key]
	if !ok {
		return nil, assert.AnError
	}
	return b, nil
}

func (f *fakeBlobs) Put(ctx context.Context, key string, body []byte, contentType string) error {
	f.putCalls++
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = body
	f.types[key] = contentType
	return nil
}

func (f *fakeBlobs) URL(key string) string { return "https://blobs.test/" + key }

type fakeRecords struct {
	clients       map[string]*models.Client
	findCalls     int
	replaceCalls  int
	conflictsLeft int
}

func (f *fakeRecords) FindClientByID(ctx context.Context, id string) (*models.Client, error) {
	f.findCalls++
	c, ok := f.clients[id]
	if !ok {
		return nil, records.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeRecords) ReplaceClient(ctx context.Context, c models.Client, expectedVersion int64) error {
	f.replaceCalls++
	stored, ok := f.clients[c.ID]
	if !ok {
		return records.ErrNotFound
	}
	if f.conflictsLeft > 0 {
		// A concurrent writer got there first.
		f.conflictsLeft--
		stored.Version++
		return records.ErrVersionConflict
	}
	if stored.Version != expectedVersion {
		return records.ErrVersionConflict
	}
	c.Version = expectedVersion + 1
	f.clients[c.ID] = &c
	return nil
}

type fakeVision struct {
	caption string
	err     error
	calls   int
}

func (f *fakeVision) Describe(ctx context.Context, image []byte) (string, error) {
	f.calls++
	return f.caption, f.err
}

// -------- helpers --------

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func strptr(s string) *string { return &s }

func testClient(avatarURL string) *models.Client {
	return &models.Client{
		ID:            "c1",
		FirstName:     "Anna",
		LastName:      "Nowak",
		Email:         "anna@example.com",
		AvatarURL:     strptr(avatarURL),
		Documents:     []models.Document{},
		CreatedAt:     records.NowISO(),
		SchemaVersion: models.ClientSchemaVersion,
		Version:       3,
	}
}

func testJob() queue.Job {
	return queue.Job{
		JobID:     "job-1",
		ClientID:  "c1",
		BlobPath:  "avatars/c1/abc.png",
		AvatarURL: "https://blobs.test/avatars/c1/abc.png",
	}
}

func newPipeline(t *testing.T, avatarURL string) (*Pipeline, *fakeBlobs, *fakeRecords, *fakeVision) {
	t.Helper()
	blobs := newFakeBlobs()
	blobs.objects["avatars/c1/abc.png"] = pngBytes(t, 64, 48)
	recs := &fakeRecords{clients: map[string]*models.Client{}}
	if avatarURL != "" {
		recs.clients["c1"] = testClient(avatarURL)
	}
	vis := &fakeVision{caption: "a person smiling"}
	return &Pipeline{Blobs: blobs, Records: recs, Vision: vis, ThumbSize: 128}, blobs, recs, vis
}

// -------- tests --------

func TestProcessHappyPath(t *testing.T) {
	job := testJob()
	p, blobs, recs, _ := newPipeline(t, job.AvatarURL)

	require.NoError(t, p.Process(context.Background(), job))

	c := recs.clients["c1"]
	require.NotNil(t, c.AvatarThumbnailURL)
	assert.Equal(t, "https://blobs.test/thumbs/c1/thumb.jpg", *c.AvatarThumbnailURL)
	require.NotNil(t, c.AIDescription)
	assert.Equal(t, "a person smiling", *c.AIDescription)
	require.NotNil(t, c.ThumbnailUpdatedAt)
	assert.NotEmpty(t, *c.ThumbnailUpdatedAt)
	require.NotNil(t, c.EnrichmentJobID)
	assert.Equal(t, "job-1", *c.EnrichmentJobID)
	assert.Equal(t, int64(4), c.Version)

	thumbBytes, ok := blobs.objects["thumbs/c1/thumb.jpg"]
	require.True(t, ok, "thumbnail blob must exist")
	assert.Equal(t, "image/jpeg", blobs.types["thumbs/c1/thumb.jpg"])

	img, format, err := image.Decode(bytes.NewReader(thumbBytes))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 128, img.Bounds().Dx())
	assert.Equal(t, 128, img.Bounds().Dy())
}

func TestProcessCaptionServiceError(t *testing.T) {
	job := testJob()
	p, blobs, recs, vis := newPipeline(t, job.AvatarURL)
	vis.err = vision.ErrRejected

	require.NoError(t, p.Process(context.Background(), job))

	c := recs.clients["c1"]
	require.NotNil(t, c.AIDescription)
	assert.Equal(t, CaptionServiceError, *c.AIDescription)
	assert.NotNil(t, c.AvatarThumbnailURL, "thumbnail must not be blocked by captioning")
	assert.Contains(t, blobs.objects, "thumbs/c1/thumb.jpg")
}

func TestProcessCaptionUnreachable(t *testing.T) {
	job := testJob()
	p, _, recs, vis := newPipeline(t, job.AvatarURL)
	vis.err = vision.ErrUnavailable

	require.NoError(t, p.Process(context.Background(), job))

	c := recs.clients["c1"]
	require.NotNil(t, c.AIDescription)
	assert.Equal(t, CaptionUnreachable, *c.AIDescription)
	assert.NotEqual(t, CaptionServiceError, *c.AIDescription,
		"the two failure modes must stay distinguishable")
}

func TestProcessClientGone(t *testing.T) {
	job := testJob()
	p, blobs, recs, _ := newPipeline(t, "")

	require.NoError(t, p.Process(context.Background(), job),
		"a deleted client is an expected race, not a failure")
	assert.Zero(t, recs.replaceCalls)
	assert.Empty(t, recs.clients, "no record may be created")
	assert.Contains(t, blobs.objects, "thumbs/c1/thumb.jpg")
}

func TestProcessRedelivery(t *testing.T) {
	job := testJob()
	p, blobs, recs, _ := newPipeline(t, job.AvatarURL)

	require.NoError(t, p.Process(context.Background(), job))
	firstURL := *recs.clients["c1"].AvatarThumbnailURL
	firstVersion := recs.clients["c1"].Version

	require.NoError(t, p.Process(context.Background(), job))

	assert.Equal(t, firstURL, *recs.clients["c1"].AvatarThumbnailURL)
	assert.Equal(t, firstVersion, recs.clients["c1"].Version, "redelivery must not re-patch")
	assert.Equal(t, 1, recs.replaceCalls)

	// One original, one thumbnail: redelivery overwrites the same key.
	assert.Len(t, blobs.objects, 2)
}

func TestProcessMalformedJob(t *testing.T) {
	for _, job := range []queue.Job{
		{JobID: "j", BlobPath: "avatars/c1/abc.png"},
		{JobID: "j", ClientID: "c1"},
	} {
		p, blobs, recs, vis := newPipeline(t, "https://blobs.test/avatars/c1/abc.png")

		err := p.Process(context.Background(), job)
		require.Error(t, err)
		assert.Zero(t, blobs.getCalls, "no blob call before validation")
		assert.Zero(t, blobs.putCalls)
		assert.Zero(t, recs.findCalls, "no db call before validation")
		assert.Zero(t, vis.calls)
	}
}

func TestProcessSupersededJob(t *testing.T) {
	job := testJob()
	p, _, recs, _ := newPipeline(t, "https://blobs.test/avatars/c1/newer.png")

	require.NoError(t, p.Process(context.Background(), job))
	assert.Zero(t, recs.replaceCalls, "stale job must not overwrite a newer avatar's fields")
	assert.Nil(t, recs.clients["c1"].AvatarThumbnailURL)
}

func TestProcessVersionConflictRetries(t *testing.T) {
	job := testJob()
	p, _, recs, _ := newPipeline(t, job.AvatarURL)
	recs.conflictsLeft = 1

	require.NoError(t, p.Process(context.Background(), job))
	assert.Equal(t, 2, recs.findCalls, "conflict forces a re-read")
	assert.NotNil(t, recs.clients["c1"].AvatarThumbnailURL)
}

func TestProcessVersionConflictGivesUp(t *testing.T) {
	job := testJob()
	p, _, recs, _ := newPipeline(t, job.AvatarURL)
	recs.conflictsLeft = 100

	err := p.Process(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, 3, recs.replaceCalls)
}

func TestProcessCorruptImage(t *testing.T) {
	job := testJob()
	p, blobs, recs, _ := newPipeline(t, job.AvatarURL)
	blobs.objects[job.BlobPath] = []byte("definitely not an image")

	err := p.Process(context.Background(), job)
	require.Error(t, err)
	assert.Zero(t, blobs.putCalls, "no thumbnail from a corrupt source")
	assert.Zero(t, recs.replaceCalls, "no record mutation on resize failure")
}

func TestProcessFetchFailure(t *testing.T) {
	job := testJob()
	p, blobs, recs, vis := newPipeline(t, job.AvatarURL)
	delete(blobs.objects, job.BlobPath)

	err := p.Process(context.Background(), job)
	require.Error(t, err)
	assert.Zero(t, vis.calls)
	assert.Zero(t, recs.findCalls)
}
