package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestName(t *testing.T) {
	assert.NoError(t, Name("Anna"))
	assert.NoError(t, Name("Łukasz"))
	assert.NoError(t, Name("O'Brien"))
	assert.NoError(t, Name("Nowak-Kowalska"))
	assert.Error(t, Name(""))
	assert.Error(t, Name("   "))
	assert.Error(t, Name("a<script>"))
}

func TestEmail(t *testing.T) {
	assert.NoError(t, Email("anna@example.com"))
	assert.Error(t, Email("anna"))
	assert.Error(t, Email("anna@"))
	assert.Error(t, Email("anna example@x.com"))
	assert.Error(t, Email(""))
}

func TestPhone(t *testing.T) {
	assert.NoError(t, Phone(""))
	assert.NoError(t, Phone("+48 601 123 456"))
	assert.NoError(t, Phone("(22) 123-45-67"))
	assert.Error(t, Phone("abc"))
	assert.Error(t, Phone("12"))
}

func TestDenylisted(t *testing.T) {
	assert.True(t, Denylisted("Jan", "Kowalski"))
	assert.True(t, Denylisted("  JAN ", "kowalski"))
	assert.True(t, Denylisted("John", "Doe"))
	assert.False(t, Denylisted("Anna", "Nowak"))
}

func TestAvatarContentType(t *testing.T) {
	ext, err := AvatarContentType("image/png")
	require.NoError(t, err)
	assert.Equal(t, "png", ext)

	ext, err = AvatarContentType(" IMAGE/JPEG ")
	require.NoError(t, err)
	assert.Equal(t, "jpg", ext)

	_, err = AvatarContentType("application/pdf")
	assert.Error(t, err)
	_, err = AvatarContentType("")
	assert.Error(t, err)
}

func TestDocumentFilename(t *testing.T) {
	assert.NoError(t, DocumentFilename("umowa.pdf"))
	assert.NoError(t, DocumentFilename("UMOWA.PDF"))
	assert.Error(t, DocumentFilename("umowa.exe"))
	assert.Error(t, DocumentFilename("umowa"))
}

func TestDocumentContentType(t *testing.T) {
	assert.NoError(t, DocumentContentType("application/pdf"))
	assert.NoError(t, DocumentContentType(" Application/PDF "))
	assert.Error(t, DocumentContentType("text/plain"))
}
