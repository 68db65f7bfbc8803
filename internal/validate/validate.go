// Package validate provides functions to validate client fields and uploads.
package validate

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	emailRx = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phoneRx = regexp.MustCompile(`^\+?[0-9 \-()]{6,20}$`)
	nameRx  = regexp.MustCompile(`^[\p{L} '\-]{1,100}$`)
)

// avatarContentTypes lists the accepted avatar upload content types mapped to
// the file extension used for the stored blob.
var avatarContentTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// blockedNames is the fixed denylist checked on client create/update.
// A full-name match forces the blacklisted flag on the record.
var blockedNames = map[string]bool{
	"john doe":     true,
	"jan kowalski": true,
	"test test":    true,
}

// Name checks that a first or last name is non-empty and printable.
func Name(n string) error {
	if !nameRx.MatchString(strings.TrimSpace(n)) {
		return errors.New("name must be 1-100 letters")
	}
	return nil
}

// Email checks that the email has a plausible shape.
func Email(e string) error {
	if !emailRx.MatchString(e) {
		return errors.New("invalid email")
	}
	return nil
}

// Phone checks an optional phone number; empty is allowed.
func Phone(p string) error {
	if p == "" {
		return nil
	}
	if !phoneRx.MatchString(p) {
		return errors.New("invalid phone")
	}
	return nil
}

// Denylisted reports whether the full name matches the fixed denylist.
func Denylisted(first, last string) bool {
	full := strings.ToLower(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
	return blockedNames[full]
}

// AvatarContentType checks the content type of an avatar upload and returns
// the file extension to store the blob under.
func AvatarContentType(ct string) (string, error) {
	ext, ok := avatarContentTypes[strings.TrimSpace(strings.ToLower(ct))]
	if !ok {
		return "", errors.New("avatar must be image/jpeg, image/png or image/webp")
	}
	return ext, nil
}

// DocumentFilename checks that the document filename has a .pdf extension.
func DocumentFilename(fn string) error {
	if strings.ToLower(filepath.Ext(fn)) != ".pdf" {
		return errors.New("only .pdf files allowed")
	}
	return nil
}

// DocumentContentType checks that the Content-Type is application/pdf.
func DocumentContentType(ct string) error {
	if strings.TrimSpace(strings.ToLower(ct)) != "application/pdf" {
		return errors.New("Content-Type must be application/pdf")
	}
	return nil
}
