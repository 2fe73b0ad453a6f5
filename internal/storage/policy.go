package storage

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/gema-assignment-api/internal/apperror"
)

// UploadPolicy restricts what students may upload.
type UploadPolicy struct {
	MaxBytes          int64
	AllowedExtensions []string
}

// DefaultUploadPolicy allows 10 MB documents and archives.
func DefaultUploadPolicy() UploadPolicy {
	return UploadPolicy{
		MaxBytes:          10 << 20,
		AllowedExtensions: []string{"pdf", "doc", "docx", "zip"},
	}
}

// Validate checks the file name and size against the policy.
func (p UploadPolicy) Validate(fileName string, size int64) error {
	if strings.TrimSpace(fileName) == "" {
		return apperror.BadRequest("file is required")
	}
	if size <= 0 {
		return apperror.BadRequest("file is empty")
	}
	if p.MaxBytes > 0 && size > p.MaxBytes {
		return apperror.BadRequest("file exceeds the %d MB limit", p.MaxBytes>>20)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	for _, allowed := range p.AllowedExtensions {
		if ext == strings.ToLower(strings.TrimPrefix(strings.TrimSpace(allowed), ".")) {
			return nil
		}
	}
	return apperror.BadRequest("file type .%s is not allowed", ext)
}

// SanitizeFileName strips directories and replaces unsafe characters.
func SanitizeFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	clean := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, base)
	clean = strings.TrimLeft(clean, ".")
	if clean == "" {
		return "file"
	}
	return clean
}

// SubmissionKey places a student's file under its assignment and student.
func SubmissionKey(assignmentID, studentID uint, fileName string) string {
	return fmt.Sprintf("%d/%d/%s_%s", assignmentID, studentID, uuid.NewString(), SanitizeFileName(fileName))
}

// OriginalFileName recovers the uploaded name from a location built by SubmissionKey.
func OriginalFileName(location string) string {
	if location == "" {
		return ""
	}
	base := path.Base(strings.ReplaceAll(location, "\\", "/"))
	if prefix, rest, ok := strings.Cut(base, "_"); ok && rest != "" {
		if _, err := uuid.Parse(prefix); err == nil {
			return rest
		}
	}
	return base
}
