package media

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// RejectKind classifies why an upload was refused before any processing.
type RejectKind string

const (
	RejectBadName           RejectKind = "bad_name"
	RejectUnsupportedFormat RejectKind = "unsupported_format"
	RejectTooLarge          RejectKind = "too_large"
)

// ValidationError is a typed rejection from the upload validator.
type ValidationError struct {
	Kind   RejectKind
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

var allowedAudioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".m4a": true, ".ogg": true,
}

var allowedVideoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true, ".avi": true, ".webm": true,
}

// FileInfo describes an accepted upload.
type FileInfo struct {
	Filename  string
	Extension string
	SizeBytes int64
	SizeMB    float64
	IsVideo   bool
}

// Validator is a pure predicate over upload metadata. It never touches the
// file contents.
type Validator struct {
	maxSizeMB int
}

// NewValidator creates a validator with the system-wide size ceiling in MB.
func NewValidator(maxSizeMB int) *Validator {
	return &Validator{maxSizeMB: maxSizeMB}
}

// Validate accepts or rejects an upload by name and size. contentType is
// advisory only; classification follows the file extension.
func (v *Validator) Validate(filename string, sizeBytes int64, contentType string) (*FileInfo, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, &ValidationError{Kind: RejectBadName, Reason: "filename is missing"}
	}

	ext := strings.ToLower(filepath.Ext(filename))
	isAudio := allowedAudioExtensions[ext]
	isVideo := allowedVideoExtensions[ext]
	if !isAudio && !isVideo {
		return nil, &ValidationError{
			Kind:   RejectUnsupportedFormat,
			Reason: fmt.Sprintf("unsupported format %q, supported: %s", ext, supportedList()),
		}
	}

	sizeMB := float64(sizeBytes) / (1024 * 1024)
	if sizeMB > float64(v.maxSizeMB) {
		return nil, &ValidationError{
			Kind:   RejectTooLarge,
			Reason: fmt.Sprintf("file is %.1fMB, maximum is %dMB", sizeMB, v.maxSizeMB),
		}
	}

	return &FileInfo{
		Filename:  filename,
		Extension: ext,
		SizeBytes: sizeBytes,
		SizeMB:    sizeMB,
		IsVideo:   isVideo,
	}, nil
}

func supportedList() string {
	exts := make([]string, 0, len(allowedAudioExtensions)+len(allowedVideoExtensions))
	for ext := range allowedAudioExtensions {
		exts = append(exts, ext)
	}
	for ext := range allowedVideoExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}
