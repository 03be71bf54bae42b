package validation

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/kbcstorage/storage-go/errors"
)

// tableIDPattern matches ids such as "in.c-main.orders".
var tableIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+(\.[A-Za-z0-9_\-]+){2}$`)

// ValidateFileID validates a platform file id.
func ValidateFileID(id int64) error {
	if id <= 0 {
		return errors.NewFileError("validateFileID", id, errors.ErrInvalidInput).
			WithMessage("file id must be positive")
	}
	return nil
}

// ValidateTableID validates a platform table id of the form stage.bucket.table.
func ValidateTableID(id string) error {
	if id == "" {
		return errors.NewError("validateTableID", errors.ErrInvalidInput).
			WithMessage("table id cannot be empty")
	}
	if !tableIDPattern.MatchString(id) {
		return errors.NewError("validateTableID", errors.ErrInvalidInput).
			WithMessage("table id must look like stage.bucket.table: " + id)
	}
	return nil
}

// ValidateTags validates file tags. Tags are free text but cannot be empty
// or contain control characters.
func ValidateTags(tags []string) error {
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			return errors.NewError("validateTags", errors.ErrInvalidInput).
				WithMessage("tag cannot be empty")
		}
		if hasControlCharacters(tag) {
			return errors.NewError("validateTags", errors.ErrInvalidInput).
				WithMessage("tag cannot contain control characters")
		}
	}
	return nil
}

// ValidateFileName validates a bare file name that will be joined to a
// local directory.
func ValidateFileName(name string) error {
	if name == "" {
		return errors.NewError("validateFileName", errors.ErrInvalidInput).
			WithMessage("file name cannot be empty")
	}

	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return errors.NewError("validateFileName", errors.ErrInvalidInput).
			WithMessage("file name cannot contain path separators: " + name)
	}

	if filepath.Base(name) != name {
		return errors.NewError("validateFileName", errors.ErrInvalidInput).
			WithMessage("file name must be a base name: " + name)
	}

	if len(name) > 255 {
		return errors.NewError("validateFileName", errors.ErrInvalidInput).
			WithMessage("file name cannot exceed 255 characters")
	}

	if hasControlCharacters(name) {
		return errors.NewError("validateFileName", errors.ErrInvalidInput).
			WithMessage("file name cannot contain control characters")
	}

	return nil
}

// ValidateACL validates a canned ACL returned with upload parameters.
func ValidateACL(acl string) error {
	if acl == "" {
		return nil // Empty ACL defaults to private
	}

	validACLs := map[string]bool{
		"private":                   true,
		"public-read":               true,
		"public-read-write":         true,
		"authenticated-read":        true,
		"aws-exec-read":             true,
		"bucket-owner-read":         true,
		"bucket-owner-full-control": true,
	}

	if !validACLs[acl] {
		return errors.NewError("validateACL", errors.ErrInvalidResponse).
			WithMessage("unsupported ACL: " + acl)
	}

	return nil
}

// hasControlCharacters checks for control characters in s
func hasControlCharacters(s string) bool {
	for _, char := range s {
		if unicode.IsControl(char) {
			return true
		}
	}
	return false
}
