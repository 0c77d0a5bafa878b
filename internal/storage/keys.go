package storage

import (
	"io/fs"
	"net/http"
	"regexp"
	"strings"

	"case-console/pkg/apierror"
)

const maxKeyLen = 512

// Each key segment starts with a letter or digit, so "." and ".." and
// hidden temp files can never be named.
var keySegment = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// CleanKey validates an object key and returns it without surrounding
// slashes. Keys are slash separated on every backend.
func CleanKey(key string) (string, error) {
	cleaned := strings.Trim(strings.TrimSpace(key), "/")
	if cleaned == "" {
		return "", apierror.New("INVALID_KEY", "object key cannot be empty", key, http.StatusBadRequest)
	}
	if len(cleaned) > maxKeyLen {
		return "", apierror.New("INVALID_KEY", "object key is too long", "", http.StatusBadRequest)
	}
	if !fs.ValidPath(cleaned) {
		return "", apierror.New("PATH_TRAVERSAL", "object key is not a clean relative path", key, http.StatusForbidden)
	}

	for _, segment := range strings.Split(cleaned, "/") {
		if !keySegment.MatchString(segment) {
			return "", apierror.New("INVALID_KEY", "object key contains invalid characters", key, http.StatusBadRequest)
		}
	}
	return cleaned, nil
}
