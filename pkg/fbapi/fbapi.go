// Package fbapi holds the FileBrowser wire paths and composes request and
// access URLs from a server base URL, a remote directory and a file name.
package fbapi

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

const (
	LoginPath     = "/api/login"
	ResourcesPath = "/api/resources"
	TusPath       = "/api/tus"
	FilesPath     = "/files"

	// TusVersion is the resumable protocol version sent on create and patch.
	TusVersion = "1.0.0"

	// OffsetStreamContentType marks a patch body as a byte-offset stream.
	OffsetStreamContentType = "application/offset+octet-stream"

	HeaderTusResumable = "Tus-Resumable"
	HeaderUploadLength = "Upload-Length"
	HeaderUploadOffset = "Upload-Offset"
)

var serverURLPattern = regexp.MustCompile(`^https?://.+`)

// ValidServerURL reports whether s has an http or https scheme and a host part.
func ValidServerURL(s string) bool {
	return serverURLPattern.MatchString(s)
}

// NormalizeDir returns dir with a leading slash, no trailing slash and no
// duplicate separators. The root directory normalizes to "" so that
// dir + "/" + name always has exactly one separator.
func NormalizeDir(dir string) string {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return ""
	}

	cleaned := path.Clean("/" + dir)
	if cleaned == "/" {
		return ""
	}

	return cleaned
}

// escapeDir percent-escapes each segment of a normalized directory.
func escapeDir(dir string) string {
	if dir == "" {
		return ""
	}

	segments := strings.Split(strings.TrimPrefix(dir, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}

	return "/" + strings.Join(segments, "/")
}

func base(serverURL string) string {
	return strings.TrimRight(serverURL, "/")
}

// LoginURL is the login endpoint.
func LoginURL(serverURL string) string {
	return base(serverURL) + LoginPath
}

// ResourceURL is the direct upload target, always requesting override.
func ResourceURL(serverURL, dir, name string) string {
	return base(serverURL) + ResourcesPath + escapeDir(NormalizeDir(dir)) +
		"/" + url.PathEscape(name) + "?override=true"
}

// TusURL is the resumable create/patch target. The remote directory is not
// part of this path.
func TusURL(serverURL, name string) string {
	return base(serverURL) + TusPath + "/" + url.PathEscape(name)
}

// AccessURL is the human-facing location of an uploaded file.
func AccessURL(serverURL, dir, name string) string {
	return base(serverURL) + FilesPath + escapeDir(NormalizeDir(dir)) + "/" + url.PathEscape(name)
}
