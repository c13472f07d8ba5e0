package mediasaver

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// ImageRef is an opaque URI locating image bytes, possibly owned by another
// application.
type ImageRef string

const (
	schemeMedia = "media"
	schemeFile  = "file"
	schemeHTTP  = "http"
	schemeHTTPS = "https"
	schemeBlob  = "blob"

	imagesCollection = "images"
)

// EntryRef returns the index reference for an entry ID.
func EntryRef(id uuid.UUID) ImageRef {
	return ImageRef(schemeMedia + "://" + imagesCollection + "/" + id.String())
}

// FileRef returns a file reference for an absolute path.
func FileRef(path string) ImageRef {
	return ImageRef((&url.URL{Scheme: schemeFile, Path: path}).String())
}

func (r ImageRef) String() string {
	return string(r)
}

// Scheme returns the lowercased URI scheme, or "" when the reference does not
// parse.
func (r ImageRef) Scheme() string {
	u, err := url.Parse(string(r))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

// LastPathSegment returns the decoded last non-empty path segment, or "" if
// the reference has no path or ends in a dot segment.
func (r ImageRef) LastPathSegment() string {
	path := string(r)
	if u, err := url.Parse(string(r)); err == nil {
		path = u.Path
		if path == "" && u.Opaque != "" {
			path = u.Opaque
		}
	}
	segments := strings.Split(path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		switch segments[i] {
		case "":
			continue
		case ".", "..":
			return ""
		}
		return segments[i]
	}
	return ""
}

// EntryID returns the entry ID when the reference points into the media index.
func (r ImageRef) EntryID() (uuid.UUID, bool) {
	u, err := url.Parse(string(r))
	if err != nil || strings.ToLower(u.Scheme) != schemeMedia || u.Host != imagesCollection {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.Trim(u.Path, "/"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// FilePath returns the local path of a file reference.
func (r ImageRef) FilePath() (string, bool) {
	u, err := url.Parse(string(r))
	if err != nil || strings.ToLower(u.Scheme) != schemeFile || u.Path == "" {
		return "", false
	}
	return u.Path, true
}

// BlobRef returns a reference to an object held by a named storage backend.
func BlobRef(backend, objectKey string) ImageRef {
	return ImageRef((&url.URL{Scheme: schemeBlob, Host: backend, Path: "/" + strings.TrimPrefix(objectKey, "/")}).String())
}

// BlobLocation returns the backend name and object key of a blob reference.
func (r ImageRef) BlobLocation() (backend, objectKey string, ok bool) {
	u, err := url.Parse(string(r))
	if err != nil || strings.ToLower(u.Scheme) != schemeBlob || u.Host == "" {
		return "", "", false
	}
	objectKey = strings.TrimPrefix(u.Path, "/")
	if objectKey == "" {
		return "", "", false
	}
	return u.Host, objectKey, true
}
