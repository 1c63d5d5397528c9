package objectstore

import (
	"strings"

	"github.com/jiki-education/video-production-sub000/pkg/pipeline"
)

// ObjectRef is a parsed (container, key) pair.
type ObjectRef struct {
	Container string
	Key       string
}

// ParseObjectURL extracts the container and key from a remote object URL.
// Three shapes are accepted:
//
//	scheme-prefixed   proto://container/key
//	virtual-hosted    container.service.domain/key
//	path-style        service.domain/container/key
//
// The service domain distinguishes the latter two. Anything else is a
// validation error.
func ParseObjectURL(rawURL, serviceDomain string) (ObjectRef, error) {
	u := rawURL
	if i := strings.Index(u, "://"); i >= 0 {
		scheme := u[:i]
		rest := u[i+3:]
		if scheme != "http" && scheme != "https" {
			// Custom object scheme: proto://container/key.
			container, key, ok := strings.Cut(rest, "/")
			if !ok || container == "" || key == "" {
				return ObjectRef{}, pipeline.NewError(pipeline.ErrCodeValidation,
					"cannot parse object url %q", rawURL)
			}
			return ObjectRef{Container: container, Key: key}, nil
		}
		u = rest
	}

	host, path, ok := strings.Cut(u, "/")
	if !ok || host == "" || path == "" {
		return ObjectRef{}, pipeline.NewError(pipeline.ErrCodeValidation,
			"cannot parse object url %q", rawURL)
	}

	if host == serviceDomain {
		// Path-style: service.domain/container/key.
		container, key, ok := strings.Cut(path, "/")
		if !ok || container == "" || key == "" {
			return ObjectRef{}, pipeline.NewError(pipeline.ErrCodeValidation,
				"cannot parse object url %q", rawURL)
		}
		return ObjectRef{Container: container, Key: key}, nil
	}

	if suffix := "." + serviceDomain; strings.HasSuffix(host, suffix) {
		// Virtual-hosted: container.service.domain/key.
		container := strings.TrimSuffix(host, suffix)
		if container == "" {
			return ObjectRef{}, pipeline.NewError(pipeline.ErrCodeValidation,
				"cannot parse object url %q", rawURL)
		}
		return ObjectRef{Container: container, Key: path}, nil
	}

	return ObjectRef{}, pipeline.NewError(pipeline.ErrCodeValidation,
		"cannot parse object url %q: host %q does not match service domain %q", rawURL, host, serviceDomain)
}
