// Package blob defines the photo storage abstraction used by the session
// manager and the client collection.
package blob

import (
	"context"
	"io"
	"mime"
	"path"
	"strings"
)

// Driver identifies a concrete blob storage backend implementation.
type Driver string

const (
	DriverSupabase Driver = "supabase"
	DriverS3       Driver = "s3"
	DriverMemory   Driver = "memory" // tests
)

// PutOptions specifies optional parameters for Put.
type PutOptions struct {
	ContentType string
	// Upsert overwrites an existing object instead of failing.
	Upsert bool
}

// Info describes a stored blob.
type Info struct {
	Key         string `json:"key"`
	Size        int64  `json:"size_bytes"`
	ContentType string `json:"content_type,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Store is a single-bucket object store with public read URLs.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	PublicURL(key string) string
	Driver() Driver
}

// ProfilePhotoKey is the object key of a user's profile photo.
func ProfilePhotoKey(userID, filename string) string {
	return userID + "/profile." + Ext(filename)
}

// ClientPhotoKey is the object key of a client's photo.
func ClientPhotoKey(clientID, filename string) string {
	return "clients/" + clientID + "/photo." + Ext(filename)
}

// Ext returns the text after the last dot of filename, or the whole base
// name when there is no dot.
func Ext(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		return base[i+1:]
	}
	return base
}

// ContentType guesses the MIME type from the file extension.
func ContentType(filename string) string {
	if ct := mime.TypeByExtension("." + strings.ToLower(Ext(filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
