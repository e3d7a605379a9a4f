package supabase

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/unclebandit/aidplug-crm/internal/blob"
)

// Storage is a Supabase Storage bucket.
type Storage struct {
	c      *Client
	bucket string
}

var _ blob.Store = (*Storage)(nil)

func NewStorage(c *Client, bucket string) *Storage {
	return &Storage{c: c, bucket: bucket}
}

func (s *Storage) Driver() blob.Driver { return blob.DriverSupabase }

func (s *Storage) Put(ctx context.Context, key string, r io.Reader, opts blob.PutOptions) (blob.Info, error) {
	hdr := http.Header{}
	if opts.ContentType != "" {
		hdr.Set("Content-Type", opts.ContentType)
	} else {
		hdr.Set("Content-Type", "application/octet-stream")
	}
	if opts.Upsert {
		hdr.Set("x-upsert", "true")
	}
	_, err := s.c.do(ctx, request{
		op:     "upload " + key,
		method: http.MethodPost,
		path:   "/storage/v1/object/" + s.bucket + "/" + escapeKey(key),
		body:   r,
		header: hdr,
	})
	if err != nil {
		return blob.Info{}, err
	}
	return blob.Info{Key: key, ContentType: opts.ContentType, URL: s.PublicURL(key)}, nil
}

func (s *Storage) PublicURL(key string) string {
	return s.c.baseURL + "/storage/v1/object/public/" + s.bucket + "/" + escapeKey(key)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
