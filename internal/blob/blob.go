// Package blob is the seam to attachment storage. Uploads happen before any
// comment references the result; deletion is best-effort and tolerant of
// blobs that are already gone.
package blob

import (
	"context"
	"io"
)

// Store holds comment attachments. Upload returns the public URL recorded on
// the comment. Delete takes that URL back; a "not found" outcome is not an
// error for the caller, so retried or duplicated cleanup is harmless.
type Store interface {
	Upload(ctx context.Context, path string, r io.Reader) (url string, err error)
	Delete(ctx context.Context, url string) error
}
