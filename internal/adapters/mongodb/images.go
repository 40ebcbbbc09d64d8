package mongodb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dumu-tech/restaurant-orders/internal/core"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// ImageBucket is the GridFS bucket dish pictures live in
	ImageBucket = "images"

	uploadChunk = 64 * 1024
)

// ImageStore implements core.ObjectStore on GridFS
type ImageStore struct {
	bucket  *gridfs.Bucket
	baseURL string
}

// NewImageStore creates a GridFS-backed store. Returned URLs are
// <baseURL>/images/<file id>.
func NewImageStore(db *mongo.Database, baseURL string) (*ImageStore, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(ImageBucket))
	if err != nil {
		return nil, fmt.Errorf("failed to open GridFS bucket: %w", err)
	}
	return &ImageStore{bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put streams r into GridFS under path, reporting progress after every chunk
func (s *ImageStore) Put(ctx context.Context, path string, r io.Reader, size int64, contentType string, progress func(core.UploadProgress)) (string, error) {
	opts := options.GridFSUpload().SetMetadata(bson.D{
		{Key: "path", Value: path},
		{Key: "contentType", Value: contentType},
	})

	stream, err := s.bucket.OpenUploadStream(path, opts)
	if err != nil {
		return "", fmt.Errorf("failed to open upload stream: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetWriteDeadline(deadline)
	}

	report := func(written int64) {
		if progress != nil {
			progress(core.UploadProgress{Path: path, BytesTransferred: written, TotalBytes: size})
		}
	}
	report(0)

	var written int64
	buf := make([]byte, uploadChunk)
	for {
		if err := ctx.Err(); err != nil {
			_ = stream.Abort()
			return "", err
		}
		n, readErr := r.Read(buf)
		if n > 0 {
			if _, err := stream.Write(buf[:n]); err != nil {
				_ = stream.Abort()
				return "", fmt.Errorf("failed to write image: %w", err)
			}
			written += int64(n)
			report(written)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			_ = stream.Abort()
			return "", fmt.Errorf("failed to read upload: %w", readErr)
		}
	}

	if err := stream.Close(); err != nil {
		return "", fmt.Errorf("failed to finish upload: %w", err)
	}

	id, ok := stream.FileID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected GridFS file id %v", stream.FileID)
	}
	return s.baseURL + "/images/" + id.Hex(), nil
}

// Open returns a reader for a stored image. The caller closes it.
func (s *ImageStore) Open(ctx context.Context, id string) (io.ReadCloser, *core.StoredObject, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil, fmt.Errorf("image %s: %w", id, core.ErrNotFound)
	}

	stream, err := s.bucket.OpenDownloadStream(objectID)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, nil, fmt.Errorf("image %s: %w", id, core.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("failed to open image: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetReadDeadline(deadline)
	}

	file := stream.GetFile()
	object := &core.StoredObject{
		ID:          id,
		Path:        file.Name,
		ContentType: "application/octet-stream",
		Size:        file.Length,
	}
	if value, err := file.Metadata.LookupErr("contentType"); err == nil {
		if contentType, ok := value.StringValueOK(); ok && contentType != "" {
			object.ContentType = contentType
		}
	}
	return stream, object, nil
}
