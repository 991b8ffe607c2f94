package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/mlearn/apiserver/config"
)

// PublicPrefix is prepended to object keys to form the path stored on user and course rows.
const PublicPrefix = "/uploads/"

// Key prefixes for each kind of upload.
const (
	AvatarPrefix = "avatars"
	CoursePrefix = "courses"
)

// ErrObjectNotFound is returned by backends when a key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ErrUnsupportedType is returned by Save when the content is not an accepted image.
var ErrUnsupportedType = errors.New("file must be a PNG, JPEG, GIF or WebP image")

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Upload is a file received from a client.
type Upload struct {
	Filename string
	Data     []byte
}

// Object is an opened stored file.
type Object struct {
	io.ReadCloser
	ContentType string
}

// Uploads stores avatars and course images on an ObjectStorage backend and
// exposes them under PublicPrefix.
type Uploads struct {
	backend ObjectStorage
}

// NewUploads constructs an Uploads wrapper for the provided backend.
func NewUploads(backend ObjectStorage) *Uploads {
	return &Uploads{backend: backend}
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalBackend(cfg.UploadDir)
	case "memory":
		return NewMemoryBackend(), nil
	case "minio":
		return NewMinioBackend(cfg.Minio)
	case "gcs":
		return NewGCSBackend(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// EnsureBucket prepares the backend for writes.
func (u *Uploads) EnsureBucket(ctx context.Context) error {
	return u.backend.EnsureBucket(ctx)
}

// Save writes the upload under prefix with a fresh name and returns its public path.
func (u *Uploads) Save(ctx context.Context, prefix string, upload Upload) (string, error) {
	if len(upload.Data) == 0 {
		return "", errors.New("upload is empty")
	}

	// The stored name and content type come from the sniffed bytes, never from the client filename.
	detected := mimetype.Detect(upload.Data)
	contentType, ext, ok := imageType(detected)
	if !ok {
		return "", fmt.Errorf("%w: got %s", ErrUnsupportedType, detected.String())
	}
	key := path.Join(prefix, uuid.NewString()+ext)

	if err := u.backend.Put(ctx, key, bytes.NewReader(upload.Data), int64(len(upload.Data)), contentType); err != nil {
		return "", fmt.Errorf("store %s: %w", key, err)
	}
	return PublicPrefix + key, nil
}

// Open returns the stored object for a public path or bare key.
func (u *Uploads) Open(ctx context.Context, publicPath string) (*Object, error) {
	key, ok := KeyFromPath(publicPath)
	if !ok {
		return nil, ErrObjectNotFound
	}
	reader, err := u.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return &Object{ReadCloser: reader, ContentType: extensionType(key)}, nil
}

// Remove deletes the object behind a public path. Missing objects are not an error.
func (u *Uploads) Remove(ctx context.Context, publicPath string) error {
	key, ok := KeyFromPath(publicPath)
	if !ok {
		return nil
	}
	if err := u.backend.Delete(ctx, key); err != nil && !errors.Is(err, ErrObjectNotFound) {
		return err
	}
	return nil
}

// Bucket returns the backend bucket name.
func (u *Uploads) Bucket() string {
	return u.backend.Bucket()
}

// KeyFromPath strips PublicPrefix and rejects keys that escape the upload root.
func KeyFromPath(publicPath string) (string, bool) {
	key := strings.TrimPrefix(publicPath, PublicPrefix)
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", false
	}
	cleaned := path.Clean(key)
	if cleaned != key || cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return "", false
	}
	return cleaned, true
}

// acceptedImages maps the content types Save accepts to the extension it stores them under.
var acceptedImages = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

func imageType(detected *mimetype.MIME) (string, string, bool) {
	for mime, ext := range acceptedImages {
		if detected.Is(mime) {
			return mime, ext, true
		}
	}
	return "", "", false
}

var extensionTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

func extensionType(key string) string {
	if mime, ok := extensionTypes[strings.ToLower(path.Ext(key))]; ok {
		return mime
	}
	return "application/octet-stream"
}
