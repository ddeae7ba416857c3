package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MaxImageSize caps uploaded post images.
const MaxImageSize = 10 << 20

var (
	ErrNotImage      = errors.New("upload a valid image")
	ErrImageTooLarge = errors.New("image is too large")
)

// Upload is an image received with a post form.
type Upload struct {
	Filename string
	Content  io.Reader
}

// SaveImage sniffs the upload, rejects anything that is not an image and
// stores it under posts/ with a fresh name. It returns the storage key.
func SaveImage(ctx context.Context, store Storage, up *Upload) (string, error) {
	img, err := ReadImage(up)
	if err != nil {
		return "", err
	}
	return img.Store(ctx, store)
}

// Image is a sniffed upload held in memory until it is stored.
type Image struct {
	Data []byte
	MIME *mimetype.MIME
}

// ReadImage reads at most MaxImageSize bytes of the upload and checks that
// they are an image.
func ReadImage(up *Upload) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(up.Content, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) > MaxImageSize {
		return nil, ErrImageTooLarge
	}

	mt, err := DetectImage(data)
	if err != nil {
		return nil, err
	}
	return &Image{Data: data, MIME: mt}, nil
}

// Store writes the image under posts/ and returns its key.
func (img *Image) Store(ctx context.Context, store Storage) (string, error) {
	key := "posts/" + uuid.NewString() + img.MIME.Extension()
	if err := store.Write(ctx, key, bytes.NewReader(img.Data), int64(len(img.Data)), img.MIME.String()); err != nil {
		return "", err
	}
	return key, nil
}

// DetectImage returns the detected MIME type when data is an image.
func DetectImage(data []byte) (*mimetype.MIME, error) {
	if len(data) == 0 {
		return nil, ErrNotImage
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, ErrNotImage
	}
	return mt, nil
}
