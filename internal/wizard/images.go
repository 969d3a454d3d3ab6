package wizard

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/p-ddong/floratio-lib-client/internal/models"
)

// MaxImageSize is the per-file upload ceiling
const MaxImageSize = 5 << 20

var (
	ErrNotAnImage      = errors.New("only image files are allowed")
	ErrImageTooLarge   = fmt.Errorf("image exceeds %d MB", MaxImageSize>>20)
	ErrInvalidURL      = errors.New("image URL must be an absolute http or https URL")
	ErrImageNotFound   = errors.New("image not found")
	ErrIndexOutOfRange = errors.New("image index out of range")
)

// ValidateImageFile checks the declared content type and size of an upload
func ValidateImageFile(contentType string, size int) error {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/") {
		return ErrNotAnImage
	}
	if size > MaxImageSize {
		return ErrImageTooLarge
	}
	return nil
}

// AddFile appends an uploaded image to the new images
func (w *Wizard) AddFile(name, contentType string, data []byte) (models.FileImage, error) {
	if err := ValidateImageFile(contentType, len(data)); err != nil {
		return models.FileImage{}, err
	}
	img := models.FileImage{
		ID:          uuid.New().String(),
		Name:        name,
		ContentType: contentType,
		Data:        data,
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.images = append(cloneImages(w.images), img)
	return img, nil
}

// AddURL appends a remote image to the new images
func (w *Wizard) AddURL(raw string) (models.URLImage, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.URLImage{}, ErrInvalidURL
	}
	name := raw
	if i := strings.LastIndex(u.Path, "/"); i >= 0 && i < len(u.Path)-1 {
		name = u.Path[i+1:]
	}
	img := models.URLImage{ID: uuid.New().String(), Name: name, URL: u.String()}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.images = append(cloneImages(w.images), img)
	return img, nil
}

// RemoveImage removes an image from either bucket by id
func (w *Wizard) RemoveImage(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if out, ok := without(w.images, id); ok {
		w.images = out
		return nil
	}
	if out, ok := without(w.existing, id); ok {
		w.existing = out
		return nil
	}
	return fmt.Errorf("%w: %s", ErrImageNotFound, id)
}

// MoveImage moves the new image at from to position to
func (w *Wizard) MoveImage(from, to int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := len(w.images)
	if from < 0 || from >= n || to < 0 || to >= n {
		return ErrIndexOutOfRange
	}
	images := cloneImages(w.images)
	img := images[from]
	images = append(images[:from], images[from+1:]...)
	images = append(images[:to], append([]models.Image{img}, images[to:]...)...)
	w.images = images
	return nil
}

func without(list []models.Image, id string) ([]models.Image, bool) {
	for i, img := range list {
		if img.ImageID() == id {
			out := make([]models.Image, 0, len(list)-1)
			out = append(out, list[:i]...)
			return append(out, list[i+1:]...), true
		}
	}
	return list, false
}
