package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/p-ddong/floratio-lib-client/internal/models"
)

var (
	ErrDraftNotFound           = errors.New("draft not found")
	ErrImageStorageUnavailable = errors.New("image storage is not configured")
)

// DraftRecords is the relational side of draft persistence
type DraftRecords interface {
	SaveDraft(ctx context.Context, d *models.Draft) error
	GetDraft(ctx context.Context, owner, key string) (*models.Draft, error)
	ListDrafts(ctx context.Context, owner string) ([]DraftSummary, error)
	DeleteDraft(ctx context.Context, owner, key string) ([]string, bool, error)
}

// ImageObjects stores raw image bytes
type ImageObjects interface {
	UploadImage(ctx context.Context, key, contentType string, data []byte) error
	GetImage(ctx context.Context, key string) ([]byte, error)
	DeleteImage(ctx context.Context, key string) error
}

// DraftStore keeps draft snapshots in Postgres and their file images in
// object storage
type DraftStore struct {
	records DraftRecords
	images  ImageObjects
}

// NewDraftStore creates a draft store. images may be nil, in which case
// drafts holding file images cannot be saved.
func NewDraftStore(records DraftRecords, images ImageObjects) *DraftStore {
	return &DraftStore{records: records, images: images}
}

// SaveDraft uploads file images that have no storage key yet, records the
// snapshot and removes objects the previous snapshot referenced but this
// one does not. On failure the objects uploaded by this call are removed.
func (s *DraftStore) SaveDraft(ctx context.Context, d *models.Draft, files []models.FileImage) (err error) {
	byID := make(map[string]models.FileImage, len(files))
	for _, f := range files {
		byID[f.ID] = f
	}

	var previous []string
	old, err := s.records.GetDraft(ctx, d.Owner, d.Key)
	switch {
	case err == nil:
		for _, img := range old.FileImages() {
			previous = append(previous, img.StorageKey)
		}
	case !errors.Is(err, ErrDraftNotFound):
		return err
	}

	var uploaded []*models.DraftImage
	defer func() {
		if err == nil {
			return
		}
		for _, img := range uploaded {
			s.deleteObject(ctx, img.StorageKey)
			img.StorageKey = ""
		}
	}()

	for _, list := range [][]models.DraftImage{d.Existing, d.Images} {
		for i := range list {
			img := &list[i]
			if img.Kind != models.ImageKindFile || img.StorageKey != "" {
				continue
			}
			if s.images == nil {
				return ErrImageStorageUnavailable
			}
			f, ok := byID[img.ID]
			if !ok {
				return fmt.Errorf("no bytes for draft image %s", img.ID)
			}
			key := DraftImageKey(d.Owner, d.Key, img.ID, img.Name, img.ContentType)
			if err := s.images.UploadImage(ctx, key, f.ContentType, f.Data); err != nil {
				return err
			}
			img.StorageKey = key
			uploaded = append(uploaded, img)
		}
	}

	if err := s.records.SaveDraft(ctx, d); err != nil {
		return err
	}

	current := make(map[string]bool)
	for _, img := range d.FileImages() {
		current[img.StorageKey] = true
	}
	for _, key := range previous {
		if key != "" && !current[key] {
			s.deleteObject(ctx, key)
		}
	}
	return nil
}

// LoadDraft returns a draft and the bytes of its file images keyed by image
// id. Images whose bytes cannot be read are left out of the map.
func (s *DraftStore) LoadDraft(ctx context.Context, owner, key string) (*models.Draft, map[string][]byte, error) {
	d, err := s.records.GetDraft(ctx, owner, key)
	if err != nil {
		return nil, nil, err
	}

	files := make(map[string][]byte)
	if s.images == nil {
		return d, files, nil
	}
	for _, img := range d.FileImages() {
		if img.StorageKey == "" {
			continue
		}
		data, err := s.images.GetImage(ctx, img.StorageKey)
		if err != nil {
			log.Warn().Err(err).Str("draft", key).Str("image", img.ID).Msg("Failed to load draft image")
			continue
		}
		files[img.ID] = data
	}
	return d, files, nil
}

// ListDrafts returns the draft summaries of owner
func (s *DraftStore) ListDrafts(ctx context.Context, owner string) ([]DraftSummary, error) {
	return s.records.ListDrafts(ctx, owner)
}

// DeleteDraft removes a draft and its images
func (s *DraftStore) DeleteDraft(ctx context.Context, owner, key string) error {
	keys, ok, err := s.records.DeleteDraft(ctx, owner, key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDraftNotFound
	}
	for _, k := range keys {
		s.deleteObject(ctx, k)
	}
	log.Info().Str("draft", key).Str("owner", owner).Int("images", len(keys)).Msg("Draft deleted")
	return nil
}

func (s *DraftStore) deleteObject(ctx context.Context, key string) {
	if s.images == nil {
		return
	}
	if err := s.images.DeleteImage(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to delete draft image")
	}
}
