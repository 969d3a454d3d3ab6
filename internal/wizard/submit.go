package wizard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/p-ddong/floratio-lib-client/internal/models"
	"github.com/p-ddong/floratio-lib-client/internal/payload"
)

var (
	ErrSubmitInProgress = errors.New("submission already in progress")
	ErrDraftInProgress  = errors.New("draft save already in progress")
	ErrNotAuthenticated = errors.New("login required")
)

// Submitter persists contributions on the backend
type Submitter interface {
	Create(ctx context.Context, body *payload.Body, token string) (*models.Contribution, error)
	Update(ctx context.Context, id string, body *payload.Body, token string) (*models.Contribution, error)
}

// DraftSaver persists wizard snapshots. SaveDraft fills StorageKey on file
// images it uploads.
type DraftSaver interface {
	SaveDraft(ctx context.Context, d *models.Draft, files []models.FileImage) error
}

// Submit validates the form, builds the payload and sends it. On success it
// returns the contribution id to redirect to. On failure every field is left
// as it was.
func (w *Wizard) Submit(ctx context.Context, s Submitter, token string) (string, error) {
	if token == "" {
		return "", ErrNotAuthenticated
	}

	w.mu.Lock()
	if w.submitting {
		w.mu.Unlock()
		return "", ErrSubmitInProgress
	}
	if err := w.validateLocked(); err != nil {
		w.mu.Unlock()
		return "", err
	}
	w.submitting = true
	mode := w.mode
	in := w.payloadInputLocked()
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.submitting = false
		w.mu.Unlock()
	}()

	body, err := payload.Build(in)
	if err != nil {
		return "", fmt.Errorf("failed to build submission: %w", err)
	}

	var c *models.Contribution
	switch m := mode.(type) {
	case CreateMode:
		c, err = s.Create(ctx, body, token)
	case UpdateMode:
		c, err = s.Update(ctx, m.ContributionID, body, token)
	default:
		return "", fmt.Errorf("unsupported wizard mode %T", mode)
	}
	if err != nil {
		return "", err
	}

	id := c.ID
	if m, ok := mode.(UpdateMode); ok && id == "" {
		id = m.ContributionID
	}

	log.Info().
		Str("wizard", w.key).
		Str("mode", mode.Name()).
		Str("contribution_id", id).
		Int("files", len(body.Files)).
		Msg("Contribution submitted")

	return id, nil
}

func (w *Wizard) payloadInputLocked() payload.Input {
	in := payload.Input{
		Plant: payload.Plant{
			ScientificName:     w.form.ScientificName,
			CommonName:         cloneStrings(w.form.CommonNames),
			Family:             w.form.Family,
			Attributes:         cloneStrings(w.form.Attributes),
			SpeciesDescription: cloneSections(w.form.Sections),
			Description:        w.form.Description,
		},
		Message:  w.form.Message,
		Existing: cloneImages(w.existing),
		Images:   cloneImages(w.images),
	}
	switch m := w.mode.(type) {
	case CreateMode:
		in.Mode = payload.ModeCreate
		in.PlantRef = m.PlantRef
	case UpdateMode:
		in.Mode = payload.ModeUpdate
	}
	return in
}

// SaveDraft persists the current state for owner without validating it
func (w *Wizard) SaveDraft(ctx context.Context, saver DraftSaver, owner string) error {
	w.mu.Lock()
	if w.savingDraft {
		w.mu.Unlock()
		return ErrDraftInProgress
	}
	w.savingDraft = true
	draft, files := w.draftLocked(owner)
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.savingDraft = false
		w.mu.Unlock()
	}()

	if err := saver.SaveDraft(ctx, draft, files); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}

	keys := make(map[string]string)
	for _, img := range draft.FileImages() {
		keys[img.ID] = img.StorageKey
	}

	w.mu.Lock()
	w.existing = withStorageKeys(w.existing, keys)
	w.images = withStorageKeys(w.images, keys)
	w.mu.Unlock()

	log.Info().Str("wizard", w.key).Str("owner", owner).Msg("Draft saved")
	return nil
}

// Draft returns the persisted form of the wizard and the file images whose
// bytes must be stored alongside it
func (w *Wizard) Draft(owner string) (*models.Draft, []models.FileImage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draftLocked(owner)
}

func (w *Wizard) draftLocked(owner string) (*models.Draft, []models.FileImage) {
	d := &models.Draft{
		Key:       w.key,
		Owner:     owner,
		Mode:      w.mode.Name(),
		Tab:       string(w.tab),
		Form:      cloneForm(w.form),
		CreatedAt: w.createdAt,
		UpdatedAt: time.Now(),
	}
	switch m := w.mode.(type) {
	case CreateMode:
		d.PlantRef = m.PlantRef
	case UpdateMode:
		d.ContributionID = m.ContributionID
	}

	var files []models.FileImage
	d.Existing, files = draftImages(w.existing, files)
	d.Images, files = draftImages(w.images, files)
	return d, files
}

func draftImages(list []models.Image, files []models.FileImage) ([]models.DraftImage, []models.FileImage) {
	out := make([]models.DraftImage, 0, len(list))
	for _, img := range list {
		switch v := img.(type) {
		case models.FileImage:
			out = append(out, models.DraftImage{
				Kind:        models.ImageKindFile,
				ID:          v.ID,
				Name:        v.Name,
				ContentType: v.ContentType,
				StorageKey:  v.StorageKey,
			})
			files = append(files, v)
		case models.URLImage:
			out = append(out, models.DraftImage{
				Kind: models.ImageKindURL,
				ID:   v.ID,
				Name: v.Name,
				URL:  v.URL,
			})
		}
	}
	return out, files
}

func withStorageKeys(list []models.Image, keys map[string]string) []models.Image {
	out := make([]models.Image, len(list))
	for i, img := range list {
		if f, ok := img.(models.FileImage); ok {
			if k := keys[f.ID]; k != "" {
				f.StorageKey = k
			}
			out[i] = f
			continue
		}
		out[i] = img
	}
	return out
}

// FromDraft restores a wizard from a saved draft. files supplies the bytes
// of file images keyed by image id; file images without bytes are dropped.
func FromDraft(d *models.Draft, files map[string][]byte) *Wizard {
	var mode Mode = CreateMode{PlantRef: d.PlantRef}
	if d.Mode == string(models.TypeUpdate) {
		mode = UpdateMode{ContributionID: d.ContributionID}
	}
	w := newWizard(mode)
	w.key = d.Key
	w.form = cloneForm(d.Form)
	if w.form.CommonNames == nil {
		w.form.CommonNames = []string{}
	}
	if w.form.Attributes == nil {
		w.form.Attributes = []string{}
	}
	if tab, ok := ParseTab(d.Tab); ok {
		w.tab = tab
	}
	if !d.CreatedAt.IsZero() {
		w.createdAt = d.CreatedAt
	}
	w.existing = restoreImages(d.Existing, files)
	w.images = restoreImages(d.Images, files)
	return w
}

func restoreImages(list []models.DraftImage, files map[string][]byte) []models.Image {
	out := make([]models.Image, 0, len(list))
	for _, img := range list {
		switch img.Kind {
		case models.ImageKindFile:
			data, ok := files[img.ID]
			if !ok {
				log.Warn().Str("image", img.ID).Msg("Draft image bytes missing, dropping image")
				continue
			}
			out = append(out, models.FileImage{
				ID:          img.ID,
				Name:        img.Name,
				ContentType: img.ContentType,
				Data:        data,
				StorageKey:  img.StorageKey,
			})
		case models.ImageKindURL:
			out = append(out, models.URLImage{ID: img.ID, Name: img.Name, URL: img.URL})
		}
	}
	return out
}
