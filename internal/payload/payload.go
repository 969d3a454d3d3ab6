// Package payload turns an authored contribution into the multipart body the
// backend expects on contributes/create and contributes/update.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/p-ddong/floratio-lib-client/internal/models"
)

// Mode selects create or update encoding
type Mode int

const (
	ModeCreate Mode = iota
	ModeUpdate
)

func (m Mode) String() string {
	if m == ModeUpdate {
		return "update"
	}
	return "create"
}

// FileField is the multipart key used for every uploaded image
const FileField = "new_images"

// Plant is the plant metadata of a submission. Family and Attributes hold ids.
type Plant struct {
	ScientificName     string
	CommonName         []string
	Family             string
	Attributes         []string
	SpeciesDescription []models.SpeciesSection
	Description        string
}

// Input is everything a submission carries. Existing holds images already
// published on the plant; Images holds the images added by this submission.
type Input struct {
	Mode     Mode
	Plant    Plant
	Message  string
	PlantRef string
	Existing []models.Image
	Images   []models.Image
}

// CreateInput is the create-mode subset of Input
type CreateInput struct {
	Plant    Plant
	Message  string
	PlantRef string
	Existing []models.Image
	Images   []models.Image
}

// UpdateInput is the update-mode subset of Input
type UpdateInput struct {
	Plant    Plant
	Message  string
	Existing []models.Image
	Images   []models.Image
}

// Body is a ready-to-send multipart body
type Body struct {
	ContentType string
	Bytes       []byte
	// Data is the JSON document sent in the "data" field
	Data []byte
	// Files lists the names of the file parts in order
	Files []string
}

// PlantData is the "plant" object inside the data field
type PlantData struct {
	ScientificName     string                  `json:"scientific_name"`
	CommonName         []string                `json:"common_name"`
	Family             string                  `json:"family"`
	Attributes         []string                `json:"attributes"`
	SpeciesDescription []models.SpeciesSection `json:"species_description"`
	Description        string                  `json:"description"`
	Images             []string                `json:"images"`
	ImageURLs          *[]string               `json:"image_urls,omitempty"`
}

// Data is the JSON document carried by the "data" field
type Data struct {
	Type     string    `json:"type,omitempty"`
	PlantRef *string   `json:"plant_ref,omitempty"`
	Plant    PlantData `json:"plant"`
}

// createData keeps plant_ref present even when null
type createData struct {
	Type     string    `json:"type"`
	PlantRef *string   `json:"plant_ref"`
	Plant    PlantData `json:"plant"`
}

// ErrUnknownImage is returned for an Image implementation the builder cannot encode
var ErrUnknownImage = errors.New("unknown image kind")

// BuildCreate encodes a new-species submission
func BuildCreate(in CreateInput) (*Body, error) {
	return Build(Input{
		Mode:     ModeCreate,
		Plant:    in.Plant,
		Message:  in.Message,
		PlantRef: in.PlantRef,
		Existing: in.Existing,
		Images:   in.Images,
	})
}

// BuildUpdate encodes an edit of an existing contribution
func BuildUpdate(in UpdateInput) (*Body, error) {
	return Build(Input{
		Mode:     ModeUpdate,
		Plant:    in.Plant,
		Message:  in.Message,
		Existing: in.Existing,
		Images:   in.Images,
	})
}

// Build encodes in. Field order is c_message, type (create only), data, then
// one new_images part per file image.
func Build(in Input) (*Body, error) {
	keep := make([]string, 0, len(in.Existing))
	for _, img := range in.Existing {
		u, ok := img.(models.URLImage)
		if !ok {
			return nil, fmt.Errorf("existing image %s is not a URL image", img.ImageID())
		}
		keep = append(keep, u.URL)
	}

	urls := make([]string, 0)
	files := make([]models.FileImage, 0)
	for _, img := range in.Images {
		switch v := img.(type) {
		case models.FileImage:
			files = append(files, v)
		case models.URLImage:
			urls = append(urls, v.URL)
		default:
			return nil, fmt.Errorf("%w: %T", ErrUnknownImage, img)
		}
	}

	plant := PlantData{
		ScientificName:     strings.TrimSpace(in.Plant.ScientificName),
		CommonName:         nonNil(in.Plant.CommonName),
		Family:             in.Plant.Family,
		Attributes:         nonNil(in.Plant.Attributes),
		SpeciesDescription: sections(in.Plant.SpeciesDescription),
		Description:        in.Plant.Description,
		Images:             keep,
	}

	var doc interface{}
	if in.Mode == ModeCreate {
		plant.ImageURLs = &urls
		var ref *string
		if in.PlantRef != "" {
			r := in.PlantRef
			ref = &r
		}
		doc = createData{Type: string(models.TypeCreate), PlantRef: ref, Plant: plant}
	} else {
		// URL images added by an earlier submission stay attached as kept images
		plant.Images = append(plant.Images, urls...)
		doc = Data{Plant: plant}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode data: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("c_message", in.Message); err != nil {
		return nil, fmt.Errorf("failed to write message: %w", err)
	}
	if in.Mode == ModeCreate {
		if err := w.WriteField("type", string(models.TypeCreate)); err != nil {
			return nil, fmt.Errorf("failed to write type: %w", err)
		}
	}
	if err := w.WriteField("data", string(data)); err != nil {
		return nil, fmt.Errorf("failed to write data: %w", err)
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		if err := writeFile(w, f); err != nil {
			return nil, err
		}
		names = append(names, f.Name)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &Body{
		ContentType: w.FormDataContentType(),
		Bytes:       buf.Bytes(),
		Data:        data,
		Files:       names,
	}, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeFile(w *multipart.Writer, f models.FileImage) error {
	name := f.Name
	if name == "" {
		name = f.ID
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FileField, quoteEscaper.Replace(name)))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create file part %s: %w", name, err)
	}
	if _, err := part.Write(f.Data); err != nil {
		return fmt.Errorf("failed to write file part %s: %w", name, err)
	}
	return nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func sections(in []models.SpeciesSection) []models.SpeciesSection {
	out := make([]models.SpeciesSection, 0, len(in))
	for _, s := range in {
		details := make([]models.SpeciesDetail, len(s.Details))
		copy(details, s.Details)
		out = append(out, models.SpeciesSection{Section: s.Section, Details: details})
	}
	return out
}
