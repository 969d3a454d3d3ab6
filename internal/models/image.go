package models

// Image is an image attached to a contribution being authored. It is either
// a FileImage holding uploaded bytes or a URLImage pointing at a remote file.
type Image interface {
	ImageID() string
	ImageName() string
	isImage()
}

// FileImage is an image uploaded from the user's device
type FileImage struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
	// StorageKey is set once the bytes are persisted with a draft
	StorageKey string `json:"storage_key,omitempty"`
}

func (f FileImage) ImageID() string   { return f.ID }
func (f FileImage) ImageName() string { return f.Name }
func (FileImage) isImage()            {}

// Size returns the number of bytes held
func (f FileImage) Size() int { return len(f.Data) }

// URLImage is an image referenced by URL
type URLImage struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (u URLImage) ImageID() string   { return u.ID }
func (u URLImage) ImageName() string { return u.Name }
func (URLImage) isImage()            {}
