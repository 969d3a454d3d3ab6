package wizard

import (
	"errors"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/p-ddong/floratio-lib-client/internal/models"
)

var (
	ErrEmptyValue       = errors.New("value must not be empty")
	ErrDuplicateSection = errors.New("section already exists")
	ErrSectionNotFound  = errors.New("section not found")
	ErrDetailNotFound   = errors.New("detail not found")
)

// SetBasic replaces the basic tab fields
func (w *Wizard) SetBasic(scientificName, family, description string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.form.ScientificName = strings.TrimSpace(scientificName)
	w.form.Family = strings.TrimSpace(family)
	w.form.Description = description
}

// SetMessage replaces the contribution message
func (w *Wizard) SetMessage(message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.form.Message = message
}

// AddCommonName appends a trimmed common name. It returns false when the
// name is empty or already present.
func (w *Wizard) AddCommonName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, n := range w.form.CommonNames {
		if n == name {
			return false
		}
	}
	w.form.CommonNames = append(w.form.CommonNames, name)
	return true
}

// RemoveCommonName removes name if present
func (w *Wizard) RemoveCommonName(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.form.CommonNames[:0:0]
	for _, n := range w.form.CommonNames {
		if n != name {
			out = append(out, n)
		}
	}
	w.form.CommonNames = out
}

// ToggleAttribute adds the attribute id if absent and removes it otherwise.
// It returns whether the attribute is selected afterwards.
func (w *Wizard) ToggleAttribute(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, a := range w.form.Attributes {
		if a == id {
			w.form.Attributes = append(w.form.Attributes[:i:i], w.form.Attributes[i+1:]...)
			return false
		}
	}
	w.form.Attributes = append(w.form.Attributes, id)
	return true
}

// SetAttributes replaces the selection, dropping blanks and duplicates while
// keeping first-seen order
func (w *Wizard) SetAttributes(ids []string) {
	seen := mapset.NewThreadUnsafeSet[string]()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen.Contains(id) {
			continue
		}
		seen.Add(id)
		out = append(out, id)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.form.Attributes = out
}

// AddSection appends an empty section. Predefined and custom names are both
// accepted; names must be unique.
func (w *Wizard) AddSection(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("section name: %w", ErrEmptyValue)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sectionIndex(name) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateSection, name)
	}
	w.form.Sections = append(w.form.Sections, models.SpeciesSection{Section: name, Details: []models.SpeciesDetail{}})
	return nil
}

// RenameSection renames a section, keeping its details and position
func (w *Wizard) RenameSection(from, to string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("section name: %w", ErrEmptyValue)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	i := w.sectionIndex(from)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrSectionNotFound, from)
	}
	if to == from {
		return nil
	}
	if w.sectionIndex(to) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateSection, to)
	}
	w.form.Sections[i].Section = to
	return nil
}

// RemoveSection deletes a section and its details
func (w *Wizard) RemoveSection(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := w.sectionIndex(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrSectionNotFound, name)
	}
	w.form.Sections = append(w.form.Sections[:i:i], w.form.Sections[i+1:]...)
	return nil
}

// AddDetail appends a label/content pair to a section
func (w *Wizard) AddDetail(section, label, content string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := w.sectionIndex(section)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrSectionNotFound, section)
	}
	details := cloneDetails(w.form.Sections[i].Details)
	w.form.Sections[i].Details = append(details, models.SpeciesDetail{Label: strings.TrimSpace(label), Content: content})
	return nil
}

// UpdateDetail replaces the detail at index idx of a section
func (w *Wizard) UpdateDetail(section string, idx int, label, content string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := w.sectionIndex(section)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrSectionNotFound, section)
	}
	if idx < 0 || idx >= len(w.form.Sections[i].Details) {
		return fmt.Errorf("%w: %s[%d]", ErrDetailNotFound, section, idx)
	}
	details := cloneDetails(w.form.Sections[i].Details)
	details[idx] = models.SpeciesDetail{Label: strings.TrimSpace(label), Content: content}
	w.form.Sections[i].Details = details
	return nil
}

// RemoveDetail deletes the detail at index idx of a section
func (w *Wizard) RemoveDetail(section string, idx int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := w.sectionIndex(section)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrSectionNotFound, section)
	}
	d := w.form.Sections[i].Details
	if idx < 0 || idx >= len(d) {
		return fmt.Errorf("%w: %s[%d]", ErrDetailNotFound, section, idx)
	}
	w.form.Sections[i].Details = append(d[:idx:idx], d[idx+1:]...)
	return nil
}

// AvailableSections returns the predefined sections not yet added
func (w *Wizard) AvailableSections() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []string
	for _, s := range models.PredefinedSections {
		if w.sectionIndex(s) < 0 {
			out = append(out, s)
		}
	}
	return out
}

func (w *Wizard) sectionIndex(name string) int {
	for i, s := range w.form.Sections {
		if s.Section == name {
			return i
		}
	}
	return -1
}

func cloneDetails(in []models.SpeciesDetail) []models.SpeciesDetail {
	out := make([]models.SpeciesDetail, len(in))
	copy(out, in)
	return out
}
