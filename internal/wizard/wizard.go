// Package wizard implements the multi-tab contribution authoring workflow.
//
// A Wizard is created either empty (create mode) or preloaded from an
// existing contribution (update mode). Tabs can be visited in any order;
// preview and the in-flight flags are orthogonal to the current tab.
package wizard

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-ddong/floratio-lib-client/internal/models"
)

// Tab is one page of the wizard
type Tab string

const (
	TabBasic       Tab = "basic"
	TabDescription Tab = "description"
	TabAttributes  Tab = "attributes"
	TabMedia       Tab = "media"
)

// Tabs lists the tabs in navigation order
var Tabs = []Tab{TabBasic, TabDescription, TabAttributes, TabMedia}

// ParseTab returns the tab named s
func ParseTab(s string) (Tab, bool) {
	for _, t := range Tabs {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Mode is either CreateMode or UpdateMode
type Mode interface {
	Name() string
	isMode()
}

// CreateMode proposes a new species. PlantRef optionally names the catalog
// plant the proposal starts from.
type CreateMode struct {
	PlantRef string
}

// UpdateMode edits a previously submitted contribution
type UpdateMode struct {
	ContributionID string
}

func (CreateMode) Name() string { return string(models.TypeCreate) }
func (UpdateMode) Name() string { return string(models.TypeUpdate) }
func (CreateMode) isMode()      {}
func (UpdateMode) isMode()      {}

// Wizard is the authoring state of one contribution. All methods are safe
// for concurrent use.
type Wizard struct {
	mu sync.Mutex

	key       string
	mode      Mode
	form      models.ContributionForm
	existing  []models.Image
	images    []models.Image
	tab       Tab
	preview   bool
	createdAt time.Time

	submitting  bool
	savingDraft bool

	// MinDescription is the minimum description length; zero disables the check
	MinDescription int
}

// New returns an empty create-mode wizard
func New() *Wizard {
	return newWizard(CreateMode{})
}

// NewFromPlant starts a create-mode proposal from a catalog plant. The
// plant's images become existing images.
func NewFromPlant(plant models.PlantDetail) *Wizard {
	w := newWizard(CreateMode{PlantRef: plant.ID})
	w.form = models.ContributionForm{
		ScientificName: plant.ScientificName,
		Family:         plant.Family.ID,
		Description:    plant.Description,
		CommonNames:    cloneStrings(plant.CommonName),
		Attributes:     refIDs(plant.Attributes),
		Sections:       cloneSections(plant.SpeciesDescription),
	}
	w.existing = urlImages(plant.Images, "existing", func(i int) string {
		return fmt.Sprintf("%s – %d", plant.ScientificName, i+1)
	})
	return w
}

// NewEdit preloads an update-mode wizard from a contribution. Images of the
// plant become existing images; images added by the contribution become
// new URL images. Every image can be removed.
func NewEdit(c models.Contribution) *Wizard {
	w := newWizard(UpdateMode{ContributionID: c.ID})
	p := c.Data.Plant
	w.form = models.ContributionForm{
		ScientificName: p.ScientificName,
		Family:         p.Family.ID,
		Description:    p.Description,
		Message:        c.Message,
		CommonNames:    cloneStrings(p.CommonName),
		Attributes:     refIDs(p.Attributes),
		Sections:       cloneSections(p.SpeciesDescription),
	}
	w.existing = urlImages(p.Images, "existing", func(i int) string {
		return fmt.Sprintf("%s – %d", p.ScientificName, i+1)
	})
	w.images = urlImages(c.Data.NewImages, "new", func(i int) string {
		return fmt.Sprintf("New Image %d", i+1)
	})
	return w
}

func newWizard(mode Mode) *Wizard {
	return &Wizard{
		key:       uuid.New().String(),
		mode:      mode,
		form:      models.ContributionForm{CommonNames: []string{}, Attributes: []string{}, Sections: []models.SpeciesSection{}},
		existing:  []models.Image{},
		images:    []models.Image{},
		tab:       TabBasic,
		createdAt: time.Now(),
	}
}

// Key identifies the wizard within a session and as a draft
func (w *Wizard) Key() string {
	return w.key
}

// Mode returns the wizard mode
func (w *Wizard) Mode() Mode {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode
}

// View is a read-only copy of the wizard used for rendering
type View struct {
	Key         string
	Mode        Mode
	Form        models.ContributionForm
	Existing    []models.Image
	Images      []models.Image
	Tab         Tab
	Preview     bool
	Submitting  bool
	SavingDraft bool
}

// IsUpdate reports whether the view is for an edit
func (v View) IsUpdate() bool {
	_, ok := v.Mode.(UpdateMode)
	return ok
}

// ContributionID returns the edited contribution id in update mode
func (v View) ContributionID() string {
	if m, ok := v.Mode.(UpdateMode); ok {
		return m.ContributionID
	}
	return ""
}

// View returns a deep copy of the current state
func (w *Wizard) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewLocked()
}

func (w *Wizard) viewLocked() View {
	return View{
		Key:         w.key,
		Mode:        w.mode,
		Form:        cloneForm(w.form),
		Existing:    cloneImages(w.existing),
		Images:      cloneImages(w.images),
		Tab:         w.tab,
		Preview:     w.preview,
		Submitting:  w.submitting,
		SavingDraft: w.savingDraft,
	}
}

// GoTo switches to tab. Field state is untouched.
func (w *Wizard) GoTo(tab Tab) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tab = tab
}

// Next moves to the following tab; it stays on the last tab
func (w *Wizard) Next() Tab {
	w.mu.Lock()
	defer w.mu.Unlock()
	if i := tabIndex(w.tab); i < len(Tabs)-1 {
		w.tab = Tabs[i+1]
	}
	return w.tab
}

// Previous moves to the preceding tab; it stays on the first tab
func (w *Wizard) Previous() Tab {
	w.mu.Lock()
	defer w.mu.Unlock()
	if i := tabIndex(w.tab); i > 0 {
		w.tab = Tabs[i-1]
	}
	return w.tab
}

// SetPreview toggles the read-only preview
func (w *Wizard) SetPreview(on bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.preview = on
}

func tabIndex(t Tab) int {
	for i, tab := range Tabs {
		if tab == t {
			return i
		}
	}
	return 0
}

func urlImages(urls []string, prefix string, name func(int) string) []models.Image {
	out := make([]models.Image, 0, len(urls))
	for i, u := range urls {
		out = append(out, models.URLImage{
			ID:   fmt.Sprintf("%s-%d", prefix, i),
			Name: name(i),
			URL:  u,
		})
	}
	return out
}

func refIDs(refs []models.Ref) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if r.ID != "" {
			out = append(out, r.ID)
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneSections(in []models.SpeciesSection) []models.SpeciesSection {
	out := make([]models.SpeciesSection, 0, len(in))
	for _, s := range in {
		details := make([]models.SpeciesDetail, len(s.Details))
		copy(details, s.Details)
		out = append(out, models.SpeciesSection{Section: s.Section, Details: details})
	}
	return out
}

func cloneImages(in []models.Image) []models.Image {
	out := make([]models.Image, len(in))
	copy(out, in)
	return out
}

func cloneForm(f models.ContributionForm) models.ContributionForm {
	f.CommonNames = cloneStrings(f.CommonNames)
	f.Attributes = cloneStrings(f.Attributes)
	f.Sections = cloneSections(f.Sections)
	return f
}
