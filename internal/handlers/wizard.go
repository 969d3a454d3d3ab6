package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/p-ddong/floratio-lib-client/internal/client"
	"github.com/p-ddong/floratio-lib-client/internal/models"
	"github.com/p-ddong/floratio-lib-client/internal/session"
	"github.com/p-ddong/floratio-lib-client/internal/storage"
	"github.com/p-ddong/floratio-lib-client/internal/store"
	"github.com/p-ddong/floratio-lib-client/internal/wizard"
)

type wizardData struct {
	View           wizard.View
	Families       []models.Family
	Attributes     []models.Attribute
	FamilyName     string
	AttributeNames []string
	Available      []string
	Errors         wizard.ValidationErrors
	Notice         *session.Flash
	DraftsEnabled  bool
}

// CreateWizardHandler opens a create-mode wizard. ?plant= starts from a
// catalog plant, ?draft= resumes a saved draft.
func (h *Handler) CreateWizardHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireLogin(w, r); !ok {
		return
	}
	s := h.session(r)
	q := r.URL.Query()

	var wz *wizard.Wizard
	switch {
	case q.Get("draft") != "":
		if h.Drafts == nil {
			s.AddFlash(session.FlashError, "Drafts are not available right now")
			redirect(w, r, "/userdetail")
			return
		}
		d, files, err := h.Drafts.LoadDraft(r.Context(), owner(s.Store.Snapshot()), q.Get("draft"))
		if err != nil {
			if errors.Is(err, storage.ErrDraftNotFound) {
				h.NotFoundHandler(w, r)
				return
			}
			log.Error().Err(err).Str("draft", q.Get("draft")).Msg("Failed to load draft")
			s.AddFlash(session.FlashError, "Failed to load draft")
			redirect(w, r, "/userdetail")
			return
		}
		wz = wizard.FromDraft(d, files)
	case q.Get("plant") != "":
		plant, err := h.Plants.Detail(r.Context(), q.Get("plant"))
		if err != nil {
			log.Warn().Err(err).Str("plant", q.Get("plant")).Msg("Plant detail failed")
			h.NotFoundHandler(w, r)
			return
		}
		wz = wizard.NewFromPlant(*plant)
	default:
		wz = wizard.New()
	}

	h.openWizard(w, r, s, wz)
}

// EditWizardHandler opens an update-mode wizard preloaded from the backend
func (h *Handler) EditWizardHandler(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireLogin(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	c, err := h.Contributions.Detail(r.Context(), id, token)
	if err != nil {
		if client.IsUnauthorized(err) {
			h.handleAPIError(w, r, err, "Failed to load contribution")
			return
		}
		log.Warn().Err(err).Str("id", id).Msg("Contribution detail failed")
		h.NotFoundHandler(w, r)
		return
	}

	s := h.session(r)
	if !canEdit(s.Store.Snapshot(), c) {
		log.Warn().Str("id", id).Str("owner", owner(s.Store.Snapshot())).Msg("Edit refused")
		s.AddFlash(session.FlashError, "Only the submitter can edit a contribution that is still pending")
		redirect(w, r, "/contribute/"+id)
		return
	}

	h.openWizard(w, r, s, wizard.NewEdit(*c))
}

func (h *Handler) openWizard(w http.ResponseWriter, r *http.Request, s *session.Session, wz *wizard.Wizard) {
	wz.MinDescription = h.MinDescription
	h.Wizards.Put(s.ID, wz)
	log.Debug().Str("wizard", wz.Key()).Str("mode", wz.Mode().Name()).Msg("Wizard opened")
	redirect(w, r, "/contribute/wizard/"+wz.Key())
}

// lookupWizard finds the wizard named in the path. A wizard that is gone
// from memory is restored from its draft when one exists.
func (h *Handler) lookupWizard(w http.ResponseWriter, r *http.Request) (*wizard.Wizard, string, bool) {
	token, ok := h.requireLogin(w, r)
	if !ok {
		return nil, "", false
	}
	s := h.session(r)
	key := mux.Vars(r)["key"]

	if wz, ok := h.Wizards.Get(s.ID, key); ok {
		return wz, token, true
	}

	if h.Drafts != nil {
		d, files, err := h.Drafts.LoadDraft(r.Context(), owner(s.Store.Snapshot()), key)
		if err == nil {
			wz := wizard.FromDraft(d, files)
			wz.MinDescription = h.MinDescription
			h.Wizards.Put(s.ID, wz)
			return wz, token, true
		}
		if !errors.Is(err, storage.ErrDraftNotFound) {
			log.Warn().Err(err).Str("wizard", key).Msg("Failed to restore wizard from draft")
		}
	}

	s.AddFlash(session.FlashInfo, "This form is no longer open, please start again")
	redirect(w, r, "/contribute/create")
	return nil, "", false
}

// WizardHandler renders the wizard, optionally switching to ?tab=
func (h *Handler) WizardHandler(w http.ResponseWriter, r *http.Request) {
	wz, _, ok := h.lookupWizard(w, r)
	if !ok {
		return
	}
	if tab, ok := wizard.ParseTab(r.URL.Query().Get("tab")); ok {
		wz.GoTo(tab)
	}
	h.renderWizard(w, r, wz, nil, nil)
}

// WizardImageHandler serves the bytes of an uploaded image for previews
func (h *Handler) WizardImageHandler(w http.ResponseWriter, r *http.Request) {
	wz, _, ok := h.lookupWizard(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	v := wz.View()
	for _, list := range [][]models.Image{v.Images, v.Existing} {
		for _, img := range list {
			f, ok := img.(models.FileImage)
			if !ok || f.ID != id {
				continue
			}
			w.Header().Set("Content-Type", f.ContentType)
			w.Header().Set("Content-Length", strconv.Itoa(f.Size()))
			w.Header().Set("Cache-Control", "private, max-age=3600")
			w.WriteHeader(http.StatusOK)
			w.Write(f.Data)
			return
		}
	}
	http.NotFound(w, r)
}

// WizardActionHandler applies the fields of the current tab, then runs the
// requested action
func (h *Handler) WizardActionHandler(w http.ResponseWriter, r *http.Request) {
	wz, token, ok := h.lookupWizard(w, r)
	if !ok {
		return
	}

	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(maxUploadMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		log.Warn().Err(err).Msg("Failed to parse wizard form")
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	applyFields(wz, r)

	name, arg, _ := strings.Cut(r.FormValue("action"), ":")
	var (
		errs   wizard.ValidationErrors
		notice *session.Flash
	)

	switch name {
	case "", "save":
		// fields only
	case "goto":
		if tab, ok := wizard.ParseTab(arg); ok {
			wz.GoTo(tab)
		}
	case "next":
		wz.Next()
	case "previous":
		wz.Previous()
	case "preview":
		wz.SetPreview(true)
	case "edit":
		wz.SetPreview(false)
	case "add_common_name":
		if !wz.AddCommonName(r.FormValue("common_name")) {
			errs = wizard.ValidationErrors{"common_name": "common name is empty or already added"}
		}
	case "remove_common_name":
		wz.RemoveCommonName(arg)
	case "toggle_attribute":
		wz.ToggleAttribute(arg)
	case "add_section":
		err = wz.AddSection(r.FormValue("new_section"))
	case "rename_section", "remove_section", "add_detail", "remove_detail":
		err = sectionAction(wz, r, name, arg)
	case "add_url":
		if _, err = wz.AddURL(r.FormValue("image_url")); err != nil {
			errs = wizard.ValidationErrors{"image_url": err.Error()}
			err = nil
		}
	case "add_file":
		errs = addFiles(wz, r)
	case "remove_image":
		err = wz.RemoveImage(arg)
	case "move_image":
		err = moveImage(wz, arg)
	case "save_draft":
		notice = h.saveDraft(r, wz)
	case "submit":
		h.submitWizard(w, r, wz, token)
		return
	case "discard":
		h.Wizards.Remove(h.session(r).ID, wz.Key())
		h.flash(r, session.FlashInfo, "Contribution discarded")
		redirect(w, r, "/contribute")
		return
	default:
		http.Error(w, "Unknown action", http.StatusBadRequest)
		return
	}

	if err != nil {
		notice = &session.Flash{Kind: session.FlashError, Message: err.Error()}
	}
	h.renderWizard(w, r, wz, errs, notice)
}

// applyFields copies the inputs of the tab the form was rendered for. Tabs
// that were not on screen are left alone.
func applyFields(wz *wizard.Wizard, r *http.Request) {
	tab, ok := wizard.ParseTab(r.FormValue("current_tab"))
	if !ok {
		return
	}
	v := wz.View()
	if v.Preview {
		return
	}

	switch tab {
	case wizard.TabBasic:
		wz.SetBasic(r.FormValue("scientific_name"), r.FormValue("family"), r.FormValue("description"))
		wz.SetMessage(r.FormValue("message"))
	case wizard.TabDescription:
		for i, sec := range v.Form.Sections {
			for j := range sec.Details {
				field := fmt.Sprintf("%d.%d", i, j)
				if _, present := r.Form["detail_label."+field]; !present {
					continue
				}
				if err := wz.UpdateDetail(sec.Section, j, r.FormValue("detail_label."+field), r.FormValue("detail_content."+field)); err != nil {
					log.Warn().Err(err).Msg("Failed to update detail")
				}
			}
		}
	case wizard.TabAttributes:
		wz.SetAttributes(r.Form["attributes"])
	}
}

// sectionAction runs a section or detail action. arg is "<section>" or
// "<section>.<detail>" as indices into the rendered form.
func sectionAction(wz *wizard.Wizard, r *http.Request, name, arg string) error {
	secArg, detArg, _ := strings.Cut(arg, ".")
	i, err := strconv.Atoi(secArg)
	sections := wz.View().Form.Sections
	if err != nil || i < 0 || i >= len(sections) {
		return wizard.ErrSectionNotFound
	}
	section := sections[i].Section

	switch name {
	case "rename_section":
		return wz.RenameSection(section, r.FormValue(fmt.Sprintf("section_name.%d", i)))
	case "remove_section":
		return wz.RemoveSection(section)
	case "add_detail":
		label := r.FormValue(fmt.Sprintf("new_label.%d", i))
		content := r.FormValue(fmt.Sprintf("new_content.%d", i))
		if strings.TrimSpace(label) == "" && strings.TrimSpace(content) == "" {
			return fmt.Errorf("detail: %w", wizard.ErrEmptyValue)
		}
		return wz.AddDetail(section, label, content)
	case "remove_detail":
		j, err := strconv.Atoi(detArg)
		if err != nil {
			return wizard.ErrDetailNotFound
		}
		return wz.RemoveDetail(section, j)
	}
	return nil
}

func moveImage(wz *wizard.Wizard, arg string) error {
	fromArg, toArg, _ := strings.Cut(arg, ".")
	from, err1 := strconv.Atoi(fromArg)
	to, err2 := strconv.Atoi(toArg)
	if err1 != nil || err2 != nil {
		return wizard.ErrIndexOutOfRange
	}
	return wz.MoveImage(from, to)
}

// addFiles adds every file of the "images" field. Rejected files are
// reported per name; accepted ones are kept.
func addFiles(wz *wizard.Wizard, r *http.Request) wizard.ValidationErrors {
	if r.MultipartForm == nil || len(r.MultipartForm.File["images"]) == 0 {
		return wizard.ValidationErrors{"images": "choose at least one image"}
	}

	var problems []string
	for _, fh := range r.MultipartForm.File["images"] {
		data, contentType, err := readUpload(fh)
		if err == nil {
			_, err = wz.AddFile(fh.Filename, contentType, data)
		}
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", fh.Filename, err))
		}
	}
	if len(problems) > 0 {
		return wizard.ValidationErrors{"images": strings.Join(problems, "; ")}
	}
	return nil
}

// readUpload reads at most one byte past the image limit so oversized files
// fail validation without being buffered whole
func readUpload(fh *multipart.FileHeader) ([]byte, string, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, wizard.MaxImageSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

func (h *Handler) saveDraft(r *http.Request, wz *wizard.Wizard) *session.Flash {
	if h.Drafts == nil {
		return &session.Flash{Kind: session.FlashError, Message: "Drafts are not available right now"}
	}
	who := owner(h.state(r))
	if who == "" {
		return &session.Flash{Kind: session.FlashError, Message: "Please log in again to save drafts"}
	}

	err := wz.SaveDraft(r.Context(), h.Drafts, who)
	switch {
	case err == nil:
		return &session.Flash{Kind: session.FlashSuccess, Message: "Draft saved"}
	case errors.Is(err, wizard.ErrDraftInProgress):
		return &session.Flash{Kind: session.FlashInfo, Message: "A draft save is already in progress"}
	case errors.Is(err, storage.ErrImageStorageUnavailable):
		return &session.Flash{Kind: session.FlashError, Message: "Uploaded images cannot be stored right now, remove them or try later"}
	default:
		log.Error().Err(err).Str("wizard", wz.Key()).Msg("Failed to save draft")
		return &session.Flash{Kind: session.FlashError, Message: "Failed to save draft"}
	}
}

func (h *Handler) submitWizard(w http.ResponseWriter, r *http.Request, wz *wizard.Wizard, token string) {
	s := h.session(r)
	v := wz.View()

	id, err := wz.Submit(r.Context(), h.Contributions, token)
	if err != nil {
		var verrs wizard.ValidationErrors
		switch {
		case errors.As(err, &verrs):
			h.renderWizard(w, r, wz, verrs, &session.Flash{Kind: session.FlashError, Message: "Please fix the highlighted fields"})
		case errors.Is(err, wizard.ErrSubmitInProgress):
			h.renderWizard(w, r, wz, nil, &session.Flash{Kind: session.FlashInfo, Message: "Your contribution is already being submitted"})
		case errors.Is(err, wizard.ErrNotAuthenticated):
			redirect(w, r, "/login")
		case client.IsUnauthorized(err):
			// Keep the work so it can be resumed after logging in again
			if h.Drafts != nil {
				h.saveDraft(r, wz)
			}
			h.handleAPIError(w, r, err, "Please log in again")
		default:
			log.Error().Err(err).Str("wizard", wz.Key()).Msg("Failed to submit contribution")
			h.renderWizard(w, r, wz, nil, &session.Flash{Kind: session.FlashError, Message: client.Message(err, "Failed to submit contribution")})
		}
		return
	}

	h.Wizards.Remove(s.ID, wz.Key())
	st := s.Store.Dispatch(store.ClearContributionList{})

	event := models.ContributionSubmittedEvent{
		ContributionID: id,
		Type:           models.ContributionType(v.Mode.Name()),
		ScientificName: v.Form.ScientificName,
		DraftKey:       wz.Key(),
		Timestamp:      time.Now(),
	}
	if u := st.Auth.User; u != nil {
		event.UserID = u.ID
		event.Username = u.Username
	}
	h.announceSubmission(r, event, owner(st))

	s.AddFlash(session.FlashSuccess, "Contribution submitted for review")
	redirect(w, r, "/contribute/"+id)
}

// announceSubmission publishes the event. The draft cleanup consumer removes
// the draft; without a broker the draft is removed here.
func (h *Handler) announceSubmission(r *http.Request, event models.ContributionSubmittedEvent, who string) {
	if h.Events != nil {
		err := h.Events.PublishContributionSubmitted(r.Context(), event)
		if err == nil {
			return
		}
		log.Error().Err(err).Str("contribution_id", event.ContributionID).Msg("Failed to publish submission event")
	}

	if h.Drafts == nil || who == "" {
		return
	}
	if err := h.Drafts.DeleteDraft(r.Context(), who, event.DraftKey); err != nil && !errors.Is(err, storage.ErrDraftNotFound) {
		log.Warn().Err(err).Str("draft", event.DraftKey).Msg("Failed to delete submitted draft")
	}
}

// DeleteDraftHandler removes a saved draft and its images
func (h *Handler) DeleteDraftHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireLogin(w, r); !ok {
		return
	}
	if h.Drafts == nil {
		h.NotFoundHandler(w, r)
		return
	}
	s := h.session(r)
	key := mux.Vars(r)["key"]

	err := h.Drafts.DeleteDraft(r.Context(), owner(s.Store.Snapshot()), key)
	switch {
	case err == nil:
		h.Wizards.Remove(s.ID, key)
		s.AddFlash(session.FlashSuccess, "Draft deleted")
	case errors.Is(err, storage.ErrDraftNotFound):
		s.AddFlash(session.FlashInfo, "Draft was already deleted")
	default:
		log.Error().Err(err).Str("draft", key).Msg("Failed to delete draft")
		s.AddFlash(session.FlashError, "Failed to delete draft")
	}
	redirect(w, r, "/userdetail")
}

func (h *Handler) renderWizard(w http.ResponseWriter, r *http.Request, wz *wizard.Wizard, errs wizard.ValidationErrors, notice *session.Flash) {
	st := h.loadReference(r.Context(), h.session(r))
	v := wz.View()

	names := make([]string, 0, len(v.Form.Attributes))
	for _, id := range v.Form.Attributes {
		if n := st.AttributeName(id); n != "" {
			names = append(names, n)
			continue
		}
		names = append(names, id)
	}

	data := wizardData{
		View:           v,
		Families:       st.Plant.Families,
		Attributes:     st.Plant.Attributes,
		FamilyName:     st.FamilyName(v.Form.Family),
		AttributeNames: names,
		Available:      wz.AvailableSections(),
		Errors:         errs,
		Notice:         notice,
		DraftsEnabled:  h.Drafts != nil,
	}

	status := http.StatusOK
	if len(errs) > 0 {
		status = http.StatusUnprocessableEntity
	}
	title := "New contribution"
	if v.IsUpdate() {
		title = "Edit contribution"
	}
	h.render(w, r, status, "wizard.html", "wizard", title, data)
}
