package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/p-ddong/floratio-lib-client/internal/catalog"
	"github.com/p-ddong/floratio-lib-client/internal/models"
	"github.com/p-ddong/floratio-lib-client/internal/session"
	"github.com/p-ddong/floratio-lib-client/internal/store"
)

const homePageSize = 12

func pageParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// loadReference fills families and attributes when the session has none.
// Failures are logged and leave empty lists.
func (h *Handler) loadReference(ctx context.Context, s *session.Session) store.State {
	st := s.Store.Snapshot()

	if len(st.Plant.Families) == 0 {
		s.Store.Dispatch(store.SetFamiliesLoading{Loading: true})
		families, err := h.Plants.Families(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load families")
			families = []models.Family{}
		}
		s.Store.Dispatch(store.SetFamiliesList{Families: families})
	}

	if len(st.Plant.Attributes) == 0 {
		s.Store.Dispatch(store.SetAttributesLoading{Loading: true})
		attributes, err := h.Plants.Attributes(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load attributes")
			attributes = []models.Attribute{}
		}
		s.Store.Dispatch(store.SetAttributesList{Attributes: attributes})
	}

	return s.Store.Snapshot()
}

// loadMarks fills the user's bookmarks when logged in and not loaded yet
func (h *Handler) loadMarks(ctx context.Context, s *session.Session) store.State {
	st := s.Store.Snapshot()
	if !st.LoggedIn() || st.Mark.Marks != nil {
		return st
	}

	s.Store.Dispatch(store.SetMarkLoading{Loading: true})
	marks, err := h.Marks.List(ctx, st.Auth.Token)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load marks")
	}
	if marks == nil {
		marks = []models.Mark{}
	}
	return s.Store.Dispatch(store.SetMarkList{Marks: marks})
}

type homeData struct {
	Plants     []models.PlantListItem
	Page       catalog.Page
	PageItems  []catalog.Item
	Search     string
	Family     string
	Selected   []string
	Families   []models.Family
	Attributes []models.Attribute
	// Query carries the filters into the pagination links
	Query string
}

// HomeHandler shows the newest plants, paginated and filtered by the
// backend. Family and attributes are sent as ids.
func (h *Handler) HomeHandler(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	st := h.loadReference(r.Context(), s)

	q := r.URL.Query()
	params := models.PaginationParams{
		Page:       pageParam(r),
		Limit:      homePageSize,
		Search:     strings.TrimSpace(q.Get("search")),
		Family:     q.Get("family"),
		Attributes: nonEmpty(q["attributes"]),
	}

	resp, err := h.Plants.Paginate(r.Context(), params)
	if err != nil {
		if h.handleAPIError(w, r, err, "Failed to load plants") {
			return
		}
		resp = &models.PaginationResponse{Page: 1, PageSize: homePageSize, Data: []models.PlantListItem{}}
	}

	size := resp.PageSize
	if size <= 0 {
		size = homePageSize
	}
	page := catalog.Paginate(resp.TotalItems, size, params.Page)
	if page.Reset {
		s.AddFlash(session.FlashInfo, fmt.Sprintf("Page %d does not exist, showing page 1", params.Page))
		params.Page = 1
		if first, err := h.Plants.Paginate(r.Context(), params); err == nil {
			resp = first
		}
	}

	filters := url.Values{}
	if params.Search != "" {
		filters.Set("search", params.Search)
	}
	if params.Family != "" {
		filters.Set("family", params.Family)
	}
	for _, id := range params.Attributes {
		filters.Add("attributes", id)
	}

	data := homeData{
		Plants:     resp.Data,
		Page:       page,
		PageItems:  catalog.PageItems(page.Number, page.TotalPages),
		Search:     params.Search,
		Family:     params.Family,
		Selected:   params.Attributes,
		Families:   st.Plant.Families,
		Attributes: st.Plant.Attributes,
		Query:      filters.Encode(),
	}

	h.render(w, r, http.StatusOK, "index.html", "plant-feed", "Floratio", data)
}

type plantsData struct {
	Plants     []models.PlantListItem
	Page       catalog.Page
	PageItems  []catalog.Item
	Filter     catalog.Filter
	Families   []models.Family
	Attributes []models.Attribute
	Total      int
}

// PlantsHandler lists every plant, filtered and paginated in memory
func (h *Handler) PlantsHandler(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	st := h.loadReference(r.Context(), s)

	if st.Plant.Plants == nil {
		s.Store.Dispatch(store.SetPlantLoading{Loading: true})
		plants, err := h.Plants.List(r.Context())
		if err != nil {
			if h.handleAPIError(w, r, err, "Failed to load plants") {
				return
			}
			st = s.Store.Dispatch(store.SetPlantLoading{Loading: false})
		} else {
			if plants == nil {
				plants = []models.PlantListItem{}
			}
			st = s.Store.Dispatch(store.SetPlantList{Plants: plants})
		}
	}

	q := r.URL.Query()
	filter := catalog.Filter{
		Search:    q.Get("search"),
		Family:    q.Get("family"),
		Attribute: q.Get("attribute"),
	}
	filtered := catalog.FilterPlants(st.Plant.Plants, filter)

	requested := pageParam(r)
	page := catalog.Paginate(len(filtered), catalog.DefaultPageSize, requested)
	if page.Reset {
		s.AddFlash(session.FlashInfo, fmt.Sprintf("Page %d does not exist, showing page 1", requested))
	}

	data := plantsData{
		Plants:     catalog.Slice(filtered, page),
		Page:       page,
		PageItems:  catalog.PageItems(page.Number, page.TotalPages),
		Filter:     filter,
		Families:   st.Plant.Families,
		Attributes: st.Plant.Attributes,
		Total:      len(filtered),
	}

	h.render(w, r, http.StatusOK, "plants.html", "plant-grid", "All plants", data)
}

type plantDetailData struct {
	Plant    *models.PlantDetail
	LoggedIn bool
	Marked   bool
}

// PlantDetailHandler shows one plant
func (h *Handler) PlantDetailHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	plant, err := h.Plants.Detail(r.Context(), id)
	if err != nil {
		log.Warn().Err(err).Str("id", id).Msg("Plant detail failed")
		h.NotFoundHandler(w, r)
		return
	}

	st := h.loadMarks(r.Context(), h.session(r))
	_, marked := st.MarkForPlant(plant.ID)

	data := plantDetailData{Plant: plant, LoggedIn: st.LoggedIn(), Marked: marked}
	h.render(w, r, http.StatusOK, "plant_detail.html", "", plant.ScientificName, data)
}

// ToggleMarkHandler bookmarks a plant, or removes the bookmark
func (h *Handler) ToggleMarkHandler(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireLogin(w, r)
	if !ok {
		return
	}

	s := h.session(r)
	plantID := mux.Vars(r)["id"]
	st := h.loadMarks(r.Context(), s)

	event := models.MarkToggledEvent{PlantID: plantID, Timestamp: time.Now()}
	if st.Auth.User != nil {
		event.UserID = st.Auth.User.ID
	}

	if existing, marked := st.MarkForPlant(plantID); marked {
		if err := h.Marks.Delete(r.Context(), existing.ID, token); err != nil {
			if h.handleAPIError(w, r, err, "Failed to remove bookmark") {
				return
			}
			h.renderMarkButton(w, r, plantID, true)
			return
		}
		s.Store.Dispatch(store.RemoveMark{MarkID: existing.ID})
		event.MarkID = existing.ID
		s.AddFlash(session.FlashSuccess, "Bookmark removed")
	} else {
		mark, err := h.Marks.Create(r.Context(), plantID, token)
		if err != nil {
			if h.handleAPIError(w, r, err, "Failed to bookmark plant") {
				return
			}
			h.renderMarkButton(w, r, plantID, false)
			return
		}
		if mark.Plant.ScientificName == "" {
			// The create response only carries the plant id
			if plant, err := h.Plants.Detail(r.Context(), plantID); err == nil {
				mark.Plant = models.MarkPlant{
					ID:             plant.ID,
					ScientificName: plant.ScientificName,
					CommonName:     plant.CommonName,
					Image:          plant.CoverImage(),
					Attributes:     attributeNames(plant.Attributes),
				}
			}
		}
		s.Store.Dispatch(store.AddMark{Mark: *mark})
		event.MarkID = mark.ID
		event.Marked = true
		s.AddFlash(session.FlashSuccess, "Plant bookmarked")
	}

	if h.Events != nil {
		if err := h.Events.PublishMarkToggled(r.Context(), event); err != nil {
			log.Error().Err(err).Msg("Failed to publish mark event")
		}
	}

	h.renderMarkButton(w, r, plantID, event.Marked)
}

func (h *Handler) renderMarkButton(w http.ResponseWriter, r *http.Request, plantID string, marked bool) {
	if !isHTMX(r) {
		redirect(w, r, "/plants/"+plantID)
		return
	}
	data := plantDetailData{Plant: &models.PlantDetail{ID: plantID}, LoggedIn: true, Marked: marked}
	h.render(w, r, http.StatusOK, "plant_detail.html", "mark-button", "", data)
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func attributeNames(refs []models.Attribute) []string {
	out := make([]string, 0, len(refs))
	for _, a := range refs {
		if a.Name != "" {
			out = append(out, a.Name)
		}
	}
	return out
}
