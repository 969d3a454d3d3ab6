package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/p-ddong/floratio-lib-client/internal/catalog"
	"github.com/p-ddong/floratio-lib-client/internal/client"
	"github.com/p-ddong/floratio-lib-client/internal/models"
	"github.com/p-ddong/floratio-lib-client/internal/session"
	"github.com/p-ddong/floratio-lib-client/internal/store"
)

// loadContributions fills the contribution list when it is missing or when
// refresh is set. On error the list is left as it was.
func (h *Handler) loadContributions(ctx context.Context, s *session.Session, token string, refresh bool) (store.State, error) {
	st := s.Store.Snapshot()
	if st.Contribution.Contributions != nil && !refresh {
		return st, nil
	}

	s.Store.Dispatch(store.SetContributionLoading{Loading: true})
	list, err := h.Contributions.List(ctx, token)
	if err != nil {
		return s.Store.Dispatch(store.SetContributionLoading{Loading: false}), err
	}
	if list == nil {
		list = []models.Contribution{}
	}
	return s.Store.Dispatch(store.SetContributionList{Contributions: list}), nil
}

type contributionsData struct {
	Contributions []models.Contribution
	Filter        catalog.ContributionFilter
	Page          catalog.Page
	PageItems     []catalog.Item
	Total         int
}

// ContributionsHandler lists contributions with status, type and text filters
func (h *Handler) ContributionsHandler(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireLogin(w, r)
	if !ok {
		return
	}
	s := h.session(r)

	q := r.URL.Query()
	st, err := h.loadContributions(r.Context(), s, token, q.Get("refresh") != "")
	if err != nil && h.handleAPIError(w, r, err, "Failed to load contributions") {
		return
	}

	filter := catalog.ContributionFilter{
		Status: models.ContributionStatus(q.Get("status")),
		Type:   models.ContributionType(q.Get("type")),
		Query:  q.Get("q"),
	}
	filtered := catalog.FilterContributions(st.Contribution.Contributions, filter)

	requested := pageParam(r)
	page := catalog.Paginate(len(filtered), catalog.DefaultPageSize, requested)
	if page.Reset {
		s.AddFlash(session.FlashInfo, fmt.Sprintf("Page %d does not exist, showing page 1", requested))
	}

	data := contributionsData{
		Contributions: catalog.Slice(filtered, page),
		Filter:        filter,
		Page:          page,
		PageItems:     catalog.PageItems(page.Number, page.TotalPages),
		Total:         len(filtered),
	}
	h.render(w, r, http.StatusOK, "contributions.html", "contribution-list", "Contributions", data)
}

type contributionDetailData struct {
	Contribution *models.Contribution
	CanEdit      bool
}

// ContributionDetailHandler shows one contribution
func (h *Handler) ContributionDetailHandler(w http.ResponseWriter, r *http.Request) {
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

	st := h.state(r)
	data := contributionDetailData{
		Contribution: c,
		CanEdit:      canEdit(st, c),
	}
	h.render(w, r, http.StatusOK, "contribution_detail.html", "", c.Data.Plant.ScientificName, data)
}

// canEdit allows the submitter to edit a contribution that is still pending
func canEdit(st store.State, c *models.Contribution) bool {
	u := st.Auth.User
	if u == nil || c.Status != models.StatusPending {
		return false
	}
	if u.ID != "" && c.User.ID != "" {
		return u.ID == c.User.ID
	}
	return u.Username == c.User.Username
}
