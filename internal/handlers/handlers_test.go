package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-ddong/floratio-lib-client/internal/auth"
	"github.com/p-ddong/floratio-lib-client/internal/client"
	"github.com/p-ddong/floratio-lib-client/internal/middleware"
	"github.com/p-ddong/floratio-lib-client/internal/models"
	"github.com/p-ddong/floratio-lib-client/internal/search"
	"github.com/p-ddong/floratio-lib-client/internal/services"
	"github.com/p-ddong/floratio-lib-client/internal/session"
	"github.com/p-ddong/floratio-lib-client/internal/storage"
	"github.com/p-ddong/floratio-lib-client/web"
)

const testSecret = "test-secret"

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func signToken(t *testing.T, ttl time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Username: "alice",
		Role:     "user",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type recordedEvents struct {
	mu        sync.Mutex
	submitted []models.ContributionSubmittedEvent
	marks     []models.MarkToggledEvent
}

func (e *recordedEvents) PublishContributionSubmitted(ctx context.Context, event models.ContributionSubmittedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.submitted = append(e.submitted, event)
	return nil
}

func (e *recordedEvents) PublishMarkToggled(ctx context.Context, event models.MarkToggledEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.marks = append(e.marks, event)
	return nil
}

// fakeBackend answers the catalog and account endpoints. Routes in extra
// replace the defaults.
func fakeBackend(t *testing.T, token string, extra map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	routes := map[string]http.HandlerFunc{
		"/plants/list": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, []models.PlantListItem{
				{ID: "p1", ScientificName: "Monstera deliciosa", Family: "Araceae", CommonName: []string{"Swiss cheese plant"}},
				{ID: "p2", ScientificName: "Ficus elastica", Family: "Moraceae", CommonName: []string{"Rubber plant"}},
			})
		},
		"/plants/pagination": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, models.PaginationResponse{
				Page: 1, PageSize: 12, TotalPages: 1, TotalItems: 1,
				Data: []models.PlantListItem{{ID: "p1", ScientificName: "Monstera deliciosa", Family: "Araceae"}},
			})
		},
		"/plants/detail/p1": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, models.PlantDetail{
				ID:             "p1",
				ScientificName: "Monstera deliciosa",
				Family:         models.Family{ID: "f1", Name: "Araceae"},
				Images:         []string{"https://img.example.com/monstera.jpg"},
			})
		},
		"/plants/detail/": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Plant not found"})
		},
		"/plants/families/list": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, []models.Family{{ID: "f1", Name: "Araceae"}})
		},
		"/plants/attributes/list": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, []models.Attribute{{ID: "a1", Name: "Evergreen"}})
		},
		"/auth/login": func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["password"] != "correct-horse" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
				return
			}
			writeJSON(w, http.StatusCreated, map[string]string{"access_token": token})
		},
		"/auth/profile": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, models.User{ID: "u1", Username: "alice", Email: "alice@example.com"})
		},
		"/marks/list/user": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, []models.Mark{})
		},
		"/contributes/list": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, []models.Contribution{
				{ID: "c1", Status: models.StatusPending, Type: models.TypeCreate, User: models.ContributionUser{ID: "u1", Username: "alice"},
					Data: models.ContributionData{Plant: models.ContributionPlant{ScientificName: "Monstera deliciosa"}}},
				{ID: "c2", Status: models.StatusApproved, Type: models.TypeUpdate, User: models.ContributionUser{ID: "u2", Username: "bob"},
					Data: models.ContributionData{Plant: models.ContributionPlant{ScientificName: "Ficus elastica"}}},
			})
		},
	}
	for pattern, h := range extra {
		routes[pattern] = h
	}

	m := http.NewServeMux()
	for pattern, h := range routes {
		m.HandleFunc(pattern, h)
	}
	srv := httptest.NewServer(m)
	t.Cleanup(srv.Close)
	return srv
}

type testApp struct {
	server  *httptest.Server
	client  *http.Client
	events  *recordedEvents
	handler *Handler
}

func newTestApp(t *testing.T, backend *httptest.Server, checks map[string]HealthCheck, opts ...func(*Deps)) *testApp {
	t.Helper()
	c := client.New(backend.URL + "/")
	plants := services.NewPlantService(c)
	events := &recordedEvents{}
	sessions := session.NewManager(nil, session.Options{})

	deps := Deps{
		Templates:     web.Templates(),
		Auth:          services.NewAuthService(c),
		Plants:        plants,
		Contributions: services.NewContributionService(c),
		Marks:         services.NewMarkService(c),
		Searcher:      search.NewSearcher(services.NewPredictionService(backend.URL+"/predict"), plants),
		Sessions:      sessions,
		Events:        events,
		Checks:        checks,
		JWTSecret:     testSecret,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h, err := NewHandler(deps)
	require.NoError(t, err)

	r := mux.NewRouter()
	r.HandleFunc("/health", h.HealthCheckHandler).Methods("GET")
	app := r.PathPrefix("/").Subrouter()
	app.Use(middleware.Session(sessions))
	app.HandleFunc("/", h.HomeHandler).Methods("GET")
	app.HandleFunc("/plants", h.PlantsHandler).Methods("GET")
	app.HandleFunc("/plants/{id}", h.PlantDetailHandler).Methods("GET")
	app.HandleFunc("/plants/{id}/mark", h.ToggleMarkHandler).Methods("POST")
	app.HandleFunc("/search", h.SearchHandler).Methods("POST")
	app.HandleFunc("/login", h.LoginHandler).Methods("POST")
	app.HandleFunc("/logout", h.LogoutHandler).Methods("POST")
	app.HandleFunc("/userdetail", h.UserDetailHandler).Methods("GET")
	app.HandleFunc("/contribute", h.ContributionsHandler).Methods("GET")
	app.HandleFunc("/contribute/create", h.CreateWizardHandler).Methods("GET")
	app.HandleFunc("/contribute/wizard/{key}", h.WizardHandler).Methods("GET")
	app.HandleFunc("/contribute/wizard/{key}", h.WizardActionHandler).Methods("POST")
	app.HandleFunc("/contribute/{id}/edit", h.EditWizardHandler).Methods("GET")
	app.HandleFunc("/contribute/{id}", h.ContributionDetailHandler).Methods("GET")
	app.HandleFunc("/drafts/{key}/delete", h.DeleteDraftHandler).Methods("POST")

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	hc := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testApp{server: srv, client: hc, events: events, handler: h}
}

func (a *testApp) get(t *testing.T, path string, htmx bool) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, a.server.URL+path, nil)
	require.NoError(t, err)
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	return a.do(t, req)
}

func (a *testApp) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, a.server.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(t, req)
}

func (a *testApp) do(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := a.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (a *testApp) login(t *testing.T) {
	t.Helper()
	resp, _ := a.post(t, "/login", url.Values{"username": {"alice"}, "password": {"correct-horse"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))
}

func TestHomeRendersFullPageAndPartial(t *testing.T) {
	app := newTestApp(t, fakeBackend(t, "", nil), nil)

	resp, body := app.get(t, "/", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<html")
	assert.Contains(t, body, "Monstera deliciosa")

	resp, body = app.get(t, "/", true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, body, "<html")
	assert.Contains(t, body, `id="plant-feed"`)
}

func TestPlantsFilterAndPageReset(t *testing.T) {
	app := newTestApp(t, fakeBackend(t, "", nil), nil)

	_, body := app.get(t, "/plants?search=swiss", false)
	assert.Contains(t, body, "Monstera deliciosa")
	assert.NotContains(t, body, "Ficus elastica")

	_, body = app.get(t, "/plants?family=Moraceae", true)
	assert.Contains(t, body, "Ficus elastica")
	assert.NotContains(t, body, "Monstera deliciosa")

	resp, body := app.get(t, "/plants?page=9", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Page 9 does not exist")
	assert.Contains(t, body, "Ficus elastica")
}

func TestPlantDetailNotFound(t *testing.T) {
	app := newTestApp(t, fakeBackend(t, "", nil), nil)

	resp, body := app.get(t, "/plants/missing", false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "Not found")

	resp, body = app.get(t, "/plants/p1", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Log in to bookmark")
}

func TestLogin(t *testing.T) {
	token := signToken(t, time.Hour)
	app := newTestApp(t, fakeBackend(t, token, nil), nil)

	t.Run("validation", func(t *testing.T) {
		resp, body := app.post(t, "/login", url.Values{"username": {"alice"}, "password": {"short"}})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Contains(t, body, "password must be at least 8 characters")
	})

	t.Run("wrong password", func(t *testing.T) {
		resp, body := app.post(t, "/login", url.Values{"username": {"alice"}, "password": {"wrong-password"}})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Contains(t, body, "Invalid username or password")
	})

	t.Run("success", func(t *testing.T) {
		app.login(t)
		resp, body := app.get(t, "/userdetail", false)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "alice@example.com")
		assert.Contains(t, body, "Monstera deliciosa")
		assert.NotContains(t, body, "Ficus elastica")
	})

	t.Run("logout", func(t *testing.T) {
		resp, _ := app.post(t, "/logout", nil)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		resp, _ = app.get(t, "/userdetail", false)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/login?next=%2Fuserdetail", resp.Header.Get("Location"))
	})
}

func TestRequireLoginUsesHXRedirect(t *testing.T) {
	app := newTestApp(t, fakeBackend(t, "", nil), nil)

	resp, _ := app.get(t, "/contribute", true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/login?next=%2Fcontribute", resp.Header.Get("HX-Redirect"))
}

func TestContributionsFilter(t *testing.T) {
	app := newTestApp(t, fakeBackend(t, signToken(t, time.Hour), nil), nil)
	app.login(t)

	_, body := app.get(t, "/contribute?status=approved", true)
	assert.Contains(t, body, "Ficus elastica")
	assert.NotContains(t, body, "Monstera deliciosa")

	_, body = app.get(t, "/contribute?q=alice", true)
	assert.Contains(t, body, "Monstera deliciosa")
	assert.NotContains(t, body, "Ficus elastica")
}

func TestToggleMark(t *testing.T) {
	var created, deleted int
	backend := fakeBackend(t, signToken(t, time.Hour), map[string]http.HandlerFunc{
		"/marks/create": func(w http.ResponseWriter, r *http.Request) {
			created++
			writeJSON(w, http.StatusCreated, models.Mark{ID: "m1", Plant: models.MarkPlant{ID: "p1"}})
		},
		"/marks/delete/m1": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			deleted++
			writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
		},
	})
	app := newTestApp(t, backend, nil)
	app.login(t)

	resp, _ := app.post(t, "/plants/p1/mark", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/plants/p1", resp.Header.Get("Location"))

	_, body := app.get(t, "/plants/p1", false)
	assert.Contains(t, body, "Bookmarked")

	app.post(t, "/plants/p1/mark", nil)

	assert.Equal(t, 1, created)
	assert.Equal(t, 1, deleted)
	require.Len(t, app.events.marks, 2)
	assert.True(t, app.events.marks[0].Marked)
	assert.False(t, app.events.marks[1].Marked)
	assert.Equal(t, "u1", app.events.marks[0].UserID)
}

func TestWizardSubmit(t *testing.T) {
	var received url.Values
	backend := fakeBackend(t, signToken(t, time.Hour), map[string]http.HandlerFunc{
		"/contributes/create": func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseMultipartForm(1<<20))
			received = r.MultipartForm.Value
			writeJSON(w, http.StatusCreated, map[string]string{"_id": "c9"})
		},
	})
	app := newTestApp(t, backend, nil)
	app.login(t)

	resp, _ := app.get(t, "/contribute/create", false)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	location := resp.Header.Get("Location")
	require.True(t, strings.HasPrefix(location, "/contribute/wizard/"))
	key := strings.TrimPrefix(location, "/contribute/wizard/")

	t.Run("validation keeps the form", func(t *testing.T) {
		resp, body := app.post(t, location, url.Values{
			"current_tab":     {"basic"},
			"scientific_name": {"Monstera deliciosa"},
			"action":          {"submit"},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Contains(t, body, "family is required")
		assert.Contains(t, body, `value="Monstera deliciosa"`)
		assert.Nil(t, received)
	})

	t.Run("tab switch keeps fields", func(t *testing.T) {
		resp, _ := app.post(t, location, url.Values{
			"current_tab":     {"basic"},
			"scientific_name": {"Monstera deliciosa"},
			"family":          {"f1"},
			"action":          {"goto:attributes"},
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp, _ = app.post(t, location, url.Values{
			"current_tab": {"attributes"},
			"attributes":  {"a1"},
			"action":      {"add_common_name"},
			"common_name": {"Swiss cheese plant"},
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("submit", func(t *testing.T) {
		resp, _ := app.post(t, location, url.Values{"action": {"submit"}})
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/contribute/c9", resp.Header.Get("Location"))

		require.NotNil(t, received)
		assert.Equal(t, []string{"create"}, received["type"])
		var data struct {
			Plant struct {
				ScientificName string   `json:"scientific_name"`
				Family         string   `json:"family"`
				CommonName     []string `json:"common_name"`
				Attributes     []string `json:"attributes"`
			} `json:"plant"`
		}
		require.NoError(t, json.Unmarshal([]byte(received.Get("data")), &data))
		assert.Equal(t, "Monstera deliciosa", data.Plant.ScientificName)
		assert.Equal(t, "f1", data.Plant.Family)
		assert.Equal(t, []string{"Swiss cheese plant"}, data.Plant.CommonName)
		assert.Equal(t, []string{"a1"}, data.Plant.Attributes)

		require.Len(t, app.events.submitted, 1)
		assert.Equal(t, key, app.events.submitted[0].DraftKey)
		assert.Equal(t, "c9", app.events.submitted[0].ContributionID)
		assert.Equal(t, models.TypeCreate, app.events.submitted[0].Type)
	})

	t.Run("wizard is closed after submit", func(t *testing.T) {
		resp, _ := app.get(t, location, false)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/contribute/create", resp.Header.Get("Location"))
	})
}

func TestSearchWithoutFile(t *testing.T) {
	app := newTestApp(t, fakeBackend(t, "", nil), nil)

	resp, body := app.post(t, "/search", url.Values{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Please choose an image")
}

func TestHealthCheck(t *testing.T) {
	backend := fakeBackend(t, "", nil)

	app := newTestApp(t, backend, map[string]HealthCheck{
		"sessions": func(context.Context) error { return nil },
	})
	resp, body := app.get(t, "/health", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"healthy"`)

	app = newTestApp(t, backend, map[string]HealthCheck{
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	})
	resp, body = app.get(t, "/health", false)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body, "connection refused")
}

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"":                  "/",
		"/plants":           "/plants",
		"//evil.example":    "/",
		"https://evil.test": "/",
		"/\\evil":           "/",
	}
	for in, want := range tests {
		assert.Equal(t, want, safeNext(in), in)
	}
}

func TestHomeForwardsFiltersAsIDs(t *testing.T) {
	var received url.Values
	backend := fakeBackend(t, "", map[string]http.HandlerFunc{
		"/plants/pagination": func(w http.ResponseWriter, r *http.Request) {
			received = r.URL.Query()
			writeJSON(w, http.StatusOK, models.PaginationResponse{
				Page: 1, PageSize: 12, TotalPages: 2, TotalItems: 14,
				Data: []models.PlantListItem{{ID: "p1", ScientificName: "Monstera deliciosa", Family: "Araceae"}},
			})
		},
	})
	app := newTestApp(t, backend, nil)

	resp, body := app.get(t, "/?search=monstera&family=f1&attributes=a1&attributes=", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NotNil(t, received)
	assert.Equal(t, "monstera", received.Get("search"))
	assert.Equal(t, "f1", received.Get("family"))
	assert.Equal(t, `["a1"]`, received.Get("attributes"))
	assert.Equal(t, "1", received.Get("page"))

	assert.Contains(t, body, `value="f1" selected`)
	assert.Contains(t, body, `value="a1" checked`)
	assert.Contains(t, body, "attributes=a1")
	assert.Contains(t, body, "page=2")
}

func TestHomeResetsOutOfRangePage(t *testing.T) {
	var pages []string
	backend := fakeBackend(t, "", map[string]http.HandlerFunc{
		"/plants/pagination": func(w http.ResponseWriter, r *http.Request) {
			page := r.URL.Query().Get("page")
			pages = append(pages, page)
			resp := models.PaginationResponse{Page: 9, PageSize: 12, TotalPages: 2, TotalItems: 14, Data: []models.PlantListItem{}}
			if page == "1" {
				resp.Page = 1
				resp.Data = []models.PlantListItem{{ID: "p2", ScientificName: "Ficus elastica", Family: "Moraceae"}}
			}
			writeJSON(w, http.StatusOK, resp)
		},
	})
	app := newTestApp(t, backend, nil)

	resp, body := app.get(t, "/?page=9", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"9", "1"}, pages)
	assert.Contains(t, body, "Page 9 does not exist, showing page 1")
	assert.Contains(t, body, "Ficus elastica")
	assert.Contains(t, body, `aria-current="page">1<`)
}

func contributionRoutes(updates *[]*http.Request) map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"/contributes/detail/c1": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, models.Contribution{
				ID: "c1", Status: models.StatusPending, Type: models.TypeCreate,
				User: models.ContributionUser{ID: "u1", Username: "alice"},
				Data: models.ContributionData{Plant: models.ContributionPlant{
					ScientificName: "Monstera deliciosa",
					CommonName:     []string{"Swiss cheese plant"},
					Family:         models.Family{ID: "f1", Name: "Araceae"},
					Attributes:     []models.Attribute{{ID: "a1", Name: "Evergreen"}},
					Images:         []string{"https://img.example.com/monstera.jpg"},
				}},
			})
		},
		"/contributes/detail/c2": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, models.Contribution{
				ID: "c2", Status: models.StatusApproved, Type: models.TypeUpdate,
				User: models.ContributionUser{ID: "u2", Username: "bob"},
				Data: models.ContributionData{Plant: models.ContributionPlant{
					ScientificName: "Ficus elastica",
					Family:         models.Family{ID: "f2", Name: "Moraceae"},
				}},
			})
		},
		"/contributes/update/c1": func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			*updates = append(*updates, r)
			writeJSON(w, http.StatusOK, map[string]string{"_id": "c1"})
		},
	}
}

func TestEditWizard(t *testing.T) {
	var updates []*http.Request
	app := newTestApp(t, fakeBackend(t, signToken(t, time.Hour), contributionRoutes(&updates)), nil)
	app.login(t)

	t.Run("refused for someone else's contribution", func(t *testing.T) {
		resp, _ := app.get(t, "/contribute/c2/edit", false)
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/contribute/c2", resp.Header.Get("Location"))
		assert.Equal(t, 0, app.handler.Wizards.Len())

		_, body := app.get(t, "/contribute/c2", false)
		assert.Contains(t, body, "Only the submitter can edit a contribution that is still pending")
		assert.NotContains(t, body, "/contribute/c2/edit")
	})

	t.Run("preloads and submits an update", func(t *testing.T) {
		resp, _ := app.get(t, "/contribute/c1/edit", false)
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		location := resp.Header.Get("Location")
		require.True(t, strings.HasPrefix(location, "/contribute/wizard/"))
		assert.Equal(t, 1, app.handler.Wizards.Len())

		resp, body := app.get(t, location, false)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "Edit contribution")
		assert.Contains(t, body, `value="Monstera deliciosa"`)
		assert.Contains(t, body, `value="f1" selected`)

		_, body = app.get(t, location+"?tab=media", false)
		assert.Contains(t, body, "https://img.example.com/monstera.jpg")

		resp, _ = app.post(t, location, url.Values{"action": {"submit"}})
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/contribute/c1", resp.Header.Get("Location"))

		require.Len(t, updates, 1)
		req := updates[0]
		assert.Equal(t, http.MethodPatch, req.Method)
		assert.NotContains(t, req.MultipartForm.Value, "type")

		var data struct {
			Plant struct {
				ScientificName string   `json:"scientific_name"`
				Family         string   `json:"family"`
				Attributes     []string `json:"attributes"`
				Images         []string `json:"images"`
			} `json:"plant"`
		}
		require.NoError(t, json.Unmarshal([]byte(req.MultipartForm.Value["data"][0]), &data))
		assert.Equal(t, "Monstera deliciosa", data.Plant.ScientificName)
		assert.Equal(t, "f1", data.Plant.Family)
		assert.Equal(t, []string{"a1"}, data.Plant.Attributes)
		assert.Equal(t, []string{"https://img.example.com/monstera.jpg"}, data.Plant.Images)

		require.Len(t, app.events.submitted, 1)
		assert.Equal(t, models.TypeUpdate, app.events.submitted[0].Type)
	})
}

type memDrafts struct {
	mu      sync.Mutex
	drafts  map[string]*models.Draft
	deleted []string
	failing bool
}

func (m *memDrafts) SaveDraft(ctx context.Context, d *models.Draft, files []models.FileImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[d.Owner+"/"+d.Key] = d
	return nil
}

func (m *memDrafts) LoadDraft(ctx context.Context, owner, key string) (*models.Draft, map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[owner+"/"+key]
	if !ok {
		return nil, nil, storage.ErrDraftNotFound
	}
	return d, map[string][]byte{}, nil
}

func (m *memDrafts) ListDrafts(ctx context.Context, owner string) ([]storage.DraftSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.DraftSummary
	for _, d := range m.drafts {
		if d.Owner == owner {
			out = append(out, storage.DraftSummary{Key: d.Key, Mode: d.Mode, ScientificName: d.Form.ScientificName})
		}
	}
	return out, nil
}

func (m *memDrafts) DeleteDraft(ctx context.Context, owner, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("connection reset")
	}
	if _, ok := m.drafts[owner+"/"+key]; !ok {
		return storage.ErrDraftNotFound
	}
	delete(m.drafts, owner+"/"+key)
	m.deleted = append(m.deleted, owner+"/"+key)
	return nil
}

func TestDeleteDraft(t *testing.T) {
	drafts := &memDrafts{drafts: map[string]*models.Draft{
		"u1/k1": {Key: "k1", Owner: "u1", Mode: "create", Form: models.ContributionForm{ScientificName: "Monstera deliciosa"}},
		"u2/k2": {Key: "k2", Owner: "u2", Mode: "create"},
	}}
	app := newTestApp(t, fakeBackend(t, signToken(t, time.Hour), nil), nil, func(d *Deps) {
		d.Drafts = drafts
	})

	resp, _ := app.post(t, "/drafts/k1/delete", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?next=%2Fdrafts%2Fk1%2Fdelete", resp.Header.Get("Location"))
	assert.Empty(t, drafts.deleted)

	app.login(t)

	_, body := app.get(t, "/userdetail", false)
	assert.Contains(t, body, "/drafts/k1/delete")

	resp, _ = app.post(t, "/drafts/k1/delete", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/userdetail", resp.Header.Get("Location"))
	assert.Equal(t, []string{"u1/k1"}, drafts.deleted)

	_, body = app.get(t, "/userdetail", false)
	assert.Contains(t, body, "Draft deleted")
	assert.NotContains(t, body, "/drafts/k1/delete")

	// Drafts of other users are out of reach
	app.post(t, "/drafts/k2/delete", nil)
	_, body = app.get(t, "/userdetail", false)
	assert.Contains(t, body, "Draft was already deleted")
	assert.Contains(t, drafts.drafts, "u2/k2")

	drafts.failing = true
	app.post(t, "/drafts/k1/delete", nil)
	_, body = app.get(t, "/userdetail", false)
	assert.Contains(t, body, "Failed to delete draft")
}

func TestPctClampsPercentages(t *testing.T) {
	pct := funcMap()["pct"].(func(float64) string)
	assert.Equal(t, "95.0%", pct(95))
	assert.Equal(t, "0.5%", pct(0.5))
	assert.Equal(t, "100.0%", pct(9500))
	assert.Equal(t, "0.0%", pct(-3))
}
