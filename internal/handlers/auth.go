package handlers

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/p-ddong/floratio-lib-client/internal/auth"
	"github.com/p-ddong/floratio-lib-client/internal/client"
	"github.com/p-ddong/floratio-lib-client/internal/models"
	"github.com/p-ddong/floratio-lib-client/internal/session"
	"github.com/p-ddong/floratio-lib-client/internal/storage"
	"github.com/p-ddong/floratio-lib-client/internal/store"
	"github.com/p-ddong/floratio-lib-client/internal/wizard"
)

type authFormData struct {
	Username string
	Email    string
	Remember bool
	Next     string
	Errors   wizard.ValidationErrors
	Error    string
}

// safeNext only allows local redirect targets
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

// LoginFormHandler shows the login form
func (h *Handler) LoginFormHandler(w http.ResponseWriter, r *http.Request) {
	if h.state(r).LoggedIn() {
		redirect(w, r, "/")
		return
	}
	data := authFormData{Next: safeNext(r.URL.Query().Get("next"))}
	h.render(w, r, http.StatusOK, "login.html", "login-form", "Login", data)
}

// LoginHandler authenticates against the backend and stores the token in the session
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	req := models.LoginRequest{
		Username:   strings.TrimSpace(r.FormValue("username")),
		Password:   r.FormValue("password"),
		RememberMe: r.FormValue("remember") == "on",
	}
	data := authFormData{Username: req.Username, Remember: req.RememberMe, Next: safeNext(r.FormValue("next"))}

	if err := wizard.Validator().Struct(req); err != nil {
		data.Errors = wizard.FieldErrors(err)
		h.render(w, r, http.StatusUnprocessableEntity, "login.html", "login-form", "Login", data)
		return
	}

	token, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		log.Warn().Err(err).Str("username", req.Username).Msg("Login failed")
		data.Error = "Invalid username or password"
		if !client.IsUnauthorized(err) {
			data.Error = client.Message(err, "Login failed, please try again")
		}
		h.render(w, r, http.StatusUnauthorized, "login.html", "login-form", "Login", data)
		return
	}

	claims, err := auth.Decode(token, h.JWTSecret)
	if err != nil {
		log.Error().Err(err).Msg("Backend returned an unreadable token")
		data.Error = "Login failed, please try again"
		h.render(w, r, http.StatusBadGateway, "login.html", "login-form", "Login", data)
		return
	}

	user := claims.User()
	if profile, err := h.Auth.Profile(r.Context(), token); err == nil {
		user = *profile
	} else {
		log.Warn().Err(err).Msg("Failed to load profile after login")
	}

	s := h.session(r)
	if h.Sessions != nil {
		h.Wizards.RemoveSession(s.ID)
		h.Sessions.Renew(r.Context(), s)
	}
	s.SetRemember(req.RememberMe)
	s.Store.Dispatch(
		store.SetToken{Token: token},
		store.SetUser{User: &user},
		store.ResetMarks{},
		store.ClearContributionList{},
	)
	s.AddFlash(session.FlashSuccess, "Welcome back, "+user.Username)

	log.Info().Str("username", user.Username).Bool("remember", req.RememberMe).Msg("User logged in")
	redirect(w, r, data.Next)
}

// LogoutHandler clears the user's data from the session. Plant reference
// data stays.
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	h.Wizards.RemoveSession(s.ID)
	s.Store.Dispatch(store.Logout{})
	s.SetRemember(false)
	s.AddFlash(session.FlashInfo, "You have been logged out")
	redirect(w, r, "/")
}

// RegisterFormHandler shows the signup form
func (h *Handler) RegisterFormHandler(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register.html", "register-form", "Create account", authFormData{})
}

// RegisterHandler creates an account on the backend
func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	req := models.SignupRequest{
		Username: strings.TrimSpace(r.FormValue("username")),
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
	}
	data := authFormData{Username: req.Username, Email: req.Email}

	errs := wizard.ValidationErrors{}
	if err := wizard.Validator().Struct(req); err != nil {
		errs = wizard.FieldErrors(err)
	}
	if r.FormValue("confirm_password") != req.Password {
		errs["confirm_password"] = "passwords do not match"
	}
	if len(errs) > 0 {
		data.Errors = errs
		h.render(w, r, http.StatusUnprocessableEntity, "register.html", "register-form", "Create account", data)
		return
	}

	if err := h.Auth.Signup(r.Context(), req); err != nil {
		log.Warn().Err(err).Str("username", req.Username).Msg("Signup failed")
		data.Error = client.Message(err, "Registration failed, please try again")
		h.render(w, r, http.StatusBadRequest, "register.html", "register-form", "Create account", data)
		return
	}

	h.flash(r, session.FlashSuccess, "Account created. Check your email to verify it, then log in.")
	redirect(w, r, "/login")
}

type verifyData struct {
	Verified bool
	Message  string
}

// VerifyEmailHandler confirms an email address with the token from the mail
func (h *Handler) VerifyEmailHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.render(w, r, http.StatusBadRequest, "verify_email.html", "", "Verify email",
			verifyData{Message: "The verification link is missing its token."})
		return
	}

	if err := h.Auth.VerifyEmail(r.Context(), token); err != nil {
		log.Warn().Err(err).Msg("Email verification failed")
		h.render(w, r, http.StatusBadRequest, "verify_email.html", "", "Verify email",
			verifyData{Message: client.Message(err, "The verification link is invalid or has expired.")})
		return
	}

	h.render(w, r, http.StatusOK, "verify_email.html", "", "Verify email",
		verifyData{Verified: true, Message: "Your email is verified. You can now log in."})
}

type userDetailData struct {
	User          *models.User
	Marks         []models.Mark
	Contributions []models.Contribution
	Drafts        []storage.DraftSummary
	DraftsEnabled bool
}

// UserDetailHandler shows the profile with bookmarks, contributions and drafts
func (h *Handler) UserDetailHandler(w http.ResponseWriter, r *http.Request) {
	token, ok := h.requireLogin(w, r)
	if !ok {
		return
	}
	s := h.session(r)

	profile, err := h.Auth.Profile(r.Context(), token)
	if err != nil {
		if h.handleAPIError(w, r, err, "Failed to load profile") {
			return
		}
	} else {
		s.Store.Dispatch(store.SetUser{User: profile})
	}

	h.loadMarks(r.Context(), s)
	st, err := h.loadContributions(r.Context(), s, token, false)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load contributions for profile")
	}

	data := userDetailData{
		User:          st.Auth.User,
		Marks:         st.Mark.Marks,
		Contributions: ownContributions(st.Contribution.Contributions, st.Auth.User),
		DraftsEnabled: h.Drafts != nil,
	}

	if h.Drafts != nil {
		drafts, err := h.Drafts.ListDrafts(r.Context(), owner(st))
		if err != nil {
			log.Warn().Err(err).Msg("Failed to list drafts")
		}
		data.Drafts = drafts
	}

	h.render(w, r, http.StatusOK, "userdetail.html", "", "My profile", data)
}

func ownContributions(list []models.Contribution, u *models.User) []models.Contribution {
	if u == nil {
		return nil
	}
	out := make([]models.Contribution, 0, len(list))
	for _, c := range list {
		if (u.ID != "" && c.User.ID == u.ID) || (u.ID == "" && c.User.Username == u.Username) {
			out = append(out, c)
		}
	}
	return out
}
