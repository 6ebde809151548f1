package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/excuse-me/internal/apperror"
	"github.com/sakif/excuse-me/internal/auth"
	"github.com/sakif/excuse-me/internal/service"
)

const stateCookieName = "oauth_state"

// maxAuthBody bounds signup/login payloads.
const maxAuthBody = 4 << 10

// AuthHandler manages email/password and GitHub sign-in and the session
// cookie.
//
// HANDLER RESPONSIBILITIES:
//   - HandleSignup         → create an account, set the session cookie
//   - HandleLogin          → verify credentials, set the session cookie
//   - HandleGitHubLogin    → redirect the browser to GitHub
//   - HandleGitHubCallback → finish OAuth, set the session cookie
//   - HandleLogout         → clear the session cookie
//   - HandleMe             → return the signed-in account
type AuthHandler struct {
	auth          *service.AuthService
	github        *auth.GitHubProvider // nil when GitHub sign-in is not configured
	secureCookies bool
	logger        *slog.Logger
}

// NewAuthHandler creates an AuthHandler. github may be nil.
func NewAuthHandler(authSvc *service.AuthService, github *auth.GitHubProvider, secureCookies bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:          authSvc,
		github:        github,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// GitHubEnabled reports whether the GitHub routes should be registered.
func (h *AuthHandler) GitHubEnabled() bool { return h.github != nil }

// userResponse is the public view of an account.
type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	Login     string `json:"login,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Plan      string `json:"plan"`
}

// HandleSignup creates an email/password account.
//
// HTTP: POST /auth/signup  {"email": "...", "password": "..."}
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	creds, err := decodeCredentials(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Signup(r.Context(), creds)
	if err != nil {
		h.logFailure("signup failed", err)
		writeError(w, err)
		return
	}

	h.setSession(w, result.Token)
	writeJSON(w, http.StatusCreated, toUserResponse(result))
}

// HandleLogin verifies email/password.
//
// HTTP: POST /auth/login  {"email": "...", "password": "..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	creds, err := decodeCredentials(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Login(r.Context(), creds)
	if err != nil {
		h.logFailure("login failed", err)
		writeError(w, err)
		return
	}

	h.setSession(w, result.Token)
	writeJSON(w, http.StatusOK, toUserResponse(result))
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state is stored in a short-lived HttpOnly cookie and must come
// back unchanged on the callback.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub user profile
//  3. Create or refresh the account
//  4. Set the session cookie
//  5. Redirect to the generator
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// single-use
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/login?auth=denied", http.StatusSeeOther)
		return
	}

	// --- Step 2: Exchange code for GitHub user profile ---
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	// --- Step 3: Create or refresh the account ---
	result, err := h.auth.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: sign-in failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// --- Step 4 & 5 ---
	h.setSession(w, result.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /auth/logout
//
// Sessions are stateless JWTs, so logout only deletes the cookie. The token
// stays valid until it expires.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the currently authenticated account.
//
// HTTP: GET /api/me
// Auth: Required
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// A valid token for an account that no longer exists.
			err = apperror.Unauthenticated("Your account could not be found. Please sign in again.")
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(&service.AuthResult{User: user}))
}

func (h *AuthHandler) setSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.SessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// logFailure logs unexpected errors only; bad credentials are routine.
func (h *AuthHandler) logFailure(msg string, err error) {
	switch apperror.KindOf(err) {
	case apperror.KindValidation, apperror.KindNotAuthenticated, apperror.KindConflict:
		return
	}
	h.logger.Error(msg, slog.String("error", err.Error()))
}

func toUserResponse(result *service.AuthResult) userResponse {
	u := result.User
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Login:     u.Login,
		AvatarURL: u.AvatarURL,
		Plan:      string(u.Plan),
	}
}

// decodeCredentials reads a JSON body, or a form post when the content type
// is not JSON.
func decodeCredentials(w http.ResponseWriter, r *http.Request) (service.Credentials, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAuthBody)

	var creds service.Credentials
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			return creds, apperror.ValidationFailed("", "request body must be valid JSON")
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return creds, apperror.ValidationFailed("", "request body could not be parsed")
		}
		creds.Email = r.PostForm.Get("email")
		creds.Password = r.PostForm.Get("password")
	}
	creds.Email = strings.TrimSpace(creds.Email)
	return creds, nil
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "application/json")
}
