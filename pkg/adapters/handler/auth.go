package handler

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/wadjakorntonsri/tinylinks/pkg/config"
)

const (
	stateCookie = "oauthstate"
	tokenTTL    = 24 * time.Hour
	userInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

type AuthHandler struct {
	oauthConfig  *oauth2.Config
	cfg          *config.Config
	jwtSecret    []byte
	frontendURL  string
	isProduction bool
	log          zerolog.Logger
}

type GoogleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

func NewAuthHandler(cfg *config.Config, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
			},
			Endpoint: google.Endpoint,
		},
		cfg:          cfg,
		jwtSecret:    []byte(cfg.JWTSecret),
		frontendURL:  cfg.FrontendURL,
		isProduction: cfg.IsProduction(),
		log:          log,
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := h.generateStateOauthCookie(w)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	http.Redirect(w, r, h.oauthConfig.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// Callback finishes the Google login and stores a signed token in the auth cookie.
// The owner id of the session is the verified email address.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	oauthState, err := r.Cookie(stateCookie)
	if err != nil || r.FormValue("state") != oauthState.Value {
		h.log.Warn().Err(err).Msg("invalid oauth state")
		writeJSON(w, h.log, http.StatusBadRequest, errorResponse{Error: "invalid oauth state"})
		return
	}

	token, err := h.oauthConfig.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		h.log.Error().Err(err).Msg("code exchange failed")
		writeJSON(w, h.log, http.StatusBadGateway, errorResponse{Error: "code exchange failed"})
		return
	}

	user, err := h.fetchUser(r, token)
	if err != nil {
		h.log.Error().Err(err).Msg("failed getting user info")
		writeJSON(w, h.log, http.StatusBadGateway, errorResponse{Error: "failed getting user info"})
		return
	}

	if !user.VerifiedEmail || !h.cfg.IsAllowed(user.Email) {
		h.log.Warn().Str("email", user.Email).Msg("login denied")
		writeJSON(w, h.log, http.StatusForbidden, errorResponse{Error: "access denied"})
		return
	}

	staff := h.cfg.IsStaff(user.Email)
	tokenString, expires, err := IssueToken(h.jwtSecret, user.Email, staff, tokenTTL)
	if err != nil {
		writeError(w, h.log, fmt.Errorf("failed signing token: %w", err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    tokenString,
		Expires:  expires,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})

	h.log.Info().Str("email", user.Email).Bool("staff", staff).Msg("login successful")
	http.Redirect(w, r, h.frontendURL, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) fetchUser(r *http.Request, token *oauth2.Token) (*GoogleUser, error) {
	resp, err := h.oauthConfig.Client(r.Context(), token).Get(userInfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var user GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (h *AuthHandler) generateStateOauthCookie(w http.ResponseWriter) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Expires:  time.Now().Add(20 * time.Minute),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}
