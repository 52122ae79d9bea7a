package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"excalidash/config"
	"excalidash/core"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	tokenTTL    = 7 * 24 * time.Hour
	stateCookie = "oauthstate"
)

// AppClaims represents the custom claims for the JWT.
type AppClaims struct {
	jwt.RegisteredClaims
	Login     string `json:"login"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl"`
	Name      string `json:"name"`
}

// OIDCClaims represents the claims from OIDC token
type OIDCClaims struct {
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Picture           string `json:"picture"`
	Sub               string `json:"sub"`
}

// Provider signs and verifies session tokens and serves the OAuth login flow
// of whichever identity provider is configured, OIDC taking precedence over
// GitHub.
type Provider struct {
	secret   []byte
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier

	login    http.HandlerFunc
	callback http.HandlerFunc
}

func NewProvider(ctx context.Context, cfg config.Auth) *Provider {
	p := &Provider{secret: []byte(cfg.JWTSecret)}

	oidcConfigured := cfg.OIDCIssuerURL != "" && cfg.OIDCClientID != ""
	githubConfigured := cfg.GitHubClientID != "" && cfg.GitHubClientSecret != ""

	switch {
	case oidcConfigured:
		logrus.Info("Initializing OIDC authentication provider.")
		if err := p.initOIDC(ctx, cfg); err != nil {
			logrus.WithError(err).Error("Failed to create OIDC provider")
			break
		}
		p.login, p.callback = p.handleOIDCLogin, p.handleOIDCCallback
	case githubConfigured:
		logrus.Info("Initializing GitHub authentication provider.")
		p.oauth = &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.GitHubRedirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		}
		p.login, p.callback = p.handleOAuthLogin, p.handleGitHubCallback
	default:
		logrus.Warn("No authentication provider configured.")
	}

	if !p.Enabled() {
		logrus.Warn("JWT_SECRET is not set. Every request is served as the local user.")
	}
	return p
}

func (p *Provider) initOIDC(ctx context.Context, cfg config.Auth) error {
	provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuerURL)
	if err != nil {
		return err
	}
	p.oauth = &oauth2.Config{
		ClientID:     cfg.OIDCClientID,
		ClientSecret: cfg.OIDCClientSecret,
		RedirectURL:  cfg.OIDCRedirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		Endpoint:     provider.Endpoint(),
	}
	p.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.OIDCClientID})
	logrus.Info("OIDC provider initialized")
	return nil
}

// Enabled reports whether tokens are required at all.
func (p *Provider) Enabled() bool { return len(p.secret) > 0 }

func (p *Provider) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if p.login == nil {
		http.Error(w, "Authentication not configured", http.StatusInternalServerError)
		return
	}
	p.login(w, r)
}

func (p *Provider) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if p.callback == nil {
		http.Error(w, "Authentication not configured", http.StatusInternalServerError)
		return
	}
	if !validState(r) {
		logrus.Warn("OAuth state mismatch")
		http.Error(w, "Invalid OAuth state", http.StatusBadRequest)
		return
	}
	p.callback(w, r)
}

func validState(r *http.Request) bool {
	cookie, err := r.Cookie(stateCookie)
	return err == nil && cookie.Value != "" && cookie.Value == r.FormValue("state")
}

func setStateCookie(w http.ResponseWriter, r *http.Request) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := hex.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		Secure:   r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}

func (p *Provider) handleOAuthLogin(w http.ResponseWriter, r *http.Request) {
	state, err := setStateCookie(w, r)
	if err != nil {
		http.Error(w, "Failed to generate state for login", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, p.oauth.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func (p *Provider) handleOIDCLogin(w http.ResponseWriter, r *http.Request) {
	state, err := setStateCookie(w, r)
	if err != nil {
		http.Error(w, "Failed to generate state for OIDC login", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, p.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline), http.StatusTemporaryRedirect)
}

func (p *Provider) handleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token, err := p.oauth.Exchange(ctx, r.FormValue("code"))
	if err != nil {
		logrus.WithError(err).Error("failed to exchange token")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	resp, err := p.oauth.Client(ctx, token).Get("https://api.github.com/user")
	if err != nil {
		logrus.WithError(err).Error("failed to get user from github")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logrus.WithError(err).Error("failed to read github response body")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	var githubUser struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		AvatarURL string `json:"avatar_url"`
		Name      string `json:"name"`
	}
	if err := json.Unmarshal(body, &githubUser); err != nil {
		logrus.WithError(err).Error("failed to unmarshal github user")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	p.finishLogin(w, r, &core.User{
		Subject:   fmt.Sprintf("github:%d", githubUser.ID),
		Login:     githubUser.Login,
		AvatarURL: githubUser.AvatarURL,
		Name:      githubUser.Name,
	})
}

func (p *Provider) handleOIDCCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := r.FormValue("code")
	if code == "" {
		logrus.Error("no code in callback")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		logrus.WithError(err).Error("failed to exchange token")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		logrus.Error("no id_token in token response")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		logrus.WithError(err).Error("failed to verify ID token")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	var claims OIDCClaims
	if err := idToken.Claims(&claims); err != nil {
		logrus.WithError(err).Error("failed to extract claims from ID token")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	user := &core.User{
		Subject:   claims.Sub,
		Login:     claims.PreferredUsername,
		Email:     claims.Email,
		AvatarURL: claims.Picture,
		Name:      claims.Name,
	}
	if user.Login == "" {
		user.Login = user.Email
	}
	p.finishLogin(w, r, user)
}

func (p *Provider) finishLogin(w http.ResponseWriter, r *http.Request, user *core.User) {
	jwtToken, err := p.CreateJWT(user)
	if err != nil {
		logrus.WithError(err).Error("failed to create JWT")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}
	logrus.WithField("user_id", user.Subject).Info("User logged in")
	http.Redirect(w, r, fmt.Sprintf("/?token=%s", jwtToken), http.StatusTemporaryRedirect)
}

// CreateJWT signs a session token for user.
func (p *Provider) CreateJWT(user *core.User) (string, error) {
	if !p.Enabled() {
		return "", fmt.Errorf("JWT_SECRET is not set")
	}
	now := time.Now()
	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Login:     user.Login,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		Name:      user.Name,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

func (p *Provider) ParseJWT(tokenString string) (*AppClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*AppClaims); ok && token.Valid && claims.Subject != "" {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
