package api

import (
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"osops-utils/pkg/auth"
	"osops-utils/pkg/model"
)

const tokenTTL = 24 * time.Hour

// AuthHandler serves operator registration and login.
type AuthHandler struct {
	DB     *gorm.DB
	Signer *auth.Signer
}

type authRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *AuthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/auth/register", a.handleRegister)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
}

func decodeAuth(w http.ResponseWriter, r *http.Request) (authRequest, bool) {
	var req authRequest
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// handleRegister only allows the first user to be created (admin).
func (a *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAuth(w, r)
	if !ok {
		return
	}
	var count int64
	if err := a.DB.WithContext(r.Context()).Model(&model.User{}).Count(&count).Error; err != nil {
		http.Error(w, "failed to count users", http.StatusInternalServerError)
		return
	}
	if count > 0 {
		http.Error(w, "registration closed", http.StatusForbidden)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "failed to hash password", http.StatusInternalServerError)
		return
	}
	user := model.User{Username: req.Username, PasswordHash: string(hash), IsAdmin: true}
	if err := a.DB.WithContext(r.Context()).Create(&user).Error; err != nil {
		http.Error(w, "failed to create user", http.StatusInternalServerError)
		return
	}
	a.writeToken(w, user)
}

func (a *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAuth(w, r)
	if !ok {
		return
	}
	var user model.User
	if err := a.DB.WithContext(r.Context()).Where("username = ?", req.Username).First(&user).Error; err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	now := time.Now()
	a.DB.WithContext(r.Context()).Model(&user).Update("last_login_at", &now)
	a.writeToken(w, user)
}

func (a *AuthHandler) writeToken(w http.ResponseWriter, user model.User) {
	token, err := a.Signer.Generate(user.ID, user.Username, user.IsAdmin, tokenTTL)
	if err != nil {
		http.Error(w, "failed to sign token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}
