package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/m3rciful/pricewatch/internal/models"
	"github.com/m3rciful/pricewatch/internal/passhash"
	"github.com/m3rciful/pricewatch/internal/server/storage"
)

const (
	detailUserNotFound   = "Пользователь не найден"
	detailUserExists     = "REGISTER_USER_ALREADY_EXISTS"
	detailBadCredentials = "LOGIN_BAD_CREDENTIALS"
	detailUnauthorized   = "Unauthorized"
	maxAvatarBytes       = 10 << 20
)

type ctxKey int

const userKey ctxKey = iota

// requireAuth verifies the bearer token and loads the account into the
// request context.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get("Authorization"))
		token, ok := strings.CutPrefix(raw, "Bearer ")
		if !ok || token == "" {
			respondDetail(w, http.StatusUnauthorized, detailUnauthorized)
			return
		}
		userID, err := h.issuer.Verify(token)
		if err != nil {
			respondDetail(w, http.StatusUnauthorized, detailUnauthorized)
			return
		}
		user, err := h.store.UserByID(r.Context(), userID)
		if errors.Is(err, storage.ErrNotFound) {
			respondDetail(w, http.StatusUnauthorized, detailUnauthorized)
			return
		}
		if err != nil {
			respondDetail(w, http.StatusInternalServerError, "Ошибка сервера")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

func currentUser(r *http.Request) *models.Account {
	user, _ := r.Context().Value(userKey).(*models.Account)
	return user
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var in models.AccountCreate
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.Email == "" || in.Password == "" || in.TelegramID == 0 {
		respondDetail(w, http.StatusUnprocessableEntity, "Не заполнены обязательные поля")
		return
	}
	hash, err := passhash.HashWithParams(in.Password, h.hashParams)
	if err != nil {
		respondDetail(w, http.StatusInternalServerError, "Ошибка сервера")
		return
	}
	acc, err := h.store.CreateUser(r.Context(), in, hash)
	if errors.Is(err, storage.ErrDuplicate) {
		respondDetail(w, http.StatusBadRequest, detailUserExists)
		return
	}
	if err != nil {
		respondDetail(w, http.StatusInternalServerError, "Ошибка сервера")
		return
	}
	respondJSON(w, http.StatusCreated, acc)
}

// login implements the OAuth2 password grant form: username + password in
// form encoding, token grant out.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondDetail(w, http.StatusUnprocessableEntity, "Некорректное тело запроса")
		return
	}
	email := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		respondDetail(w, http.StatusBadRequest, detailBadCredentials)
		return
	}
	user, err := h.store.UserByEmail(r.Context(), email)
	if errors.Is(err, storage.ErrNotFound) {
		respondDetail(w, http.StatusBadRequest, detailBadCredentials)
		return
	}
	if err != nil {
		respondDetail(w, http.StatusInternalServerError, "Ошибка сервера")
		return
	}
	ok, err := passhash.Verify(password, user.HashedPassword)
	if err != nil || !ok {
		respondDetail(w, http.StatusBadRequest, detailBadCredentials)
		return
	}
	token, err := h.issuer.Issue(user.ID)
	if err != nil {
		respondDetail(w, http.StatusInternalServerError, "Ошибка сервера")
		return
	}
	respondJSON(w, http.StatusOK, models.TokenGrant{AccessToken: token, TokenType: "bearer"})
}

func (h *Handler) checkTelegramID(w http.ResponseWriter, r *http.Request) {
	var in struct {
		TelegramID int64 `json:"telegram_id"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	user, err := h.store.UserByTelegramID(r.Context(), in.TelegramID)
	if errors.Is(err, storage.ErrNotFound) {
		respondDetail(w, http.StatusNotFound, detailUserNotFound)
		return
	}
	if err != nil {
		respondDetail(w, http.StatusInternalServerError, "Ошибка сервера")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) checkEmail(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	user, err := h.store.UserByEmail(r.Context(), in.Email)
	if errors.Is(err, storage.ErrNotFound) {
		respondDetail(w, http.StatusNotFound, detailUserNotFound)
		return
	}
	if err != nil {
		respondDetail(w, http.StatusInternalServerError, "Ошибка сервера")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, currentUser(r))
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request) {
	var patch models.AccountUpdate
	if !decodeJSON(w, r, &patch) {
		return
	}
	var hashedPassword *string
	if patch.Password != nil {
		hash, err := passhash.HashWithParams(*patch.Password, h.hashParams)
		if err != nil {
			respondDetail(w, http.StatusInternalServerError, "Ошибка сервера")
			return
		}
		hashedPassword = &hash
	}
	updated, err := h.store.UpdateUser(r.Context(), currentUser(r).ID, patch, hashedPassword)
	if errors.Is(err, storage.ErrDuplicate) {
		respondDetail(w, http.StatusBadRequest, "Почта уже занята")
		return
	}
	if err != nil {
		respondDetail(w, http.StatusInternalServerError, "Ошибка сервера")
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// refreshToken persists the caller's current token so a restarted bot can
// keep monitoring without asking the user to log in again.
func (h *Handler) refreshToken(w http.ResponseWriter, r *http.Request) {
	var in struct {
		JWTToken struct {
			AccessToken string `json:"access_token"`
		} `json:"jwt_token"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.JWTToken.AccessToken == "" {
		respondDetail(w, http.StatusUnprocessableEntity, "Токен не передан")
		return
	}
	if err := h.store.SaveToken(r.Context(), currentUser(r).ID, in.JWTToken.AccessToken); err != nil {
		respondDetail(w, http.StatusInternalServerError, "Ошибка сервера")
		return
	}
	respondJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		respondDetail(w, http.StatusUnprocessableEntity, "Некорректное тело запроса")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondDetail(w, http.StatusUnprocessableEntity, "Файл не передан")
		return
	}
	defer file.Close()

	user := currentUser(r)
	name := fmt.Sprintf("%d_%s", user.TelegramID, header.Filename)
	avatarURL, err := h.media.Put(r.Context(), name, file, header.Size)
	if err != nil {
		respondDetail(w, http.StatusInternalServerError, "Ошибка загрузки файла")
		return
	}
	if _, err := h.store.UpdateUser(r.Context(), user.ID, models.AccountUpdate{AvatarURL: &avatarURL}, nil); err != nil {
		respondDetail(w, http.StatusInternalServerError, "Ошибка сервера")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"avatar_url": avatarURL})
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondDetail(w, http.StatusUnprocessableEntity, "Некорректный идентификатор")
		return
	}
	if id != currentUser(r).ID {
		respondDetail(w, http.StatusForbidden, "Можно удалить только свой аккаунт")
		return
	}
	if err := h.store.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondDetail(w, http.StatusNotFound, detailUserNotFound)
			return
		}
		respondDetail(w, http.StatusInternalServerError, "Ошибка сервера")
		return
	}
	respondJSON(w, http.StatusOK, struct{}{})
}
