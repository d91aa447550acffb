package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"sipenduk/internal/service"
)

// AuthHandler 登录 / 登出 / 当前会话
type AuthHandler struct {
	authService service.AuthService
	logger      *zap.Logger
}

func NewAuthHandler(authService service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	resp, err := h.authService.Login(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// Logout 无服务端会话；客户端丢弃令牌即可
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if s := SessionFrom(r.Context()); s != nil {
		h.logger.Info("Logout", zap.String("user_id", s.UserID))
	}
	writeJSON(w, http.StatusOK, Ok(map[string]bool{"logged_out": true}))
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(SessionFrom(r.Context())))
}

// UserHandler 账号管理（admin）
type UserHandler struct {
	authService service.AuthService
	logger      *zap.Logger
}

func NewUserHandler(authService service.AuthService, logger *zap.Logger) *UserHandler {
	return &UserHandler{authService: authService, logger: logger}
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r)
	resp, err := h.authService.ListUsers(r.Context(), service.ListUsersRequest{
		Role: r.URL.Query().Get("role"),
		Page: page,
		Size: size,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(Page[*service.UserItem]{Items: resp.Items, Total: resp.Total, Page: page, Size: size}))
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req service.CreateUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	resp, err := h.authService.CreateUser(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(resp))
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	item, err := h.authService.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(item))
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	item, err := h.authService.UpdateUser(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(item))
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s := SessionFrom(r.Context()); s != nil && s.UserID == id {
		writeJSON(w, http.StatusConflict, Fail("Tidak dapat menghapus akun sendiri"))
		return
	}
	if err := h.authService.DeleteUser(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"user_id": id}))
}

func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	acc, err := h.authService.ResetPassword(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(acc))
}
