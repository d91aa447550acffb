package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"sipenduk/internal/service"
)

const apiPrefix = "/api/v1"

// Router 使用标准库 http.ServeMux（方法 + 路径模式，路径参数经 r.PathValue 读取）
type Router struct {
	mux      *http.ServeMux
	sessions service.SessionManager
	logger   *zap.Logger
}

func NewRouter(sessions service.SessionManager, logger *zap.Logger) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		sessions: sessions,
		logger:   logger,
	}
	r.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "ok"}))
	})
	r.mux.Handle("GET /metrics", promhttp.Handler())
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Handle 公开路由
func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.Handle(pattern, instrument(pattern, h))
}

// Authed 任何已登录用户
func (r *Router) Authed(pattern string, h http.HandlerFunc) {
	r.mux.Handle(pattern, instrument(pattern, requireSession(r.sessions, r.logger)(h)))
}

// Admin 仅 admin
func (r *Router) Admin(pattern string, h http.HandlerFunc) {
	r.mux.Handle(pattern, instrument(pattern, requireSession(r.sessions, r.logger, adminOnly...)(h)))
}

// Guest 仅居民自助账号
func (r *Router) Guest(pattern string, h http.HandlerFunc) {
	r.mux.Handle(pattern, instrument(pattern, requireSession(r.sessions, r.logger, guestOnly...)(h)))
}

func (r *Router) RegisterAuthRoutes(h *AuthHandler) {
	r.Handle("POST "+apiPrefix+"/auth/login", h.Login)
	r.Authed("POST "+apiPrefix+"/auth/logout", h.Logout)
	r.Authed("GET "+apiPrefix+"/auth/me", h.Me)
}

func (r *Router) RegisterUserRoutes(h *UserHandler) {
	r.Admin("GET "+apiPrefix+"/users", h.ListUsers)
	r.Admin("POST "+apiPrefix+"/users", h.CreateUser)
	r.Admin("GET "+apiPrefix+"/users/{id}", h.GetUser)
	r.Admin("PUT "+apiPrefix+"/users/{id}", h.UpdateUser)
	r.Admin("DELETE "+apiPrefix+"/users/{id}", h.DeleteUser)
	r.Admin("POST "+apiPrefix+"/users/{id}/reset-password", h.ResetPassword)
}

func (r *Router) RegisterResidentRoutes(h *ResidentHandler) {
	r.Admin("GET "+apiPrefix+"/residents", h.ListResidents)
	r.Admin("POST "+apiPrefix+"/residents", h.CreateResident)
	r.Admin("GET "+apiPrefix+"/residents/export", h.ExportResidents)
	r.Admin("GET "+apiPrefix+"/residents/{id}", h.GetResident)
	r.Admin("PUT "+apiPrefix+"/residents/{id}", h.UpdateResident)
	r.Admin("DELETE "+apiPrefix+"/residents/{id}", h.DeleteResident)
}

func (r *Router) RegisterFamilyCardRoutes(h *FamilyCardHandler) {
	r.Admin("GET "+apiPrefix+"/family-cards", h.ListFamilyCards)
	r.Admin("POST "+apiPrefix+"/family-cards", h.CreateFamilyCard)
	r.Admin("GET "+apiPrefix+"/family-cards/{id}", h.GetFamilyCard)
	r.Admin("PUT "+apiPrefix+"/family-cards/{id}", h.UpdateFamilyCard)
	r.Admin("DELETE "+apiPrefix+"/family-cards/{id}", h.DeleteFamilyCard)
	r.Admin("GET "+apiPrefix+"/family-cards/{id}/members", h.ListMembers)
	r.Admin("POST "+apiPrefix+"/memberships", h.AddMembership)
	r.Admin("DELETE "+apiPrefix+"/memberships/{id}", h.RemoveMembership)
}

func (r *Router) RegisterVitalEventRoutes(h *VitalEventHandler) {
	r.Admin("GET "+apiPrefix+"/births", h.ListBirths)
	r.Admin("POST "+apiPrefix+"/births", h.CreateBirth)
	r.Admin("GET "+apiPrefix+"/births/{id}", h.GetBirth)
	r.Admin("PUT "+apiPrefix+"/births/{id}", h.UpdateBirth)
	r.Admin("DELETE "+apiPrefix+"/births/{id}", h.DeleteBirth)

	r.Admin("GET "+apiPrefix+"/deaths", h.ListDeaths)
	r.Admin("POST "+apiPrefix+"/deaths", h.CreateDeath)
	r.Admin("GET "+apiPrefix+"/deaths/{id}", h.GetDeath)
	r.Admin("PUT "+apiPrefix+"/deaths/{id}", h.UpdateDeath)
	r.Admin("DELETE "+apiPrefix+"/deaths/{id}", h.DeleteDeath)

	r.Admin("GET "+apiPrefix+"/arrivals", h.ListArrivals)
	r.Admin("POST "+apiPrefix+"/arrivals", h.CreateArrival)
	r.Admin("GET "+apiPrefix+"/arrivals/{id}", h.GetArrival)
	r.Admin("PUT "+apiPrefix+"/arrivals/{id}", h.UpdateArrival)
	r.Admin("DELETE "+apiPrefix+"/arrivals/{id}", h.DeleteArrival)

	r.Admin("GET "+apiPrefix+"/departures", h.ListDepartures)
	r.Admin("POST "+apiPrefix+"/departures", h.CreateDeparture)
	r.Admin("GET "+apiPrefix+"/departures/{id}", h.GetDeparture)
	r.Admin("PUT "+apiPrefix+"/departures/{id}", h.UpdateDeparture)
	r.Admin("DELETE "+apiPrefix+"/departures/{id}", h.DeleteDeparture)
}

func (r *Router) RegisterLetterRoutes(h *LetterHandler) {
	r.Admin("GET "+apiPrefix+"/letters", h.ListLetters)
	r.Admin("POST "+apiPrefix+"/letters", h.CreateLetter)
	r.Admin("GET "+apiPrefix+"/letters/{id}", h.GetLetter)
	r.Admin("PUT "+apiPrefix+"/letters/{id}/status", h.UpdateLetterStatus)
	r.Admin("DELETE "+apiPrefix+"/letters/{id}", h.DeleteLetter)

	r.Guest("GET "+apiPrefix+"/me/letters", h.ListOwnLetters)
	r.Guest("POST "+apiPrefix+"/me/letters", h.RequestOwnLetter)
}

func (r *Router) RegisterAnnouncementRoutes(h *AnnouncementHandler) {
	r.Authed("GET "+apiPrefix+"/announcements", h.ListAnnouncements)
	r.Authed("GET "+apiPrefix+"/announcements/{id}", h.GetAnnouncement)
	r.Admin("POST "+apiPrefix+"/announcements", h.CreateAnnouncement)
	r.Admin("PUT "+apiPrefix+"/announcements/{id}", h.UpdateAnnouncement)
	r.Admin("DELETE "+apiPrefix+"/announcements/{id}", h.DeleteAnnouncement)
}
