package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"sipenduk/internal/domain"
	"sipenduk/internal/service"
)

type AnnouncementHandler struct {
	announcementService service.AnnouncementService
	logger              *zap.Logger
}

func NewAnnouncementHandler(announcementService service.AnnouncementService, logger *zap.Logger) *AnnouncementHandler {
	return &AnnouncementHandler{announcementService: announcementService, logger: logger}
}

func (h *AnnouncementHandler) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	items, err := h.announcementService.ListAnnouncements(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if items == nil {
		items = []*domain.Announcement{}
	}
	writeJSON(w, http.StatusOK, Ok(items))
}

func (h *AnnouncementHandler) GetAnnouncement(w http.ResponseWriter, r *http.Request) {
	item, err := h.announcementService.GetAnnouncement(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(item))
}

func (h *AnnouncementHandler) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req service.AnnouncementRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	item, err := h.announcementService.CreateAnnouncement(r.Context(), SessionFrom(r.Context()), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(item))
}

func (h *AnnouncementHandler) UpdateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req service.AnnouncementRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	item, err := h.announcementService.UpdateAnnouncement(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(item))
}

func (h *AnnouncementHandler) DeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.announcementService.DeleteAnnouncement(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"announcement_id": id}))
}
