package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"sipenduk/internal/service"
)

// LetterHandler 证明信（Surat）；admin 管理全部，guest 只能申请/查看自己的
type LetterHandler struct {
	letterService service.LetterService
	logger        *zap.Logger
}

func NewLetterHandler(letterService service.LetterService, logger *zap.Logger) *LetterHandler {
	return &LetterHandler{letterService: letterService, logger: logger}
}

func (h *LetterHandler) ListLetters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, size := pageParams(r)
	resp, err := h.letterService.ListLetters(r.Context(), service.ListLettersRequest{
		ResidentID: q.Get("resident_id"),
		Status:     q.Get("status"),
		LetterType: q.Get("letter_type"),
		Page:       page,
		Size:       size,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(Page[*service.LetterItem]{Items: resp.Items, Total: resp.Total, Page: page, Size: size}))
}

func (h *LetterHandler) CreateLetter(w http.ResponseWriter, r *http.Request) {
	var req service.CreateLetterRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	item, err := h.letterService.CreateLetter(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(item))
}

func (h *LetterHandler) GetLetter(w http.ResponseWriter, r *http.Request) {
	item, err := h.letterService.GetLetter(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(item))
}

func (h *LetterHandler) UpdateLetterStatus(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateLetterStatusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	item, err := h.letterService.UpdateLetterStatus(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(item))
}

func (h *LetterHandler) DeleteLetter(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.letterService.DeleteLetter(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"letter_id": id}))
}

func (h *LetterHandler) ListOwnLetters(w http.ResponseWriter, r *http.Request) {
	p := eventPage(r)
	resp, err := h.letterService.ListOwnLetters(r.Context(), SessionFrom(r.Context()), p)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(Page[*service.LetterItem]{Items: resp.Items, Total: resp.Total, Page: p.Page, Size: p.Size}))
}

func (h *LetterHandler) RequestOwnLetter(w http.ResponseWriter, r *http.Request) {
	var req service.OwnLetterRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	item, err := h.letterService.RequestOwnLetter(r.Context(), SessionFrom(r.Context()), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(item))
}
