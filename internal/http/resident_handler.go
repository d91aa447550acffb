package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"sipenduk/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ResidentHandler 居民（Penduduk）
type ResidentHandler struct {
	residentService service.ResidentService
	logger          *zap.Logger
}

func NewResidentHandler(residentService service.ResidentService, logger *zap.Logger) *ResidentHandler {
	return &ResidentHandler{residentService: residentService, logger: logger}
}

func listResidentsRequest(r *http.Request) service.ListResidentsRequest {
	q := r.URL.Query()
	page, size := pageParams(r)
	return service.ListResidentsRequest{
		Search: q.Get("search"),
		Status: q.Get("status"),
		Sex:    q.Get("sex"),
		Hamlet: q.Get("hamlet"),
		Page:   page,
		Size:   size,
	}
}

func (h *ResidentHandler) ListResidents(w http.ResponseWriter, r *http.Request) {
	req := listResidentsRequest(r)
	resp, err := h.residentService.ListResidents(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(Page[service.ResidentItem]{Items: resp.Items, Total: resp.Total, Page: req.Page, Size: req.Size}))
}

func (h *ResidentHandler) CreateResident(w http.ResponseWriter, r *http.Request) {
	var req service.CreateResidentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	resp, err := h.residentService.CreateResident(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(resp))
}

func (h *ResidentHandler) GetResident(w http.ResponseWriter, r *http.Request) {
	item, err := h.residentService.GetResident(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(item))
}

func (h *ResidentHandler) UpdateResident(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateResidentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	item, err := h.residentService.UpdateResident(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(item))
}

func (h *ResidentHandler) DeleteResident(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.residentService.DeleteResident(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"resident_id": id}))
}

// ExportResidents 导出 XLSX；先写入缓冲区，出错时仍可返回 JSON 错误
func (h *ResidentHandler) ExportResidents(w http.ResponseWriter, r *http.Request) {
	req := listResidentsRequest(r)
	var buf bytes.Buffer
	if err := h.residentService.ExportResidents(r.Context(), req, &buf); err != nil {
		writeError(w, h.logger, err)
		return
	}
	filename := fmt.Sprintf("penduduk-%s.xlsx", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
