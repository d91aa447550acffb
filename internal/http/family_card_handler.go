package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"sipenduk/internal/service"
)

// FamilyCardHandler 家庭卡（Kartu Keluarga）与成员关系
type FamilyCardHandler struct {
	familyCardService service.FamilyCardService
	logger            *zap.Logger
}

func NewFamilyCardHandler(familyCardService service.FamilyCardService, logger *zap.Logger) *FamilyCardHandler {
	return &FamilyCardHandler{familyCardService: familyCardService, logger: logger}
}

func (h *FamilyCardHandler) ListFamilyCards(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r)
	resp, err := h.familyCardService.ListFamilyCards(r.Context(), service.ListFamilyCardsRequest{
		Search: r.URL.Query().Get("search"),
		Page:   page,
		Size:   size,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(Page[service.FamilyCardItem]{Items: resp.Items, Total: resp.Total, Page: page, Size: size}))
}

func (h *FamilyCardHandler) CreateFamilyCard(w http.ResponseWriter, r *http.Request) {
	var req service.CreateFamilyCardRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	resp, err := h.familyCardService.CreateFamilyCard(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(resp))
}

func (h *FamilyCardHandler) GetFamilyCard(w http.ResponseWriter, r *http.Request) {
	detail, err := h.familyCardService.GetFamilyCard(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(detail))
}

func (h *FamilyCardHandler) UpdateFamilyCard(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateFamilyCardRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	item, err := h.familyCardService.UpdateFamilyCard(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(item))
}

func (h *FamilyCardHandler) DeleteFamilyCard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.familyCardService.DeleteFamilyCard(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"family_card_id": id}))
}

func (h *FamilyCardHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.familyCardService.ListMembersWithDetail(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(members))
}

func (h *FamilyCardHandler) AddMembership(w http.ResponseWriter, r *http.Request) {
	var req service.AddMembershipRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	resp, err := h.familyCardService.AddMembership(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	status := http.StatusCreated
	if resp.Moved {
		status = http.StatusOK
	}
	writeJSON(w, status, Ok(resp))
}

func (h *FamilyCardHandler) RemoveMembership(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.familyCardService.RemoveMembership(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"membership_id": id}))
}
