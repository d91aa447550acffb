package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"sipenduk/internal/service"
)

// VitalEventHandler 出生 / 死亡 / 迁入 / 迁出登记
type VitalEventHandler struct {
	births     service.BirthEventService
	deaths     service.DeathEventService
	arrivals   service.ArrivalEventService
	departures service.DepartureEventService
	logger     *zap.Logger
}

func NewVitalEventHandler(
	births service.BirthEventService,
	deaths service.DeathEventService,
	arrivals service.ArrivalEventService,
	departures service.DepartureEventService,
	logger *zap.Logger,
) *VitalEventHandler {
	return &VitalEventHandler{
		births:     births,
		deaths:     deaths,
		arrivals:   arrivals,
		departures: departures,
		logger:     logger,
	}
}

func eventPage(r *http.Request) service.EventPage {
	page, size := pageParams(r)
	return service.EventPage{Page: page, Size: size}
}

// ===== Birth (Kelahiran) =====

func (h *VitalEventHandler) ListBirths(w http.ResponseWriter, r *http.Request) {
	p := eventPage(r)
	resp, err := h.births.ListBirths(r.Context(), r.URL.Query().Get("family_card_id"), p)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(Page[*service.BirthEventItem]{Items: resp.Items, Total: resp.Total, Page: p.Page, Size: p.Size}))
}

func (h *VitalEventHandler) CreateBirth(w http.ResponseWriter, r *http.Request) {
	var req service.BirthEventRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	resp, err := h.births.CreateBirth(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(resp))
}

func (h *VitalEventHandler) GetBirth(w http.ResponseWriter, r *http.Request) {
	item, err := h.births.GetBirth(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(item))
}

func (h *VitalEventHandler) UpdateBirth(w http.ResponseWriter, r *http.Request) {
	var req service.BirthEventRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	item, err := h.births.UpdateBirth(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(item))
}

func (h *VitalEventHandler) DeleteBirth(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.births.DeleteBirth(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"birth_event_id": id}))
}

// ===== Death (Kematian) =====

func (h *VitalEventHandler) ListDeaths(w http.ResponseWriter, r *http.Request) {
	p := eventPage(r)
	resp, err := h.deaths.ListDeaths(r.Context(), p)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(Page[*service.DeathEventItem]{Items: resp.Items, Total: resp.Total, Page: p.Page, Size: p.Size}))
}

func (h *VitalEventHandler) CreateDeath(w http.ResponseWriter, r *http.Request) {
	var req service.DeathEventRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	item, err := h.deaths.CreateDeath(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(item))
}

func (h *VitalEventHandler) GetDeath(w http.ResponseWriter, r *http.Request) {
	item, err := h.deaths.GetDeath(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(item))
}

func (h *VitalEventHandler) UpdateDeath(w http.ResponseWriter, r *http.Request) {
	var req service.DeathEventRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	item, err := h.deaths.UpdateDeath(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(item))
}

func (h *VitalEventHandler) DeleteDeath(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.deaths.DeleteDeath(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"death_event_id": id}))
}

// ===== Arrival (Pendatang) =====

func (h *VitalEventHandler) ListArrivals(w http.ResponseWriter, r *http.Request) {
	p := eventPage(r)
	resp, err := h.arrivals.ListArrivals(r.Context(), p)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(Page[*service.ArrivalEventItem]{Items: resp.Items, Total: resp.Total, Page: p.Page, Size: p.Size}))
}

func (h *VitalEventHandler) CreateArrival(w http.ResponseWriter, r *http.Request) {
	var req service.CreateArrivalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	resp, err := h.arrivals.CreateArrival(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(resp))
}

func (h *VitalEventHandler) GetArrival(w http.ResponseWriter, r *http.Request) {
	item, err := h.arrivals.GetArrival(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(item))
}

func (h *VitalEventHandler) UpdateArrival(w http.ResponseWriter, r *http.Request) {
	var req service.ArrivalEventRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	item, err := h.arrivals.UpdateArrival(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(item))
}

func (h *VitalEventHandler) DeleteArrival(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.arrivals.DeleteArrival(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"arrival_event_id": id}))
}

// ===== Departure (Pindah) =====

func (h *VitalEventHandler) ListDepartures(w http.ResponseWriter, r *http.Request) {
	p := eventPage(r)
	resp, err := h.departures.ListDepartures(r.Context(), p)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(Page[*service.DepartureEventItem]{Items: resp.Items, Total: resp.Total, Page: p.Page, Size: p.Size}))
}

func (h *VitalEventHandler) CreateDeparture(w http.ResponseWriter, r *http.Request) {
	var req service.DepartureEventRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	item, err := h.departures.CreateDeparture(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(item))
}

func (h *VitalEventHandler) GetDeparture(w http.ResponseWriter, r *http.Request) {
	item, err := h.departures.GetDeparture(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(item))
}

func (h *VitalEventHandler) UpdateDeparture(w http.ResponseWriter, r *http.Request) {
	var req service.DepartureEventRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	item, err := h.departures.UpdateDeparture(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(item))
}

func (h *VitalEventHandler) DeleteDeparture(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.departures.DeleteDeparture(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"departure_event_id": id}))
}
