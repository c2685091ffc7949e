package debugserver

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jonwraymond/transitcache/buscache"
	"github.com/jonwraymond/transitcache/cache"
	"github.com/jonwraymond/transitcache/health"
	"github.com/jonwraymond/transitcache/observe"
)

type handlers struct {
	svc    *buscache.Service
	health *health.Aggregator
	logger observe.Logger
}

func (h *handlers) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.CacheStats())
}

func (h *handlers) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.CacheStatus())
}

func (h *handlers) keyStatus(w http.ResponseWriter, r *http.Request) {
	st := h.svc.Engine().Status(chi.URLParam(r, "key"))
	writeJSON(w, http.StatusOK, struct {
		cache.Status
		AgeFormatted string `json:"ageFormatted"`
	}{st, st.AgeFormatted()})
}

func (h *handlers) readiness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.DataReadiness())
}

func (h *handlers) check(w http.ResponseWriter, r *http.Request) {
	res, err := h.health.Check(r.Context(), chi.URLParam(r, "name"))
	if errors.Is(err, health.ErrCheckerNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, health.HTTPStatus(res.Status), health.NewCheckResponse(res))
}

// data reads through the facade, so it follows the same fallback rules as
// the app: it never fails, it degrades to empty.
func (h *handlers) data(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.URL.Query().Get("id")

	var v any
	switch buscache.Dataset(chi.URLParam(r, "dataset")) {
	case buscache.LiveBuses:
		v = h.svc.GetLiveBuses(ctx)
	case buscache.AllLines:
		v = h.svc.GetAllLines(ctx)
	case buscache.LineDetails:
		v = h.svc.GetLineDetails(ctx, id)
	case buscache.LiveSchedule:
		v = h.svc.GetLiveSchedule(ctx, id)
	case buscache.BusSchedule:
		v = h.svc.GetBusSchedule(ctx, id)
	case buscache.BusRides:
		v = h.svc.GetBusScheduleByRides(ctx, id)
	case buscache.BusLocation:
		v = h.svc.GetBusLocation(ctx, id)
	case buscache.BusLines:
		v = h.svc.GetBusLines(ctx)
	case buscache.Stations:
		v = h.svc.GetStations(ctx)
	default:
		writeError(w, http.StatusNotFound, "unknown dataset")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d := buscache.Dataset(chi.URLParam(r, "dataset"))

	var (
		v   any
		err error
	)
	switch d {
	case buscache.LiveBuses:
		v, err = h.svc.RefreshLiveBuses(ctx)
	case buscache.AllLines:
		v, err = h.svc.RefreshAllLines(ctx)
	case buscache.LineDetails:
		id := r.URL.Query().Get("id")
		if id == "" {
			writeError(w, http.StatusBadRequest, "id is required")
			return
		}
		v, err = h.svc.RefreshLineDetails(ctx, id)
	default:
		writeError(w, http.StatusNotFound, "dataset cannot be refreshed")
		return
	}
	if err != nil {
		h.logger.Warn(ctx, "forced refresh failed", observe.F("dataset", string(d)), observe.Err(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *handlers) clear(w http.ResponseWriter, r *http.Request) {
	d := buscache.Dataset(r.URL.Query().Get("dataset"))
	if d != "" && !known(d) {
		writeError(w, http.StatusBadRequest, "unknown dataset")
		return
	}
	h.svc.ClearCache(r.Context(), d)
	w.WriteHeader(http.StatusNoContent)
}

func known(d buscache.Dataset) bool {
	for _, k := range buscache.Datasets {
		if k == d {
			return true
		}
	}
	return false
}
