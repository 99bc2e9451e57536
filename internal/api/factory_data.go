package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/factory-data-core/internal/apperr"
	"github.com/nerrad567/factory-data-core/internal/factorydata"
)

// handleCreate provisions a device. Returns 201 with the stored record, or
// 502/503 carrying the stored record when only the SWM mirror failed.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req factorydata.CreateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.service.Create(r.Context(), req, actorFrom(r))
	s.writeResult(w, r, http.StatusCreated, result, err)
}

// handleCreateGuest provisions a device together with its vehicle. A VIN is
// required.
func (s *Server) handleCreateGuest(w http.ResponseWriter, r *http.Request) {
	var req factorydata.CreateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.service.CreateGuest(r.Context(), req, actorFrom(r))
	s.writeResult(w, r, http.StatusCreated, result, err)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	page, err := s.service.Search(r.Context(), searchQueryFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	items := page.Items
	if items == nil {
		items = []factorydata.DeviceFactoryData{}
	}
	writeSuccess(w, r, http.StatusOK, items, &Pagination{
		FirstPage: page.IsFirst(),
		LastPage:  page.IsLast(),
		Count:     page.Total,
	})
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.service.Count(r.Context(), searchQueryFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, map[string]int64{"count": n}, nil)
}

func (s *Server) handleStateCount(w http.ResponseWriter, r *http.Request) {
	counts, err := s.service.CountByState(r.Context(), searchQueryFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, counts, nil)
}

// handleHistory lists the newest history entries of one device.
// Optional query parameter: limit.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, r, apperr.ErrInvalidRequest.Withf("limit %q is not a non-negative integer", raw))
			return
		}
		limit = n
	}

	entries, err := s.service.History(r.Context(), chi.URLParam(r, "serial"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []factorydata.HistoryEntry{}
	}
	writeSuccess(w, r, http.StatusOK, entries, nil)
}

// writeResult writes the outcome of a state-changing operation. When the
// local change committed but the mirror failed, the record is returned
// alongside the error.
func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, status int, result factorydata.Result, err error) {
	if err != nil {
		if result.Record != nil {
			s.writePartial(w, r, result, err)
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, r, status, result, nil)
}

func searchQueryFrom(r *http.Request) factorydata.SearchQuery {
	q := r.URL.Query()
	return factorydata.SearchQuery{
		InputType:   q.Get("input_type"),
		Input:       q.Get("input"),
		State:       q.Get("state"),
		LikeFields:  q.Get("like_fields"),
		LikeValues:  q.Get("like_values"),
		RangeFields: q.Get("range_fields"),
		RangeValues: q.Get("range_values"),
		SortBy:      q.Get("sort_by"),
		OrderBy:     q.Get("order_by"),
		Page:        q.Get("page"),
		Size:        q.Get("size"),
	}
}

// decodeBody decodes a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return apperr.ErrInvalidRequest.Withf("request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.ErrInvalidRequest.Withf("invalid JSON body").Wrap(err)
	}
	return nil
}

// actorFrom returns the token subject recorded as factory admin.
func actorFrom(r *http.Request) string {
	if claims := claimsFrom(r.Context()); claims != nil {
		return claims.Subject
	}
	return ""
}
