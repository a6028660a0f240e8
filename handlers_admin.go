package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// HandleAdminLogin exchanges the shared admin secret for a short-lived token.
// POST /api/admin/login
func (a *App) HandleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		SecretKey string `json:"secretKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.SecretKey == "" {
		writeFailure(w, http.StatusBadRequest, "secretKey is required")
		return
	}
	token, err := a.adminLogin(in.SecretKey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Admin login successful", map[string]string{"token": token})
}

// HandleListPendingBrands lists brands awaiting review, oldest first.
// GET /api/admin/brands/pending
func (a *App) HandleListPendingBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := a.listPendingBrands()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]interface{}, 0, len(brands))
	for _, b := range brands {
		out = append(out, brandResponse(b))
	}
	writeSuccess(w, http.StatusOK, "Pending brands retrieved", map[string]interface{}{
		"brands": out,
		"count":  len(out),
	})
}

func brandIDFromRequest(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}

type reviewDecision struct {
	Note string `json:"note"`
}

// HandleApproveBrand approves a brand awaiting review.
// POST /api/admin/brands/{id}/approve
func (a *App) HandleApproveBrand(w http.ResponseWriter, r *http.Request) {
	id, ok := brandIDFromRequest(r)
	if !ok {
		writeFailure(w, http.StatusBadRequest, "Invalid brand id")
		return
	}
	var in reviewDecision
	_ = json.NewDecoder(r.Body).Decode(&in) // note is optional

	brand, err := a.approveBrand(id, in.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Brand approved", map[string]interface{}{
		"brand": brandResponse(brand),
	})
}

// HandleRejectBrand rejects a brand awaiting review.
// POST /api/admin/brands/{id}/reject
func (a *App) HandleRejectBrand(w http.ResponseWriter, r *http.Request) {
	id, ok := brandIDFromRequest(r)
	if !ok {
		writeFailure(w, http.StatusBadRequest, "Invalid brand id")
		return
	}
	var in reviewDecision
	_ = json.NewDecoder(r.Body).Decode(&in)

	brand, err := a.rejectBrand(id, in.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Brand rejected", map[string]interface{}{
		"brand": brandResponse(brand),
	})
}
