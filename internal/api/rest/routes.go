// Package rest exposes the ledger and status surface over HTTP JSON.
package rest

import "net/http"

// Service defines the route handlers consumed by this route module.
type Service interface {
	HandleDonationCreate(w http.ResponseWriter, r *http.Request)
	HandleGiftCreate(w http.ResponseWriter, r *http.Request)
	HandleSystemDonationCreate(w http.ResponseWriter, r *http.Request)
	HandleBonusCreate(w http.ResponseWriter, r *http.Request)
	HandleEventToggle(w http.ResponseWriter, r *http.Request)
	HandleStatus(w http.ResponseWriter, r *http.Request)
	HandleHistory(w http.ResponseWriter, r *http.Request)
	HandleHealth(w http.ResponseWriter, r *http.Request)
}

// RegisterRoutes wires the API routes into the provided mux.
func RegisterRoutes(mux *http.ServeMux, service Service) {
	if mux == nil || service == nil {
		return
	}
	mux.HandleFunc("POST /v1/donations", service.HandleDonationCreate)
	mux.HandleFunc("POST /v1/gifts", service.HandleGiftCreate)
	mux.HandleFunc("POST /v1/system-donations", service.HandleSystemDonationCreate)
	mux.HandleFunc("POST /v1/bonuses", service.HandleBonusCreate)
	mux.HandleFunc("POST /v1/events/{seq}/toggle", service.HandleEventToggle)
	mux.HandleFunc("GET /v1/status", service.HandleStatus)
	mux.HandleFunc("GET /v1/history", service.HandleHistory)
	mux.HandleFunc("GET /healthz", service.HandleHealth)
}
