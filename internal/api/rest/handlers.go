package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/cinderworks/mechvolt/internal/mech/event"
	"github.com/cinderworks/mechvolt/internal/mech/projection"
	"github.com/cinderworks/mechvolt/internal/mech/service"
	perrors "github.com/cinderworks/mechvolt/internal/platform/errors"
	"github.com/cinderworks/mechvolt/internal/statuscache"
	"github.com/cinderworks/mechvolt/internal/storage/cursor"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Ledger is the write-side surface the API depends on. The append gateway
// implements this.
type Ledger interface {
	AppendDonation(ctx context.Context, donor string, amountMinor int64) (event.Event, error)
	AppendPowerGift(ctx context.Context, campaignID string, powerMinor int64) (event.Event, error)
	AppendSystemDonation(ctx context.Context, eventName string, powerMinor int64) (event.Event, error)
	AppendExactHitBonus(ctx context.Context, fromLevel, toLevel int, powerMinor int64) (event.Event, error)
	DeleteOrRestore(ctx context.Context, targetSeq uint64) (service.ToggleResult, error)
}

// StatusReader serves cached snapshots. The status cache implements this.
type StatusReader interface {
	Get(ctx context.Context, variant statuscache.Variant, force bool) (statuscache.Result, error)
}

// HistoryLister pages raw ledger events. The event store implements this.
type HistoryLister interface {
	ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error)
}

// Handler implements Service on top of the gateway, cache, and store.
type Handler struct {
	ledger  Ledger
	status  StatusReader
	history HistoryLister
}

// NewHandler builds the API handler.
func NewHandler(ledger Ledger, status StatusReader, history HistoryLister) (*Handler, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if status == nil {
		return nil, fmt.Errorf("status reader is required")
	}
	if history == nil {
		return nil, fmt.Errorf("history lister is required")
	}
	return &Handler{ledger: ledger, status: status, history: history}, nil
}

type donationRequest struct {
	Donor       string `json:"donor"`
	AmountMinor int64  `json:"amount_minor"`
}

type giftRequest struct {
	CampaignID string `json:"campaign_id"`
	PowerMinor int64  `json:"power_minor"`
}

type systemDonationRequest struct {
	EventName  string `json:"event_name"`
	PowerMinor int64  `json:"power_minor"`
}

type bonusRequest struct {
	FromLevel  int   `json:"from_level"`
	ToLevel    int   `json:"to_level"`
	PowerMinor int64 `json:"power_minor"`
}

type eventResponse struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
}

type statusResponse struct {
	projection.Snapshot
	CacheAgeSeconds float64 `json:"cache_age_seconds"`
	FromCache       bool    `json:"from_cache"`
}

type historyEntry struct {
	Seq       uint64          `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

type historyResponse struct {
	Events []historyEntry `json:"events"`
	// NextCursor feeds the cursor parameter of the next page. Empty when
	// this page is empty.
	NextCursor string `json:"next_cursor,omitempty"`
}

// HandleDonationCreate records a viewer donation.
func (h *Handler) HandleDonationCreate(w http.ResponseWriter, r *http.Request) {
	var req donationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	stored, err := h.ledger.AppendDonation(r.Context(), req.Donor, req.AmountMinor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newEventResponse(stored))
}

// HandleGiftCreate records a campaign power gift.
func (h *Handler) HandleGiftCreate(w http.ResponseWriter, r *http.Request) {
	var req giftRequest
	if !decodeBody(w, r, &req) {
		return
	}
	stored, err := h.ledger.AppendPowerGift(r.Context(), req.CampaignID, req.PowerMinor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newEventResponse(stored))
}

// HandleSystemDonationCreate records a power grant issued by the system.
func (h *Handler) HandleSystemDonationCreate(w http.ResponseWriter, r *http.Request) {
	var req systemDonationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	stored, err := h.ledger.AppendSystemDonation(r.Context(), req.EventName, req.PowerMinor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newEventResponse(stored))
}

// HandleBonusCreate records an exact-threshold-hit bonus.
func (h *Handler) HandleBonusCreate(w http.ResponseWriter, r *http.Request) {
	var req bonusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	stored, err := h.ledger.AppendExactHitBonus(r.Context(), req.FromLevel, req.ToLevel, req.PowerMinor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newEventResponse(stored))
}

// HandleEventToggle deletes or restores the targeted monetary event.
func (h *Handler) HandleEventToggle(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.ParseUint(r.PathValue("seq"), 10, 64)
	if err != nil || seq == 0 {
		writeError(w, perrors.New(perrors.CodeRequestInvalid, "seq must be a positive integer"))
		return
	}
	result, err := h.ledger.DeleteOrRestore(r.Context(), seq)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleStatus serves the cached status snapshot. precise=true keeps
// sub-unit amounts; force=true bypasses the TTL.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	variant := statuscache.VariantWhole
	if r.URL.Query().Get("precise") == "true" {
		variant = statuscache.VariantPrecise
	}
	force := r.URL.Query().Get("force") == "true"

	result, err := h.status.Get(r.Context(), variant, force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Snapshot:        result.Snapshot,
		CacheAgeSeconds: result.CacheAge.Seconds(),
		FromCache:       result.FromCache,
	})
}

// HandleHistory pages raw ledger events in sequence order.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, perrors.New(perrors.CodeRequestInvalid, "limit must be a positive integer"))
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}
	var afterSeq uint64
	if token := r.URL.Query().Get("cursor"); token != "" {
		decoded, err := cursor.Decode(token)
		if err != nil {
			writeError(w, perrors.Wrap(perrors.CodeRequestInvalid, "decode cursor", err))
			return
		}
		afterSeq = decoded.AfterSeq
	} else if raw := r.URL.Query().Get("after_seq"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, perrors.New(perrors.CodeRequestInvalid, "after_seq must be a non-negative integer"))
			return
		}
		afterSeq = parsed
	}

	events, err := h.history.ListEvents(r.Context(), afterSeq, limit)
	if err != nil {
		writeError(w, perrors.Wrap(perrors.CodeLedgerIO, "list events", err))
		return
	}

	resp := historyResponse{Events: make([]historyEntry, 0, len(events))}
	for _, evt := range events {
		resp.Events = append(resp.Events, historyEntry{
			Seq:       evt.Seq,
			Timestamp: evt.Timestamp,
			Type:      string(evt.Type),
			Payload:   json.RawMessage(evt.PayloadJSON),
		})
	}
	if len(events) > 0 {
		token, err := cursor.Encode(cursor.Cursor{AfterSeq: events[len(events)-1].Seq})
		if err != nil {
			writeError(w, perrors.Wrap(perrors.CodeUnknown, "encode cursor", err))
			return
		}
		resp.NextCursor = token
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleHealth reports process liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func newEventResponse(evt event.Event) eventResponse {
	return eventResponse{Seq: evt.Seq, Timestamp: evt.Timestamp, Type: string(evt.Type)}
}

// decodeBody parses the JSON request body, writing the error response
// itself when parsing fails.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, perrors.Wrap(perrors.CodeRequestInvalid, "decode request body", err))
		return false
	}
	return true
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Meta    map[string]string `json:"meta,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	code := perrors.CodeOf(err)
	detail := errorDetail{Code: string(code), Message: err.Error()}
	var perr *perrors.Error
	if errors.As(err, &perr) {
		detail.Message = perr.Message
		detail.Meta = perr.Metadata
	}
	writeJSON(w, code.HTTPStatus(), errorBody{Error: detail})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response body: %v", err)
	}
}
