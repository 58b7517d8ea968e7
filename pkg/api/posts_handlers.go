package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/iota-community/workshops/pkg/core"
	"github.com/iota-community/workshops/pkg/i18n"
	"github.com/iota-community/workshops/pkg/wallet"
)

type submitPostRequest struct {
	Content string `json:"content"`
	// Sender is the account signing through an external wallet. Empty means the service account.
	Sender string `json:"sender,omitempty"`
}

type effectsJSON struct {
	Digest      string          `json:"digest"`
	Status      string          `json:"status"`
	StatusError string          `json:"status_error,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

type submitPostResponse struct {
	Post    *core.Post  `json:"post,omitempty"`
	Effects effectsJSON `json:"effects"`
}

type pendingSignatureJSON struct {
	RequestID string `json:"request_id"`
	Sender    string `json:"sender"`
	TxBytes   string `json:"tx_bytes"`
	CreatedAt int64  `json:"created_at"`
	ExpiresAt int64  `json:"expires_at"`
}

type postsResponse struct {
	Posts []core.Post `json:"posts"`
	Total int         `json:"total"`
}

type sponsorConfigResponse struct {
	GasBudget        uint64 `json:"gas_budget"`
	GasBudgetDisplay string `json:"gas_budget_display"`
	ReservationSecs  int64  `json:"reservation_lifetime_secs"`
	Target           string `json:"target"`
	MaxContentLength int    `json:"max_content_length"`
	ServiceAddress   string `json:"service_address,omitempty"`
}

func convertEffects(effects core.Effects) effectsJSON {
	res := effectsJSON{
		Digest:      effects.Digest,
		Status:      effects.Status,
		StatusError: effects.StatusError,
	}
	if json.Valid(effects.Raw) {
		res.Raw = effects.Raw
	}
	return res
}

func convertPendingSignature(p wallet.PendingSignature) pendingSignatureJSON {
	return pendingSignatureJSON{
		RequestID: p.ID,
		Sender:    p.Sender.String(),
		TxBytes:   base64.StdEncoding.EncodeToString(p.TxBytes),
		CreatedAt: p.CreatedAt.Unix(),
		ExpiresAt: p.ExpiresAt.Unix(),
	}
}

func (h *Handler) submitResponse(effects core.Effects) submitPostResponse {
	res := submitPostResponse{Effects: convertEffects(effects)}
	if post, ok := h.feed.Find(effects.Digest); ok {
		res.Post = &post
	}
	return res
}

// SubmitPost publishes a post. Without a sender the service account signs it right away,
// otherwise a signature request is created and 202 is returned with the bytes to sign.
func (h *Handler) SubmitPost(w http.ResponseWriter, r *http.Request) {
	var req submitPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, badRequest("invalid request body: %v", err))
		return
	}
	if req.Sender == "" {
		if h.service == nil {
			writeError(w, r, badRequest("sender is required"))
			return
		}
		effects, err := h.submitter.Submit(r.Context(), h.service, h.service.Address(), req.Content)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, h.submitResponse(effects))
		return
	}
	sender, err := core.ParseAddress(req.Sender)
	if err != nil {
		writeError(w, r, badRequest("invalid sender: %v", err))
		return
	}
	if h.service != nil && sender == h.service.Address() {
		effects, err := h.submitter.Submit(r.Context(), h.service, sender, req.Content)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, h.submitResponse(effects))
		return
	}
	pending, out, err := h.submitAsync(r.Context(), sender, req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if pending.ID == "" {
		writeJSON(w, http.StatusOK, h.submitResponse(out.effects))
		return
	}
	writeJSON(w, http.StatusAccepted, convertPendingSignature(pending))
}

// GetPosts returns the feed, newest first.
func (h *Handler) GetPosts(w http.ResponseWriter, r *http.Request) {
	posts := h.feed.Posts()
	total := len(posts)
	if value := r.URL.Query().Get("limit"); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil || limit <= 0 {
			writeError(w, r, badRequest("invalid limit %q", value))
			return
		}
		if !h.limits.isBulkQuantityAllowed(limit) {
			writeError(w, r, badRequest("max limit is %d", h.limits.BulkLimits))
			return
		}
		if limit < len(posts) {
			posts = posts[:limit]
		}
	}
	etag := postsETag(posts, total)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, postsResponse{Posts: posts, Total: total})
}

// GetPost looks a post up by the digest of the transaction that created it.
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, ok := h.feed.Find(r.PathValue("txid"))
	if !ok {
		writeError(w, r, errPostNotFound)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func postsETag(posts []core.Post, total int) string {
	d := xxhash.New()
	fmt.Fprintf(d, "%d", total)
	for _, p := range posts {
		d.WriteString(p.TransactionID)
		d.WriteString("\n")
	}
	return fmt.Sprintf(`"%016x"`, d.Sum64())
}

func (h *Handler) GetSponsorConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.submitter.Config()
	res := sponsorConfigResponse{
		GasBudget:        cfg.GasBudget,
		GasBudgetDisplay: i18n.IOTAAmount(cfg.GasBudget),
		ReservationSecs:  int64(cfg.ReservationLifetime / time.Second),
		Target:           cfg.Target.String(),
		MaxContentLength: cfg.MaxContentLength,
	}
	if h.service != nil {
		res.ServiceAddress = h.service.Address().String()
	}
	writeJSON(w, http.StatusOK, res)
}
