package api

import (
	"encoding/json"
	"net/http"

	"github.com/iota-community/workshops/pkg/core"
)

type approveSignatureRequest struct {
	Signature string `json:"signature"`
}

type effectsResponse struct {
	Sender  string      `json:"sender"`
	Effects effectsJSON `json:"effects"`
}

func (h *Handler) GetSignatureRequest(w http.ResponseWriter, r *http.Request) {
	pending, err := h.relay.Pending(r.PathValue("id"))
	if err != nil {
		writeError(w, r, signatureError(err))
		return
	}
	writeJSON(w, http.StatusOK, convertPendingSignature(pending))
}

// ApproveSignature hands the signature made by an external wallet to the waiting submission
// and responds with the execution result.
func (h *Handler) ApproveSignature(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req approveSignatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, badRequest("invalid request body: %v", err))
		return
	}
	if req.Signature == "" {
		writeError(w, r, badRequest("signature is required"))
		return
	}
	if err := h.relay.Approve(id, req.Signature); err != nil {
		writeError(w, r, signatureError(err))
		return
	}
	effects, err := h.awaitOutcome(r.Context(), id)
	if err != nil {
		writeError(w, r, signatureError(err))
		return
	}
	writeJSON(w, http.StatusOK, h.submitResponse(effects))
}

// RejectSignature declines a signature request, the reserved gas is left to expire.
func (h *Handler) RejectSignature(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.relay.Reject(id); err != nil {
		writeError(w, r, signatureError(err))
		return
	}
	// the submission always ends with SignatureRejected here.
	_, _ = h.awaitOutcome(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

// GetLastEffects returns the effects most recently reported to the external wallet of an account.
func (h *Handler) GetLastEffects(w http.ResponseWriter, r *http.Request) {
	sender, err := core.ParseAddress(r.PathValue("address"))
	if err != nil {
		writeError(w, r, badRequest("invalid address: %v", err))
		return
	}
	effects, ok := h.relay.LastEffects(sender)
	if !ok {
		writeError(w, r, core.ErrEntityNotFound)
		return
	}
	writeJSON(w, http.StatusOK, effectsResponse{Sender: sender.String(), Effects: convertEffects(effects)})
}
