package api

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/iota-community/workshops/pkg/core"
)

// GetObjectRef returns the latest known reference of an object, letting a wallet refresh
// gas coins and other objects whose version it holds is stale.
func (h *Handler) GetObjectRef(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseAddress(r.PathValue("id"))
	if err != nil {
		writeError(w, r, badRequest("invalid object id: %v", err))
		return
	}
	var (
		ref   core.ObjectRef
		found bool
	)
	if h.objects != nil {
		ref, err = h.objects.GetObjectRef(r.Context(), id)
		switch {
		case err == nil:
			found = true
		case !errors.Is(err, core.ErrEntityNotFound):
			writeError(w, r, err)
			return
		}
	}
	// effects reported to the service account may be newer than the node's view.
	if h.service != nil {
		if cached, ok := h.service.ObjectRef(id); ok && (!found || cached.Version > ref.Version) {
			ref, found = cached, true
		}
	}
	if !found {
		writeError(w, r, core.ErrEntityNotFound)
		return
	}
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	core.EncodeObjectRef(e, ref)
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(e.Bytes())
}
