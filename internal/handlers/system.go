package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"dashfin/internal/database"
	"dashfin/internal/version"
)

// JobStatus returns the status of a background job (for polling)
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		fail(w, r, http.StatusBadRequest, "ID de job inválido")
		return
	}

	job, err := h.db.GetJob(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		fail(w, r, http.StatusNotFound, "Job não encontrado")
		return
	}
	if err != nil {
		internalError(w, r, "job_get_error", err)
		return
	}
	ok(w, r, job)
}

type versionResponse struct {
	version.Info
	SchemaVersion uint `json:"schemaVersion"`
	SchemaDirty   bool `json:"schemaDirty,omitempty"`
}

func (h *Handler) APIVersion(w http.ResponseWriter, r *http.Request) {
	schema, dirty, err := h.db.SchemaVersion()
	if err != nil {
		internalError(w, r, "schema_version_error", err)
		return
	}
	ok(w, r, versionResponse{Info: version.Get(), SchemaVersion: schema, SchemaDirty: dirty})
}

// Healthz reports whether the store is reachable
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		internalError(w, r, "healthz_ping_error", err)
		return
	}
	ok(w, r, map[string]string{"status": "ok"})
}
