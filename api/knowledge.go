package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/deskhive/kbase/internal/ingest"
	"github.com/deskhive/kbase/internal/knowledge"
	"github.com/deskhive/kbase/internal/log"
)

// maxIngestBody caps an ingest request at 32 MiB. Batches are expected to
// be paged by the caller well below this.
const maxIngestBody = 32 << 20

// Searcher is the slice of the engine the handler needs.
type Searcher interface {
	Search(ctx context.Context, q knowledge.Query) ([]knowledge.Result, error)
}

// ContentStore is the slice of the knowledge store the handler needs.
type ContentStore interface {
	Delete(ctx context.Context, chunkable knowledge.Identity) error
	TagContainer(ctx context.Context, container knowledge.Identity, tags []string) error
}

// Ingestor runs a batch ingestion.
type Ingestor interface {
	Run(ctx context.Context, items []ingest.Item) (ingest.Report, error)
}

// KnowledgeHandler handles ingest, search, tagging, and deletion.
type KnowledgeHandler struct {
	ingestor Ingestor
	store    ContentStore
	engine   Searcher
	embedder knowledge.Embedder
	logger   log.Logger
}

// NewKnowledgeHandler creates the handler.
func NewKnowledgeHandler(ingestor Ingestor, store ContentStore, engine Searcher, embedder knowledge.Embedder, logger log.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{
		ingestor: ingestor,
		store:    store,
		engine:   engine,
		embedder: embedder,
		logger:   logger,
	}
}

// RegisterRoutes registers knowledge routes on the given mux.
func (h *KnowledgeHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/ingest", h.ingest)
	mux.HandleFunc("POST /api/search", h.search)
	mux.HandleFunc("PUT /api/containers/{type}/{id}/tags", h.tagContainer)
	mux.HandleFunc("DELETE /api/chunkables/{type}/{id}", h.deleteChunkable)
}

func (h *KnowledgeHandler) ingest(w http.ResponseWriter, r *http.Request) {
	items, err := ingest.DecodeItems(http.MaxBytesReader(w, r.Body, maxIngestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(items) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "no items to ingest")
		return
	}

	report, err := h.ingestor.Run(r.Context(), items)
	if err != nil {
		h.logger.Error("ingestion run aborted", "error", err,
			"request_id", RequestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "ingest_failed", "ingestion aborted")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// searchRequest is the POST /api/search payload.
type searchRequest struct {
	Query   string `json:"query"`
	Limit   int32  `json:"limit,omitempty"`
	AgentID int64  `json:"agent_id,omitempty"`
	Tag     string `json:"tag,omitempty"`
}

// searchResponse wraps the ranked results.
type searchResponse struct {
	Results []knowledge.Result `json:"results"`
}

func (h *KnowledgeHandler) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}

	vector, err := h.embedder.Embed(r.Context(), req.Query)
	if err != nil {
		h.logger.Error("query embedding failed", "error", err,
			"request_id", RequestIDFromContext(r.Context()))
		writeError(w, http.StatusBadGateway, "embedding_failed", "could not embed query")
		return
	}

	results, err := h.engine.Search(r.Context(), knowledge.Query{
		Vector:  vector,
		Limit:   req.Limit,
		AgentID: req.AgentID,
		Tag:     req.Tag,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusGatewayTimeout, "search_timeout", "search timed out")
			return
		}
		h.logger.Error("search failed", "error", err,
			"request_id", RequestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "search_failed", "search failed")
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: results})
}

// tagContainerRequest is the PUT /api/containers/{type}/{id}/tags payload.
type tagContainerRequest struct {
	Tags []string `json:"tags"`
}

func (h *KnowledgeHandler) tagContainer(w http.ResponseWriter, r *http.Request) {
	container, ok := pathIdentity(w, r)
	if !ok {
		return
	}

	var req tagContainerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.store.TagContainer(r.Context(), container, req.Tags); err != nil {
		h.logger.Error("container tagging failed", "error", err,
			"type", container.Type, "id", container.ID)
		writeError(w, http.StatusBadRequest, "tagging_failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *KnowledgeHandler) deleteChunkable(w http.ResponseWriter, r *http.Request) {
	chunkable, ok := pathIdentity(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), chunkable); err != nil {
		h.logger.Error("chunkable deletion failed", "error", err,
			"type", chunkable.Type, "id", chunkable.ID)
		writeError(w, http.StatusInternalServerError, "delete_failed", "could not delete chunkable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pathIdentity parses the {type} and {id} path segments. Writes the error
// response itself and returns false on failure.
func pathIdentity(w http.ResponseWriter, r *http.Request) (knowledge.Identity, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "id must be a positive integer")
		return knowledge.Identity{}, false
	}
	return knowledge.Identity{Type: knowledge.Type(r.PathValue("type")), ID: id}, true
}
