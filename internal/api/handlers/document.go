package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/convictionhq/conviction/internal/corpus"
)

// maxUploadBytes bounds one document upload.
const maxUploadBytes = 16 << 20

type DocumentHandler struct {
	ingestor *corpus.Ingestor
}

func NewDocumentHandler(ingestor *corpus.Ingestor) *DocumentHandler {
	return &DocumentHandler{ingestor: ingestor}
}

// Upload ingests a multipart document into the engagement's evidence
// corpus. Re-uploading the same file reports duplicates instead of
// storing a second copy.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	id, ok := engagementID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid engagement id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "a file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	result, err := h.ingestor.IngestDocument(r.Context(), id, header.Filename, mimeType, data)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// SearchCorpus runs a similarity query over the engagement's ingested
// evidence.
func (h *DocumentHandler) SearchCorpus(w http.ResponseWriter, r *http.Request) {
	id, ok := engagementID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid engagement id")
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "a q query parameter is required")
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 50 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 50")
			return
		}
		limit = n
	}

	hits, err := h.ingestor.SearchCorpus(r.Context(), id, query, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": hits, "count": len(hits)})
}
