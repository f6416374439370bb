package httpapi

import (
	"archive/zip"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/chatvault/chatvault/internal/export"
)

type exportRequest struct {
	Redact bool `json:"redact"`
}

func decodeExportRequest(r *http.Request) (exportRequest, error) {
	var req exportRequest
	if r.ContentLength == 0 {
		return req, nil
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		return exportRequest{}, err
	}
	return req, nil
}

// handleExportMarkdown serves `GET /api/export/markdown?id=...`, the
// per-conversation document (spec.md §6).
func (srv *Server) handleExportMarkdown(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	redact := r.URL.Query().Get("redact") == "true"

	doc, err := export.ConversationDocument(r.Context(), srv.store, id, export.Options{Redact: redact})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, doc)
}

// handleExportJSONL serves `POST /api/export/jsonl`, the bulk message
// stream (spec.md §6).
func (srv *Server) handleExportJSONL(w http.ResponseWriter, r *http.Request) {
	req, err := decodeExportRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	if err := export.BulkJSONL(r.Context(), srv.store, w, export.Options{Redact: req.Redact}); err != nil {
		srv.logger.Error("httpapi: bulk jsonl export failed", "error", err)
	}
}

// handleExportPairs serves `POST /api/export/pairs`, the training-pairs
// export across every ingested conversation (spec.md §6).
func (srv *Server) handleExportPairs(w http.ResponseWriter, r *http.Request) {
	req, err := decodeExportRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pairs, err := export.BulkTrainingPairs(r.Context(), srv.store, export.Options{Redact: req.Redact})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pairs)
}

// handleExportObsidian serves `POST /api/export/obsidian`: builds the
// vault directory into a scratch dir, then streams it back as a zip
// archive since there is no shared filesystem with an HTTP client.
func (srv *Server) handleExportObsidian(w http.ResponseWriter, r *http.Request) {
	req, err := decodeExportRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	dir, err := os.MkdirTemp("", "chatvault-vault-*")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to stage vault export")
		return
	}
	defer os.RemoveAll(dir)

	if _, err := export.VaultDirectory(r.Context(), srv.store, dir, export.Options{Redact: req.Redact}); err != nil {
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="vault.zip"`)
	w.WriteHeader(http.StatusOK)

	zw := zip.NewWriter(w)
	defer zw.Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		srv.logger.Error("httpapi: read vault dir failed", "error", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := addFileToZip(zw, filepath.Join(dir, entry.Name()), entry.Name()); err != nil {
			srv.logger.Error("httpapi: zip vault file failed", "file", entry.Name(), "error", err)
			return
		}
	}
}

func addFileToZip(zw *zip.Writer, path, name string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	f, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	return err
}
