package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/twinbase/twinbase-dlt/pkg/twin"
	"github.com/twinbase/twinbase-dlt/pkg/types"
	"github.com/twinbase/twinbase-dlt/pkg/util"
	"github.com/twinbase/twinbase-dlt/pkg/verifier"
)

// maxDocumentBytes bounds the request body of /api/validate and any document
// it fetches
const maxDocumentBytes = twin.MaxDocumentBytes

// remoteDocument records whether the fetched document hit the size limit
type remoteDocument struct {
	loader   *twin.LocationLoader
	tooLarge bool
}

func (d *remoteDocument) Load(ctx context.Context) ([]byte, error) {
	raw, err := d.loader.Load(ctx)
	if errors.Is(err, util.ErrTooLarge) {
		d.tooLarge = true
	}
	return raw, err
}

// handleValidate runs a validation for an inline document or a document URL
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req types.ValidateRequestV1
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDocumentBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse request: "+err.Error())
		return
	}

	var (
		loader twin.DocumentLoader
		remote *remoteDocument
	)
	switch {
	case req.DocumentURL != "" && req.Document != "":
		writeError(w, http.StatusBadRequest, "only one of documentUrl and document may be set")
		return
	case req.DocumentURL != "":
		// Only remote documents; the API never reads local files
		if !util.IsURL(req.DocumentURL) {
			writeError(w, http.StatusBadRequest, "documentUrl must be an http(s) URL")
			return
		}
		if !s.documentHostAllowed(req.DocumentURL) {
			writeError(w, http.StatusForbidden, "documentUrl host is not allowed")
			return
		}
		remote = &remoteDocument{loader: &twin.LocationLoader{Location: req.DocumentURL, MaxBytes: maxDocumentBytes}}
		loader = remote
	case req.Document != "":
		loader = twin.StaticLoader(req.Document)
	default:
		writeError(w, http.StatusBadRequest, "documentUrl or document is required")
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	validation, err := s.validator.ValidateTwin(ctx, loader)
	if errors.Is(err, verifier.ErrValidationInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.logger.Sugar().Errorw("Validation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "validation failed")
		return
	}
	if remote != nil && remote.tooLarge {
		writeError(w, http.StatusRequestEntityTooLarge, validation.Error)
		return
	}

	s.logger.Sugar().Infow("Validation complete",
		"id", validation.ID,
		"hash", validation.Hash,
		"success", validation.Success,
	)
	writeJSON(w, http.StatusOK, validation)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.validator.Status())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.validator.Reset(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.validator.Status())
}

// handleProof looks up the inclusion proof for a twin hash
func (s *Server) handleProof(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	hash, err := util.ParseHash(r.URL.Query().Get("hash"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hash: "+err.Error())
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	proof, err := s.validator.GetMerkleProof(ctx, hash)
	if err != nil {
		s.logger.Sugar().Errorw("Failed to load merkle tree", "error", err)
		writeError(w, http.StatusServiceUnavailable, "merkle tree unavailable")
		return
	}
	writeJSON(w, http.StatusOK, proof.Response())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponseV1{Error: msg})
}
