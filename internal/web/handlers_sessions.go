package web

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/closeplan/internal/core"
	"github.com/JonMunkholm/closeplan/internal/sheet"
)

// multipartMemory caps the part of a multipart form held in memory; the
// rest spills to temporary files.
const multipartMemory = 32 << 20

// multipartOverhead is allowed on top of the file size limit for the form
// envelope.
const multipartOverhead = 1 << 20

type openSessionRequest struct {
	Profile string `json:"profile" validate:"required"`
	Scope   string `json:"scope"`
}

type editsRequest struct {
	RecordID string      `json:"recordId"`
	Field    string      `json:"field"`
	Value    string      `json:"value"`
	Edits    []core.Edit `json:"edits" validate:"omitempty,dive"`
}

type deleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

// handleHealth reports liveness plus session and import load.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":   "ok",
		"sessions": s.imports.SessionCount(),
		"imports":  s.imports.LimiterStatus(),
	})
}

// handleListProfiles returns the registered import profiles.
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"profiles": s.imports.ListProfiles()})
}

// handleDownloadTemplate returns an xlsx template with picklist dropdowns.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "profile")
	p, ok := core.Get(key)
	if !ok {
		s.respondError(w, r, fmt.Errorf("%w: %s", core.ErrUnknownProfile, key))
		return
	}

	var buf bytes.Buffer
	if err := sheet.WriteTemplate(&buf, p); err != nil {
		s.respondError(w, r, fmt.Errorf("write template %s: %w", key, err))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_template.xlsx"`, key))
	_, _ = w.Write(buf.Bytes())
}

// handleOpenSession starts an import session for a profile and scope.
func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	snap, err := s.imports.OpenSession(WithRequestMetadata(r.Context(), r), req.Profile, req.Scope)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, snap)
}

// handleGetSession returns the session snapshot with merged records.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.imports.Snapshot(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, snap)
}

// handleCloseSession discards a session and its draft.
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.imports.CloseSession(chi.URLParam(r, "sessionID")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImport decodes the uploaded spreadsheet into the session.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.respondError(w, r, core.ErrFileTooLarge)
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: %v", core.ErrNoFile, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, core.ErrNoFile)
		return
	}
	defer file.Close()

	report, err := s.imports.Import(WithRequestMetadata(r.Context(), r), id, header.Filename, file)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, report)
}

// handleEdits applies one edit or a batch. A batch is all-or-nothing.
func (s *Server) handleEdits(w http.ResponseWriter, r *http.Request) {
	var req editsRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	edits := req.Edits
	if len(edits) == 0 {
		single := core.Edit{RecordID: req.RecordID, Field: req.Field, Value: req.Value}
		if err := s.validate.Struct(single); err != nil {
			s.respondError(w, r, fmt.Errorf("%w: %w", errInvalidRequest, err))
			return
		}
		edits = []core.Edit{single}
	}

	records, err := s.imports.ApplyEdits(WithRequestMetadata(r.Context(), r), chi.URLParam(r, "sessionID"), edits)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"records": records})
}

// handleDeleteRecords removes records from the draft.
func (s *Server) handleDeleteRecords(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	deleted, err := s.imports.DeleteRecords(WithRequestMetadata(r.Context(), r), chi.URLParam(r, "sessionID"), req.IDs)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]int{"deleted": deleted})
}

// handleCommit saves the session. A refusal answers 422 with every
// offending row.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	result, err := s.imports.Commit(WithRequestMetadata(r.Context(), r), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, result)
}
