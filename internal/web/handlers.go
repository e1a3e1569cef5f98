package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/chflat/internal/core"
	"github.com/JonMunkholm/chflat/internal/logging"
)

// maxJSONBody bounds request bodies of the JSON endpoints.
const maxJSONBody = 1 << 20

// decodeRequest reads the JSON body into a RawRequest. A token in the
// Authorization header is used when the body carries none.
func decodeRequest(w http.ResponseWriter, r *http.Request, op string) (core.RawRequest, error) {
	var raw core.RawRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return raw, core.Invalid(op, "request body required")
		}
		return raw, core.Invalid(op, "invalid JSON body: %v", err)
	}
	if raw.JWTToken == "" {
		raw.JWTToken = bearerToken(r)
	}
	return raw, nil
}

// bearerToken returns the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// handleUpload stores a multipart "file" part under its own name.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		s.respondError(w, r, errNoFile)
		return
	}

	// Stream the first "file" part straight to storage without buffering.
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			s.respondError(w, r, errNoFile)
			return
		}
		if err != nil {
			s.respondError(w, r, core.Invalid("upload", "invalid multipart body: %v", err))
			return
		}
		if part.FormName() != "file" || part.FileName() == "" {
			part.Close()
			continue
		}

		stored, err := s.service.SaveUpload(r.Context(), part.FileName(), part)
		part.Close()
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]any{
			"filename": stored.Name,
			"path":     stored.Path,
		})
		return
	}
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeRequest(w, r, "tables")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	req, err := raw.TablesRequest(s.service.Defaults())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	tables, err := s.service.Tables(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"source": "clickhouse",
		"tables": tables,
	})
}

// handleColumns accepts the table either in the body or as ?table=.
func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeRequest(w, r, "columns")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if raw.Table == "" {
		raw.Table = r.URL.Query().Get("table")
	}
	req, err := raw.ColumnsRequest(s.service.Defaults())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	cols, err := s.service.Columns(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := map[string]any{"columns": cols}
	switch req := req.(type) {
	case core.DatabaseColumnsRequest:
		resp["source"] = "clickhouse"
		resp["table"] = req.Table
	case core.FileColumnsRequest:
		resp["source"] = "flatfile"
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeRequest(w, r, "ingest")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	req, err := raw.IngestRequest(s.service.Defaults())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.service.Ingest(withRequestMetadata(r.Context(), r), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":       "completed",
		"record_count": res.Rows,
	})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeRequest(w, r, "preview")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	req, err := raw.PreviewRequest(s.service.Defaults())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.service.Preview(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"data":    res.Rows,
		"columns": res.Columns,
	})
}

// handleDownload streams a selection as an attachment. Everything that can
// fail is resolved before the first byte is written; after that, failures
// can only end the stream early.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	raw := downloadQuery(r.URL.Query())
	if raw.JWTToken == "" {
		raw.JWTToken = bearerToken(r)
	}

	req, err := raw.DownloadRequest(s.service.Defaults(), chi.URLParam(r, "filename"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	dl, err := s.service.OpenDownload(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer dl.Close()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dl.Filename}))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	if _, err := dl.Stream(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("download aborted",
			"filename", dl.Filename,
			"error", err,
		)
	}
}

// downloadQuery builds a RawRequest from download query parameters.
// Columns may be repeated or comma-separated.
func downloadQuery(q url.Values) core.RawRequest {
	return core.RawRequest{
		Source:        q.Get("source"),
		Host:          q.Get("host"),
		Port:          q.Get("port"),
		Database:      q.Get("database"),
		User:          q.Get("user"),
		Password:      q.Get("password"),
		JWTToken:      q.Get("jwt_token"),
		Delimiter:     q.Get("delimiter"),
		Table:         q.Get("table"),
		Tables:        splitList(q["tables"]),
		Columns:       splitList(q["columns"]),
		JoinCondition: q.Get("join_condition"),
	}
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, r, core.Invalid("transfers", "invalid limit %q", v))
			return
		}
		limit = n
	}

	recs, err := s.service.RecentTransfers(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("list transfers: %w", err))
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"transfers": recs})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":    "ok",
		"transfers": s.service.Limiter().Status(),
	})
}
