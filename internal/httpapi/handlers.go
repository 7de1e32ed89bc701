package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"clipdeck/internal/download"
	"clipdeck/internal/media"
	"clipdeck/internal/registry"
	"clipdeck/internal/toolexec"
)

type errorBody struct {
	Error string `json:"error"`
}

type formatsRequest struct {
	URL string `json:"url"`
}

type downloadResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	Filename     string `json:"filename"`
	DownloadPath string `json:"downloadPath"`
}

type toolStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

type statusResponse struct {
	Tools       map[string]toolStatus `json:"tools"`
	Disk        *registry.Usage       `json:"disk,omitempty"`
	DownloadDir string                `json:"download_dir"`
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	var req formatsRequest
	if !s.decode(w, r, &req) {
		return
	}

	info, err := s.cfg.Formats.List(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req media.DownloadRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.cfg.Downloads.Download(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, downloadResponse{
		Success:      true,
		Message:      "Download completed",
		Filename:     res.Filename,
		DownloadPath: res.DownloadPath,
	})
}

func (s *Server) handleListDownloads(w http.ResponseWriter, r *http.Request) {
	files, err := s.cfg.Files.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleServeFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}

	f, info, err := s.cfg.Files.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "File not found"})
			return
		}
		s.writeError(w, r, err)
		return
	}
	defer f.Close()

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.cfg.History == nil {
		writeJSON(w, http.StatusOK, []media.HistoryEntry{})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	entries, err := s.cfg.History.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Tools:       make(map[string]toolStatus, len(s.cfg.Tools)),
		DownloadDir: s.cfg.Files.Dir(),
	}
	for _, tool := range s.cfg.Tools {
		version, err := s.cfg.Prober.Probe(r.Context(), tool)
		if err != nil {
			resp.Tools[tool.Name] = toolStatus{Error: err.Error()}
			continue
		}
		resp.Tools[tool.Name] = toolStatus{Available: true, Version: version}
	}

	usage, err := s.cfg.Files.Usage()
	if err != nil {
		s.logger.Warn().Err(err).Msg("disk usage unavailable")
	} else {
		resp.Disk = usage
	}
	writeJSON(w, http.StatusOK, resp)
}

// decode reads a JSON body into v, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		msg := "Invalid request body"
		var verr *media.ValidationError
		if errors.As(err, &verr) {
			msg = verr.Msg
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
		return false
	}
	return true
}

// writeError maps domain errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr        *media.ValidationError
		unavailable *toolexec.UnavailableError
		exitErr     *toolexec.ExitError
	)

	status, msg := http.StatusInternalServerError, err.Error()
	switch {
	case errors.As(err, &verr):
		status, msg = http.StatusBadRequest, verr.Msg
	case errors.As(err, &unavailable):
		msg = unavailable.Hint
	case errors.Is(err, download.ErrDownloadFailed):
		msg = "Download failed"
	case errors.As(err, &exitErr):
		msg = exitErr.Error()
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
