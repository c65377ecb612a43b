package web

import (
	"encoding/json"
	"fmt"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"

	appLog "tlview/internal/log"
)

const cborType = "application/cbor"

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("web: CBOR encoder initialization failed: " + err.Error())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleTimeline returns the scene snapshot. With ?since=<version> it
// blocks until the scene is newer than version or the request ends.
func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	if v := r.URL.Query().Get("since"); v != "" {
		since, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be a version number")
			return
		}
		for {
			changed := s.scene.Changed()
			if s.scene.Snapshot().Version > since {
				break
			}
			select {
			case <-changed:
			case <-r.Context().Done():
				return
			}
		}
	}
	writeValue(w, r, http.StatusOK, s.scene.Snapshot())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeValue(w, r, http.StatusOK, s.tl.State())
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	s.handleEventID(w, r, r.PathValue("id"))
}

// handlePosition accepts t as Unix milliseconds or RFC3339.
func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	ms, err := parseTime(r.FormValue("t"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.tl.SetPosition(ms)
	s.handleState(w, r)
}

func (s *Server) handlePan(w http.ResponseWriter, r *http.Request) {
	s.withFloat(w, r, "dx", s.tl.Pan)
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	s.withFloat(w, r, "fraction", s.tl.Step)
}

func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request) {
	s.withFloat(w, r, "viewport", s.tl.SetViewport)
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	s.withFloat(w, r, "width", s.tl.Resize)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	s.tl.Retry()
	s.handleState(w, r)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.tl.Refresh()
	s.handleState(w, r)
}

// handleClick activates an event as if its bar was clicked and returns it.
func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	id := r.FormValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	s.tl.Click(id)
	s.handleEventID(w, r, id)
}

func (s *Server) handleEventID(w http.ResponseWriter, r *http.Request, id string) {
	ev, ok := s.tl.Lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, "event not loaded")
		return
	}
	writeValue(w, r, http.StatusOK, ev)
}

func (s *Server) withFloat(w http.ResponseWriter, r *http.Request, name string, fn func(float64)) {
	v, err := strconv.ParseFloat(r.FormValue(name), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		writeError(w, http.StatusBadRequest, name+" must be a finite number")
		return
	}
	fn(v)
	s.handleState(w, r)
}

func parseTime(v string) (int64, error) {
	if v == "" {
		return 0, fmt.Errorf("t is required")
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return ms, nil
	}
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return 0, fmt.Errorf("t must be Unix milliseconds or RFC3339")
	}
	return ts.UnixMilli(), nil
}

// wantsCBOR reports whether the client listed application/cbor in Accept.
func wantsCBOR(r *http.Request) bool {
	for part := range strings.SplitSeq(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mt == cborType {
			return true
		}
	}
	return false
}

// writeValue encodes v as CBOR when the client asks for it, JSON otherwise.
func writeValue(w http.ResponseWriter, r *http.Request, status int, v any) {
	if !wantsCBOR(r) {
		writeJSON(w, status, v)
		return
	}
	data, err := encMode.Marshal(v)
	if err != nil {
		appLog.Error("failed to encode CBOR response", err)
		writeError(w, http.StatusInternalServerError, "encode failed")
		return
	}
	w.Header().Set("Content-Type", cborType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
