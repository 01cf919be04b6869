package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lvcoi/shorts-collector/internal/app"
	"github.com/lvcoi/shorts-collector/internal/collector"
	"github.com/lvcoi/shorts-collector/internal/db"
	"github.com/lvcoi/shorts-collector/internal/ws"
)

//go:embed assets/*
var embeddedAssets embed.FS

const maxRequestBodyBytes = 1 << 20 // 1 MiB

const (
	defaultRecordListLimit = 200
	maxRecordListLimit     = 500
)

type CollectRequest struct {
	Channels []string  `json:"channels"`
	Options  WebOption `json:"options"`
}

type WebOption struct {
	Output         string `json:"output"`
	Limit          int    `json:"limit"`
	Language       string `json:"language"`
	DisableSTT     bool   `json:"no_stt"`
	KeepAudio      bool   `json:"keep_audio"`
	Jobs           int    `json:"jobs"`
	Workers        int    `json:"workers"`
	DelayMS        int    `json:"delay_ms"`
	TimeoutSeconds int    `json:"timeout"`
}

type CollectResponse struct {
	Type     string       `json:"type"`
	Status   string       `json:"status"`
	Results  []app.Result `json:"results,omitempty"`
	ExitCode int          `json:"exit_code,omitempty"`
	Error    string       `json:"error,omitempty"`
}

type recordItem struct {
	VideoID         string `json:"video_id"`
	Channel         string `json:"channel"`
	Title           string `json:"title"`
	Views           int64  `json:"views"`
	Likes           int64  `json:"likes"`
	ReleaseDate     string `json:"release_date"`
	VideoURL        string `json:"video_url"`
	Tier            string `json:"tier"`
	Completeness    string `json:"completeness"`
	TranscriptChars int    `json:"transcript_chars"`
	CollectedAt     string `json:"collected_at"`
}

type recordListResponse struct {
	Items      []recordItem `json:"items"`
	NextOffset *int         `json:"next_offset"`
}

type exportItem struct {
	Name string `json:"name"`
	Size string `json:"size"`
	Date string `json:"date"`
}

// formatBytes formats a byte size into a human-readable string
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

// validateWebOutputTemplate ensures that the output template provided via the web API
// cannot be used to write files outside the export area. It is intentionally
// conservative and rejects absolute paths, parent directory references, and directory
// components in the literal prefix before the first placeholder.
func validateWebOutputTemplate(tmpl string) error {
	// Empty template is allowed; it will be defaulted later.
	if strings.TrimSpace(tmpl) == "" {
		return nil
	}

	// Reject simple parent-directory traversal patterns.
	if strings.Contains(tmpl, "..") {
		return fmt.Errorf("invalid output template: parent directory references are not allowed")
	}

	// Basic absolute path checks for Unix-like and Windows-style paths.
	if strings.HasPrefix(tmpl, "/") || strings.HasPrefix(tmpl, `\\`) {
		return fmt.Errorf("invalid output template: absolute paths are not allowed")
	}
	if len(tmpl) >= 2 && ((tmpl[0] >= 'A' && tmpl[0] <= 'Z') || (tmpl[0] >= 'a' && tmpl[0] <= 'z')) && tmpl[1] == ':' {
		return fmt.Errorf("invalid output template: absolute paths are not allowed")
	}

	// Disallow explicit directory components in the literal prefix before the first placeholder.
	prefixEnd := strings.Index(tmpl, "{")
	if prefixEnd == -1 {
		prefixEnd = len(tmpl)
	}
	literalPrefix := tmpl[:prefixEnd]
	if strings.Contains(literalPrefix, "/") || strings.Contains(literalPrefix, `\`) {
		return fmt.Errorf("invalid output template: directory components are not allowed in the literal prefix")
	}

	return nil
}

type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) *requestError {
	ct := r.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil || mediaType != "application/json" {
		return &requestError{http.StatusUnsupportedMediaType, "content type must be application/json"}
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return &requestError{http.StatusRequestEntityTooLarge, "request body too large"}
		}
		return &requestError{http.StatusBadRequest, "invalid JSON payload"}
	}
	if err := dec.Decode(new(struct{})); err != io.EOF {
		return &requestError{http.StatusBadRequest, "invalid JSON payload"}
	}
	return nil
}

func parseCollectRequest(w http.ResponseWriter, r *http.Request, base collector.Options, exportsDir string) (*CollectRequest, collector.Options, int, *requestError) {
	var req CollectRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		return nil, collector.Options{}, 0, err
	}
	if len(req.Channels) == 0 {
		return nil, collector.Options{}, 0, &requestError{http.StatusBadRequest, "no channels provided"}
	}
	if err := validateWebOutputTemplate(req.Options.Output); err != nil {
		return nil, collector.Options{}, 0, &requestError{http.StatusBadRequest, err.Error()}
	}

	opts := base
	opts.Quiet = true
	opts.Progress = nil
	opts.Renderer = nil

	tmpl := strings.TrimSpace(req.Options.Output)
	if tmpl == "" {
		tmpl = "{channel}_shorts_data.json"
	}
	opts.Output = filepath.Join(exportsDir, tmpl)

	if req.Options.Limit > 0 {
		opts.Limit = req.Options.Limit
	}
	if req.Options.Language != "" {
		opts.Language = req.Options.Language
	}
	if req.Options.DisableSTT {
		opts.DisableSTT = true
	}
	if req.Options.KeepAudio {
		opts.KeepAudio = true
		opts.AudioDir = filepath.Join(exportsDir, "audio")
	}
	if req.Options.Workers > 0 {
		opts.Jobs = req.Options.Workers
	}
	if req.Options.DelayMS > 0 {
		opts.Delay = time.Duration(req.Options.DelayMS) * time.Millisecond
		opts.RateLimit = 0
	}
	if req.Options.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(req.Options.TimeoutSeconds) * time.Second
	}
	if opts.Timeout == 0 {
		opts.Timeout = 3 * time.Minute
	}

	return &req, opts, req.Options.Jobs, nil
}

// ListenAndServe runs the dashboard: collection jobs over SSE and
// WebSocket, the record catalog, saved channels and export downloads.
// catalog may be nil, which disables the record endpoints.
func ListenAndServe(ctx context.Context, addr string, base collector.Options, catalog *db.DB) error {
	startedAt := time.Now()

	exportsDir, err := filepath.Abs("exports")
	if err != nil {
		return fmt.Errorf("resolving exports directory: %w", err)
	}
	if err := os.MkdirAll(exportsDir, 0o755); err != nil {
		return fmt.Errorf("creating exports directory: %w", err)
	}
	log.Printf("Exports directory: %s", exportsDir)
	tracker.StartCleanup(ctx, jobCleanupInterval, jobCompletedTTL, jobErroredTTL)

	channelStore := newSavedChannelStore(savedChannelsFileName)

	hub := ws.NewHub()
	go hub.Run()

	var store app.Store
	if catalog != nil {
		store = catalog
	}

	assets, err := fs.Sub(embeddedAssets, "assets")
	if err != nil {
		return err
	}
	fileServer := http.FileServer(http.FS(assets))

	mux := http.NewServeMux()
	mux.HandleFunc("/api/collect", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		req, opts, jobs, reqErr := parseCollectRequest(w, r, base, exportsDir)
		if reqErr != nil {
			writeJSONError(w, reqErr.status, reqErr.message)
			return
		}

		job := tracker.Create(req.Channels)
		opts.Renderer = &webRenderer{job: job, hub: hub}

		go func() {
			job.SetStatus("running")
			results, exitCode := app.Run(ctx, req.Channels, opts, jobs, store)
			status := job.SetOutcome(results, exitCode)
			_, errMsg, _ := job.snapshot()
			job.publish(ProgressEvent{
				Type:     "done",
				Status:   status,
				ExitCode: exitCode,
				Error:    errMsg,
				Results:  results,
			})
			if exitCode != 0 {
				hub.Broadcast(ws.WSMessage{Type: "error", Payload: ws.ErrorPayload{
					JobID:   job.ID,
					Message: errMsg,
					Code:    exitCode,
				}})
			} else {
				hub.Broadcast(ws.WSMessage{Type: "done", Payload: ws.ProgressPayload{
					JobID:   job.ID,
					Status:  status,
					Percent: 100,
				}})
			}
			job.CloseEvents()
		}()

		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "queued",
			"jobId":   job.ID,
			"message": fmt.Sprintf("Collection started for %d channel(s).", len(req.Channels)),
		})
	})

	mux.HandleFunc("/api/collect/progress", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		jobID := r.URL.Query().Get("id")
		if jobID == "" {
			writeJSONError(w, http.StatusBadRequest, "missing id parameter")
			return
		}
		job, ok := tracker.Get(jobID)
		if !ok {
			writeJSONError(w, http.StatusNotFound, "job not found")
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeJSONError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		afterSeq := int64(0)
		if seq, ok := parseProgressSeq(r.URL.Query().Get("since")); ok {
			afterSeq = seq
		} else if seq, ok := parseProgressSeq(r.Header.Get("Last-Event-ID")); ok {
			afterSeq = seq
		}

		stream, cancel := job.Subscribe(afterSeq)
		defer cancel()

		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)

		sawDone := false
		for {
			select {
			case <-r.Context().Done():
				return
			case evt, ok := <-stream:
				if !ok {
					if !sawDone {
						exitCode, errMsg, results := job.snapshot()
						writeSSEEvent(w, flusher, enc, ProgressEvent{
							Type:     "done",
							Status:   job.StatusValue(),
							ExitCode: exitCode,
							Error:    errMsg,
							Results:  results,
						})
					}
					return
				}
				if evt.Type == "done" {
					sawDone = true
				}
				writeSSEEvent(w, flusher, enc, evt)
			}
		}
	})

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		uptime := time.Since(startedAt).Truncate(time.Second).String()
		payload := map[string]any{
			"active_collections": tracker.ActiveCount(),
			"uptime":             uptime,
		}
		if catalog != nil {
			if count, err := catalog.Count(); err == nil {
				payload["catalog_records"] = count
			}
		}
		writeJSON(w, http.StatusOK, payload)
	})

	recordsHandler := func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if catalog == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "catalog not configured")
			return
		}

		videoID := strings.TrimPrefix(r.URL.Path, "/api/records")
		videoID = strings.TrimPrefix(videoID, "/")
		if videoID != "" {
			rec, found, err := catalog.GetShort(videoID)
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, "failed to read catalog")
				return
			}
			if !found {
				writeJSONError(w, http.StatusNotFound, "record not found")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"record":       recordItemFrom(rec),
				"transcript":   rec.Transcript,
				"completeness": db.ClassifyCompleteness(rec),
			})
			return
		}

		offset, limit, err := parseListPagination(r)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		rows, err := catalog.ListShorts(r.URL.Query().Get("channel"), limit+1, offset)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to read catalog")
			return
		}

		var nextOffset *int
		if len(rows) > limit {
			rows = rows[:limit]
			next := offset + limit
			nextOffset = &next
		}
		items := make([]recordItem, 0, len(rows))
		for _, row := range rows {
			items = append(items, recordItemFrom(row))
		}
		writeJSON(w, http.StatusOK, recordListResponse{
			Items:      items,
			NextOffset: nextOffset,
		})
	}
	mux.HandleFunc("/api/records", recordsHandler)
	mux.HandleFunc("/api/records/", recordsHandler)

	mux.HandleFunc("/api/channels", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			state, err := channelStore.Load()
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, "failed to load saved channels")
				return
			}
			counts := map[string]int{}
			if catalog != nil {
				if collected, err := catalog.Channels(); err == nil {
					for name, count := range collected {
						counts[strings.ToLower(name)] = count
					}
				}
			}
			type channelItem struct {
				Handle    string `json:"handle"`
				Label     string `json:"label,omitempty"`
				CreatedAt string `json:"createdAt,omitempty"`
				Collected int    `json:"collected"`
			}
			items := make([]channelItem, 0, len(state.Channels))
			for _, entry := range state.Channels {
				items = append(items, channelItem{
					Handle:    entry.Handle,
					Label:     entry.Label,
					CreatedAt: entry.CreatedAt,
					Collected: counts[strings.ToLower(entry.Handle)],
				})
			}
			writeJSON(w, http.StatusOK, map[string]any{"channels": items})
		case http.MethodPost:
			var req struct {
				Handle string `json:"handle"`
				Label  string `json:"label"`
			}
			if reqErr := decodeJSONBody(w, r, &req); reqErr != nil {
				writeJSONError(w, reqErr.status, reqErr.message)
				return
			}
			state, err := channelStore.Add(req.Handle, req.Label)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, state)
		case http.MethodDelete:
			handle := r.URL.Query().Get("handle")
			if handle == "" {
				writeJSONError(w, http.StatusBadRequest, "missing handle parameter")
				return
			}
			state, removed, err := channelStore.Remove(handle)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, err.Error())
				return
			}
			if !removed {
				writeJSONError(w, http.StatusNotFound, "channel not found")
				return
			}
			writeJSON(w, http.StatusOK, state)
		default:
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc("/api/exports/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		reqPath := strings.TrimPrefix(r.URL.Path, "/api/exports/")

		// If no filename provided, list all export files.
		if reqPath == "" {
			items, err := listExportFiles(exportsDir)
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, "failed to read exports directory")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": items})
			return
		}

		if !strings.HasSuffix(strings.ToLower(reqPath), ".json") {
			writeJSONError(w, http.StatusBadRequest, "invalid path")
			return
		}
		fullPath, status, err := resolveExportPath(exportsDir, reqPath)
		if err != nil {
			if status == 0 {
				status = http.StatusBadRequest
			}
			writeJSONError(w, status, err.Error())
			return
		}
		http.ServeFile(w, r, fullPath)
	})

	mux.HandleFunc("/ws", hub.HandleWS)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		if r.URL.Path == "/" {
			serveIndex(w, assets)
			return
		}
		if fileExists(assets, strings.TrimPrefix(r.URL.Path, "/")) {
			fileServer.ServeHTTP(w, r)
			return
		}
		serveIndex(w, assets)
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           withSecurityHeaders(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func recordItemFrom(rec db.ShortRecord) recordItem {
	return recordItem{
		VideoID:         rec.VideoID,
		Channel:         rec.Channel,
		Title:           rec.Title,
		Views:           rec.Views,
		Likes:           rec.Likes,
		ReleaseDate:     rec.ReleaseDate,
		VideoURL:        rec.VideoURL,
		Tier:            rec.TranscriptTier,
		Completeness:    db.ClassifyCompleteness(rec),
		TranscriptChars: len(rec.Transcript),
		CollectedAt:     rec.CollectedAt.UTC().Format("2006-01-02 15:04"),
	}
}

func parseProgressSeq(value string) (int64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	seq, err := strconv.ParseInt(value, 10, 64)
	if err != nil || seq <= 0 {
		return 0, false
	}
	return seq, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, enc *json.Encoder, evt ProgressEvent) {
	if evt.Seq > 0 {
		fmt.Fprintf(w, "id: %d\n", evt.Seq)
	}
	fmt.Fprintf(w, "data: ")
	_ = enc.Encode(evt)
	fmt.Fprintf(w, "\n")
	flusher.Flush()
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	payload := CollectResponse{
		Type:   "error",
		Status: "error",
		Error:  message,
	}
	writeJSON(w, status, payload)
}

func serveIndex(w http.ResponseWriter, assets fs.FS) {
	data, err := fs.ReadFile(assets, "index.html")
	if err != nil {
		http.Error(w, "missing index", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func fileExists(assets fs.FS, name string) bool {
	if name == "" {
		return false
	}
	f, err := assets.Open(name)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

func withSecurityHeaders(next http.Handler) http.Handler {
	const cspValue = "default-src 'self'; base-uri 'self'; frame-ancestors 'none'; object-src 'none'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self' ws: wss:"

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Content-Security-Policy", cspValue)
		next.ServeHTTP(w, r)
	})
}

func parseListPagination(r *http.Request) (offset int, limit int, err error) {
	offset = 0
	limit = defaultRecordListLimit

	q := r.URL.Query()
	if rawOffset := q.Get("offset"); rawOffset != "" {
		parsed, parseErr := strconv.Atoi(rawOffset)
		if parseErr != nil || parsed < 0 {
			return 0, 0, fmt.Errorf("invalid offset parameter")
		}
		offset = parsed
	}
	if rawLimit := q.Get("limit"); rawLimit != "" {
		parsed, parseErr := strconv.Atoi(rawLimit)
		if parseErr != nil || parsed <= 0 {
			return 0, 0, fmt.Errorf("invalid limit parameter")
		}
		if parsed > maxRecordListLimit {
			parsed = maxRecordListLimit
		}
		limit = parsed
	}
	return offset, limit, nil
}

func listExportFiles(exportsDir string) ([]exportItem, error) {
	entries, err := os.ReadDir(exportsDir)
	if err != nil {
		return nil, err
	}

	type enrichedExportItem struct {
		item    exportItem
		modTime time.Time
	}

	items := make([]enrichedExportItem, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(entry.Name()), ".json") {
			continue
		}

		info, infoErr := entry.Info()
		if infoErr != nil {
			log.Printf("skipping export entry %q: %v", entry.Name(), infoErr)
			continue
		}

		items = append(items, enrichedExportItem{
			item: exportItem{
				Name: info.Name(),
				Size: formatBytes(info.Size()),
				Date: info.ModTime().Format("2006-01-02"),
			},
			modTime: info.ModTime(),
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].modTime.Equal(items[j].modTime) {
			return items[i].item.Name < items[j].item.Name
		}
		return items[i].modTime.After(items[j].modTime)
	})

	out := make([]exportItem, 0, len(items))
	for _, item := range items {
		out = append(out, item.item)
	}
	return out, nil
}

func resolveExportPath(exportsDir, reqPath string) (string, int, error) {
	cleaned := filepath.Clean(reqPath)
	if cleaned == "." || cleaned == "" {
		return "", http.StatusBadRequest, fmt.Errorf("invalid path")
	}
	if strings.Contains(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", http.StatusBadRequest, fmt.Errorf("invalid path")
	}

	fullPath := filepath.Join(exportsDir, cleaned)
	realExportsDir, err := resolveRealPath(exportsDir)
	if err != nil {
		return "", http.StatusInternalServerError, fmt.Errorf("failed to resolve exports directory")
	}
	realTargetPath, err := resolveRealPath(fullPath)
	if err != nil {
		return "", http.StatusBadRequest, fmt.Errorf("invalid path")
	}
	rel, err := filepath.Rel(realExportsDir, realTargetPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", http.StatusForbidden, fmt.Errorf("access denied")
	}
	return fullPath, 0, nil
}

func resolveRealPath(path string) (string, error) {
	cleaned := filepath.Clean(path)
	realPath, err := filepath.EvalSymlinks(cleaned)
	if err == nil {
		return realPath, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	parent := filepath.Dir(cleaned)
	if parent == cleaned {
		return "", err
	}

	realParent, parentErr := resolveRealPath(parent)
	if parentErr != nil {
		return "", parentErr
	}
	return filepath.Join(realParent, filepath.Base(cleaned)), nil
}
