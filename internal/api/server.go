package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"

	"pyqlens/internal/config"
	"pyqlens/internal/models"
	"pyqlens/internal/providers"
	"pyqlens/internal/stats"
	"pyqlens/internal/storage"
	"pyqlens/internal/util"
	"pyqlens/internal/vector"
	"pyqlens/internal/workflows"
)

type Server struct {
	cfg          config.Config
	db           *storage.DB
	subjectRepo  *storage.SubjectRepo
	paperRepo    *storage.PaperRepo
	questionRepo *storage.QuestionRepo
	clusterRepo  *storage.ClusterRepo
	runRepo      *storage.RunRepo
	searcher     *vector.Searcher
	providers    *providers.Manager
	temporal     tclient.Client
}

func NewServer(cfg config.Config) *Server {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		panic(err)
	}
	pm, err := providers.NewManager(cfg)
	if err != nil {
		panic(err)
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		panic(err)
	}
	return &Server{
		cfg:          cfg,
		db:           db,
		subjectRepo:  storage.NewSubjectRepo(db),
		paperRepo:    storage.NewPaperRepo(db),
		questionRepo: storage.NewQuestionRepo(db),
		clusterRepo:  storage.NewClusterRepo(db),
		runRepo:      storage.NewRunRepo(db),
		searcher:     vector.NewSearcher(db.Pool),
		providers:    pm,
		temporal:     tc,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/subjects", s.handleSubjects)
	mux.HandleFunc("/subjects/", s.handleSubjectScoped)
	mux.HandleFunc("/questions/similar", s.handleSimilarQuestions)
	mux.HandleFunc("/runs/", s.handleRun)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleSubjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		subjects, err := s.subjectRepo.ListSubjects(r.Context())
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"subjects": subjects})
	case http.MethodPost:
		var req struct {
			Name        string `json:"name"`
			PatternName string `json:"pattern_name"`
			Modules     []struct {
				Number   int      `json:"number"`
				Title    string   `json:"title"`
				Keywords []string `json:"keywords"`
			} `json:"modules"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("name is required"))
			return
		}
		pattern := models.PatternByName(req.PatternName)
		if err := pattern.Validate(); err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}

		subjectID := uuid.NewString()
		subject := models.Subject{SubjectID: subjectID, Name: req.Name, PatternName: pattern.Name}
		if err := s.subjectRepo.CreateSubject(r.Context(), subject); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		for _, m := range req.Modules {
			if err := s.subjectRepo.UpsertModule(r.Context(), models.Module{
				SubjectID: subjectID,
				Number:    m.Number,
				Title:     m.Title,
				Keywords:  m.Keywords,
			}); err != nil {
				writeErr(w, http.StatusInternalServerError, err)
				return
			}
		}

		if err := util.EnsureDir(filepath.Join(s.cfg.DataInRoot, subjectID)); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		if err := util.EnsureDir(filepath.Join(s.cfg.DataOutRoot, subjectID)); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{"subject_id": subjectID, "name": req.Name, "pattern_name": pattern.Name})
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) handleSubjectScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/subjects/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	subjectID := parts[0]

	if len(parts) == 2 {
		switch parts[1] {
		case "upload":
			if r.Method != http.MethodPost {
				writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
				return
			}
			s.handleUpload(w, r, subjectID)
			return
		case "modules":
			s.handleModules(w, r, subjectID)
			return
		case "papers":
			if r.Method != http.MethodGet {
				writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
				return
			}
			papers, err := s.paperRepo.ListPapersBySubject(r.Context(), subjectID)
			if err != nil {
				writeErr(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"papers": papers})
			return
		case "questions":
			if r.Method != http.MethodGet {
				writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
				return
			}
			s.handleQuestions(w, r, subjectID)
			return
		case "analyze":
			if r.Method != http.MethodPost {
				writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
				return
			}
			s.handleAnalyze(w, r, subjectID)
			return
		case "progress":
			if r.Method != http.MethodGet {
				writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
				return
			}
			s.handleProgress(w, r, subjectID)
			return
		case "cluster":
			if r.Method != http.MethodPost {
				writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
				return
			}
			s.handleCluster(w, r, subjectID)
			return
		case "topics":
			if r.Method != http.MethodGet {
				writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
				return
			}
			s.handleTopics(w, r, subjectID)
			return
		case "stats":
			if r.Method != http.MethodGet {
				writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
				return
			}
			s.handleStats(w, r, subjectID)
			return
		case "retry-failed":
			if r.Method != http.MethodPost {
				writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
				return
			}
			s.handleRetryFailed(w, r, subjectID)
			return
		}
	}

	if len(parts) == 4 && parts[1] == "papers" && parts[3] == "file" {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		paperID := parts[2]
		p, err := s.paperRepo.GetPaperByID(r.Context(), subjectID, paperID)
		if err != nil {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		path := filepath.Join(s.cfg.DataInRoot, subjectID, filepath.Base(p.Filename))
		http.ServeFile(w, r, path)
		return
	}

	writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
}

func (s *Server) handleModules(w http.ResponseWriter, r *http.Request, subjectID string) {
	switch r.Method {
	case http.MethodGet:
		modules, err := s.subjectRepo.ListModules(r.Context(), subjectID)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"modules": modules})
	case http.MethodPost:
		var req struct {
			Number   int      `json:"number"`
			Title    string   `json:"title"`
			Keywords []string `json:"keywords"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		if req.Number <= 0 {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("module number must be positive"))
			return
		}
		if err := s.subjectRepo.UpsertModule(r.Context(), models.Module{
			SubjectID: subjectID,
			Number:    req.Number,
			Title:     req.Title,
			Keywords:  req.Keywords,
		}); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"subject_id": subjectID, "number": req.Number})
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, subjectID string) {
	if err := r.ParseMultipartForm(128 << 20); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		if single, ok := firstSingleFile(r.MultipartForm.File); ok {
			files = append(files, single)
		}
	}
	if len(files) == 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no files provided"))
		return
	}

	inDir := filepath.Join(s.cfg.DataInRoot, subjectID)
	if err := util.EnsureDir(inDir); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	year, _ := strconv.Atoi(r.FormValue("year"))
	term := strings.TrimSpace(r.FormValue("term"))

	type uploadResult struct {
		Filename string `json:"filename"`
		PaperID  string `json:"paper_id"`
	}
	out := make([]uploadResult, 0, len(files))

	for _, fh := range files {
		if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
			continue
		}
		paperID, savedPath, err := saveUploadedFile(inDir, fh)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		if err := s.paperRepo.UpsertPaper(r.Context(), models.Paper{
			PaperID:   paperID,
			SubjectID: subjectID,
			Filename:  filepath.Base(savedPath),
			Year:      year,
			Term:      term,
			Status:    "pending",
		}); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		out = append(out, uploadResult{Filename: filepath.Base(savedPath), PaperID: paperID})
	}

	writeJSON(w, http.StatusOK, map[string]any{"uploaded": out})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request, subjectID string) {
	if _, err := s.subjectRepo.GetSubject(r.Context(), subjectID); err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	wfID := "analyze-" + subjectID
	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       wfID,
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.SubjectAnalyzeWorkflow, workflows.SubjectAnalyzeInput{
		SubjectID:             subjectID,
		InputDir:              filepath.Join(s.cfg.DataInRoot, subjectID),
		MaxConcurrentChildren: s.cfg.AnalyzeMaxChildren,
		EmbedProviders:        s.providers.EmbedCount(),
		CooldownSeconds:       s.cfg.ProviderCooldownSecs,
		ExtractTimeoutSecs:    s.cfg.ExtractTimeoutSecs,
	})
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"workflow_id": we.GetID(), "run_id": we.GetRunID()})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request, subjectID string) {
	var prog workflows.SubjectAnalyzeProgress
	resp, err := s.temporal.QueryWorkflow(r.Context(), "analyze-"+subjectID, "", workflows.QueryGetProgress)
	if err != nil {
		// Fallback to DB-derived progress when no active workflow query is available.
		papers, pErr := s.paperRepo.ListPapersBySubject(r.Context(), subjectID)
		if pErr != nil {
			writeErr(w, http.StatusInternalServerError, pErr)
			return
		}
		per := make(map[string]string, len(papers))
		done := 0
		failed := 0
		for _, p := range papers {
			per[p.Filename] = p.Status
			if p.Status == "analyzed" {
				done++
			}
			if p.Status == "failed" {
				failed++
			}
		}
		writeJSON(w, http.StatusOK, workflows.SubjectAnalyzeProgress{
			SubjectID: subjectID,
			Total:     len(papers),
			Done:      done,
			Failed:    failed,
			PerPaper:  per,
		})
		return
	}
	if err := resp.Get(&prog); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, prog)
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request, subjectID string) {
	var (
		questions []models.Question
		err       error
	)
	if moduleStr := r.URL.Query().Get("module"); moduleStr != "" {
		module, convErr := strconv.Atoi(moduleStr)
		if convErr != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid module: %w", convErr))
			return
		}
		questions, err = s.questionRepo.ListQuestionsByModule(r.Context(), subjectID, module)
	} else {
		questions, err = s.questionRepo.ListQuestionsBySubject(r.Context(), subjectID)
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

func (s *Server) handleCluster(w http.ResponseWriter, r *http.Request, subjectID string) {
	var req struct {
		Threshold     float64 `json:"threshold"`
		Tier1Min      int     `json:"tier1_min"`
		Tier2Min      int     `json:"tier2_min"`
		Tier3Min      int     `json:"tier3_min"`
		LabelClusters bool    `json:"label_clusters"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
	}

	runID := uuid.NewString()
	if err := s.runRepo.CreateRun(r.Context(), runID, subjectID, "cluster"); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       "cluster-" + subjectID,
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.ClusterSubjectWorkflow, workflows.ClusterSubjectInput{
		RunID:           runID,
		SubjectID:       subjectID,
		Threshold:       req.Threshold,
		Tier1Min:        req.Tier1Min,
		Tier2Min:        req.Tier2Min,
		Tier3Min:        req.Tier3Min,
		EmbedProviders:  s.providers.EmbedCount(),
		LLMProviders:    s.providers.LLMCount(),
		LabelClusters:   req.LabelClusters,
		CooldownSeconds: s.cfg.ProviderCooldownSecs,
	})
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"cluster_run_id": runID, "workflow_id": we.GetID(), "run_id": we.GetRunID()})
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request, subjectID string) {
	module := -1
	if moduleStr := r.URL.Query().Get("module"); moduleStr != "" {
		m, err := strconv.Atoi(moduleStr)
		if err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid module: %w", err))
			return
		}
		module = m
	}
	clusters, err := s.clusterRepo.ListClusters(r.Context(), subjectID, module)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"topics": clusters})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, subjectID string) {
	questions, err := s.questionRepo.ListQuestionsBySubject(r.Context(), subjectID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	clusters, err := s.clusterRepo.ListClusters(r.Context(), subjectID, -1)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats.Summarize(questions, clusters, s.cfg.TopTopicsLimit))
}

func (s *Server) handleRetryFailed(w http.ResponseWriter, r *http.Request, subjectID string) {
	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       "retry-" + subjectID,
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.RetryFailedPapersWorkflow, workflows.RetryFailedPapersInput{
		SubjectID:          subjectID,
		DataInRoot:         s.cfg.DataInRoot,
		EmbedProviders:     s.providers.EmbedCount(),
		CooldownSeconds:    s.cfg.ProviderCooldownSecs,
		ExtractTimeoutSecs: s.cfg.ExtractTimeoutSecs,
	})
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"workflow_id": we.GetID(), "run_id": we.GetRunID()})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	runID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/runs/"), "/")
	if runID == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	status, outPath, err := s.runRepo.GetRun(r.Context(), runID)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	resp := map[string]any{"run_id": runID, "status": status}
	if outPath != "" {
		resp["out_path"] = outPath
		if b, err := os.ReadFile(outPath); err == nil {
			resp["clusters"] = json.RawMessage(b)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type similarQuestion struct {
	QuestionID   string   `json:"question_id"`
	PaperID      string   `json:"paper_id"`
	Filename     string   `json:"filename,omitempty"`
	PaperURL     string   `json:"paper_url,omitempty"`
	Year         int      `json:"year"`
	ModuleNumber int      `json:"module_number"`
	Snippet      string   `json:"snippet"`
	Matches      []string `json:"matched_terms,omitempty"`
	Score        float64  `json:"score"`
}

func (s *Server) handleSimilarQuestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		SubjectID string `json:"subject_id"`
		Question  string `json:"question"`
		Module    *int   `json:"module,omitempty"`
		Years     []int  `json:"years,omitempty"`
		TopK      int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.SubjectID = strings.TrimSpace(req.SubjectID)
	req.Question = strings.TrimSpace(req.Question)
	if req.SubjectID == "" || req.Question == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("subject_id and question are required"))
		return
	}
	if req.TopK <= 0 {
		req.TopK = 8
	}

	var (
		queryVectors [][]float32
		err          error
	)
	for _, idx := range s.providers.PreferredEmbedOrder() {
		p, _ := s.providers.EmbedProviderByIndex(idx)
		queryVectors, _, err = p.Embed(r.Context(), providers.EmbedRequest{
			Operation: "similar_query_embed",
			Inputs:    []string{req.Question},
			Dimension: s.cfg.EmbedDim,
		})
		if err == nil && len(queryVectors) > 0 {
			break
		}
	}
	if err != nil || len(queryVectors) == 0 {
		writeErr(w, http.StatusBadGateway, fmt.Errorf("embedding providers unavailable"))
		return
	}

	results, err := s.searcher.SearchQuestions(r.Context(), req.SubjectID, queryVectors[0], req.TopK, vector.SearchFilters{
		ModuleNumber: req.Module,
		Years:        req.Years,
	})
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]similarQuestion, 0, len(results))
	for _, res := range results {
		snippet := util.DisplaySnippet(res.RawText, 280)
		if snippet == "" {
			snippet = res.Snippet
		}
		out = append(out, similarQuestion{
			QuestionID:   res.QuestionID,
			PaperID:      res.PaperID,
			Filename:     res.Filename,
			PaperURL:     fmt.Sprintf("/subjects/%s/papers/%s/file", req.SubjectID, res.PaperID),
			Year:         res.Year,
			ModuleNumber: res.ModuleNumber,
			Snippet:      snippet,
			Matches:      util.HighlightTerms(res.RawText, req.Question),
			Score:        res.Score,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out, "retrieved_count": len(out)})
}

func saveUploadedFile(dstDir string, fh *multipart.FileHeader) (paperID, path string, err error) {
	src, err := fh.Open()
	if err != nil {
		return "", "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dstDir, "upload-*.pdf")
	if err != nil {
		return "", "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
	}()

	if _, err := io.Copy(tmp, src); err != nil {
		return "", "", fmt.Errorf("write upload: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return "", "", fmt.Errorf("seek temp: %w", err)
	}
	paperID, err = util.SHA256HexFromReader(tmp)
	if err != nil {
		return "", "", fmt.Errorf("hash upload: %w", err)
	}

	safeName := filepath.Base(fh.Filename)
	finalPath := filepath.Join(dstDir, safeName)
	if err := tmp.Close(); err != nil {
		return "", "", err
	}
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		return "", "", fmt.Errorf("atomic move upload: %w", err)
	}

	return paperID, finalPath, nil
}

func firstSingleFile(m map[string][]*multipart.FileHeader) (*multipart.FileHeader, bool) {
	for _, v := range m {
		if len(v) > 0 {
			return v[0], true
		}
	}
	return nil, false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "PQ-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "PQ-DB-5001",
				Message: "Database schema is not initialized. Run migrations and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "PQ-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "PQ-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "PQ-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "PQ-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "PQ-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusMethodNotAllowed:
		code = "PQ-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusBadGateway:
		code = "PQ-API-5020"
		msg = "Upstream provider unavailable. Retry shortly."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		low := strings.ToLower(err.Error())
		switch {
		case strings.Contains(low, "name is required"):
			msg = "Subject name is required."
		case strings.Contains(low, "subject_id and question are required"):
			msg = "Both subject and question are required."
		case strings.Contains(low, "no files provided"):
			msg = "No PDF files were provided."
		case strings.Contains(low, "invalid json"):
			msg = "Malformed JSON request body."
		case strings.Contains(low, "configuration error"):
			msg = "Configuration is invalid: " + err.Error()
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
