package workflows

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"pyqlens/internal/activities"
	"pyqlens/internal/providers"
)

const (
	QueryGetPaperStatus     = "GetPaperStatus"
	QueryGetProgress        = "GetProgress"
	QueryGetClusterProgress = "GetClusterProgress"
)

type providerState struct {
	disabledUntil map[int]time.Time
	retries       map[string]int
}

func newProviderState() providerState {
	return providerState{disabledUntil: map[int]time.Time{}, retries: map[string]int{}}
}

// SubjectAnalyzeWorkflow fans one subject's paper PDFs out to child analysis
// workflows in bounded batches and records a subject-level summary when all
// children settle.
func SubjectAnalyzeWorkflow(ctx workflow.Context, input SubjectAnalyzeInput) (string, error) {
	progress := SubjectAnalyzeProgress{
		SubjectID:     input.SubjectID,
		PerPaper:      map[string]string{},
		ChildWorkflow: map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (SubjectAnalyzeProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var subject activities.GetSubjectOutput
	if err := workflow.ExecuteActivity(ctx, "GetSubjectActivity", activities.GetSubjectInput{SubjectID: input.SubjectID}).Get(ctx, &subject); err != nil {
		return "", err
	}

	var listOut activities.ListPDFsOutput
	if err := workflow.ExecuteActivity(ctx, "ListPDFsActivity", activities.ListPDFsInput{InputDir: input.InputDir}).Get(ctx, &listOut); err != nil {
		return "", err
	}
	paths := listOut.Paths
	progress.Total = len(paths)
	maxChildren := input.MaxConcurrentChildren
	if maxChildren <= 0 {
		maxChildren = 3
	}

	for i := 0; i < len(paths); i += maxChildren {
		end := i + maxChildren
		if end > len(paths) {
			end = len(paths)
		}
		futures := make([]workflow.ChildWorkflowFuture, 0, end-i)
		childPaths := make([]string, 0, end-i)
		for _, path := range paths[i:end] {
			progress.PerPaper[path] = "processing"
			workflowID := "paper-" + sanitizeID(input.SubjectID) + "-" + sanitizeID(filepath.Base(path))
			cwo := workflow.ChildWorkflowOptions{WorkflowID: workflowID}
			childCtx := workflow.WithChildOptions(ctx, cwo)
			f := workflow.ExecuteChildWorkflow(childCtx, PaperAnalyzeWorkflow, PaperAnalyzeInput{
				SubjectID:          input.SubjectID,
				PaperPath:          path,
				PatternName:        subject.PatternName,
				EmbedProviders:     input.EmbedProviders,
				CooldownSeconds:    input.CooldownSeconds,
				ExtractTimeoutSecs: input.ExtractTimeoutSecs,
			})
			futures = append(futures, f)
			childPaths = append(childPaths, path)
			progress.ChildWorkflow[path] = workflowID
		}

		for idx, f := range futures {
			var childStatus string
			err := f.Get(ctx, &childStatus)
			path := childPaths[idx]
			if err != nil {
				// A configuration error in any child means the whole job is
				// misconfigured; stop instead of grinding through the rest.
				if isConfigurationError(err) {
					return "", err
				}
				progress.Failed++
				progress.Done++
				progress.PerPaper[path] = "failed"
				continue
			}
			if childStatus == "failed" {
				progress.Failed++
			}
			progress.Done++
			progress.PerPaper[path] = childStatus
		}
	}

	_ = workflow.ExecuteActivity(ctx, "WriteSubjectSummaryActivity", activities.WriteSubjectSummaryInput{
		SubjectID: input.SubjectID,
		Summary: map[string]any{
			"subject_id":       input.SubjectID,
			"pattern":          subject.PatternName,
			"total":            progress.Total,
			"done":             progress.Done,
			"failed":           progress.Failed,
			"per_paper_status": progress.PerPaper,
			"generated_at":     workflow.Now(ctx),
		},
	}).Get(ctx, nil)

	return "completed", nil
}

// PaperAnalyzeWorkflow runs one paper end to end: hash, text extraction,
// question segmentation and classification, embedding, and persistence.
// Unreadable or unsegmentable papers end as a per-paper "failed" status, not
// a workflow error, so siblings keep running.
func PaperAnalyzeWorkflow(ctx workflow.Context, input PaperAnalyzeInput) (string, error) {
	status := PaperAnalyzeStatus{
		PaperPath:   input.PaperPath,
		CurrentStep: "init",
		Status:      "processing",
		RetryCounts: map[string]int{},
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetPaperStatus, func() (PaperAnalyzeStatus, error) {
		return status, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	filename := filepath.Base(input.PaperPath)
	cooldown := durationOrDefault(input.CooldownSeconds, 900)
	providerCount := defaultCount(input.EmbedProviders)
	state := newProviderState()

	status.CurrentStep = "compute_paper_id"
	status.Steps[status.CurrentStep] = "processing"
	var computeOut activities.ComputePaperIDOutput
	if err := workflow.ExecuteActivity(ctx, "ComputePaperIDActivity", activities.ComputePaperIDInput{PaperPath: input.PaperPath}).Get(ctx, &computeOut); err != nil {
		return "", err
	}
	status.PaperID = computeOut.PaperID
	status.Steps[status.CurrentStep] = "done"

	var session activities.ParseFilenameOutput
	if err := workflow.ExecuteActivity(ctx, "ParseFilenameActivity", activities.ParseFilenameInput{Filename: filename}).Get(ctx, &session); err != nil {
		return "", err
	}

	_ = workflow.ExecuteActivity(ctx, "UpdatePaperStatusActivity", activities.UpdatePaperStatusInput{
		PaperID:   computeOut.PaperID,
		SubjectID: input.SubjectID,
		Filename:  filename,
		Year:      session.Year,
		Term:      session.Term,
		Status:    "processing",
	}).Get(ctx, nil)

	status.CurrentStep = "extract_text"
	status.Steps[status.CurrentStep] = "processing"
	var textOut activities.ExtractTextOutput
	if err := workflow.ExecuteActivity(ctx, "ExtractTextActivity", activities.ExtractTextInput{PaperPath: input.PaperPath}).Get(ctx, &textOut); err != nil {
		if isNoTextError(err) {
			return markPaperFailed(ctx, &status, input, computeOut.PaperID, filename, session, "no extractable text found (OCR not enabled)")
		}
		return "", err
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "extract_questions"
	status.Steps[status.CurrentStep] = "processing"
	// Extraction failures are final for this paper and configuration errors
	// are final for the whole job; retrying either just replays the failure.
	extractCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: durationOrDefault(input.ExtractTimeoutSecs, 120),
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        1,
			NonRetryableErrorTypes: []string{"ExtractionError", "ConfigurationError"},
		},
	})
	var questionsOut activities.ExtractQuestionsOutput
	if err := workflow.ExecuteActivity(extractCtx, "ExtractQuestionsActivity", activities.ExtractQuestionsInput{
		PaperID:     computeOut.PaperID,
		SubjectID:   input.SubjectID,
		Text:        textOut.Text,
		PatternName: input.PatternName,
		Year:        session.Year,
	}).Get(ctx, &questionsOut); err != nil {
		if isExtractionError(err) {
			return markPaperFailed(ctx, &status, input, computeOut.PaperID, filename, session, trimFailReason(err))
		}
		return "", err
	}
	status.QuestionCount = len(questionsOut.Questions)
	status.Unclassified = questionsOut.Unclassified
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "embed_questions"
	status.Steps[status.CurrentStep] = "processing"
	embedOut, err := callEmbedWithFailover(ctx, &state, providerCount, cooldown, activities.EmbedQuestionsInput{
		Operation: "embed_questions",
		SubjectID: input.SubjectID,
		PaperID:   computeOut.PaperID,
		Input:     questionsOut.Questions,
	}, status.RetryCounts, input.PreferredEmbedProviderIndex, input.StrictEmbedProvider)
	if err != nil {
		// Embeddings are an accelerator; clustering degrades to lexical
		// scoring when they are absent.
		status.Steps[status.CurrentStep] = "skipped"
		embedOut = activities.EmbedQuestionsOutput{}
	} else {
		status.Providers = append(status.Providers, embedOut.ProviderName)
		status.Steps[status.CurrentStep] = "done"
	}

	status.CurrentStep = "upsert_questions"
	status.Steps[status.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "UpsertQuestionsActivity", activities.UpsertQuestionsInput{
		PaperID:   computeOut.PaperID,
		Questions: questionsOut.Questions,
		Vectors:   embedOut.Vectors,
	}).Get(ctx, nil); err != nil {
		if isInvalidTextEncodingError(err) {
			return markPaperFailed(ctx, &status, input, computeOut.PaperID, filename, session, "paper contains invalid text encoding after extraction")
		}
		return "", err
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "write_artifacts"
	status.Steps[status.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "WritePaperArtifactsActivity", activities.WritePaperArtifactsInput{
		SubjectID: input.SubjectID,
		PaperID:   computeOut.PaperID,
		Metadata: map[string]any{
			"paper_id":       computeOut.PaperID,
			"filename":       filename,
			"year":           session.Year,
			"term":           session.Term,
			"question_count": len(questionsOut.Questions),
			"unclassified":   questionsOut.Unclassified,
		},
		Questions: questionsOut.Questions,
		ProcessingLog: map[string]any{
			"status":       "analyzed",
			"steps":        status.Steps,
			"generated_at": workflow.Now(ctx),
		},
	}).Get(ctx, nil); err != nil {
		return "", err
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "mark_analyzed"
	status.Steps[status.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "UpdatePaperStatusActivity", activities.UpdatePaperStatusInput{
		PaperID:   computeOut.PaperID,
		SubjectID: input.SubjectID,
		Filename:  filename,
		Year:      session.Year,
		Term:      session.Term,
		Status:    "analyzed",
	}).Get(ctx, nil); err != nil {
		return "", err
	}
	status.Steps[status.CurrentStep] = "done"
	status.CurrentStep = "done"
	status.Status = "analyzed"
	return status.Status, nil
}

func markPaperFailed(ctx workflow.Context, status *PaperAnalyzeStatus, input PaperAnalyzeInput, paperID, filename string, session activities.ParseFilenameOutput, reason string) (string, error) {
	status.Status = "failed"
	status.FailReason = reason
	status.Steps[status.CurrentStep] = "failed"
	_ = workflow.ExecuteActivity(ctx, "UpdatePaperStatusActivity", activities.UpdatePaperStatusInput{
		PaperID:    paperID,
		SubjectID:  input.SubjectID,
		Filename:   filename,
		Year:       session.Year,
		Term:       session.Term,
		Status:     "failed",
		FailReason: reason,
	}).Get(ctx, nil)
	return status.Status, nil
}

// ClusterSubjectWorkflow re-clusters every module that currently holds
// questions, one module at a time, then exports the subject's cluster report.
// A configuration error on the first module aborts the run before any other
// module is touched.
func ClusterSubjectWorkflow(ctx workflow.Context, input ClusterSubjectInput) (string, error) {
	progress := ClusterSubjectProgress{
		RunID:     input.RunID,
		SubjectID: input.SubjectID,
		PerModule: map[int]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetClusterProgress, func() (ClusterSubjectProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    2,
			// Clustering validates its configuration before touching any
			// state; replaying a config error cannot succeed.
			NonRetryableErrorTypes: []string{"ConfigurationError"},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	_ = workflow.ExecuteActivity(ctx, "UpdateRunStatusActivity", activities.UpdateRunStatusInput{RunID: input.RunID, Status: "running"}).Get(ctx, nil)

	var modulesOut activities.DistinctModulesOutput
	if err := workflow.ExecuteActivity(ctx, "DistinctModulesActivity", activities.DistinctModulesInput{SubjectID: input.SubjectID}).Get(ctx, &modulesOut); err != nil {
		_ = workflow.ExecuteActivity(ctx, "UpdateRunStatusActivity", activities.UpdateRunStatusInput{RunID: input.RunID, Status: "failed"}).Get(ctx, nil)
		return "", err
	}
	progress.TotalModules = len(modulesOut.Modules)

	llmProviders := defaultCount(input.LLMProviders)
	cooldown := durationOrDefault(input.CooldownSeconds, 900)
	llmState := newProviderState()

	for _, module := range modulesOut.Modules {
		progress.PerModule[module] = "clustering"
		var clusterOut activities.ClusterModuleOutput
		if err := workflow.ExecuteActivity(ctx, "ClusterModuleActivity", activities.ClusterModuleInput{
			SubjectID:    input.SubjectID,
			ModuleNumber: module,
			Threshold:    input.Threshold,
			Tier1Min:     input.Tier1Min,
			Tier2Min:     input.Tier2Min,
			Tier3Min:     input.Tier3Min,
		}).Get(ctx, &clusterOut); err != nil {
			progress.PerModule[module] = "failed"
			_ = workflow.ExecuteActivity(ctx, "UpdateRunStatusActivity", activities.UpdateRunStatusInput{RunID: input.RunID, Status: "failed"}).Get(ctx, nil)
			return "", err
		}
		progress.ClusterCount += clusterOut.ClusterCount
		progress.PerModule[module] = "clustered"

		if input.LabelClusters {
			progress.PerModule[module] = "labeling"
			labelClusters(ctx, &llmState, llmProviders, cooldown, input, clusterOut.Clusters)
			progress.PerModule[module] = "done"
		}
		progress.DoneModules++
	}

	var exportOut activities.ExportClustersOutput
	if err := workflow.ExecuteActivity(ctx, "ExportClustersActivity", activities.ExportClustersInput{SubjectID: input.SubjectID, RunID: input.RunID}).Get(ctx, &exportOut); err != nil {
		_ = workflow.ExecuteActivity(ctx, "UpdateRunStatusActivity", activities.UpdateRunStatusInput{RunID: input.RunID, Status: "failed"}).Get(ctx, nil)
		return "", err
	}
	_ = workflow.ExecuteActivity(ctx, "UpdateRunStatusActivity", activities.UpdateRunStatusInput{RunID: input.RunID, Status: "completed", OutPath: exportOut.OutPath}).Get(ctx, nil)
	return exportOut.OutPath, nil
}

// labelClusters asks an LLM for a human-facing display label on the larger
// clusters. Labels are cosmetic: any failure leaves the derived topic name in
// place and never fails the run.
func labelClusters(ctx workflow.Context, state *providerState, llmProviders int, cooldown time.Duration, input ClusterSubjectInput, clusters []activities.ClusterSummary) {
	topN := input.LabelTopN
	if topN <= 0 {
		topN = 10
	}
	labeled := 0
	for _, c := range clusters {
		if labeled >= topN {
			break
		}
		if c.Members < 2 || strings.TrimSpace(c.RepresentativeText) == "" {
			continue
		}
		out, _, err := callLLMWithFailover(ctx, state, llmProviders, cooldown, activities.LLMGenerateInput{
			Operation: "label_topic",
			SubjectID: input.SubjectID,
			Prompt:    "Name the exam topic these questions share.",
			Context:   []string{c.RepresentativeText},
		}, nil)
		if err != nil || strings.TrimSpace(out.Text) == "" {
			continue
		}
		_ = workflow.ExecuteActivity(ctx, "UpdateClusterLabelActivity", activities.UpdateClusterLabelInput{
			ClusterID: c.ClusterID,
			Label:     strings.TrimSpace(out.Text),
		}).Get(ctx, nil)
		labeled++
	}
}

// RetryFailedPapersWorkflow re-runs paper analysis for every paper currently
// marked failed, resolving each filename under the subject's input root.
func RetryFailedPapersWorkflow(ctx workflow.Context, input RetryFailedPapersInput) (string, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var subject activities.GetSubjectOutput
	if err := workflow.ExecuteActivity(ctx, "GetSubjectActivity", activities.GetSubjectInput{SubjectID: input.SubjectID}).Get(ctx, &subject); err != nil {
		return "", err
	}
	patternName := input.PatternName
	if strings.TrimSpace(patternName) == "" {
		patternName = subject.PatternName
	}

	var failed activities.ListFailedPapersOutput
	if err := workflow.ExecuteActivity(ctx, "ListFailedPapersActivity", activities.ListFailedPapersInput{SubjectID: input.SubjectID}).Get(ctx, &failed); err != nil {
		return "", err
	}

	retried := 0
	for _, p := range failed.Papers {
		if strings.TrimSpace(p.Filename) == "" {
			continue
		}
		path := pathForRetry(input, p.Filename)
		var out string
		if err := workflow.ExecuteChildWorkflow(ctx, PaperAnalyzeWorkflow, PaperAnalyzeInput{
			SubjectID:          input.SubjectID,
			PaperPath:          path,
			PatternName:        patternName,
			EmbedProviders:     defaultCount(input.EmbedProviders),
			CooldownSeconds:    defaultSeconds(input.CooldownSeconds, 900),
			ExtractTimeoutSecs: input.ExtractTimeoutSecs,
		}).Get(ctx, &out); err == nil && out == "analyzed" {
			retried++
		}
	}
	return fmt.Sprintf("retried %d of %d failed papers", retried, len(failed.Papers)), nil
}

func callEmbedWithFailover(ctx workflow.Context, state *providerState, providerCount int, cooldown time.Duration, input activities.EmbedQuestionsInput, retryCounts map[string]int, preferredIdx int, strict bool) (activities.EmbedQuestionsOutput, error) {
	if retryCounts == nil {
		retryCounts = map[string]int{}
	}
	var lastErr error
	maxAttempts := providerCount * 4
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	if strict && preferredIdx >= 0 {
		maxAttempts = 4
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		idx := 0
		if strict && preferredIdx >= 0 {
			idx = preferredIdx
		} else if preferredIdx >= 0 {
			idx = (preferredIdx + attempt) % providerCount
		} else {
			idx = attempt % providerCount
		}
		if isProviderDisabled(ctx, state, idx) {
			continue
		}
		input.ProviderIndex = idx
		var out activities.EmbedQuestionsOutput
		err := workflow.ExecuteActivity(ctx, "EmbedQuestionsActivity", input).Get(ctx, &out)
		if err == nil {
			_ = workflow.ExecuteActivity(ctx, "LogProviderCallActivity", activities.LogProviderCallInput{Operation: input.Operation, SubjectID: input.SubjectID, PaperID: input.PaperID, ProviderName: out.ProviderName, Model: out.Model, RequestID: fmt.Sprintf("%s-%d", input.Operation, attempt), Status: "ok"}).Get(ctx, nil)
			return out, nil
		}
		lastErr = err
		errType := providers.ClassifyError(err)
		_ = workflow.ExecuteActivity(ctx, "LogProviderCallActivity", activities.LogProviderCallInput{Operation: input.Operation, SubjectID: input.SubjectID, PaperID: input.PaperID, ProviderName: fmt.Sprintf("provider-%d", idx), RequestID: fmt.Sprintf("%s-%d", input.Operation, attempt), Status: "failed", ErrorType: string(errType)}).Get(ctx, nil)
		key := fmt.Sprintf("embed-%d", idx)
		retryCounts[key]++
		switch errType {
		case providers.ErrorQuota:
			disableProviderUntil(ctx, state, idx, cooldown)
		case providers.ErrorRate:
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key]*2)*time.Second)
				if !strict {
					attempt--
				}
			} else {
				disableProviderUntil(ctx, state, idx, 2*time.Minute)
			}
		case providers.ErrorTransient:
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key])*time.Second)
				if !strict {
					attempt--
				}
			}
		default:
			disableProviderUntil(ctx, state, idx, time.Minute)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all embed providers exhausted")
	}
	return activities.EmbedQuestionsOutput{}, lastErr
}

func callLLMWithFailover(ctx workflow.Context, state *providerState, providerCount int, cooldown time.Duration, input activities.LLMGenerateInput, retryCounts map[string]int) (activities.LLMGenerateOutput, string, error) {
	if retryCounts == nil {
		retryCounts = map[string]int{}
	}
	var lastErr error
	for attempt := 0; attempt < providerCount*4; attempt++ {
		idx := attempt % providerCount
		if isProviderDisabled(ctx, state, idx) {
			continue
		}
		input.ProviderIndex = idx
		var out activities.LLMGenerateOutput
		err := workflow.ExecuteActivity(ctx, "LLMGenerateActivity", input).Get(ctx, &out)
		if err == nil {
			_ = workflow.ExecuteActivity(ctx, "LogProviderCallActivity", activities.LogProviderCallInput{Operation: input.Operation, SubjectID: input.SubjectID, PaperID: input.PaperID, ProviderName: out.ProviderName, Model: out.Model, RequestID: fmt.Sprintf("%s-%d", input.Operation, attempt), Status: "ok"}).Get(ctx, nil)
			return out, "", nil
		}
		lastErr = err
		errType := providers.ClassifyError(err)
		_ = workflow.ExecuteActivity(ctx, "LogProviderCallActivity", activities.LogProviderCallInput{Operation: input.Operation, SubjectID: input.SubjectID, PaperID: input.PaperID, ProviderName: fmt.Sprintf("provider-%d", idx), RequestID: fmt.Sprintf("%s-%d", input.Operation, attempt), Status: "failed", ErrorType: string(errType)}).Get(ctx, nil)
		key := fmt.Sprintf("llm-%s-%d", input.Operation, idx)
		retryCounts[key]++
		switch errType {
		case providers.ErrorQuota:
			disableProviderUntil(ctx, state, idx, cooldown)
		case providers.ErrorRate:
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key]*2)*time.Second)
				attempt--
			} else {
				disableProviderUntil(ctx, state, idx, 2*time.Minute)
			}
		case providers.ErrorTransient:
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key])*time.Second)
				attempt--
			}
		case providers.ErrorContext:
			return activities.LLMGenerateOutput{}, string(providers.ErrorContext), err
		default:
			disableProviderUntil(ctx, state, idx, time.Minute)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all llm providers exhausted")
	}
	return activities.LLMGenerateOutput{}, string(providers.ClassifyError(lastErr)), lastErr
}

func isProviderDisabled(ctx workflow.Context, state *providerState, idx int) bool {
	until, ok := state.disabledUntil[idx]
	if !ok {
		return false
	}
	return workflow.Now(ctx).Before(until)
}

func disableProviderUntil(ctx workflow.Context, state *providerState, idx int, d time.Duration) {
	state.disabledUntil[idx] = workflow.Now(ctx).Add(d)
}

func isNoTextError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "no extractable text")
}

func isExtractionError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "extraction failed at")
}

func isConfigurationError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "configuration error:")
}

func isInvalidTextEncodingError(err error) bool {
	e := strings.ToLower(err.Error())
	return strings.Contains(e, "invalid byte sequence") || strings.Contains(e, "sqlstate 22021")
}

func trimFailReason(err error) string {
	reason := err.Error()
	if len(reason) > 200 {
		reason = reason[:200]
	}
	return reason
}

func sanitizeID(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, "/", "-")
	return s
}

func durationOrDefault(seconds int, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}

func defaultCount(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

func defaultSeconds(n int, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}

func pathForRetry(input RetryFailedPapersInput, filename string) string {
	base := strings.TrimSpace(input.DataInRoot)
	if base == "" {
		base = "./data/in"
	}
	return filepath.Join(base, input.SubjectID, filename)
}
