package activities

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"pyqlens/internal/classify"
	"pyqlens/internal/cluster"
	"pyqlens/internal/config"
	"pyqlens/internal/extract"
	"pyqlens/internal/models"
	"pyqlens/internal/providers"
	"pyqlens/internal/similarity"
	"pyqlens/internal/storage"
	"pyqlens/internal/textnorm"
	"pyqlens/internal/util"
	"pyqlens/internal/vector"
)

type Activities struct {
	cfg          config.Config
	subjectRepo  *storage.SubjectRepo
	paperRepo    *storage.PaperRepo
	questionRepo *storage.QuestionRepo
	clusterRepo  *storage.ClusterRepo
	runRepo      *storage.RunRepo
	auditRepo    *storage.AuditRepo
	providers    *providers.Manager
	extractor    *extract.Extractor
	normalizer   *textnorm.Normalizer
	classifier   *classify.Classifier
}

func New(cfg config.Config, db *storage.DB) (*Activities, error) {
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	norm := textnorm.New()
	return &Activities{
		cfg:          cfg,
		subjectRepo:  storage.NewSubjectRepo(db),
		paperRepo:    storage.NewPaperRepo(db),
		questionRepo: storage.NewQuestionRepo(db),
		clusterRepo:  storage.NewClusterRepo(db),
		runRepo:      storage.NewRunRepo(db),
		auditRepo:    storage.NewAuditRepo(db),
		providers:    pm,
		extractor:    extract.New(norm),
		normalizer:   norm,
		classifier:   classify.New(),
	}, nil
}

func (a *Activities) ListPDFsActivity(ctx context.Context, in ListPDFsInput) (ListPDFsOutput, error) {
	_ = ctx
	entries, err := os.ReadDir(in.InputDir)
	if err != nil {
		return ListPDFsOutput{}, fmt.Errorf("read input dir: %w", err)
	}
	paths := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".pdf") {
			paths = append(paths, filepath.Join(in.InputDir, name))
		}
	}
	sort.Strings(paths)
	return ListPDFsOutput{Paths: paths}, nil
}

func (a *Activities) ComputePaperIDActivity(ctx context.Context, in ComputePaperIDInput) (ComputePaperIDOutput, error) {
	_ = ctx
	f, err := os.Open(in.PaperPath)
	if err != nil {
		return ComputePaperIDOutput{}, fmt.Errorf("open file for hash: %w", err)
	}
	defer f.Close()
	sum, err := util.SHA256HexFromReader(f)
	if err != nil {
		return ComputePaperIDOutput{}, fmt.Errorf("hash file: %w", err)
	}
	return ComputePaperIDOutput{PaperID: sum}, nil
}

func (a *Activities) ExtractTextActivity(ctx context.Context, in ExtractTextInput) (ExtractTextOutput, error) {
	_ = ctx
	f, r, err := pdf.Open(in.PaperPath)
	if err != nil {
		return ExtractTextOutput{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return ExtractTextOutput{}, fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return ExtractTextOutput{}, fmt.Errorf("read extracted text: %w", err)
	}
	text := strings.TrimSpace(buf.String())
	text = util.SanitizeText(text)
	if text == "" {
		return ExtractTextOutput{}, util.ErrNoExtractableText
	}
	return ExtractTextOutput{Text: text}, nil
}

var (
	filenameYear  = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	filenameTerms = []string{"december", "dec", "november", "nov", "june", "jun", "may", "april", "apr", "january", "jan", "supple", "regular"}
)

// ParseFilenameActivity pulls the exam session out of names like
// "CE302-Dec-2021.pdf". Missing pieces come back zero-valued, never an error.
func (a *Activities) ParseFilenameActivity(ctx context.Context, in ParseFilenameInput) (ParseFilenameOutput, error) {
	_ = ctx
	base := strings.ToLower(strings.TrimSuffix(filepath.Base(in.Filename), filepath.Ext(in.Filename)))
	out := ParseFilenameOutput{}
	if m := filenameYear.FindString(base); m != "" {
		out.Year, _ = strconv.Atoi(m)
	}
	for _, term := range filenameTerms {
		if strings.Contains(base, term) {
			out.Term = term
			break
		}
	}
	return out, nil
}

func (a *Activities) GetSubjectActivity(ctx context.Context, in GetSubjectInput) (GetSubjectOutput, error) {
	s, err := a.subjectRepo.GetSubject(ctx, in.SubjectID)
	if err != nil {
		return GetSubjectOutput{}, err
	}
	return GetSubjectOutput{SubjectID: s.SubjectID, Name: s.Name, PatternName: s.PatternName}, nil
}

// ExtractQuestionsActivity runs the full per-paper pipeline on already
// extracted text: segmentation, normalization, module classification, and
// cognitive tagging. A malformed pattern fails the whole job; an
// unextractable paper fails only this paper.
func (a *Activities) ExtractQuestionsActivity(ctx context.Context, in ExtractQuestionsInput) (ExtractQuestionsOutput, error) {
	pattern := models.PatternByName(in.PatternName)
	if err := pattern.Validate(); err != nil {
		return ExtractQuestionsOutput{}, err
	}
	keywords, err := a.subjectRepo.ModuleKeywordSets(ctx, in.SubjectID)
	if err != nil {
		return ExtractQuestionsOutput{}, err
	}

	raw, err := a.extractor.Extract(in.Text, pattern)
	if err != nil {
		return ExtractQuestionsOutput{}, err
	}

	out := ExtractQuestionsOutput{Questions: make([]QuestionItem, 0, len(raw))}
	for seq, rq := range raw {
		norm := a.normalizer.Normalize(rq.Text)
		module := a.classifier.Classify(classify.Input{
			Part:           rq.Part,
			Number:         rq.Number,
			NormalizedText: norm.NormalizedText,
			Pattern:        pattern,
			Keywords:       keywords,
		})
		if module == models.ModuleUnclassified {
			out.Unclassified++
		}
		bloom := classify.BloomLevel(rq.Text)
		out.Questions = append(out.Questions, QuestionItem{
			QuestionID:     questionID(in.PaperID, rq.Part, rq.Number, rq.SubLetter, seq),
			PaperID:        in.PaperID,
			SubjectID:      in.SubjectID,
			Part:           rq.Part,
			Number:         rq.Number,
			SubLetter:      rq.SubLetter,
			Seq:            seq,
			RawText:        rq.Text,
			NormalizedText: norm.NormalizedText,
			TopicKey:       norm.TopicKey,
			Marks:          rq.Marks,
			ModuleNumber:   module,
			Year:           in.Year,
			BloomLevel:     bloom,
			Difficulty:     classify.Difficulty(rq.Marks, bloom),
		})
	}
	return out, nil
}

// questionID is content-positional so re-analyzing an unchanged paper emits
// the same IDs.
func questionID(paperID, part string, number int, subLetter string, seq int) string {
	seed := fmt.Sprintf("%s/%s/%d/%s/%d", paperID, part, number, subLetter, seq)
	return util.SHA256Hex([]byte(seed))[:32]
}

func (a *Activities) EmbedQuestionsActivity(ctx context.Context, in EmbedQuestionsInput) (EmbedQuestionsOutput, error) {
	provider, ref := a.providers.EmbedProviderByIndex(in.ProviderIndex)
	inputs := make([]string, 0, len(in.Input))
	for _, q := range in.Input {
		inputs = append(inputs, q.NormalizedText)
	}
	vectors, info, err := provider.Embed(ctx, providers.EmbedRequest{
		Operation: in.Operation,
		Inputs:    inputs,
		Dimension: a.cfg.EmbedDim,
	})
	if err != nil {
		return EmbedQuestionsOutput{ProviderName: ref.Name, Model: info.Model}, err
	}
	if len(vectors) != len(inputs) {
		return EmbedQuestionsOutput{ProviderName: ref.Name, Model: info.Model},
			fmt.Errorf("embed count mismatch: got %d vectors for %d questions", len(vectors), len(inputs))
	}
	return EmbedQuestionsOutput{Vectors: vectors, ProviderName: info.Name, Model: info.Model}, nil
}

func (a *Activities) UpsertQuestionsActivity(ctx context.Context, in UpsertQuestionsInput) error {
	records := make([]storage.QuestionRecord, 0, len(in.Questions))
	for i, q := range in.Questions {
		rec := storage.QuestionRecord{
			QuestionID:     q.QuestionID,
			PaperID:        q.PaperID,
			SubjectID:      q.SubjectID,
			Part:           q.Part,
			Number:         q.Number,
			SubLetter:      q.SubLetter,
			Seq:            q.Seq,
			RawText:        q.RawText,
			NormalizedText: q.NormalizedText,
			TopicKey:       q.TopicKey,
			Marks:          q.Marks,
			ModuleNumber:   q.ModuleNumber,
			Year:           q.Year,
			BloomLevel:     q.BloomLevel,
			Difficulty:     q.Difficulty,
		}
		if i < len(in.Vectors) && len(in.Vectors[i]) > 0 {
			lit := vector.ToLiteral(in.Vectors[i])
			rec.EmbeddingVector = &lit
		}
		records = append(records, rec)
	}
	return a.questionRepo.UpsertQuestions(ctx, in.PaperID, records)
}

func (a *Activities) WritePaperArtifactsActivity(ctx context.Context, in WritePaperArtifactsInput) error {
	_ = ctx
	base := filepath.Join(a.cfg.DataOutRoot, in.SubjectID, "papers", in.PaperID)
	if err := util.EnsureDir(base); err != nil {
		return err
	}
	if err := util.WriteJSONAtomic(filepath.Join(base, "metadata.json"), in.Metadata); err != nil {
		return err
	}
	rows := make([]any, 0, len(in.Questions))
	for _, q := range in.Questions {
		rows = append(rows, q)
	}
	if err := util.WriteJSONLinesAtomic(filepath.Join(base, "questions.jsonl"), rows); err != nil {
		return err
	}
	return util.WriteJSONAtomic(filepath.Join(base, "processing_log.json"), in.ProcessingLog)
}

func (a *Activities) UpdatePaperStatusActivity(ctx context.Context, in UpdatePaperStatusInput) error {
	if in.Filename != "" {
		return a.paperRepo.UpsertPaper(ctx, models.Paper{
			PaperID:    in.PaperID,
			SubjectID:  in.SubjectID,
			Filename:   in.Filename,
			Year:       in.Year,
			Term:       in.Term,
			Status:     in.Status,
			FailReason: in.FailReason,
		})
	}
	return a.paperRepo.UpdatePaperStatus(ctx, in.PaperID, in.Status, in.FailReason)
}

func (a *Activities) ListFailedPapersActivity(ctx context.Context, in ListFailedPapersInput) (ListFailedPapersOutput, error) {
	papers, err := a.paperRepo.ListFailedPapers(ctx, in.SubjectID)
	if err != nil {
		return ListFailedPapersOutput{}, err
	}
	out := ListFailedPapersOutput{Papers: make([]FailedPaper, 0, len(papers))}
	for _, p := range papers {
		out.Papers = append(out.Papers, FailedPaper{PaperID: p.PaperID, Filename: p.Filename})
	}
	return out, nil
}

func (a *Activities) DistinctModulesActivity(ctx context.Context, in DistinctModulesInput) (DistinctModulesOutput, error) {
	modules, err := a.questionRepo.DistinctModules(ctx, in.SubjectID)
	if err != nil {
		return DistinctModulesOutput{}, err
	}
	return DistinctModulesOutput{Modules: modules}, nil
}

// providerEmbedder adapts one embedding provider to the similarity engine's
// single-text interface.
type providerEmbedder struct {
	provider  providers.EmbeddingProvider
	dimension int
	operation string
}

func (p providerEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, _, err := p.provider.Embed(ctx, providers.EmbedRequest{
		Operation: p.operation,
		Inputs:    []string{text},
		Dimension: p.dimension,
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 vector, got %d", len(vectors))
	}
	return vectors[0], nil
}

// ClusterModuleActivity re-clusters one module of one subject and replaces
// its stored cluster set. Concurrent runs on the same module serialize on an
// advisory lock inside the replace transaction.
func (a *Activities) ClusterModuleActivity(ctx context.Context, in ClusterModuleInput) (ClusterModuleOutput, error) {
	threshold := in.Threshold
	if threshold == 0 {
		threshold = a.cfg.SimilarityThreshold
	}
	tiers := models.TierThresholds{Tier1Min: in.Tier1Min, Tier2Min: in.Tier2Min, Tier3Min: in.Tier3Min}
	if tiers == (models.TierThresholds{}) {
		tiers = models.TierThresholds{Tier1Min: a.cfg.Tier1Min, Tier2Min: a.cfg.Tier2Min, Tier3Min: a.cfg.Tier3Min}
	}

	questions, err := a.questionRepo.ListQuestionsByModule(ctx, in.SubjectID, in.ModuleNumber)
	if err != nil {
		return ClusterModuleOutput{}, err
	}

	provider, _ := a.providers.EmbedProviderByIndex(in.ProviderIndex)
	engine := similarity.NewEngine(providerEmbedder{
		provider:  provider,
		dimension: a.cfg.EmbedDim,
		operation: "cluster_similarity",
	})
	clusters, err := cluster.New(engine, threshold, tiers).Cluster(ctx, questions, in.ModuleNumber)
	if err != nil {
		return ClusterModuleOutput{}, err
	}
	if err := a.clusterRepo.ReplaceModuleClusters(ctx, in.SubjectID, in.ModuleNumber, clusters); err != nil {
		return ClusterModuleOutput{}, err
	}

	embedScores, jaccardScores := engine.PathCounts()
	out := ClusterModuleOutput{
		QuestionCount:   len(questions),
		ClusterCount:    len(clusters),
		EmbeddingScores: embedScores,
		JaccardScores:   jaccardScores,
		Clusters:        make([]ClusterSummary, 0, len(clusters)),
	}
	for _, c := range clusters {
		rep := ""
		if len(c.MemberIDs) > 0 {
			rep = representativeText(questions, c.MemberIDs[0])
		}
		out.Clusters = append(out.Clusters, ClusterSummary{
			ClusterID:          c.ClusterID,
			TopicName:          c.TopicName,
			RepresentativeText: rep,
			Members:            len(c.MemberIDs),
			PriorityTier:       c.PriorityTier,
		})
	}
	return out, nil
}

func representativeText(questions []models.Question, questionID string) string {
	for _, q := range questions {
		if q.QuestionID == questionID {
			return q.RawText
		}
	}
	return ""
}

func (a *Activities) LLMGenerateActivity(ctx context.Context, in LLMGenerateInput) (LLMGenerateOutput, error) {
	provider, ref := a.providers.LLMProviderByIndex(in.ProviderIndex)
	resp, info, err := provider.Generate(ctx, providers.GenerateRequest{
		Operation: in.Operation,
		Prompt:    in.Prompt,
		Context:   in.Context,
	})
	if err != nil {
		return LLMGenerateOutput{ProviderName: ref.Name, Model: info.Model}, err
	}
	return LLMGenerateOutput{Text: strings.TrimSpace(resp.Text), ProviderName: info.Name, Model: info.Model}, nil
}

func (a *Activities) UpdateClusterLabelActivity(ctx context.Context, in UpdateClusterLabelInput) error {
	return a.clusterRepo.UpdateDisplayLabel(ctx, in.ClusterID, in.Label)
}

func (a *Activities) ExportClustersActivity(ctx context.Context, in ExportClustersInput) (ExportClustersOutput, error) {
	clusters, err := a.clusterRepo.ListClusters(ctx, in.SubjectID, -1)
	if err != nil {
		return ExportClustersOutput{}, err
	}
	outPath := filepath.Join(a.cfg.DataOutRoot, in.SubjectID, "clusters.json")
	if err := util.WriteJSONAtomic(outPath, clusters); err != nil {
		return ExportClustersOutput{}, err
	}
	return ExportClustersOutput{OutPath: outPath}, nil
}

func (a *Activities) WriteSubjectSummaryActivity(ctx context.Context, in WriteSubjectSummaryInput) error {
	_ = ctx
	outPath := filepath.Join(a.cfg.DataOutRoot, in.SubjectID, "subject_summary.json")
	return util.WriteJSONAtomic(outPath, in.Summary)
}

func (a *Activities) UpdateRunStatusActivity(ctx context.Context, in UpdateRunStatusInput) error {
	return a.runRepo.UpdateRunStatus(ctx, in.RunID, in.Status, in.OutPath)
}

func (a *Activities) LogProviderCallActivity(ctx context.Context, in LogProviderCallInput) error {
	return a.auditRepo.Insert(ctx, storage.ProviderCallRecord{
		CallID:       in.CallID,
		Operation:    in.Operation,
		SubjectID:    in.SubjectID,
		PaperID:      in.PaperID,
		ProviderName: in.ProviderName,
		Model:        in.Model,
		RequestID:    in.RequestID,
		Status:       in.Status,
		ErrorType:    in.ErrorType,
	})
}
