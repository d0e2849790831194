package activities

type ListPDFsInput struct {
	InputDir string `json:"input_dir"`
}

type ListPDFsOutput struct {
	Paths []string `json:"paths"`
}

type ComputePaperIDInput struct {
	PaperPath string `json:"paper_path"`
}

type ComputePaperIDOutput struct {
	PaperID string `json:"paper_id"`
}

type ExtractTextInput struct {
	PaperPath string `json:"paper_path"`
}

type ExtractTextOutput struct {
	Text string `json:"text"`
}

type ParseFilenameInput struct {
	Filename string `json:"filename"`
}

type ParseFilenameOutput struct {
	Year int    `json:"year"`
	Term string `json:"term"`
}

type GetSubjectInput struct {
	SubjectID string `json:"subject_id"`
}

type GetSubjectOutput struct {
	SubjectID   string `json:"subject_id"`
	Name        string `json:"name"`
	PatternName string `json:"pattern_name"`
}

type ExtractQuestionsInput struct {
	PaperID     string `json:"paper_id"`
	SubjectID   string `json:"subject_id"`
	Text        string `json:"text"`
	PatternName string `json:"pattern_name"`
	Year        int    `json:"year"`
}

type QuestionItem struct {
	QuestionID     string `json:"question_id"`
	PaperID        string `json:"paper_id"`
	SubjectID      string `json:"subject_id"`
	Part           string `json:"part"`
	Number         int    `json:"number"`
	SubLetter      string `json:"sub_letter,omitempty"`
	Seq            int    `json:"seq"`
	RawText        string `json:"raw_text"`
	NormalizedText string `json:"normalized_text"`
	TopicKey       string `json:"topic_key"`
	Marks          int    `json:"marks"`
	ModuleNumber   int    `json:"module_number"`
	Year           int    `json:"year"`
	BloomLevel     string `json:"bloom_level,omitempty"`
	Difficulty     string `json:"difficulty,omitempty"`
}

type ExtractQuestionsOutput struct {
	Questions    []QuestionItem `json:"questions"`
	Unclassified int            `json:"unclassified"`
}

type EmbedQuestionsInput struct {
	Operation     string         `json:"operation"`
	SubjectID     string         `json:"subject_id"`
	PaperID       string         `json:"paper_id"`
	ProviderIndex int            `json:"provider_index"`
	Input         []QuestionItem `json:"input"`
}

type EmbedQuestionsOutput struct {
	Vectors      [][]float32 `json:"vectors"`
	ProviderName string      `json:"provider_name"`
	Model        string      `json:"model"`
}

type UpsertQuestionsInput struct {
	PaperID   string         `json:"paper_id"`
	Questions []QuestionItem `json:"questions"`
	Vectors   [][]float32    `json:"vectors,omitempty"`
}

type WritePaperArtifactsInput struct {
	SubjectID     string         `json:"subject_id"`
	PaperID       string         `json:"paper_id"`
	Metadata      map[string]any `json:"metadata"`
	Questions     []QuestionItem `json:"questions"`
	ProcessingLog map[string]any `json:"processing_log"`
}

type UpdatePaperStatusInput struct {
	PaperID    string `json:"paper_id"`
	SubjectID  string `json:"subject_id"`
	Filename   string `json:"filename"`
	Year       int    `json:"year"`
	Term       string `json:"term"`
	Status     string `json:"status"`
	FailReason string `json:"fail_reason"`
}

type ListFailedPapersInput struct {
	SubjectID string `json:"subject_id"`
}

type FailedPaper struct {
	PaperID  string `json:"paper_id"`
	Filename string `json:"filename"`
}

type ListFailedPapersOutput struct {
	Papers []FailedPaper `json:"papers"`
}

type DistinctModulesInput struct {
	SubjectID string `json:"subject_id"`
}

type DistinctModulesOutput struct {
	Modules []int `json:"modules"`
}

type ClusterModuleInput struct {
	SubjectID     string  `json:"subject_id"`
	ModuleNumber  int     `json:"module_number"`
	Threshold     float64 `json:"threshold"`
	Tier1Min      int     `json:"tier1_min"`
	Tier2Min      int     `json:"tier2_min"`
	Tier3Min      int     `json:"tier3_min"`
	ProviderIndex int     `json:"provider_index"`
}

type ClusterSummary struct {
	ClusterID          string `json:"cluster_id"`
	TopicName          string `json:"topic_name"`
	RepresentativeText string `json:"representative_text"`
	Members            int    `json:"members"`
	PriorityTier       int    `json:"priority_tier"`
}

type ClusterModuleOutput struct {
	QuestionCount   int              `json:"question_count"`
	ClusterCount    int              `json:"cluster_count"`
	EmbeddingScores int64            `json:"embedding_scores"`
	JaccardScores   int64            `json:"jaccard_scores"`
	Clusters        []ClusterSummary `json:"clusters"`
}

type LLMGenerateInput struct {
	Operation     string   `json:"operation"`
	SubjectID     string   `json:"subject_id"`
	PaperID       string   `json:"paper_id"`
	Prompt        string   `json:"prompt"`
	Context       []string `json:"context"`
	ProviderIndex int      `json:"provider_index"`
}

type LLMGenerateOutput struct {
	Text         string `json:"text"`
	ProviderName string `json:"provider_name"`
	Model        string `json:"model"`
}

type UpdateClusterLabelInput struct {
	ClusterID string `json:"cluster_id"`
	Label     string `json:"label"`
}

type ExportClustersInput struct {
	SubjectID string `json:"subject_id"`
	RunID     string `json:"run_id"`
}

type ExportClustersOutput struct {
	OutPath string `json:"out_path"`
}

type WriteSubjectSummaryInput struct {
	SubjectID string         `json:"subject_id"`
	Summary   map[string]any `json:"summary"`
}

type UpdateRunStatusInput struct {
	RunID   string `json:"run_id"`
	Status  string `json:"status"`
	OutPath string `json:"out_path"`
}

type LogProviderCallInput struct {
	CallID       string `json:"call_id"`
	Operation    string `json:"operation"`
	SubjectID    string `json:"subject_id"`
	PaperID      string `json:"paper_id"`
	ProviderName string `json:"provider_name"`
	Model        string `json:"model"`
	RequestID    string `json:"request_id"`
	Status       string `json:"status"`
	ErrorType    string `json:"error_type"`
}
