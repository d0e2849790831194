package workflows

type SubjectAnalyzeInput struct {
	SubjectID             string `json:"subject_id"`
	InputDir              string `json:"input_dir"`
	MaxConcurrentChildren int    `json:"max_concurrent_children"`
	EmbedProviders        int    `json:"embed_providers"`
	CooldownSeconds       int    `json:"cooldown_seconds"`
	ExtractTimeoutSecs    int    `json:"extract_timeout_seconds"`
}

type PaperAnalyzeInput struct {
	SubjectID                   string `json:"subject_id"`
	PaperPath                   string `json:"paper_path"`
	PatternName                 string `json:"pattern_name"`
	EmbedProviders              int    `json:"embed_providers"`
	PreferredEmbedProviderIndex int    `json:"preferred_embed_provider_index"`
	StrictEmbedProvider         bool   `json:"strict_embed_provider"`
	CooldownSeconds             int    `json:"cooldown_seconds"`
	ExtractTimeoutSecs          int    `json:"extract_timeout_seconds"`
}

type ClusterSubjectInput struct {
	RunID           string  `json:"run_id"`
	SubjectID       string  `json:"subject_id"`
	Threshold       float64 `json:"threshold"`
	Tier1Min        int     `json:"tier1_min"`
	Tier2Min        int     `json:"tier2_min"`
	Tier3Min        int     `json:"tier3_min"`
	EmbedProviders  int     `json:"embed_providers"`
	LLMProviders    int     `json:"llm_providers"`
	LabelClusters   bool    `json:"label_clusters"`
	LabelTopN       int     `json:"label_top_n,omitempty"`
	CooldownSeconds int     `json:"cooldown_seconds"`
}

type RetryFailedPapersInput struct {
	SubjectID          string `json:"subject_id"`
	DataInRoot         string `json:"data_in_root,omitempty"`
	PatternName        string `json:"pattern_name,omitempty"`
	EmbedProviders     int    `json:"embed_providers,omitempty"`
	CooldownSeconds    int    `json:"cooldown_seconds,omitempty"`
	ExtractTimeoutSecs int    `json:"extract_timeout_seconds,omitempty"`
}

type PaperAnalyzeStatus struct {
	PaperID       string            `json:"paper_id"`
	PaperPath     string            `json:"paper_path"`
	CurrentStep   string            `json:"current_step"`
	Status        string            `json:"status"`
	FailReason    string            `json:"fail_reason,omitempty"`
	QuestionCount int               `json:"question_count"`
	Unclassified  int               `json:"unclassified"`
	Providers     []string          `json:"providers_used"`
	RetryCounts   map[string]int    `json:"retry_counts"`
	Steps         map[string]string `json:"steps"`
}

type SubjectAnalyzeProgress struct {
	SubjectID     string            `json:"subject_id"`
	Total         int               `json:"total"`
	Done          int               `json:"done"`
	Failed        int               `json:"failed"`
	PerPaper      map[string]string `json:"per_paper_status"`
	ChildWorkflow map[string]string `json:"child_workflow_ids,omitempty"`
}

type ClusterSubjectProgress struct {
	RunID        string         `json:"run_id"`
	SubjectID    string         `json:"subject_id"`
	TotalModules int            `json:"total_modules"`
	DoneModules  int            `json:"done_modules"`
	PerModule    map[int]string `json:"per_module_status"`
	ClusterCount int            `json:"cluster_count"`
}
