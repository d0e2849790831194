package models

import "time"

// ModuleUnclassified is the explicit bucket for questions no strategy could
// place. It clusters separately and is never merged into a numbered module.
const ModuleUnclassified = 0

type Subject struct {
	SubjectID   string    `json:"subject_id"`
	Name        string    `json:"name"`
	PatternName string    `json:"pattern_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Module is a syllabus subdivision. Keywords feed the classifier's
// overlap fallback.
type Module struct {
	SubjectID string   `json:"subject_id"`
	Number    int      `json:"number"`
	Title     string   `json:"title,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`
}

type Paper struct {
	PaperID    string    `json:"paper_id"`
	SubjectID  string    `json:"subject_id"`
	Filename   string    `json:"filename"`
	Year       int       `json:"year"`
	Term       string    `json:"term,omitempty"`
	Status     string    `json:"status"`
	FailReason string    `json:"fail_reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Question is the durable unit produced by one paper analysis.
// NormalizedText and TopicKey are always derived from RawText by the
// normalizer; ModuleNumber is set before clustering, ClusterID during it.
type Question struct {
	QuestionID     string    `json:"question_id"`
	PaperID        string    `json:"paper_id"`
	SubjectID      string    `json:"subject_id"`
	Part           string    `json:"part"`
	Number         int       `json:"number"`
	SubLetter      string    `json:"sub_letter,omitempty"`
	Seq            int       `json:"seq"`
	RawText        string    `json:"raw_text"`
	NormalizedText string    `json:"normalized_text"`
	TopicKey       string    `json:"topic_key"`
	Marks          int       `json:"marks"`
	ModuleNumber   int       `json:"module_number"`
	ClusterID      string    `json:"cluster_id,omitempty"`
	Year           int       `json:"year"`
	BloomLevel     string    `json:"bloom_level,omitempty"`
	Difficulty     string    `json:"difficulty,omitempty"`
	Embedding      []float32 `json:"embedding,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// TopicCluster aggregates questions judged to be the same topic across
// papers. A module's cluster set is wholesale-replaced on every clustering
// run; none of these fields is ever patched in place.
type TopicCluster struct {
	ClusterID      string   `json:"cluster_id"`
	SubjectID      string   `json:"subject_id"`
	ModuleNumber   int      `json:"module_number"`
	TopicName      string   `json:"topic_name"`
	DisplayLabel   string   `json:"display_label,omitempty"`
	NormalizedKey  string   `json:"normalized_key"`
	MemberIDs      []string `json:"member_question_ids"`
	FrequencyCount int      `json:"frequency_count"`
	YearsAppeared  []int    `json:"years_appeared"`
	TotalMarks     int      `json:"total_marks"`
	AvgMarks       float64  `json:"avg_marks"`
	PartACount     int      `json:"part_a_count"`
	PartBCount     int      `json:"part_b_count"`
	PriorityTier   int      `json:"priority_tier"`
}
