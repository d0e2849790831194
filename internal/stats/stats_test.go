package stats

import (
	"reflect"
	"testing"

	"pyqlens/internal/models"
)

func TestModuleDistributionIncludesUnclassified(t *testing.T) {
	questions := []models.Question{
		{QuestionID: "q1", ModuleNumber: 1},
		{QuestionID: "q2", ModuleNumber: 1},
		{QuestionID: "q3", ModuleNumber: 3},
		{QuestionID: "q4", ModuleNumber: models.ModuleUnclassified},
	}
	got := ModuleDistribution(questions)
	want := []ModuleCount{
		{ModuleNumber: 0, Questions: 1},
		{ModuleNumber: 1, Questions: 2},
		{ModuleNumber: 3, Questions: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("module distribution: got %+v", got)
	}
}

func TestTierDistribution(t *testing.T) {
	clusters := []models.TopicCluster{
		{PriorityTier: 4}, {PriorityTier: 1}, {PriorityTier: 4}, {PriorityTier: 2},
	}
	got := TierDistribution(clusters)
	want := []TierCount{
		{Tier: 1, Clusters: 1},
		{Tier: 2, Clusters: 1},
		{Tier: 4, Clusters: 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tier distribution: got %+v", got)
	}
}

func TestTopTopicsOrderAndLimit(t *testing.T) {
	clusters := []models.TopicCluster{
		{TopicName: "Drought Indices", PriorityTier: 4, FrequencyCount: 1},
		{TopicName: "Cyclone Shelters", PriorityTier: 2, FrequencyCount: 3},
		{TopicName: "Earthquake Design", PriorityTier: 1, FrequencyCount: 5},
		{TopicName: "Flood Routing", PriorityTier: 1, FrequencyCount: 4},
	}
	got := TopTopics(clusters, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 topics, got %d", len(got))
	}
	wantNames := []string{"Earthquake Design", "Flood Routing", "Cyclone Shelters"}
	for i, name := range wantNames {
		if got[i].TopicName != name {
			t.Errorf("position %d: got %q, want %q", i, got[i].TopicName, name)
		}
	}

	if got := TopTopics(clusters, 0); got != nil {
		t.Fatalf("n=0 should yield nil, got %+v", got)
	}
	if got := TopTopics(clusters, 10); len(got) != 4 {
		t.Fatalf("n beyond len should yield all, got %d", len(got))
	}
}

func TestSummarize(t *testing.T) {
	questions := []models.Question{
		{QuestionID: "q1", ModuleNumber: 1},
		{QuestionID: "q2", ModuleNumber: models.ModuleUnclassified},
	}
	clusters := []models.TopicCluster{
		{TopicName: "Flood Routing", PriorityTier: 1, FrequencyCount: 4},
	}
	s := Summarize(questions, clusters, 5)
	if s.TotalQuestions != 2 || s.TotalClusters != 1 || s.UnclassifiedCount != 1 {
		t.Fatalf("summary counts: %+v", s)
	}
	if len(s.TopTopics) != 1 || s.TopTopics[0].TopicName != "Flood Routing" {
		t.Fatalf("top topics: %+v", s.TopTopics)
	}
}
