package cluster

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"pyqlens/internal/models"
	"pyqlens/internal/similarity"
	"pyqlens/internal/textnorm"
)

type stubEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.calls++
	v, ok := s.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return v, nil
}

func makeQuestion(id, paperID string, year int, rawText string, module int) models.Question {
	res := textnorm.New().Normalize(rawText)
	return models.Question{
		QuestionID:     id,
		PaperID:        paperID,
		SubjectID:      "sub-1",
		Part:           "A",
		Number:         1,
		RawText:        rawText,
		NormalizedText: res.NormalizedText,
		TopicKey:       res.TopicKey,
		Marks:          3,
		ModuleNumber:   module,
		Year:           year,
	}
}

func disasterScenario() ([]models.Question, *stubEmbedder) {
	questions := []models.Question{
		makeQuestion("q1", "p2019", 2019, "types of disaster", 1),
		makeQuestion("q2", "p2020", 2020, "types of disasters", 1),
		makeQuestion("q3", "p2021", 2021, "classification of disasters", 1),
		makeQuestion("q4", "p2022", 2022, "landslide causes", 1),
	}
	emb := &stubEmbedder{vectors: map[string][]float32{
		"types disaster":           {1, 0, 0},
		"types disasters":          {0.98, 0.05, 0},
		"classification disasters": {0.9, 0.1, 0},
		"landslide causes":         {0, 0, 1},
	}}
	return questions, emb
}

func TestClusterDisasterScenario(t *testing.T) {
	questions, emb := disasterScenario()
	c := New(similarity.NewEngine(emb), DefaultThreshold, models.DefaultTierThresholds())

	clusters, err := c.Cluster(context.Background(), questions, 1)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}

	merged := clusters[0]
	if merged.FrequencyCount != 3 {
		t.Fatalf("merged cluster frequency: got %d, want 3", merged.FrequencyCount)
	}
	if merged.PriorityTier != 2 {
		t.Fatalf("merged cluster tier: got %d, want 2", merged.PriorityTier)
	}
	if !reflect.DeepEqual(merged.MemberIDs, []string{"q1", "q2", "q3"}) {
		t.Fatalf("merged members: got %v", merged.MemberIDs)
	}
	if !reflect.DeepEqual(merged.YearsAppeared, []int{2019, 2020, 2021}) {
		t.Fatalf("merged years: got %v", merged.YearsAppeared)
	}

	singleton := clusters[1]
	if singleton.FrequencyCount != 1 || singleton.PriorityTier != 4 {
		t.Fatalf("singleton: frequency=%d tier=%d", singleton.FrequencyCount, singleton.PriorityTier)
	}
	if !reflect.DeepEqual(singleton.MemberIDs, []string{"q4"}) {
		t.Fatalf("singleton members: got %v", singleton.MemberIDs)
	}
}

func TestClusterUsesStoredEmbeddingsWhenProviderDown(t *testing.T) {
	// Questions loaded from storage carry their vectors; even with the
	// embedding provider erroring on every call, priming must keep scoring
	// on the cosine path instead of degrading to Jaccard.
	questions, emb := disasterScenario()
	for i := range questions {
		questions[i].Embedding = emb.vectors[questions[i].NormalizedText]
	}
	down := &stubEmbedder{vectors: map[string][]float32{}}
	engine := similarity.NewEngine(down)
	c := New(engine, DefaultThreshold, models.DefaultTierThresholds())

	clusters, err := c.Cluster(context.Background(), questions, 1)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters from stored vectors, got %d", len(clusters))
	}
	if !reflect.DeepEqual(clusters[0].MemberIDs, []string{"q1", "q2", "q3"}) {
		t.Fatalf("merged members: got %v", clusters[0].MemberIDs)
	}
	if down.calls != 0 {
		t.Fatalf("provider called %d times despite primed cache", down.calls)
	}
	embedding, jaccard := engine.PathCounts()
	if embedding == 0 || jaccard != 0 {
		t.Fatalf("path counts: embedding=%d jaccard=%d", embedding, jaccard)
	}
}

func TestClusterDeterminism(t *testing.T) {
	questions, _ := disasterScenario()
	ctx := context.Background()
	tiers := models.DefaultTierThresholds()

	run := func() []models.TopicCluster {
		_, emb := disasterScenario()
		c := New(similarity.NewEngine(emb), DefaultThreshold, tiers)
		clusters, err := c.Cluster(ctx, questions, 1)
		if err != nil {
			t.Fatalf("Cluster: %v", err)
		}
		return clusters
	}

	first := run()
	second := run()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("runs differ:\n%+v\n%+v", first, second)
	}
}

func TestClusterFrequencyCountsPaperOnce(t *testing.T) {
	// Same paper repeats the same question; the paper counts once toward
	// frequency.
	questions := []models.Question{
		makeQuestion("q1", "p2021", 2021, "explain flood plain zoning", 2),
		makeQuestion("q2", "p2021", 2021, "explain flood plain zoning", 2),
	}
	c := New(similarity.NewEngine(nil), DefaultThreshold, models.DefaultTierThresholds())

	clusters, err := c.Cluster(context.Background(), questions, 2)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	if clusters[0].FrequencyCount != 1 {
		t.Fatalf("frequency: got %d, want 1", clusters[0].FrequencyCount)
	}
	if len(clusters[0].MemberIDs) != 2 {
		t.Fatalf("members: got %d, want 2", len(clusters[0].MemberIDs))
	}
	if clusters[0].PriorityTier != 4 {
		t.Fatalf("tier: got %d, want 4", clusters[0].PriorityTier)
	}
}

func TestClusterJaccardThresholdInclusive(t *testing.T) {
	// Jaccard("flood plain zoning map", "flood plain zoning") = 3/4, exactly
	// at the threshold, which must count as a join.
	questions := []models.Question{
		makeQuestion("q1", "p2020", 2020, "flood plain zoning map", 3),
		makeQuestion("q2", "p2021", 2021, "flood plain zoning", 3),
	}
	c := New(similarity.NewEngine(nil), 0.75, models.DefaultTierThresholds())

	clusters, err := c.Cluster(context.Background(), questions, 3)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	if len(clusters) != 1 {
		t.Fatalf("expected threshold-equal join, got %d clusters", len(clusters))
	}
	if clusters[0].FrequencyCount != 2 || clusters[0].PriorityTier != 3 {
		t.Fatalf("frequency=%d tier=%d", clusters[0].FrequencyCount, clusters[0].PriorityTier)
	}
}

func TestClusterRejectsBadTierConfig(t *testing.T) {
	emb := &stubEmbedder{}
	bad := models.TierThresholds{Tier1Min: 2, Tier2Min: 3, Tier3Min: 4}
	c := New(similarity.NewEngine(emb), DefaultThreshold, bad)

	questions, _ := disasterScenario()
	_, err := c.Cluster(context.Background(), questions, 1)
	var confErr *models.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if emb.calls != 0 {
		t.Fatalf("clustering work started before config validation: %d embed calls", emb.calls)
	}
}

func TestClusterRejectsBadThreshold(t *testing.T) {
	for _, threshold := range []float64{0, -0.1, 1.5} {
		c := New(similarity.NewEngine(nil), threshold, models.DefaultTierThresholds())
		_, err := c.Cluster(context.Background(), nil, 1)
		var confErr *models.ConfigurationError
		if !errors.As(err, &confErr) {
			t.Fatalf("threshold %v: expected ConfigurationError, got %v", threshold, err)
		}
	}
}

func TestClusterEmptyInput(t *testing.T) {
	c := New(similarity.NewEngine(nil), DefaultThreshold, models.DefaultTierThresholds())
	clusters, err := c.Cluster(context.Background(), nil, 1)
	if err != nil {
		t.Fatalf("empty input must not error: %v", err)
	}
	if len(clusters) != 0 {
		t.Fatalf("expected no clusters, got %d", len(clusters))
	}
}

func TestClusterScopesToModule(t *testing.T) {
	questions := []models.Question{
		makeQuestion("q1", "p2020", 2020, "flood plain zoning", 1),
		makeQuestion("q2", "p2021", 2021, "flood plain zoning", 2),
	}
	c := New(similarity.NewEngine(nil), DefaultThreshold, models.DefaultTierThresholds())

	clusters, err := c.Cluster(context.Background(), questions, 1)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	if len(clusters) != 1 || len(clusters[0].MemberIDs) != 1 {
		t.Fatalf("module scoping failed: %+v", clusters)
	}
}

func TestClusterOutputOrdering(t *testing.T) {
	// Three topics with frequencies 4, 2, 1 across shared papers must come
	// out in tier order 1, 3, 4.
	var questions []models.Question
	id := 0
	add := func(text string, years ...int) {
		for _, y := range years {
			id++
			questions = append(questions,
				makeQuestion(fmt.Sprintf("q%d", id), fmt.Sprintf("p%d", y), y, text, 1))
		}
	}
	add("explain earthquake resistant design", 2018, 2019, 2020, 2021)
	add("describe cyclone shelters", 2019, 2021)
	add("discuss drought indices", 2020)

	c := New(similarity.NewEngine(nil), DefaultThreshold, models.DefaultTierThresholds())
	clusters, err := c.Cluster(context.Background(), questions, 1)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	if len(clusters) != 3 {
		t.Fatalf("expected 3 clusters, got %d", len(clusters))
	}
	wantTiers := []int{1, 3, 4}
	wantFreq := []int{4, 2, 1}
	for i, cl := range clusters {
		if cl.PriorityTier != wantTiers[i] || cl.FrequencyCount != wantFreq[i] {
			t.Errorf("position %d: tier=%d freq=%d, want tier=%d freq=%d",
				i, cl.PriorityTier, cl.FrequencyCount, wantTiers[i], wantFreq[i])
		}
	}
}

func TestTopicNameTitleCased(t *testing.T) {
	questions := []models.Question{
		makeQuestion("q1", "p2021", 2021, "Explain the disaster management cycle phases", 1),
	}
	c := New(similarity.NewEngine(nil), DefaultThreshold, models.DefaultTierThresholds())
	clusters, err := c.Cluster(context.Background(), questions, 1)
	if err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	if clusters[0].TopicName != "Disaster Management Cycle Phases" {
		t.Fatalf("topic name: got %q", clusters[0].TopicName)
	}
}
