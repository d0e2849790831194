// Package stats derives dashboard aggregates from questions and topic
// clusters. Pure read-side; no state of its own.
package stats

import (
	"sort"

	"pyqlens/internal/models"
)

// ModuleCount pairs a module number with how many questions landed in it.
// Module 0 is the visible unclassified bucket.
type ModuleCount struct {
	ModuleNumber int `json:"module_number"`
	Questions    int `json:"questions"`
}

// TierCount pairs a priority tier with its cluster count.
type TierCount struct {
	Tier     int `json:"tier"`
	Clusters int `json:"clusters"`
}

// Summary is the dashboard payload for one subject.
type Summary struct {
	TotalQuestions     int                  `json:"total_questions"`
	TotalClusters      int                  `json:"total_clusters"`
	UnclassifiedCount  int                  `json:"unclassified_count"`
	ModuleDistribution []ModuleCount        `json:"module_distribution"`
	TierDistribution   []TierCount          `json:"tier_distribution"`
	TopTopics          []models.TopicCluster `json:"top_topics"`
}

// ModuleDistribution counts questions per module, sorted by module number so
// the unclassified bucket leads.
func ModuleDistribution(questions []models.Question) []ModuleCount {
	counts := make(map[int]int)
	for _, q := range questions {
		counts[q.ModuleNumber]++
	}
	out := make([]ModuleCount, 0, len(counts))
	for m, n := range counts {
		out = append(out, ModuleCount{ModuleNumber: m, Questions: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModuleNumber < out[j].ModuleNumber })
	return out
}

// TierDistribution counts clusters per priority tier, sorted tier ascending.
func TierDistribution(clusters []models.TopicCluster) []TierCount {
	counts := make(map[int]int)
	for _, c := range clusters {
		counts[c.PriorityTier]++
	}
	out := make([]TierCount, 0, len(counts))
	for tier, n := range counts {
		out = append(out, TierCount{Tier: tier, Clusters: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tier < out[j].Tier })
	return out
}

// TopTopics returns the first n clusters in study priority order: tier
// ascending, frequency descending, topic name ascending.
func TopTopics(clusters []models.TopicCluster, n int) []models.TopicCluster {
	if n <= 0 {
		return nil
	}
	ranked := make([]models.TopicCluster, len(clusters))
	copy(ranked, clusters)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.PriorityTier != b.PriorityTier {
			return a.PriorityTier < b.PriorityTier
		}
		if a.FrequencyCount != b.FrequencyCount {
			return a.FrequencyCount > b.FrequencyCount
		}
		return a.TopicName < b.TopicName
	})
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}

// Summarize assembles the full dashboard payload.
func Summarize(questions []models.Question, clusters []models.TopicCluster, topN int) Summary {
	unclassified := 0
	for _, q := range questions {
		if q.ModuleNumber == models.ModuleUnclassified {
			unclassified++
		}
	}
	return Summary{
		TotalQuestions:     len(questions),
		TotalClusters:      len(clusters),
		UnclassifiedCount:  unclassified,
		ModuleDistribution: ModuleDistribution(questions),
		TierDistribution:   TierDistribution(clusters),
		TopTopics:          TopTopics(clusters, topN),
	}
}
