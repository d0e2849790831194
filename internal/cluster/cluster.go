// Package cluster groups one module's questions into topic clusters by
// greedy threshold agglomeration, then computes per-cluster aggregates and
// priority tiers.
package cluster

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"pyqlens/internal/models"
	"pyqlens/internal/similarity"
	"pyqlens/internal/textnorm"
)

const (
	// DefaultThreshold is the join threshold carried from the source
	// configuration; callers can override per subject.
	DefaultThreshold = 0.75

	maxTopicNameWords = 6
)

// Clusterer runs one clustering pass. Build a fresh Clusterer (and Engine)
// per pass; the engine's embedding cache is scoped to that one run.
type Clusterer struct {
	engine    *similarity.Engine
	threshold float64
	tiers     models.TierThresholds
}

func New(engine *similarity.Engine, threshold float64, tiers models.TierThresholds) *Clusterer {
	return &Clusterer{engine: engine, threshold: threshold, tiers: tiers}
}

// working is a cluster under construction. The representative is the
// first-inserted member and never changes.
type working struct {
	representative models.Question
	members        []models.Question
}

// Cluster partitions the given module's questions into topic clusters.
// Configuration is validated before any work; identical input and
// configuration always yields an identical result, membership and ordering
// included. Zero questions is not an error and yields zero clusters.
func (c *Clusterer) Cluster(ctx context.Context, questions []models.Question, moduleNumber int) ([]models.TopicCluster, error) {
	if err := c.tiers.Validate(); err != nil {
		return nil, err
	}
	if c.threshold <= 0 || c.threshold > 1 {
		return nil, &models.ConfigurationError{
			Field:  "similarity_threshold",
			Reason: fmt.Sprintf("must be in (0,1], got %v", c.threshold),
		}
	}

	scoped := make([]models.Question, 0, len(questions))
	for _, q := range questions {
		if q.ModuleNumber == moduleNumber {
			scoped = append(scoped, q)
		}
	}
	sortQuestions(scoped)
	for _, q := range scoped {
		c.engine.Prime(q.NormalizedText, q.Embedding)
	}

	clusters, remaining := groupExactKeys(scoped)

	for _, q := range remaining {
		joined := false
		for _, w := range clusters {
			score, _ := c.engine.Score(ctx, q.NormalizedText, w.representative.NormalizedText)
			// First cluster crossing the threshold wins; scanning on for a
			// better match would make the pass order-sensitive.
			if score >= c.threshold {
				w.members = append(w.members, q)
				joined = true
				break
			}
		}
		if !joined {
			clusters = append(clusters, &working{representative: q, members: []models.Question{q}})
		}
	}

	out := make([]models.TopicCluster, 0, len(clusters))
	for _, w := range clusters {
		out = append(out, c.finalize(w))
	}
	sortClusters(out)
	return out, nil
}

// sortQuestions fixes the processing order: year, paper, then position
// within the paper. Re-running on unchanged input walks the exact same
// sequence.
func sortQuestions(questions []models.Question) {
	sort.SliceStable(questions, func(i, j int) bool {
		a, b := questions[i], questions[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.PaperID != b.PaperID {
			return a.PaperID < b.PaperID
		}
		if a.Part != b.Part {
			return a.Part < b.Part
		}
		if a.Number != b.Number {
			return a.Number < b.Number
		}
		if a.SubLetter != b.SubLetter {
			return a.SubLetter < b.SubLetter
		}
		return a.Seq < b.Seq
	})
}

// groupExactKeys is the fast path: questions sharing a topic key are the
// same topic by construction and never consult the similarity engine.
// Questions with an empty key carry no content signal and stay ungrouped.
func groupExactKeys(questions []models.Question) ([]*working, []models.Question) {
	byKey := make(map[string]int, len(questions))
	for _, q := range questions {
		if q.TopicKey != "" {
			byKey[q.TopicKey]++
		}
	}

	clusters := make([]*working, 0)
	index := make(map[string]*working)
	remaining := make([]models.Question, 0)
	for _, q := range questions {
		if q.TopicKey == "" || byKey[q.TopicKey] < 2 {
			remaining = append(remaining, q)
			continue
		}
		w, ok := index[q.TopicKey]
		if !ok {
			w = &working{representative: q}
			index[q.TopicKey] = w
			clusters = append(clusters, w)
		}
		w.members = append(w.members, q)
	}
	return clusters, remaining
}

func (c *Clusterer) finalize(w *working) models.TopicCluster {
	papers := make(map[string]struct{})
	years := make(map[int]struct{})
	memberIDs := make([]string, 0, len(w.members))
	totalMarks, partA, partB := 0, 0, 0
	for _, q := range w.members {
		memberIDs = append(memberIDs, q.QuestionID)
		papers[q.PaperID] = struct{}{}
		years[q.Year] = struct{}{}
		totalMarks += q.Marks
		switch q.Part {
		case "A":
			partA++
		case "B":
			partB++
		}
	}

	yearList := make([]int, 0, len(years))
	for y := range years {
		yearList = append(yearList, y)
	}
	sort.Ints(yearList)

	rep := w.representative
	frequency := len(papers)
	return models.TopicCluster{
		ClusterID:      clusterID(rep),
		SubjectID:      rep.SubjectID,
		ModuleNumber:   rep.ModuleNumber,
		TopicName:      topicName(rep.NormalizedText),
		NormalizedKey:  rep.TopicKey,
		MemberIDs:      memberIDs,
		FrequencyCount: frequency,
		YearsAppeared:  yearList,
		TotalMarks:     totalMarks,
		AvgMarks:       float64(totalMarks) / float64(len(w.members)),
		PartACount:     partA,
		PartBCount:     partB,
		PriorityTier:   c.tiers.TierFor(frequency),
	}
}

// clusterID is content-derived so identical runs emit identical IDs.
func clusterID(rep models.Question) string {
	seed := fmt.Sprintf("%s/%d/%s", rep.SubjectID, rep.ModuleNumber, rep.TopicKey)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String()
}

// topicName title-cases the first few content words of the representative.
func topicName(normalized string) string {
	words := textnorm.Tokens(normalized)
	if len(words) > maxTopicNameWords {
		words = words[:maxTopicNameWords]
	}
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// sortClusters applies the output contract consumed by reports and
// dashboards: study priority order.
func sortClusters(clusters []models.TopicCluster) {
	sort.SliceStable(clusters, func(i, j int) bool {
		a, b := clusters[i], clusters[j]
		if a.PriorityTier != b.PriorityTier {
			return a.PriorityTier < b.PriorityTier
		}
		if a.FrequencyCount != b.FrequencyCount {
			return a.FrequencyCount > b.FrequencyCount
		}
		return a.TopicName < b.TopicName
	})
}
