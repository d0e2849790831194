package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"pyqlens/internal/activities"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func registerPaperActivities(env *testsuite.TestWorkflowEnvironment) {
	registerActivityName(env, "ComputePaperIDActivity", func(context.Context, activities.ComputePaperIDInput) (activities.ComputePaperIDOutput, error) {
		return activities.ComputePaperIDOutput{}, nil
	})
	registerActivityName(env, "ParseFilenameActivity", func(context.Context, activities.ParseFilenameInput) (activities.ParseFilenameOutput, error) {
		return activities.ParseFilenameOutput{}, nil
	})
	registerActivityName(env, "UpdatePaperStatusActivity", func(context.Context, activities.UpdatePaperStatusInput) error { return nil })
	registerActivityName(env, "ExtractTextActivity", func(context.Context, activities.ExtractTextInput) (activities.ExtractTextOutput, error) {
		return activities.ExtractTextOutput{}, nil
	})
	registerActivityName(env, "ExtractQuestionsActivity", func(context.Context, activities.ExtractQuestionsInput) (activities.ExtractQuestionsOutput, error) {
		return activities.ExtractQuestionsOutput{}, nil
	})
	registerActivityName(env, "EmbedQuestionsActivity", func(context.Context, activities.EmbedQuestionsInput) (activities.EmbedQuestionsOutput, error) {
		return activities.EmbedQuestionsOutput{}, nil
	})
	registerActivityName(env, "UpsertQuestionsActivity", func(context.Context, activities.UpsertQuestionsInput) error { return nil })
	registerActivityName(env, "WritePaperArtifactsActivity", func(context.Context, activities.WritePaperArtifactsInput) error { return nil })
	registerActivityName(env, "LogProviderCallActivity", func(context.Context, activities.LogProviderCallInput) error { return nil })
}

func TestPaperAnalyzeWorkflowSuccess(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperAnalyzeWorkflow)
	registerPaperActivities(env)

	questions := []activities.QuestionItem{
		{QuestionID: "q1", PaperID: "paper123", Part: "A", Number: 1, RawText: "Explain the disaster management cycle."},
		{QuestionID: "q2", PaperID: "paper123", Part: "B", Number: 11, RawText: "Describe flood plain zoning with a neat sketch."},
	}

	env.OnActivity("ComputePaperIDActivity", mock.Anything, activities.ComputePaperIDInput{PaperPath: "/tmp/ce302-dec-2021.pdf"}).Return(activities.ComputePaperIDOutput{PaperID: "paper123"}, nil)
	env.OnActivity("ParseFilenameActivity", mock.Anything, activities.ParseFilenameInput{Filename: "ce302-dec-2021.pdf"}).Return(activities.ParseFilenameOutput{Year: 2021, Term: "dec"}, nil)
	env.OnActivity("UpdatePaperStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).Return(activities.ExtractTextOutput{Text: "PART A\n1. Explain..."}, nil)
	env.OnActivity("ExtractQuestionsActivity", mock.Anything, mock.Anything).Return(activities.ExtractQuestionsOutput{Questions: questions, Unclassified: 0}, nil)
	env.OnActivity("EmbedQuestionsActivity", mock.Anything, mock.Anything).Return(activities.EmbedQuestionsOutput{Vectors: [][]float32{{0.1, 0.2}, {0.3, 0.4}}, ProviderName: "mock", Model: "mock"}, nil)
	env.OnActivity("UpsertQuestionsActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("WritePaperArtifactsActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("LogProviderCallActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(PaperAnalyzeWorkflow, PaperAnalyzeInput{SubjectID: "s", PaperPath: "/tmp/ce302-dec-2021.pdf", PatternName: "ktu_standard", EmbedProviders: 1, CooldownSeconds: 10})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "analyzed", out)
}

func TestPaperAnalyzeWorkflowNoTextFailsGracefully(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperAnalyzeWorkflow)
	registerPaperActivities(env)

	env.OnActivity("ComputePaperIDActivity", mock.Anything, mock.Anything).Return(activities.ComputePaperIDOutput{PaperID: "paper123"}, nil)
	env.OnActivity("ParseFilenameActivity", mock.Anything, mock.Anything).Return(activities.ParseFilenameOutput{}, nil)
	env.OnActivity("UpdatePaperStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).Return(activities.ExtractTextOutput{}, errors.New("no extractable text found in PDF"))

	env.ExecuteWorkflow(PaperAnalyzeWorkflow, PaperAnalyzeInput{SubjectID: "s", PaperPath: "/tmp/p.pdf", EmbedProviders: 1, CooldownSeconds: 10})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "failed", out)
}

func TestPaperAnalyzeWorkflowExtractionErrorFailsOnlyThisPaper(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperAnalyzeWorkflow)
	registerPaperActivities(env)

	env.OnActivity("ComputePaperIDActivity", mock.Anything, mock.Anything).Return(activities.ComputePaperIDOutput{PaperID: "paper123"}, nil)
	env.OnActivity("ParseFilenameActivity", mock.Anything, mock.Anything).Return(activities.ParseFilenameOutput{Year: 2021}, nil)
	env.OnActivity("UpdatePaperStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).Return(activities.ExtractTextOutput{Text: "garbled scan output"}, nil)
	env.OnActivity("ExtractQuestionsActivity", mock.Anything, mock.Anything).Return(activities.ExtractQuestionsOutput{}, errors.New(`extraction failed at segment: no question boundaries matched (input: "garbled scan output")`))

	env.ExecuteWorkflow(PaperAnalyzeWorkflow, PaperAnalyzeInput{SubjectID: "s", PaperPath: "/tmp/p.pdf", PatternName: "ktu_standard", EmbedProviders: 1, CooldownSeconds: 10})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "failed", out)
}

func TestPaperAnalyzeWorkflowEmbeddingFailureDegrades(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperAnalyzeWorkflow)
	registerPaperActivities(env)

	env.OnActivity("ComputePaperIDActivity", mock.Anything, mock.Anything).Return(activities.ComputePaperIDOutput{PaperID: "paper123"}, nil)
	env.OnActivity("ParseFilenameActivity", mock.Anything, mock.Anything).Return(activities.ParseFilenameOutput{Year: 2021}, nil)
	env.OnActivity("UpdatePaperStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ExtractTextActivity", mock.Anything, mock.Anything).Return(activities.ExtractTextOutput{Text: "PART A\n1. Explain..."}, nil)
	env.OnActivity("ExtractQuestionsActivity", mock.Anything, mock.Anything).Return(activities.ExtractQuestionsOutput{Questions: []activities.QuestionItem{{QuestionID: "q1", Part: "A", Number: 1}}}, nil)
	env.OnActivity("EmbedQuestionsActivity", mock.Anything, mock.Anything).Return(activities.EmbedQuestionsOutput{}, errors.New("insufficient_quota"))
	env.OnActivity("UpsertQuestionsActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("WritePaperArtifactsActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("LogProviderCallActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(PaperAnalyzeWorkflow, PaperAnalyzeInput{SubjectID: "s", PaperPath: "/tmp/p.pdf", PatternName: "ktu_standard", EmbedProviders: 1, CooldownSeconds: 10})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	// Questions still land without vectors; clustering falls back to lexical
	// scoring later.
	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "analyzed", out)
}
