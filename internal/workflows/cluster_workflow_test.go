package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"pyqlens/internal/activities"
)

func registerClusterActivities(env *testsuite.TestWorkflowEnvironment) {
	registerActivityName(env, "UpdateRunStatusActivity", func(context.Context, activities.UpdateRunStatusInput) error { return nil })
	registerActivityName(env, "DistinctModulesActivity", func(context.Context, activities.DistinctModulesInput) (activities.DistinctModulesOutput, error) {
		return activities.DistinctModulesOutput{}, nil
	})
	registerActivityName(env, "ClusterModuleActivity", func(context.Context, activities.ClusterModuleInput) (activities.ClusterModuleOutput, error) {
		return activities.ClusterModuleOutput{}, nil
	})
	registerActivityName(env, "ExportClustersActivity", func(context.Context, activities.ExportClustersInput) (activities.ExportClustersOutput, error) {
		return activities.ExportClustersOutput{}, nil
	})
	registerActivityName(env, "LLMGenerateActivity", func(context.Context, activities.LLMGenerateInput) (activities.LLMGenerateOutput, error) {
		return activities.LLMGenerateOutput{}, nil
	})
	registerActivityName(env, "UpdateClusterLabelActivity", func(context.Context, activities.UpdateClusterLabelInput) error { return nil })
	registerActivityName(env, "LogProviderCallActivity", func(context.Context, activities.LogProviderCallInput) error { return nil })
}

func TestClusterSubjectWorkflowClustersEveryModule(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(ClusterSubjectWorkflow)
	registerClusterActivities(env)

	env.OnActivity("UpdateRunStatusActivity", mock.Anything, mock.Anything).Return(nil)
	// Module 0 is the unclassified bucket; it clusters like any other module.
	env.OnActivity("DistinctModulesActivity", mock.Anything, activities.DistinctModulesInput{SubjectID: "s"}).Return(activities.DistinctModulesOutput{Modules: []int{0, 1, 2}}, nil)
	env.OnActivity("ClusterModuleActivity", mock.Anything, mock.Anything).Return(activities.ClusterModuleOutput{QuestionCount: 4, ClusterCount: 2}, nil)
	env.OnActivity("ExportClustersActivity", mock.Anything, activities.ExportClustersInput{SubjectID: "s", RunID: "run1"}).Return(activities.ExportClustersOutput{OutPath: "/data/out/s/clusters.json"}, nil)

	env.ExecuteWorkflow(ClusterSubjectWorkflow, ClusterSubjectInput{RunID: "run1", SubjectID: "s", EmbedProviders: 1, LLMProviders: 1, CooldownSeconds: 10})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "/data/out/s/clusters.json", out)
	env.AssertNumberOfCalls(t, "ClusterModuleActivity", 3)
}

func TestClusterSubjectWorkflowConfigurationErrorAbortsRun(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(ClusterSubjectWorkflow)
	registerClusterActivities(env)

	env.OnActivity("UpdateRunStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("DistinctModulesActivity", mock.Anything, mock.Anything).Return(activities.DistinctModulesOutput{Modules: []int{1, 2}}, nil)
	env.OnActivity("ClusterModuleActivity", mock.Anything, mock.Anything).Return(activities.ClusterModuleOutput{}, errors.New("configuration error: similarity_threshold: must be in (0,1], got 1.5"))

	env.ExecuteWorkflow(ClusterSubjectWorkflow, ClusterSubjectInput{RunID: "run1", SubjectID: "s", Threshold: 1.5, EmbedProviders: 1, LLMProviders: 1, CooldownSeconds: 10})
	require.True(t, env.IsWorkflowCompleted())

	err := env.GetWorkflowError()
	require.Error(t, err)
	require.Contains(t, err.Error(), "configuration error")
	// The second module is never attempted once the configuration is known bad.
	env.AssertNotCalled(t, "ClusterModuleActivity", mock.Anything, mock.MatchedBy(func(in activities.ClusterModuleInput) bool {
		return in.ModuleNumber == 2
	}))
}

func TestClusterSubjectWorkflowLabelsLargerClusters(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(ClusterSubjectWorkflow)
	registerClusterActivities(env)

	clusters := []activities.ClusterSummary{
		{ClusterID: "c1", TopicName: "Disaster Management Cycle", RepresentativeText: "Explain the disaster management cycle.", Members: 3, PriorityTier: 2},
		{ClusterID: "c2", TopicName: "Landslide Causes", RepresentativeText: "What causes landslides?", Members: 1, PriorityTier: 4},
	}

	env.OnActivity("UpdateRunStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("DistinctModulesActivity", mock.Anything, mock.Anything).Return(activities.DistinctModulesOutput{Modules: []int{1}}, nil)
	env.OnActivity("ClusterModuleActivity", mock.Anything, mock.Anything).Return(activities.ClusterModuleOutput{QuestionCount: 4, ClusterCount: 2, Clusters: clusters}, nil)
	env.OnActivity("LLMGenerateActivity", mock.Anything, mock.Anything).Return(activities.LLMGenerateOutput{Text: "Disaster Management Cycle", ProviderName: "mock", Model: "mock"}, nil)
	env.OnActivity("UpdateClusterLabelActivity", mock.Anything, activities.UpdateClusterLabelInput{ClusterID: "c1", Label: "Disaster Management Cycle"}).Return(nil)
	env.OnActivity("LogProviderCallActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ExportClustersActivity", mock.Anything, mock.Anything).Return(activities.ExportClustersOutput{OutPath: "/data/out/s/clusters.json"}, nil)

	env.ExecuteWorkflow(ClusterSubjectWorkflow, ClusterSubjectInput{RunID: "run1", SubjectID: "s", LabelClusters: true, EmbedProviders: 1, LLMProviders: 1, CooldownSeconds: 10})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	// Only the multi-member cluster gets a display label; singletons keep the
	// derived topic name.
	env.AssertNumberOfCalls(t, "UpdateClusterLabelActivity", 1)
}
