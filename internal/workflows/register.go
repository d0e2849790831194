package workflows

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker) {
	w.RegisterWorkflow(SubjectAnalyzeWorkflow)
	w.RegisterWorkflow(PaperAnalyzeWorkflow)
	w.RegisterWorkflow(ClusterSubjectWorkflow)
	w.RegisterWorkflow(RetryFailedPapersWorkflow)
}
