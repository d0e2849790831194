package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ListPDFsActivity)
	w.RegisterActivity(a.ComputePaperIDActivity)
	w.RegisterActivity(a.ExtractTextActivity)
	w.RegisterActivity(a.ParseFilenameActivity)
	w.RegisterActivity(a.GetSubjectActivity)
	w.RegisterActivity(a.ExtractQuestionsActivity)
	w.RegisterActivity(a.EmbedQuestionsActivity)
	w.RegisterActivity(a.UpsertQuestionsActivity)
	w.RegisterActivity(a.WritePaperArtifactsActivity)
	w.RegisterActivity(a.UpdatePaperStatusActivity)
	w.RegisterActivity(a.ListFailedPapersActivity)
	w.RegisterActivity(a.DistinctModulesActivity)
	w.RegisterActivity(a.ClusterModuleActivity)
	w.RegisterActivity(a.LLMGenerateActivity)
	w.RegisterActivity(a.UpdateClusterLabelActivity)
	w.RegisterActivity(a.ExportClustersActivity)
	w.RegisterActivity(a.WriteSubjectSummaryActivity)
	w.RegisterActivity(a.UpdateRunStatusActivity)
	w.RegisterActivity(a.LogProviderCallActivity)
}
