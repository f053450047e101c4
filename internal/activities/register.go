package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.SetStatusActivity)
	w.RegisterActivity(a.ExtractDocumentActivity)
	w.RegisterActivity(a.UpdateMetadataActivity)
	w.RegisterActivity(a.ChunkDocumentActivity)
	w.RegisterActivity(a.IndexChunksActivity)
	w.RegisterActivity(a.RemoveDocumentActivity)
	w.RegisterActivity(a.WriteArtifactsActivity)
}
