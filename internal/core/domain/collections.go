package domain

import "regexp"

var modelNamePattern = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// NormalizeModelName rewrites an embedding model identity into a form
// safe to embed in a collection name.
func NormalizeModelName(name string) string {
	return modelNamePattern.ReplaceAllString(name, "_")
}

// DocumentCollection returns the per-project document collection name.
func DocumentCollection(projectID string) string {
	return projectID + "_documents"
}

// EmbeddingCollection returns the per-project, per-model vector
// collection name.
func EmbeddingCollection(projectID, model string) string {
	return projectID + "_embedding_" + NormalizeModelName(model)
}
