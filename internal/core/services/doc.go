// Package services contains the pipeline services: source resolution
// and recursive loading, chunking, embedding, asset persistence,
// transactional indexing, multimodal retrieval, and grounded
// generation. Services depend only on the driven ports; concrete
// backends are injected by the composition root.
package services
