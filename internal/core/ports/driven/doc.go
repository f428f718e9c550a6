// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): loaders, content readers, splitters,
// embedding and generation clients, the vector storage client, asset
// stores, rerankers and media preprocessors.
//
// Services depend only on these interfaces; concrete adapters are
// constructed by factories keyed by configuration discriminators.
package driven
