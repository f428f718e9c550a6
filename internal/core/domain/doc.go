// Package domain contains the core data model of the ragdex pipeline:
// documents and their chunk groups, retrieval requests and results, and
// the sentinel errors shared across services and adapters.
//
// Domain types carry no behaviour beyond derivations on their own
// fields; all coordination lives in the services layer.
package domain
