// Package loaders implements the source loaders behind the
// driven.Loader port: local directories, archives, and remote GitHub
// repositories, plus the extension-based content reader that turns
// individual files into documents.
package loaders
