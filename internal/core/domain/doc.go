// Package domain contains the core types of the chatvault archive:
// conversations, messages, media assets, sync cursors and search results.
// It has no dependencies on adapters or external services.
package domain
