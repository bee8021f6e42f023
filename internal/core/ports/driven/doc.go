// Package driven defines the interfaces the core depends on: the remote
// source client, the metadata stores, the media normalizer and the search
// index. Adapters implement these.
package driven
