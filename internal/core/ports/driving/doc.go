// Package driving defines the interfaces through which callers drive the
// core: ingestion control and the query façade.
package driving
