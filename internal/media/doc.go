// Package media normalizes untrusted media blobs into canonical delivery
// formats: static rasters re-encode to PNG with capped dimensions,
// animated rasters re-encode to GIF with capped frame counts, and
// lottie-style vector stickers render to a fixed-size PNG under a
// wall-clock budget.
//
// Every decode path treats input as hostile. Formats are sniffed from
// content rather than trusted from the declared MIME type, and byte-size
// and pixel ceilings are enforced before decoding allocates.
package media
