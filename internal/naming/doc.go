// Package naming builds output file names from probe results and movie
// metadata, and turns release-style file names back into search queries.
package naming
