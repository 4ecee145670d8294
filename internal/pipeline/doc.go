// Package pipeline runs the upload-and-render cycle.
//
// A cycle validates the request (an uploaded table and a selected timestamp
// column), aggregates the column into per-day densities, lays the month out
// on a calendar grid and renders the heatmap to a destination path.
// Diagnostics flow to a Reporter as they happen; the returned error carries
// only structural failures. Cycles are serialized by the Service.
package pipeline
