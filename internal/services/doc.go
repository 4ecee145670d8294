// Package services holds the state the HTTP front-end needs between
// requests and delegates the work to the pipeline.
//
// HeatmapService keeps the current upload and exposes the upload, column
// selection, process and download steps of the web flow. HealthService
// reports liveness and readiness.
package services
