// Package http implements the HTTP handlers of the calheat web front-end.
// Handlers stay thin: they parse the request, call the service layer and
// format the response.
//
// # Routes
//
//	POST /api/upload    multipart field "file" (.csv or .xlsx)
//	GET  /api/columns   columns of the current upload
//	POST /api/process   {"column", "offset", "month", "overflow", "format"}
//	GET  /api/download  the last rendered image
//	GET  /healthz       liveness
//	GET  /readyz        readiness
//
// Successful responses are JSON documents of the form
//
//	{"status": "success", "data": ...}
//
// # Error Handling
//
// All errors follow RFC 7807 Problem Details:
//
//	{
//	    "type": "/errors/input/column-not-selected",
//	    "title": "Bad Request",
//	    "status": 400,
//	    "detail": "Please select the Timestamp column.",
//	    "instance": "/api/process",
//	    "error_code": "MISSING_COLUMN"
//	}
package http
