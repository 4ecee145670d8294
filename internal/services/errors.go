package services

import "errors"

var (
	ErrNoUpload       = errors.New("no file has been uploaded")
	ErrNoRenderedPlot = errors.New("no plot has been rendered")
)
