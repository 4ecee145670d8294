package services

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/xuri/excelize/v2"

	"calheat/internal/config"
	"calheat/internal/files"
	"calheat/internal/pipeline"
	"calheat/internal/render"
)

// HeatmapServiceSuite drives upload-and-render cycles against one service
type HeatmapServiceSuite struct {
	suite.Suite
	dir      string
	reporter *pipeline.RecordingReporter
	service  *HeatmapService
	ctx      context.Context
}

func (s *HeatmapServiceSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.ctx = context.Background()
	s.reporter = &pipeline.RecordingReporter{}

	fm := files.NewManager(s.dir, discardLogger())
	renderer, err := render.NewRenderer(render.DefaultStyle(), fm, discardLogger())
	s.Require().NoError(err)

	pipe := pipeline.NewService(renderer, discardLogger(), pipeline.WithReporter(s.reporter))
	s.service = NewHeatmapService(pipe, fm, config.Default().Render, discardLogger())
}

func (s *HeatmapServiceSuite) workbook(rows [][]interface{}) *bytes.Buffer {
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		s.Require().NoError(err)
		s.Require().NoError(f.SetSheetRow("Sheet1", cell, &row))
	}

	buf, err := f.WriteToBuffer()
	s.Require().NoError(err)
	return buf
}

func (s *HeatmapServiceSuite) TestXLSXUpload() {
	buf := s.workbook([][]interface{}{
		{"When", "Note"},
		{"2024-02-01 09:00", "a"},
		{"2024-02-29", "b"},
		{"2024-02-30", "c"},
	})

	summary, err := s.service.Upload(s.ctx, "events.xlsx", buf)
	s.Require().NoError(err)
	s.Equal([]string{"When", "Note"}, summary.Columns)
	s.Equal(3, summary.Rows)

	result, err := s.service.Process(s.ctx, ProcessRequest{Column: "When", Month: "2024-02"})
	s.Require().NoError(err)

	// February 2024 starts on a Thursday
	s.Equal(4, result.Offset)
	s.Equal(2, result.Counted)
	s.Equal(1, result.Skipped)
	s.Equal(1, result.Counts[0])
	s.Equal(1, result.Counts[28])
	s.Equal(filepath.Join(s.dir, config.DefaultOutputPath), result.OutputPath)
}

func (s *HeatmapServiceSuite) TestReuploadReplacesColumns() {
	_, err := s.service.Upload(s.ctx, "first.csv", strings.NewReader("Timestamp\n2024-01-01\n"))
	s.Require().NoError(err)

	_, err = s.service.Upload(s.ctx, "second.csv", strings.NewReader("Created\n2024-01-02\n"))
	s.Require().NoError(err)

	current, err := s.service.Current()
	s.Require().NoError(err)
	s.Equal("second.csv", current.Name)
	s.Equal([]string{"Created"}, current.Columns)

	_, err = s.service.Process(s.ctx, ProcessRequest{Column: "Timestamp"})
	s.Error(err)
}

func (s *HeatmapServiceSuite) TestConcurrentProcessing() {
	_, err := s.service.Upload(s.ctx, "events.csv", strings.NewReader(scenarioCSV))
	s.Require().NoError(err)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			offset := i % 7
			_, err := s.service.Process(s.ctx, ProcessRequest{Column: "Timestamp", Offset: &offset})
			if err != nil {
				errs <- fmt.Errorf("worker %d: %w", i, err)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.NoError(err)
	}

	// one completion event per cycle, never interleaved with another cycle's start
	var open bool
	for _, event := range s.reporter.Events() {
		switch event.Type {
		case pipeline.EventStarted:
			s.False(open, "cycle started while another was running")
			open = true
		case pipeline.EventComplete:
			s.True(open)
			open = false
		}
	}

	artifact, err := s.service.Download(s.ctx)
	s.Require().NoError(err)
	defer artifact.File.Close()
	s.Equal("image/png", artifact.ContentType)
}

func TestHeatmapServiceSuite(t *testing.T) {
	suite.Run(t, new(HeatmapServiceSuite))
}
