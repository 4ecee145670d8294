package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"calheat/internal/calendar"
	"calheat/internal/config"
	"calheat/internal/dataset"
	apperrors "calheat/internal/errors"
	"calheat/internal/files"
	"calheat/internal/infrastructure"
	"calheat/internal/pipeline"
	"calheat/internal/render"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// options are the command line flags
type options struct {
	in         string
	column     string
	out        string
	offset     int
	offsetSet  bool
	month      string
	overflow   string
	format     string
	configPath string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("calheat", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.in, "in", "", "input .csv or .xlsx file")
	fs.StringVar(&opts.column, "column", "", "name of the timestamp column")
	fs.StringVar(&opts.out, "out", "", "output image path (defaults to render.output_path)")
	fs.IntVar(&opts.offset, "offset", 0, "column 0..6 of day 1 (defaults to render.offset)")
	fs.StringVar(&opts.month, "month", "", "derive offset and day count from a real month, YYYY-MM")
	fs.StringVar(&opts.overflow, "overflow", "", "what to do with days past the grid: drop or expand")
	fs.StringVar(&opts.format, "format", "", "image format: png or svg (defaults to the output extension)")
	fs.StringVar(&opts.configPath, "config", "", "path to a YAML config file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "offset" {
			opts.offsetSet = true
		}
	})
	return opts, nil
}

// run executes one cycle and returns the process exit code: 1 on a
// structural failure, 0 otherwise, including when rows were skipped
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "calheat: %v\n", err)
		return 1
	}

	logger, err := infrastructure.NewLogger(cfg.Logging, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "calheat: %v\n", err)
		return 1
	}
	defer infrastructure.CloseLogFile()

	req, err := buildRequest(opts, cfg)
	if err != nil {
		logger.ErrorContext(ctx, "Invalid arguments", slog.String("error", err.Error()))
		fmt.Fprintf(stderr, "calheat: %v\n", err)
		return 1
	}

	if opts.in != "" {
		table, err := readTable(opts.in)
		switch {
		case errors.Is(err, dataset.ErrEmptyDataset):
			// an empty file is reported like a missing one
			logger.WarnContext(ctx, "Input has no rows", slog.String("path", opts.in))
		case err != nil:
			logger.ErrorContext(ctx, "Failed to read input",
				slog.String("path", opts.in),
				slog.String("error", err.Error()))
			fmt.Fprintf(stderr, "calheat: %v\n", err)
			return 1
		default:
			req.Table = table
		}
	}

	fm := files.NewManager("", logger)
	style := render.DefaultStyle().WithCellSize(cfg.Render.CellSize, cfg.Render.FontSize)
	renderer, err := render.NewRenderer(style, fm, logger)
	if err != nil {
		fmt.Fprintf(stderr, "calheat: %v\n", err)
		return 1
	}

	svc := pipeline.NewService(renderer, logger, pipeline.WithDefaultDestination(cfg.Render.OutputPath))
	result, err := svc.Run(infrastructure.EnsureTraceID(ctx), *req)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			fmt.Fprintln(stderr, appErr.Message)
		} else {
			fmt.Fprintf(stderr, "calheat: %v\n", err)
		}
		return 1
	}

	fmt.Fprintf(stdout, "Calendar heatmap saved as %s\n", result.Output.Path)
	if n := len(result.Aggregation.Skipped); n > 0 {
		fmt.Fprintf(stdout, "%d rows skipped\n", n)
	}
	if len(result.Grid.Dropped) > 0 {
		fmt.Fprintf(stdout, "days not shown: %v\n", result.Grid.Dropped)
	}
	return 0
}

// buildRequest merges the flags over the configured render defaults
func buildRequest(opts *options, cfg *config.Config) (*pipeline.Request, error) {
	offset := cfg.Render.Offset
	if opts.offsetSet {
		offset = opts.offset
	}
	if err := calendar.Offset(offset).Validate(); err != nil {
		return nil, err
	}

	overflow := opts.overflow
	if overflow == "" {
		overflow = cfg.Render.Overflow
	}
	policy, err := calendar.ParseOverflowPolicy(overflow)
	if err != nil {
		return nil, err
	}

	formatName := opts.format
	if formatName == "" {
		formatName = cfg.Render.Format
	}
	format, err := render.ParseFormat(formatName)
	if err != nil {
		return nil, err
	}

	out := opts.out
	if out == "" {
		out = cfg.Render.OutputPath
	}
	out = render.DestinationFor(out, format)

	return &pipeline.Request{
		Column:      opts.column,
		Offset:      calendar.Offset(offset),
		Month:       opts.month,
		Overflow:    policy,
		Destination: out,
		Format:      format,
	}, nil
}

func readTable(path string) (*dataset.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return dataset.Read(f, filepath.Base(path))
}
