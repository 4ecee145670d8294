package config

// Application constants
const (
	AppName    = "calheat"
	AppVersion = "1.0.0"

	// EnvPrefix namespaces every environment variable, e.g. CALHEAT_SERVER_PORT
	EnvPrefix = "CALHEAT"

	DefaultOutputPath = "calendar_heatmap.png"
	DefaultLogFile    = "logs/calheat.log"
)

// Overflow policies for days that do not fit a five-row grid
const (
	OverflowDrop   = "drop"
	OverflowExpand = "expand"
)

// Output formats
const (
	FormatPNG = "png"
	FormatSVG = "svg"
)
