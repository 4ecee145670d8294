// Package config provides configuration loading for the calheat tools.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML configuration file (calheat.yaml or configs/calheat.yaml, or an explicit path)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern CALHEAT_<SECTION>_<FIELD>:
//
//	CALHEAT_SERVER_PORT=8080
//	CALHEAT_LOGGING_LEVEL=debug
//	CALHEAT_RENDER_OUTPUT_PATH=out/calendar_heatmap.png
//	CALHEAT_RENDER_OFFSET=3
//	CALHEAT_RENDER_OVERFLOW=expand
//	CALHEAT_UPLOAD_MAX_BYTES=5242880
//
// The rendering core never reads configuration itself; the command line
// tool and the HTTP server translate Config into explicit parameters.
package config
