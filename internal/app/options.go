package app

import "io"

// RunOptions configure the refresh loop.
type RunOptions struct {
	Window string
	Out    io.Writer
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Window string
	Rows   int
	JSON   bool
	Out    io.Writer
}

// ExportOptions hold parameters for exporting the windowed organized table.
type ExportOptions struct {
	Window         string
	CSVPath        string
	PNGPath        string
	ComparePNGPath string
	MaxPoints      int
}

// ServeOptions configure the HTTP API.
type ServeOptions struct {
	Addr   string
	Window string
}
