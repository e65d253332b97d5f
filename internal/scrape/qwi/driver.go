package qwi

import "context"

// DiscoveryDriver performs the UI actions the discovery walk needs. Each call
// blocks until the control it acts on is ready or the driver's wait timeout
// expires.
type DiscoveryDriver interface {
	Open(ctx context.Context) error
	// ApplyFilters selects the firm-age and worker-education options and
	// clears the geography selection.
	ApplyFilters(ctx context.Context) error
	// States lists the geography tab labels; the first is the United States.
	States(ctx context.Context) ([]string, error)
	SelectState(ctx context.Context, index int) error
	SelectMetros(ctx context.Context) error
	OpenQuarters(ctx context.Context) error
	MetroListHTML(ctx context.Context) (string, error)
	AvailabilityHTML(ctx context.Context) (string, error)
	ResetGeography(ctx context.Context) error
}

// ExportDriver performs the UI actions of a settings-file export.
type ExportDriver interface {
	Open(ctx context.Context) error
	LoadSettings(ctx context.Context, path string) error
	// ReapplyWorkerFilters restores the worker options a settings file does
	// not carry over.
	ReapplyWorkerFilters(ctx context.Context) error
	SubmitExport(ctx context.Context) error
	// DownloadCSV follows the CSV link once the export is ready and returns
	// the path of the downloaded file and the export request id.
	DownloadCSV(ctx context.Context) (path, requestID string, err error)
}

// Driver is a browser session able to run both discovery and exports.
type Driver interface {
	DiscoveryDriver
	ExportDriver
	Close() error
}
