package ports

import (
	"gometa/domain/meta"
)

// DatasetReader loads studies and their outcomes from an external dataset
// (spreadsheet, CSV, ...). Implementations run the per-outcome estimation
// so the returned studies are ready for pooling.
type DatasetReader interface {
	ReadStudies() ([]*meta.Study, error)
}
