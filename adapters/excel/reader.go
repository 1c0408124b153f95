package excel

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"gometa/domain/meta"
)

// DataReader loads studies and outcomes from Excel or CSV datasets. One
// row describes one outcome; rows sharing a citation form one study, in
// encounter order.
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType}
}

// ReadStudies reads the dataset, runs per-outcome estimation and returns
// the studies ready for pooling.
func (r *DataReader) ReadStudies() ([]*meta.Study, error) {
	log.Printf("[DataReader] Starting to read %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	case "xlsx":
		rows, err = r.readExcelRows()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
	if err != nil {
		return nil, err
	}

	if len(rows) < 2 {
		return nil, fmt.Errorf("%s file must have at least a header row and one data row",
			strings.ToUpper(r.fileType))
	}

	return r.processRows(rows)
}

// readExcelRows reads the raw cells of Sheet1.
func (r *DataReader) readExcelRows() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	// Always use Sheet1
	rows, err := f.GetRows("Sheet1")
	if err != nil {
		return nil, fmt.Errorf("failed to read Sheet1: %w", err)
	}
	return rows, nil
}

// readCSVRows reads the raw records of a CSV file.
func (r *DataReader) readCSVRows() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

// processRows converts raw string rows into estimated studies, grouped by
// citation in encounter order.
func (r *DataReader) processRows(rows [][]string) ([]*meta.Study, error) {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(strings.ToLower(header))
	}

	byCitation := make(map[string]*meta.Study)
	var studies []*meta.Study

	for i := 1; i < len(rows); i++ {
		rowData := make(RawRowData)
		for j, cell := range rows[i] {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}

		outcome, err := buildOutcome(rowData)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}

		citation := rowData[colCitation]
		if citation == "" {
			return nil, fmt.Errorf("row %d: missing %s", i+1, colCitation)
		}

		study, ok := byCitation[citation]
		if !ok {
			study = meta.NewStudy(rowData[colNote], citation)
			byCitation[citation] = study
			studies = append(studies, study)
		}
		study.AppendOutcome(outcome)
	}

	log.Printf("[DataReader] %s file processed (%d studies, %d rows)",
		strings.ToUpper(r.fileType), len(studies), len(rows)-1)

	return studies, nil
}

// buildOutcome parses one data row into an estimated outcome record.
func buildOutcome(row RawRowData) (*meta.Outcome, error) {
	label := row[colLabel]
	if label == "" {
		return nil, fmt.Errorf("missing %s", colLabel)
	}

	treatN, err := intColumn(row, colTreatN)
	if err != nil {
		return nil, err
	}
	controlN, err := intColumn(row, colControlN)
	if err != nil {
		return nil, err
	}
	usePre := boolColumn(row, colUsePre)

	kind := strings.ToLower(row[colKind])
	switch kind {
	case KindCustom, "":
		effectSize, err := floatColumn(row, colEffectSize)
		if err != nil {
			return nil, err
		}
		variance, err := floatColumn(row, colVariance)
		if err != nil {
			return nil, err
		}
		outcome := meta.NewEstimatedOutcome(label, treatN, controlN, effectSize, variance)
		outcome.Note = row[colNote]
		return outcome, nil

	case KindBinary:
		treatPost, err := floatColumn(row, colTreatPost)
		if err != nil {
			return nil, err
		}
		controlPost, err := floatColumn(row, colControlPost)
		if err != nil {
			return nil, err
		}
		binary := meta.NewBinaryOutcome(label, treatN, controlN, treatPost, controlPost)
		if treatPre, ok, err := optionalFloatColumn(row, colTreatPre); err != nil {
			return nil, err
		} else if ok {
			controlPre, err := floatColumn(row, colControlPre)
			if err != nil {
				return nil, err
			}
			binary.SetPrePeriod(treatPre, controlPre)
		}
		return estimate(binary, row, usePre)

	case KindContinuous:
		treatPost, err := floatColumn(row, colTreatPost)
		if err != nil {
			return nil, err
		}
		controlPost, err := floatColumn(row, colControlPost)
		if err != nil {
			return nil, err
		}
		treatPostSD, err := floatColumn(row, colTreatPostSD)
		if err != nil {
			return nil, err
		}
		controlPostSD, err := floatColumn(row, colControlPostSD)
		if err != nil {
			return nil, err
		}
		continuous := meta.NewContinuousOutcome(label, treatN, controlN,
			treatPost, controlPost, treatPostSD, controlPostSD)
		if treatPre, ok, err := optionalFloatColumn(row, colTreatPre); err != nil {
			return nil, err
		} else if ok {
			controlPre, err := floatColumn(row, colControlPre)
			if err != nil {
				return nil, err
			}
			treatPreSD, err := floatColumn(row, colTreatPreSD)
			if err != nil {
				return nil, err
			}
			controlPreSD, err := floatColumn(row, colControlPreSD)
			if err != nil {
				return nil, err
			}
			continuous.SetPrePeriod(treatPre, controlPre, treatPreSD, controlPreSD)
		}
		return estimate(continuous, row, usePre)

	default:
		return nil, fmt.Errorf("unknown outcome kind: %q", kind)
	}
}

// estimate runs the estimator and returns its record with the note attached.
func estimate(e meta.Estimator, row RawRowData, usePre bool) (*meta.Outcome, error) {
	if _, _, err := e.Estimate(usePre); err != nil {
		return nil, err
	}
	record := e.Record()
	record.Note = row[colNote]
	return record, nil
}

func intColumn(row RawRowData, name string) (int, error) {
	raw := row[name]
	if raw == "" {
		return 0, fmt.Errorf("missing %s", name)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", name, err)
	}
	return v, nil
}

func floatColumn(row RawRowData, name string) (float64, error) {
	raw := row[name]
	if raw == "" {
		return 0, fmt.Errorf("missing %s", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", name, err)
	}
	return v, nil
}

func optionalFloatColumn(row RawRowData, name string) (float64, bool, error) {
	raw := row[name]
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("column %s: %w", name, err)
	}
	return v, true, nil
}

func boolColumn(row RawRowData, name string) bool {
	raw := strings.ToLower(row[name])
	return raw == "true" || raw == "yes" || raw == "1"
}
