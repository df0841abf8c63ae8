// Package excel reads cleaned visit records from Excel or CSV exports.
// Column headers follow the registry export convention, with German
// labels for the clinical fields.
package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"cohortstat/domain/cohort"
	"cohortstat/domain/core"
	"cohortstat/internal/errors"
	"cohortstat/ports"
)

// Recognized header names, case-insensitive.
const (
	colPatientID  = "patient_id"
	colVisitDate  = "kontakt_datum"
	colPainScore  = "p"
	colFuncScore  = "flscore"
	colStatusP    = "statusp"
	colStatusFL   = "statusfl"
	colRiskFactor = "risk factor"
	colGender     = "geschlecht"
	colAge        = "alter-unfall"
	colNBE        = "verlauf_entspricht_nbe"
)

// Date layouts seen in registry exports.
var dateLayouts = []string{"2006-01-02", "02.01.2006", "01/02/2006", time.RFC3339}

// Reader loads visit records from a single file. It implements
// ports.VisitSource.
type Reader struct {
	filePath string
	sheet    string
	fileType string // "xlsx" or "csv"
}

var _ ports.VisitSource = (*Reader)(nil)

// NewReader creates a reader for an .xlsx or .csv source file.
func NewReader(filePath, sheet string) *Reader {
	fileType := "xlsx"
	if strings.ToLower(filepath.Ext(filePath)) == ".csv" {
		fileType = "csv"
	}
	return &Reader{filePath: filePath, sheet: sheet, fileType: fileType}
}

// ReadVisits reads and parses all rows. Unparseable optional fields
// become missing values; rows without a patient ID or date are kept so
// the aggregator can reject them as malformed.
func (r *Reader) ReadVisits(ctx context.Context) ([]cohort.VisitRecord, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, errors.New(errors.CodeIngestion, fmt.Sprintf("source file not found: %s", r.filePath))
	}

	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	default:
		rows, err = r.readExcelRows()
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading visit rows")
	}
	if len(rows) < 2 {
		return nil, errors.New(errors.CodeIngestion, "source file has no data rows")
	}

	columns := indexColumns(rows[0])
	records := make([]cohort.VisitRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		records = append(records, parseRow(row, columns))
	}
	return records, nil
}

func (r *Reader) readExcelRows() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheet := r.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	return f.GetRows(sheet)
}

func (r *Reader) readCSVRows() ([][]string, error) {
	f, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("opening csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

func indexColumns(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return columns
}

func parseRow(row []string, columns map[string]int) cohort.VisitRecord {
	return cohort.VisitRecord{
		PatientID:     core.PatientID(cell(row, columns, colPatientID)),
		VisitDate:     parseDate(cell(row, columns, colVisitDate)),
		PainScore:     parseFloat(cell(row, columns, colPainScore)),
		FunctionScore: parseFloat(cell(row, columns, colFuncScore)),
		StatusP:       parseStatus(cell(row, columns, colStatusP)),
		StatusFL:      parseStatus(cell(row, columns, colStatusFL)),
		RiskFactor:    parseRisk(cell(row, columns, colRiskFactor)),
		Gender:        parseGender(cell(row, columns, colGender)),
		AgeAtIncident: parseFloat(cell(row, columns, colAge)),
		NBEOutcome:    parseBinary(cell(row, columns, colNBE)),
	}
}

func cell(row []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	// excelize can deliver serial date numbers as plain floats
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseFloat(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// parseStatus maps the German status labels and their numeric codes.
func parseStatus(s string) cohort.StatusCode {
	switch strings.ToLower(s) {
	case "verschlechtert", "0":
		return cohort.StatusWorsened
	case "unverändert", "unveraendert", "1":
		return cohort.StatusUnchanged
	case "verbessert", "2":
		return cohort.StatusImproved
	default:
		return cohort.StatusMissing
	}
}

func parseRisk(s string) cohort.RiskState {
	switch strings.ToLower(s) {
	case "1", "ja", "yes", "true":
		return cohort.RiskPresent
	case "0", "nein", "no", "false":
		return cohort.RiskAbsent
	default:
		return cohort.RiskUnknown
	}
}

func parseGender(s string) cohort.Gender {
	switch strings.ToLower(s) {
	case "m":
		return cohort.GenderMale
	case "w", "f":
		return cohort.GenderFemale
	default:
		return cohort.GenderUnknown
	}
}

func parseBinary(s string) cohort.Binary {
	switch strings.ToLower(s) {
	case "1", "ja", "yes", "true":
		return cohort.BinaryYes
	case "0", "nein", "no", "false":
		return cohort.BinaryNo
	default:
		return cohort.BinaryMissing
	}
}
