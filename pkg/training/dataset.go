package training

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/clinicflow/waittime/pkg/features"
)

// Source column names in the historical visit export.
const (
	ColumnDate        = "Date"
	ColumnEntryTime   = "Entry Time"
	ColumnPostConsult = "Post-Consultation Time"
	ColumnDoctorType  = "Doctor Type"
	ColumnPatientType = "Patient Type"
)

var requiredColumns = []string{ColumnDate, ColumnEntryTime, ColumnPostConsult, ColumnDoctorType, ColumnPatientType}

var dateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"2006/01/02",
	"2-Jan-2006",
	"Jan 2, 2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
}

var clockLayouts = []string{
	"15:04:05",
	"15:04",
	"3:04:05 PM",
	"3:04 PM",
	"3:04PM",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
}

// Dataset holds the records and wait-time targets derived from a visit log.
type Dataset struct {
	Records []features.Record
	Targets []float64
	Skipped int
}

// LoadDataset parses a visit CSV. Each row yields arrival_hour and
// day_of_week from the entry datetime, the doctor and patient types, and a
// target of minutes between entry and post-consultation. Rows with
// unparseable times, blank labels or a negative wait are skipped.
func LoadDataset(r io.Reader) (Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Dataset{}, features.ErrEmptyDataset
	}
	if err != nil {
		return Dataset{}, fmt.Errorf("reading header: %w", err)
	}
	index, err := columnIndex(header)
	if err != nil {
		return Dataset{}, err
	}

	var ds Dataset
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Dataset{}, fmt.Errorf("reading row %d: %w", len(ds.Records)+ds.Skipped+2, err)
		}
		record, wait, ok := parseRow(row, index)
		if !ok {
			ds.Skipped++
			continue
		}
		ds.Records = append(ds.Records, record)
		ds.Targets = append(ds.Targets, wait)
	}
	if len(ds.Records) == 0 {
		return ds, features.ErrEmptyDataset
	}
	return ds, nil
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	out := make(map[string]int, len(requiredColumns))
	for _, col := range requiredColumns {
		i, ok := index[strings.ToLower(col)]
		if !ok {
			return nil, fmt.Errorf("dataset missing column %q", col)
		}
		out[col] = i
	}
	return out, nil
}

func parseRow(row []string, index map[string]int) (features.Record, float64, bool) {
	cell := func(col string) string {
		i := index[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	date, err := parseDate(cell(ColumnDate))
	if err != nil {
		return nil, 0, false
	}
	entry, err := atClock(date, cell(ColumnEntryTime))
	if err != nil {
		return nil, 0, false
	}
	post, err := atClock(date, cell(ColumnPostConsult))
	if err != nil {
		return nil, 0, false
	}
	wait := post.Sub(entry).Minutes()
	if wait < 0 {
		return nil, 0, false
	}

	doctor, patient := cell(ColumnDoctorType), cell(ColumnPatientType)
	if doctor == "" || patient == "" {
		return nil, 0, false
	}

	return features.Record{
		features.AttrArrivalHour: entry.Hour(),
		features.AttrDayOfWeek:   date.Weekday().String(),
		features.AttrDoctorType:  doctor,
		features.AttrPatientType: patient,
	}, wait, true
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", value)
}

// atClock combines the calendar date with the time of day found in value.
// value may be a bare clock time or a full datetime whose date part is ignored.
func atClock(date time.Time, value string) (time.Time, error) {
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", value)
}
