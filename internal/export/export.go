// Package export writes donor listings as downloadable files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"bloodfinder/internal/donor"
)

// Header is the donor record keys, in column order.
var Header = []string{
	"id",
	"full_name",
	"role",
	"branch",
	"class_year",
	"blood_group",
	"phone_e164",
	"availability",
	"created_at",
}

const sheetName = "Donors"

// Filename returns the download name for an export made at now, e.g.
// donors_2025-06-01.csv.
func Filename(now time.Time, ext string) string {
	return fmt.Sprintf("donors_%s.%s", now.Format("2006-01-02"), ext)
}

// neutralize prefixes free-text cells that a spreadsheet would evaluate as a formula.
func neutralize(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}

func record(d donor.Donor) []string {
	classYear := ""
	if d.ClassYear != nil {
		classYear = strconv.Itoa(*d.ClassYear)
	}
	return []string{
		d.ID,
		neutralize(d.FullName),
		string(d.Role),
		neutralize(d.Branch),
		classYear,
		string(d.BloodGroup),
		d.PhoneE164,
		strconv.FormatBool(d.Availability),
		d.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// WriteCSV writes a header row followed by one row per donor.
func WriteCSV(w io.Writer, donors []donor.Donor) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, d := range donors {
		if err := cw.Write(record(d)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the same rows as WriteCSV into a single-sheet workbook.
func WriteXLSX(w io.Writer, donors []donor.Donor) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}
	if err := sw.SetRow("A1", cells(Header)); err != nil {
		return err
	}
	for i, d := range donors {
		ref, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(ref, cells(record(d))); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	_, err = f.WriteTo(w)
	return err
}

func cells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
