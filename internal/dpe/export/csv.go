// Package export writes and reads the spreadsheet-friendly CSV export of DPE
// records.
package export

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"dpehub_backend/internal/dpe/domain"

	"github.com/gosimple/slug"
)

const (
	delimiter = ";"
	lineBreak = "\r\n"
	bom       = "\ufeff"
)

// Header is the fixed column order of the export.
var Header = []string{"ID_DPE", "Date", "Commune", "CP", "Adresse", "DPE", "GES", "Conso", "Surface", "Annee"}

// ContentType is the MIME type of the export.
const ContentType = "text/csv; charset=utf-8"

// ErrHeaderMismatch is returned by ReadCSV when the header row is not the
// export header.
var ErrHeaderMismatch = errors.New("export: unexpected csv header")

// FileName returns the download name for a commune export.
func FileName(commune string) string {
	s := slug.Make(commune)
	if s == "" {
		s = "dpe"
	}
	return "Export_" + s + ".csv"
}

// WriteCSV writes records as a UTF-8 CSV with a byte order mark, ";" as
// delimiter and CRLF between rows. Every data field is quoted.
func WriteCSV(w io.Writer, records []domain.DpeResult) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(bom + strings.Join(Header, delimiter)); err != nil {
		return err
	}
	for _, r := range records {
		if _, err := bw.WriteString(lineBreak); err != nil {
			return err
		}
		if _, err := bw.WriteString(formatRow(row(r))); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadCSV decodes an export produced by WriteCSV. Only the exported columns
// are populated on the returned records.
func ReadCSV(r io.Reader) ([]domain.DpeResult, error) {
	br := bufio.NewReader(r)
	if lead, err := br.Peek(len(bom)); err == nil && string(lead) == bom {
		_, _ = br.Discard(len(bom))
	}

	reader := csv.NewReader(br)
	reader.Comma = ';'
	reader.FieldsPerRecord = len(Header)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrHeaderMismatch
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i, name := range Header {
		if header[i] != name {
			return nil, ErrHeaderMismatch
		}
	}

	var out []domain.DpeResult
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		out = append(out, domain.DpeResult{
			ID:               fields[0],
			EstablishedAt:    fields[1],
			Municipality:     fields[2],
			PostalCode:       fields[3],
			Address:          fields[4],
			DPEGrade:         fields[5],
			GESGrade:         fields[6],
			EnergyPerM2:      parseNumber(fields[7]),
			Surface:          parseNumber(fields[8]),
			ConstructionYear: fields[9],
		})
	}
	return out, nil
}

func row(r domain.DpeResult) []string {
	return []string{
		r.ID,
		r.EstablishedAt,
		r.Municipality,
		r.PostalCode,
		r.Address,
		r.DPEGrade,
		r.GESGrade,
		formatNumber(r.EnergyPerM2),
		formatNumber(r.Surface),
		r.ConstructionYear,
	}
}

func formatRow(fields []string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, delimiter)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseNumber(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
