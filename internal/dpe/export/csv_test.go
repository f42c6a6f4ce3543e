package export

import (
	"bytes"
	"strings"
	"testing"

	"dpehub_backend/internal/dpe/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() []domain.DpeResult {
	return []domain.DpeResult{
		{
			ID:               "2357E0123456X",
			EstablishedAt:    "2024-03-11",
			Municipality:     "Audun-le-Tiche",
			PostalCode:       "57390",
			Address:          `12 rue "La Gare"; bât. B`,
			DPEGrade:         "F",
			GESGrade:         "C",
			EnergyPerM2:      312.4,
			Surface:          84.5,
			ConstructionYear: "1962",
		},
		{
			ID:               "abc12",
			Municipality:     "Thil",
			Address:          domain.AddressUnknown,
			DPEGrade:         domain.GradeUnknown,
			GESGrade:         domain.GradeUnknown,
			ConstructionYear: domain.YearUnknown,
		},
	}
}

func render(t *testing.T, records []domain.DpeResult) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))
	return buf.Bytes()
}

func TestWriteCSV_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample()[:1]))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\ufeffID_DPE;Date;Commune;CP;Adresse;DPE;GES;Conso;Surface;Annee\r\n"))
	assert.Equal(t,
		"\ufeffID_DPE;Date;Commune;CP;Adresse;DPE;GES;Conso;Surface;Annee\r\n"+
			`"2357E0123456X";"2024-03-11";"Audun-le-Tiche";"57390";"12 rue ""La Gare""; bât. B";"F";"C";"312.4";"84.5";"1962"`,
		out)
}

func TestWriteCSV_EmptyCollectionWritesHeaderOnly(t *testing.T) {
	assert.Equal(t, "\ufeffID_DPE;Date;Commune;CP;Adresse;DPE;GES;Conso;Surface;Annee", string(render(t, nil)))
}

func TestWriteCSV_ZeroValuesAreWritten(t *testing.T) {
	out := string(render(t, sample()[1:]))
	assert.Contains(t, out, `"abc12";"";"Thil";"";"Adresse non renseignée";"N/A";"N/A";"0";"0";"N/A"`)
}

func TestReadCSV_RoundTrip(t *testing.T) {
	records := sample()

	got, err := ReadCSV(bytes.NewReader(render(t, records)))
	require.NoError(t, err)
	require.Len(t, got, len(records))

	for i, want := range records {
		assert.Equal(t, want.ID, got[i].ID)
		assert.Equal(t, want.EstablishedAt, got[i].EstablishedAt)
		assert.Equal(t, want.Municipality, got[i].Municipality)
		assert.Equal(t, want.PostalCode, got[i].PostalCode)
		assert.Equal(t, want.Address, got[i].Address)
		assert.Equal(t, want.DPEGrade, got[i].DPEGrade)
		assert.Equal(t, want.GESGrade, got[i].GESGrade)
		assert.Equal(t, want.EnergyPerM2, got[i].EnergyPerM2)
		assert.Equal(t, want.Surface, got[i].Surface)
		assert.Equal(t, want.ConstructionYear, got[i].ConstructionYear)
	}
}

func TestReadCSV_RejectsForeignHeader(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a;b;c;d;e;f;g;h;i;j\r\n"))
	assert.ErrorIs(t, err, ErrHeaderMismatch)

	_, err = ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrHeaderMismatch)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "Export_audun-le-tiche.csv", FileName("Audun-le-Tiche"))
	assert.Equal(t, "Export_brehain-la-ville.csv", FileName("Bréhain-la-Ville"))
	assert.Equal(t, "Export_dpe.csv", FileName("  "))
}
