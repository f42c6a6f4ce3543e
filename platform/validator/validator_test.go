package validator

import (
	"testing"

	"dpehub_backend/platform/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type communeQuery struct {
	Commune string `form:"commune" validate:"required,commune,max=80"`
	YearMin *int   `form:"yearMin" validate:"omitempty,gte=1000,lte=2100"`
}

func TestStruct_AcceptsAccentedCommunes(t *testing.T) {
	v := New()
	for _, name := range []string{"Aumetz", "Audun-le-Tiche", "Bréhain-la-Ville", "L'Hôpital"} {
		require.NoError(t, v.Struct(communeQuery{Commune: name}), name)
	}
}

func TestStruct_RejectsInjectionCharacters(t *testing.T) {
	v := New()
	err := v.Struct(communeQuery{Commune: `Aumetz" OR *`})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	var domainErr *apperr.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, map[string]string{"commune": "commune"}, domainErr.Details)
}

func TestStruct_ReportsFormFieldNames(t *testing.T) {
	v := New()
	year := 20
	err := v.Struct(communeQuery{Commune: "Thil", YearMin: &year})
	require.Error(t, err)

	var domainErr *apperr.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, map[string]string{"yearMin": "gte"}, domainErr.Details)
}
