package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	cases := map[string]string{
		"12 rue de la Gare":                  "12 rue de la Gare",
		"  3   rue\tPasteur\n":               "3 rue Pasteur",
		"<b>Villerupt</b>":                   "Villerupt",
		"&lt;script&gt;x&lt;/script&gt;Thil": "xThil",
		"Rue \"Foch\" &amp; fils":            `Rue "Foch" & fils`,
		"a\x00b":                             "ab",
		"":                                   "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Text(in), in)
	}
}
