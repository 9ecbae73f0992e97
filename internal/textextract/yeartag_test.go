package textextract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestYearTag(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"exam tag", "A block slides [JEE (Main)-2019] down", "2019"},
		{"exam tag wins", "In 2015 a block [JEE (Main)-2021]", "2021"},
		{"bare year", "(2012) The current in a wire", "2012"},
		{"not a year", "2100 kg of water at 1998 K", Mixed},
		{"late year ignored", strings.Repeat("w ", 60) + "2018", Mixed},
		{"empty", "", Mixed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, YearTag(tt.text))
		})
	}
}
