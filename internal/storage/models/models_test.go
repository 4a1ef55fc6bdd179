package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in    string
		want  Category
		valid bool
	}{
		{"", CategoryGeneral, true},
		{"  ", CategoryGeneral, true},
		{"Health", CategoryHealth, true},
		{" Finance ", CategoryFinance, true},
		{"Sports", Category("Sports"), false},
		{"health", Category("health"), false},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ParseCategory(tc.in)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.valid, ok)
		})
	}
}

func TestCategoriesAreValid(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, c.Valid(), c)
	}
}
