package exporter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected string
	}{
		{name: "zero value", input: 0.0, expected: "0"},
		{name: "whole number", input: 120.0, expected: "120"},
		{name: "negative integer", input: -456.0, expected: "-456"},
		{name: "two decimals", input: 15.75, expected: "15.75"},
		{name: "trailing zeros dropped", input: 250.500, expected: "250.5"},
		{name: "small decimal", input: 0.000001, expected: "0.000001"},
		{name: "coordinate", input: -23.5505, expected: "-23.5505"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatFloat(tt.input))
		})
	}
}

func TestFormatOptional(t *testing.T) {
	f, i, b := 1.5, -3, true
	ts := time.Date(2017, 10, 2, 10, 56, 33, 0, time.UTC)

	assert.Equal(t, "1.5", formatOptionalFloat(&f))
	assert.Equal(t, "-3", formatOptionalInt(&i))
	assert.Equal(t, "true", formatOptionalBool(&b))
	assert.Equal(t, "2017-10-02 10:56:33", formatOptionalTime(&ts))

	assert.Empty(t, formatOptionalFloat(nil))
	assert.Empty(t, formatOptionalInt(nil))
	assert.Empty(t, formatOptionalBool(nil))
	assert.Empty(t, formatOptionalTime(nil))
}
