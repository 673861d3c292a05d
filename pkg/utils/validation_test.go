package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type toolForm struct {
	Tool  string `validate:"required,oneof=select pen eraser"`
	Color string `validate:"omitempty,hexcolor"`
	Label string `validate:"max=5"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name    string
		input   toolForm
		wantErr string
	}{
		{name: "valid", input: toolForm{Tool: "pen", Color: "#ff0000"}},
		{name: "missing tool", input: toolForm{}, wantErr: "tool is required"},
		{name: "unknown tool", input: toolForm{Tool: "lasso"}, wantErr: "tool must be one of: select pen eraser"},
		{name: "bad color", input: toolForm{Tool: "pen", Color: "red"}, wantErr: "color must be a hex color"},
		{name: "long label", input: toolForm{Tool: "pen", Label: "toolong"}, wantErr: "label must be at most 5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.input)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestIsHexColor(t *testing.T) {
	for _, c := range []string{"#fff", "#FFFFFF", "#a6ccf5"} {
		assert.True(t, IsHexColor(c), c)
	}
	for _, c := range []string{"", "fff", "#ggg", "transparent"} {
		assert.False(t, IsHexColor(c), c)
	}
}
