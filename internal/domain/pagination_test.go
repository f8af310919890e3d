package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListParams_Normalize(t *testing.T) {
	tests := []struct {
		name       string
		in         ListParams
		wantLimit  int
		wantOffset int
	}{
		{"zero values default", ListParams{}, DefaultPageLimit, 0},
		{"negative offset clamps", ListParams{Limit: 10, Offset: -5}, 10, 0},
		{"limit above max clamps", ListParams{Limit: 1000, Offset: 64}, DefaultPageLimit, 64},
		{"valid passes through", ListParams{Limit: 32, Offset: 96}, 32, 96},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			assert.Equal(t, tt.wantLimit, got.Limit)
			assert.Equal(t, tt.wantOffset, got.Offset)
		})
	}
}

func TestListParams_Page(t *testing.T) {
	assert.Equal(t, 1, ListParams{Limit: 64, Offset: 0}.Page())
	assert.Equal(t, 2, ListParams{Limit: 64, Offset: 64}.Page())
	assert.Equal(t, 1, ListParams{Limit: 64, Offset: 63}.Page())
	assert.Equal(t, 3, ListParams{Limit: 10, Offset: 20}.Page())
}

func TestListParams_Pages(t *testing.T) {
	p := ListParams{Limit: 64}
	assert.Equal(t, 0, p.Pages(0))
	assert.Equal(t, 1, p.Pages(1))
	assert.Equal(t, 1, p.Pages(64))
	assert.Equal(t, 2, p.Pages(65))
	assert.Equal(t, 16, p.Pages(1024))
}
