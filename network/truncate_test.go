package network

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateBodyValue(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		truncated bool
	}{
		{
			name:      "short string kept",
			input:     "hello",
			truncated: false,
		},
		{
			name:      "at threshold kept",
			input:     strings.Repeat("a", bodyTruncateThreshold),
			truncated: false,
		},
		{
			name:      "just over threshold truncated",
			input:     strings.Repeat("a", bodyTruncateThreshold+1),
			truncated: true,
		},
		{
			name:      "large data uri truncated",
			input:     "data:image/png;base64," + strings.Repeat("QUJD", bodyTruncateThreshold/4+1),
			truncated: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := truncateBodyValue(tt.input)
			if tt.truncated {
				assert.NotEqual(t, tt.input, result)
				assert.Less(t, len(result), 256)
			} else {
				assert.Equal(t, tt.input, result)
			}
		})
	}
}

func TestTruncateBodyValueFormat(t *testing.T) {
	input := "data:image/png;base64," + strings.Repeat("A", bodyTruncateThreshold)
	result := truncateBodyValue(input)

	assert.Equal(t, "data:image/png;base64,"+strings.Repeat("A", bodyTruncatePreviewLen)+"... <262144 chars>", result)
}

func TestTruncateBodyValueRuneBoundary(t *testing.T) {
	input := "a" + strings.Repeat("é", bodyTruncateThreshold)
	result := truncateBodyValue(input)

	require.True(t, strings.HasSuffix(result, "... <524289 chars>"))

	prefix := strings.TrimSuffix(result, "... <524289 chars>")
	assert.Equal(t, "a"+strings.Repeat("é", (bodyTruncatePreviewLen-1)/2), prefix)
}

func TestTruncateTree(t *testing.T) {
	long := strings.Repeat("x", bodyTruncateThreshold+10)

	input := map[string]any{
		"id":    float64(1),
		"name":  "short",
		"blob":  long,
		"items": []any{"ok", long, true, nil},
		"inner": map[string]any{"data": long},
	}

	result, ok := truncateTree(input).(map[string]any)
	require.True(t, ok)

	assert.Equal(t, float64(1), result["id"])
	assert.Equal(t, "short", result["name"])
	assert.Contains(t, result["blob"], "... <262154 chars>")

	items, ok := result["items"].([]any)
	require.True(t, ok)
	assert.Equal(t, "ok", items[0])
	assert.Contains(t, items[1], "chars>")
	assert.Equal(t, true, items[2])
	assert.Nil(t, items[3])

	inner, ok := result["inner"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, inner["data"], "chars>")

	assert.Equal(t, long, input["blob"], "input must not be modified")
}
