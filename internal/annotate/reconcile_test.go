package annotate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReconcile(t *testing.T) {
	paragraphs := []string{"Title", "", "First  paragraph", "Repeated", "Repeated", "Café"}

	tests := []struct {
		name string
		view []string
		want map[int]int
	}{
		{
			name: "相同视图",
			view: paragraphs,
			want: map[int]int{1: 0, 3: 2, 4: 3, 5: 4, 6: 5},
		},
		{
			name: "空白差异与额外空行",
			view: []string{"Title", "", "", "First paragraph", "Repeated"},
			want: map[int]int{1: 0, 4: 2, 5: 3},
		},
		{
			name: "重复段落按顺序使用",
			view: []string{"Repeated", "Repeated", "Repeated"},
			want: map[int]int{1: 3, 2: 4},
		},
		{
			// 分解形式的é规范化后与组合形式相同
			name: "Unicode规范化",
			view: []string{"Cafe\u0301"},
			want: map[int]int{1: 5},
		},
		{
			name: "无法对齐",
			view: []string{"Something else"},
			want: map[int]int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reconcile(tt.view, paragraphs))
		})
	}
}

func TestParseMapping(t *testing.T) {
	m, err := ParseMapping("")
	assert.NoError(t, err)
	assert.Equal(t, MappingReconcile, m)

	m, err = ParseMapping("Positional")
	assert.NoError(t, err)
	assert.Equal(t, MappingPositional, m)

	_, err = ParseMapping("fuzzy")
	assert.Error(t, err)
}
