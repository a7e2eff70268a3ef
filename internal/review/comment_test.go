package review

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExtractLineNumbers 测试行号提取
func TestExtractLineNumbers(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []int
	}{
		{"区间和单行", "Lines 9-11 and line 53", []int{9, 10, 11, 53}},
		{"单行", "Location: Line 7", []int{7}},
		{"大小写不敏感", "LINE 3, lInEs 4-5", []int{3, 4, 5}},
		{"重复行号去重", "line 2, line 2, lines 1-3", []int{1, 2, 3}},
		{"反向区间只保留单行匹配", "lines 12-10", []int{12}},
		{"行号0被丢弃", "line 0 and line 4", []int{4}},
		{"没有引用", "The ramp is too steep.", []int{}},
		{"单词中的line也会匹配", "see outline 6", []int{6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractLineNumbers(tt.text))
		})
	}
}

// TestExtractLineNumbersSpanLimit 测试超大区间被截断
func TestExtractLineNumbersSpanLimit(t *testing.T) {
	lines := ExtractLineNumbers("lines 1-999999")
	require.Len(t, lines, MaxRangeSpan)
	assert.Equal(t, 1, lines[0])
	assert.Equal(t, MaxRangeSpan, lines[len(lines)-1])
}

// TestSplitSections 测试评论分段
func TestSplitSections(t *testing.T) {
	text := strings.Join([]string{
		"Preamble that is ignored",
		"",
		"1. Location: Line 4",
		"   Issue: wording",
		"",
		"Location: Lines 7-8",
		"Fix the table",
		"2) another",
	}, "\n")

	sections := SplitSections(text)
	require.Len(t, sections, 3)
	assert.Equal(t, "1. Location: Line 4\nIssue: wording", sections[0])
	assert.Equal(t, "Location: Lines 7-8\nFix the table", sections[1])
	assert.Equal(t, "2) another", sections[2])
}

// TestSplitSectionsNoMarker 测试没有分段标记的文本
func TestSplitSectionsNoMarker(t *testing.T) {
	assert.Empty(t, SplitSections("just prose\nwith line 4 mentioned"))
	assert.Empty(t, SplitSections(""))
}

// TestParse 测试完整解析流程
func TestParse(t *testing.T) {
	text := "1. Location: Line 2\nToo long.\n2. General remark without reference\n3. Lines 5-6 need a citation"

	batch := Parse(text)
	assert.Equal(t, 3, batch.Total)
	assert.Equal(t, 3, batch.Considered)
	require.Len(t, batch.Comments, 2)
	assert.Equal(t, []int{2}, batch.Comments[0].Lines)
	assert.Equal(t, "1. Location: Line 2\nToo long.", batch.Comments[0].Text)
	assert.Equal(t, []int{5, 6}, batch.Comments[1].Lines)
}

// TestParseLimit 测试评论段数量上限
func TestParseLimit(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 60; i++ {
		fmt.Fprintf(&b, "%d. Location: Line %d\n", i, i)
	}

	batch := Parse(b.String())
	assert.Equal(t, 60, batch.Total)
	assert.Equal(t, MaxSections, batch.Considered)
	require.Len(t, batch.Comments, MaxSections)
	assert.Equal(t, []int{50}, batch.Comments[49].Lines)

	batch = Parse(b.String(), WithLimit(5))
	assert.Equal(t, 5, batch.Considered)
	assert.Len(t, batch.Comments, 5)

	// 非正数的上限被忽略
	batch = Parse(b.String(), WithLimit(0))
	assert.Equal(t, MaxSections, batch.Considered)
}
