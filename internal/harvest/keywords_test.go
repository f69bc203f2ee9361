package harvest

import (
	"reflect"
	"testing"
)

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		limit  int
		minLen int
		want   []string
	}{
		{
			name:   "frequency wins",
			text:   "lithium prices surge as lithium demand outpaces supply",
			limit:  2,
			minLen: 4,
			want:   []string{"lithium", "outpaces"},
		},
		{
			name:   "stopwords and short tokens dropped",
			text:   "the new report says it is a big day",
			limit:  10,
			minLen: 4,
			want:   nil,
		},
		{
			name:   "urls stripped before tokenizing",
			text:   "wildfire spreads https://example.com/wildfire-live wildfire containment",
			limit:  1,
			minLen: 4,
			want:   []string{"wildfire"},
		},
		{
			name:   "limit caps output",
			text:   "quantum quantum fusion fusion reactor",
			limit:  2,
			minLen: 4,
			want:   []string{"quantum", "fusion"},
		},
		{
			name:   "empty input",
			text:   "   ",
			limit:  5,
			minLen: 4,
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractKeywords(tt.text, tt.limit, tt.minLen)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractKeywords() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCleanText(t *testing.T) {
	got := cleanText("Breaking: stocks — up!  https://x.co/a?b=1 (details)")
	want := "Breaking stocks up details"
	if got != want {
		t.Errorf("cleanText() = %q, want %q", got, want)
	}
}
