package formatting_test

import (
	"errors"
	"testing"

	"github.com/tessera-ai/tessera/pkg/formatting"
)

type payload struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    payload
		wantErr bool
	}{
		{
			"direct json",
			`{"name": "invoice_number", "score": 0.95}`,
			payload{Name: "invoice_number", Score: 0.95},
			false,
		},
		{
			"fenced json",
			"Here you go:\n```json\n{\"name\": \"total\", \"score\": 0.8}\n```",
			payload{Name: "total", Score: 0.8},
			false,
		},
		{
			"fenced without language",
			"```\n{\"name\": \"total\", \"score\": 0.8}\n```",
			payload{Name: "total", Score: 0.8},
			false,
		},
		{
			"embedded object in prose",
			`The extraction result is {"name": "date", "score": 0.7} as requested.`,
			payload{Name: "date", Score: 0.7},
			false,
		},
		{
			"whitespace padding",
			"   {\"name\": \"vendor\", \"score\": 1}   ",
			payload{Name: "vendor", Score: 1},
			false,
		},
		{
			"not json",
			"I could not find any fields.",
			payload{},
			true,
		},
		{
			"malformed json",
			`{"name": "broken"`,
			payload{},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatting.Parse[payload](tt.content)
			if tt.wantErr {
				if !errors.Is(err, formatting.ErrParseFailed) {
					t.Fatalf("Parse() error = %v, want ErrParseFailed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseArray(t *testing.T) {
	content := `Issues found: ["missing field", "bad date"] — please review.`
	got, err := formatting.Parse[[]string](content)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(got) != 2 || got[0] != "missing field" {
		t.Errorf("Parse() = %v", got)
	}
}
