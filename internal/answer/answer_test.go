package answer

import "testing"

func TestInferCategory(t *testing.T) {
	cases := []struct {
		question string
		want     Category
	}{
		{"What are the top areas by collection volume?", CategoryGeographic},
		{"Show the monthly trend of gallons collected", CategoryTrend},
		{"Total gallons collected overall", CategoryVolume},
		{"Which provider serves the most outlets?", CategoryProvider},
		{"Average collection delay per entity", CategoryOperational},
		{"Give me a summary of the dataset", CategoryOverview},
		{"something unrelated", CategoryGeneral},
	}
	for _, tc := range cases {
		if got := InferCategory(tc.question); got != tc.want {
			t.Fatalf("InferCategory(%q) = %q, want %q", tc.question, got, tc.want)
		}
	}
}
