package scraper

import (
	"reflect"
	"testing"
)

func TestExtractKeywords(t *testing.T) {
	cases := []struct {
		name        string
		title       string
		description string
		want        []string
	}{
		{
			name:        "stopwords and short words dropped",
			title:       "The Senate passes the budget bill",
			description: "It was a close vote in the Senate.",
			want:        []string{"senate", "passes", "budget", "bill", "close", "vote"},
		},
		{
			name:  "deduplicated in order of first appearance",
			title: "Storm storm STORM warning",
			want:  []string{"storm", "warning"},
		},
		{
			name:  "digits and punctuation split words",
			title: "COVID-19 cases rise 20% in U.S. cities",
			want:  []string{"covid", "cases", "rise", "cities"},
		},
		{
			name:        "capped at ten",
			title:       "alpha bravo charlie delta echo foxtrot golf hotel india juliet kilo lima",
			description: "",
			want:        []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel", "india", "juliet"},
		},
		{
			name: "empty",
			want: []string{},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ExtractKeywords(c.title, c.description)
			if !reflect.DeepEqual(got, c.want) {
				t.Errorf("ExtractKeywords = %v; want %v", got, c.want)
			}
		})
	}
}
