package scapeid

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"tour":                  Tour,
		"TSP":                   Tour,
		"scape_tsp":             Tour,
		"travelling_salesman":   Tour,
		" Tour ":                Tour,
		"chain":                 Chain,
		"hp":                    Chain,
		"HP-Chain":              Chain,
		"scape_protein_folding": Chain,
		"hp model":              Chain,
		"custom_scape":          "custom-scape",
		"scape_custom":          "scape-custom",
		"":                      "",
	}

	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("normalize(%q)=%q want=%q", in, got, want)
		}
	}
}
