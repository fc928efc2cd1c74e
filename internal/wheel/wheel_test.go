package wheel

import "testing"

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{name: "punctuation", title: "Hello, World!", want: "hello world"},
		{name: "dashes", title: "Testing... 1-2-3", want: "testing 123"},
		{name: "extra spaces", title: "  extra   spaces  ", want: "extra spaces"},
		{name: "diacritics", title: "Validación Distribuída", want: "validacion distribuida"},
		{name: "empty", title: "", want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeTitle(tc.title); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestNormalizeTitleIdempotent(t *testing.T) {
	titles := []string{"Quantum Computing!!!", "  The   Wheel — Redux  ", "Análisis de Redes P2P"}
	for _, title := range titles {
		once := NormalizeTitle(title)
		twice := NormalizeTitle(once)
		if once != twice {
			t.Fatalf("expected idempotent normalization for %q: %q != %q", title, once, twice)
		}
	}
}

func TestSimilarity(t *testing.T) {
	if sim := Similarity("Quantum Computing", "Quantum Computing"); sim != 1 {
		t.Fatalf("expected similarity 1 for identical titles, got %v", sim)
	}
	if sim := Similarity("Quantum Computing!!!", "quantum computing"); sim != 1 {
		t.Fatalf("expected similarity 1 after normalization, got %v", sim)
	}
	if sim := Similarity("Biology of Plants", "Quantum Computing"); sim != 0 {
		t.Fatalf("expected similarity 0 for disjoint titles, got %v", sim)
	}
	if sim := Similarity("", ""); sim != 0 {
		t.Fatalf("expected similarity 0 for empty titles, got %v", sim)
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	a, b := "The Biology of Plants", "Plant Biology Research"
	if Similarity(a, b) != Similarity(b, a) {
		t.Fatalf("expected symmetric similarity, got %v and %v", Similarity(a, b), Similarity(b, a))
	}
	sim := Similarity(a, b)
	if sim <= 0 || sim >= 1 {
		t.Fatalf("expected partial similarity in (0, 1), got %v", sim)
	}
}

func TestDetect(t *testing.T) {
	corpus := []Entry{
		{ID: "sub-1", Title: "Quantum Computing Foundations"},
		{ID: "sub-2", Title: "Swarm Validation Economics"},
	}

	match := Detect("quantum computing foundations!!!", corpus, 0)
	if !match.Exists {
		t.Fatal("expected duplicate match")
	}
	if match.ID != "sub-1" {
		t.Fatalf("expected best match sub-1, got %q", match.ID)
	}
	if match.Similarity != 1 {
		t.Fatalf("expected similarity 1, got %v", match.Similarity)
	}

	match = Detect("Mycology Field Notes", corpus, 0)
	if match.Exists {
		t.Fatalf("expected no duplicate, got %+v", match)
	}
}

func TestDetectHonorsThreshold(t *testing.T) {
	corpus := []Entry{{ID: "sub-1", Title: "Consensus Protocols for Open Swarms"}}

	// Three of six words overlap: similarity 0.5.
	strict := Detect("Consensus Protocols for Laboratories", corpus, 0.9)
	if strict.Exists {
		t.Fatalf("expected no match above 0.9, got %+v", strict)
	}
	loose := Detect("Consensus Protocols for Laboratories", corpus, 0.3)
	if !loose.Exists {
		t.Fatalf("expected match above 0.3, got %+v", loose)
	}
}
