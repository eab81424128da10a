package catalog

import "testing"

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := New([]Entry{
		{ID: "solar_system", Title: "Solar System", PrimaryAssetRef: "/assets/solar_system.glb", Tags: []string{"space", "planets", "sun"}},
		{ID: "ancient_rome", Title: "Ancient Rome", PrimaryAssetRef: "/assets/ancient_rome.glb", Tags: []string{"rome", "roman", "colosseum", "history"}},
		{ID: "photosynthesis", Title: "Photosynthesis", PrimaryAssetRef: "/assets/photosynthesis.glb", Tags: []string{"plants", "biology", "chlorophyll"}},
		{ID: "human_heart", Title: "The Human Heart", PrimaryAssetRef: "https://demo.example/heart.glb", Tags: []string{"anatomy", "biology", "heart"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("expected error for empty catalog")
	}
	if _, err := New([]Entry{{ID: "", PrimaryAssetRef: "/a"}}); err == nil {
		t.Error("expected error for missing id")
	}
	if _, err := New([]Entry{
		{ID: "a", PrimaryAssetRef: "/a"},
		{ID: "a", PrimaryAssetRef: "/b"},
	}); err == nil {
		t.Error("expected error for duplicate id")
	}
	if _, err := New([]Entry{{ID: "a"}}); err == nil {
		t.Error("expected error for missing asset ref")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  Ancient   Rome ", "ancient rome"},
		{"PHOTOSYNTHESIS", "photosynthesis"},
		{"a\tb\nc", "a b c"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLookup_ExactIDMatch(t *testing.T) {
	c := testCatalog(t)

	m := c.Lookup("  Ancient   Rome ")
	if !m.Exact {
		t.Fatalf("match = %+v, want exact", m)
	}
	if m.Entry.ID != "ancient_rome" {
		t.Errorf("entry = %q", m.Entry.ID)
	}
	if m.Weak {
		t.Error("exact match must not be weak")
	}
}

func TestLookup_TagScoring(t *testing.T) {
	c := testCatalog(t)

	// "roman colosseum" overlaps ancient_rome's tags heavily.
	m := c.Lookup("the roman colosseum")
	if m.Entry.ID != "ancient_rome" {
		t.Fatalf("entry = %q, want ancient_rome (score %d)", m.Entry.ID, m.Score)
	}
	if m.Exact || m.Weak {
		t.Errorf("match flags = %+v, want scored match", m)
	}
	if m.Score == 0 {
		t.Error("scored match must carry a positive score")
	}
}

func TestLookup_WordSubstringScoring(t *testing.T) {
	c := testCatalog(t)

	// "plant" is a substring of the tag "plants" → word score only.
	m := c.Lookup("plant cells")
	if m.Entry.ID != "photosynthesis" {
		t.Fatalf("entry = %q, want photosynthesis", m.Entry.ID)
	}
}

func TestLookup_TieKeepsFirstInCatalogOrder(t *testing.T) {
	c, err := New([]Entry{
		{ID: "first", PrimaryAssetRef: "/assets/a.glb", Tags: []string{"shared"}},
		{ID: "second", PrimaryAssetRef: "/assets/b.glb", Tags: []string{"shared"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	m := c.Lookup("shared")
	if m.Entry.ID != "first" {
		t.Errorf("tie broke to %q, want first", m.Entry.ID)
	}
}

func TestLookup_NoOverlapReturnsWeakDefault(t *testing.T) {
	c := testCatalog(t)

	m := c.Lookup("quantum chromodynamics")
	if !m.Weak {
		t.Fatalf("match = %+v, want weak default", m)
	}
	if m.Entry.ID != "solar_system" {
		t.Errorf("default = %q, want first-listed solar_system", m.Entry.ID)
	}
	if m.Score != 0 {
		t.Errorf("weak default score = %d, want 0", m.Score)
	}
}

func TestLookup_EmptyQueryReturnsWeakDefault(t *testing.T) {
	c := testCatalog(t)
	m := c.Lookup("   ")
	if !m.Weak {
		t.Fatalf("match = %+v, want weak default for empty query", m)
	}
}
