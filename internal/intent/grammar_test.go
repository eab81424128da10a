package intent

import "testing"

func TestExtract_LiteralForms(t *testing.T) {
	g := NewGrammar()
	tests := []struct {
		text    string
		concept string
		ok      bool
	}{
		{"show me ancient rome", "ancient rome", true},
		{"Show Me The Solar System", "the solar system", true},
		{"  SHOW   ME   photosynthesis  ", "photosynthesis", true},
		{"show me", "", false},
		{"tell me about rome", "", false},
		{"", "", false},
		{"rome show me", "", false},
	}
	for _, tt := range tests {
		concept, ok := g.Extract(tt.text)
		if ok != tt.ok || concept != tt.concept {
			t.Errorf("Extract(%q) = (%q, %v), want (%q, %v)", tt.text, concept, ok, tt.concept, tt.ok)
		}
	}
}

func TestExtract_PhoneticWakePhrase(t *testing.T) {
	g := NewGrammar()
	tests := []struct {
		text    string
		concept string
	}{
		{"sho me ancient rome", "ancient rome"},
		{"shoh me ancient rome", "ancient rome"},
		{"showe me the heart", "the heart"},
	}
	for _, tt := range tests {
		concept, ok := g.Extract(tt.text)
		if !ok || concept != tt.concept {
			t.Errorf("Extract(%q) = (%q, %v), want (%q, true)", tt.text, concept, ok, tt.concept)
		}
	}
}

func TestExtract_MergedWakePhrase(t *testing.T) {
	g := NewGrammar()
	concept, ok := g.Extract("showme ancient rome")
	if !ok || concept != "ancient rome" {
		t.Errorf("Extract = (%q, %v), want (ancient rome, true)", concept, ok)
	}
}

func TestExtract_PhoneticMismatchRejected(t *testing.T) {
	g := NewGrammar()
	for _, text := range []string{
		"throw me ancient rome",
		"slow me down please",
		"shoes on my feet",
	} {
		if concept, ok := g.Extract(text); ok {
			t.Errorf("Extract(%q) = (%q, true), want miss", text, concept)
		}
	}
}
