package characters

import (
	"strings"
	"testing"
)

func TestResolveFallsBackToDefault(t *testing.T) {
	r := NewRegistry()
	card := r.Resolve("nonexistent")
	if card.ID != "default" {
		t.Fatalf("expected default card, got %q", card.ID)
	}

	card = r.Resolve("")
	if card.ID != "default" {
		t.Fatalf("expected default card for empty id, got %q", card.ID)
	}
}

func TestResolveReturnsRegisteredCard(t *testing.T) {
	r := NewRegistry(Card{ID: "pirate", Name: "Redbeard", Personality: "Gruff but fair.", SpeakingStyle: "Pirate slang.", Background: "A retired privateer."})
	card := r.Resolve("pirate")
	if card.Name != "Redbeard" {
		t.Fatalf("expected pirate card name, got %q", card.Name)
	}
}

func TestSystemPromptIncludesTokenBudget(t *testing.T) {
	r := NewRegistry()
	prompt := r.SystemPrompt("default", 100)
	if !strings.Contains(prompt, "120 tokens") {
		t.Fatalf("expected prompt to mention a 120 token budget, got %q", prompt)
	}
}

func TestSystemPromptVariesByCharacter(t *testing.T) {
	r := NewRegistry()
	guide := r.SystemPrompt("guide", 100)
	if !strings.Contains(guide, "Wren") || !strings.Contains(guide, "tour guide") {
		t.Fatalf("expected guide card's persona fields in prompt, got %q", guide)
	}

	def := r.SystemPrompt("default", 100)
	if guide == def {
		t.Fatal("expected distinct prompts for distinct characters")
	}
}
