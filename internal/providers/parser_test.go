package providers

import "testing"

func TestParseProviderList(t *testing.T) {
	refs := ParseProviderList("openai:primary | ollama |mock")
	if len(refs) != 3 {
		t.Fatalf("expected 3 refs, got %d", len(refs))
	}
	if refs[0].Name != "openai" || refs[0].KeyAlias != "primary" {
		t.Fatalf("ref 0: %+v", refs[0])
	}
	if refs[1].Name != "ollama" || refs[1].KeyAlias != "" {
		t.Fatalf("ref 1: %+v", refs[1])
	}
}

func TestParseProviderListEmptyDefaultsToMock(t *testing.T) {
	refs := ParseProviderList("")
	if len(refs) != 1 || refs[0].Name != "mock" {
		t.Fatalf("expected mock fallback, got %+v", refs)
	}
}
