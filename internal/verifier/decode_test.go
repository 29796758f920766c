package verifier

import "testing"

type decodeTarget struct {
	IsRealConcern bool    `json:"isRealConcern"`
	ConcernLevel  float64 `json:"concernLevel"`
}

func TestDecodeLooseRawJSON(t *testing.T) {
	var got decodeTarget
	if err := decodeLoose(`{"isRealConcern": true, "concernLevel": 4}`, &got); err != nil {
		t.Fatalf("decodeLoose failed: %v", err)
	}
	if !got.IsRealConcern || got.ConcernLevel != 4 {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestDecodeLooseFencedBlock(t *testing.T) {
	raw := "Here is my assessment:\n```json\n{\"isRealConcern\": true, \"concernLevel\": 3}\n```\nLet me know."
	var got decodeTarget
	if err := decodeLoose(raw, &got); err != nil {
		t.Fatalf("decodeLoose failed: %v", err)
	}
	if !got.IsRealConcern || got.ConcernLevel != 3 {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestDecodeLooseFencedBlockNoLanguageTag(t *testing.T) {
	raw := "```\n{\"concernLevel\": 2}\n```"
	var got decodeTarget
	if err := decodeLoose(raw, &got); err != nil {
		t.Fatalf("decodeLoose failed: %v", err)
	}
	if got.ConcernLevel != 2 {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestDecodeLooseBraceSpan(t *testing.T) {
	raw := `Sure! The verdict is {"isRealConcern": false, "concernLevel": 0} as requested.`
	var got decodeTarget
	if err := decodeLoose(raw, &got); err != nil {
		t.Fatalf("decodeLoose failed: %v", err)
	}
	if got.IsRealConcern || got.ConcernLevel != 0 {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestDecodeLooseGarbage(t *testing.T) {
	for _, raw := range []string{"", "not json at all", "{broken", "``` nothing ```"} {
		var got decodeTarget
		if err := decodeLoose(raw, &got); err == nil {
			t.Errorf("decodeLoose(%q) succeeded, want error", raw)
		}
	}
}
