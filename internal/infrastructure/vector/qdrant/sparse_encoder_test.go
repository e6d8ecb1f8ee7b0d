package qdrant

import "testing"

func TestEncodeSparseQueryDeterministic(t *testing.T) {
	v1 := encodeSparseQuery("dismissal during probation period")
	v2 := encodeSparseQuery("dismissal during probation period")
	if len(v1.Indices) != len(v2.Indices) || len(v1.Values) != len(v2.Values) {
		t.Fatalf("vector sizes mismatch: v1=%d/%d v2=%d/%d", len(v1.Indices), len(v1.Values), len(v2.Indices), len(v2.Values))
	}
	for i := range v1.Indices {
		if v1.Indices[i] != v2.Indices[i] {
			t.Fatalf("indices mismatch at %d: %d vs %d", i, v1.Indices[i], v2.Indices[i])
		}
		if v1.Values[i] != v2.Values[i] {
			t.Fatalf("values mismatch at %d: %f vs %f", i, v1.Values[i], v2.Values[i])
		}
	}
}

func TestEncodeSparseQuerySortsIndices(t *testing.T) {
	v := encodeSparseQuery("labor contract termination penalties")
	if len(v.Indices) == 0 {
		t.Fatalf("expected non-empty sparse vector")
	}
	for i := 1; i < len(v.Indices); i++ {
		if v.Indices[i-1] > v.Indices[i] {
			t.Fatalf("indices not sorted at %d: %d > %d", i, v.Indices[i-1], v.Indices[i])
		}
	}
}

func TestEncodeSparseQueryEmptyNoiseInput(t *testing.T) {
	v := encodeSparseQuery("___---!!!")
	if len(v.Indices) != 0 || len(v.Values) != 0 {
		t.Fatalf("expected empty sparse vector, got %+v", v)
	}
}

func TestEncodeSparsePassageBoostsKeywords(t *testing.T) {
	plain := encodeSparsePassage("probation dismissal", nil)
	boosted := encodeSparsePassage("probation dismissal", []string{"probation"})

	probationIdx := hashToken("probation")
	var plainWeight, boostedWeight float32
	for i, idx := range plain.Indices {
		if idx == probationIdx {
			plainWeight = plain.Values[i]
		}
	}
	for i, idx := range boosted.Indices {
		if idx == probationIdx {
			boostedWeight = boosted.Values[i]
		}
	}
	if boostedWeight <= plainWeight {
		t.Fatalf("expected keyword boost: plain=%f boosted=%f", plainWeight, boostedWeight)
	}
}

func TestEncodeSparsePassageSaturates(t *testing.T) {
	once := encodeSparsePassage("налог", nil)
	many := encodeSparsePassage("налог налог налог налог налог налог налог налог", nil)
	if len(once.Values) != 1 || len(many.Values) != 1 {
		t.Fatalf("expected single-term vectors")
	}
	if many.Values[0] <= once.Values[0] {
		t.Fatalf("expected repeated term to weigh more")
	}
	if many.Values[0] >= float32(passageBM25K+1.0) {
		t.Fatalf("expected BM25 saturation below k+1, got %f", many.Values[0])
	}
}

func TestTokenizeWordsKeepsCyrillicAndDigits(t *testing.T) {
	tokens := tokenizeWords("Статья 81, пункт 2 ТК")
	foundArticle := false
	foundNum := false
	for _, tok := range tokens {
		if tok == "статья" {
			foundArticle = true
		}
		if tok == "81" {
			foundNum = true
		}
	}
	if !foundArticle || !foundNum {
		t.Fatalf("expected cyrillic and digit tokens, got %v", tokens)
	}
}

func TestHashTokenNeverZero(t *testing.T) {
	if hashToken("") == 0 {
		t.Fatalf("expected non-zero hash")
	}
}
