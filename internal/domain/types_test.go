package domain

import "testing"

func TestValidAccountID(t *testing.T) {
	cases := []struct {
		id   string
		want bool
	}{
		{"3d649f67-4a1f-4f18-9f2a-7c1f0a3a9b4e", true},
		{"507f1f77bcf86cd799439011", true}, // legacy 24-hex document ID
		{"not-an-id", false},
		{"", false},
		{"507f1f77bcf86cd79943901z", false},
		{"507f1f77bcf86cd7994390", false},
	}
	for _, c := range cases {
		if got := ValidAccountID(c.id); got != c.want {
			t.Errorf("ValidAccountID(%q) = %v, want %v", c.id, got, c.want)
		}
	}
}

func TestValidCategory(t *testing.T) {
	for _, c := range Categories {
		if !ValidCategory(c) {
			t.Errorf("ValidCategory(%q) = false, want true", c)
		}
	}
	if ValidCategory("NoSuchCategory") {
		t.Error("ValidCategory accepted unknown tag")
	}
}

func TestTotalPrice(t *testing.T) {
	p1, p2 := 1.25, 3.75
	findings := []Finding{
		{ResourceID: "vol-1", TotalPrice: &p1},
		{ResourceID: "vol-2"}, // unpriced, contributes zero
		{ResourceID: "vol-3", TotalPrice: &p2},
	}
	if got := TotalPrice(findings); got != 5.0 {
		t.Fatalf("TotalPrice = %v, want 5.0", got)
	}
	if got := TotalPrice(nil); got != 0 {
		t.Fatalf("TotalPrice(nil) = %v, want 0", got)
	}
}
