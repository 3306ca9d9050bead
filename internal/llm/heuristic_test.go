package llm

import "testing"

func TestShouldOfferContinue(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{"Devamı var...", true},
		{"Devamı var…", true},
		{"Bu konu devam edecek", true},
		{"yarım kalan cümle", true},
		{"Bitti.", true},
		{"liste,", true},
		{"Tamam!", false},
		{"Soru mu?", false},
		{"**Kalın**", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := ShouldOfferContinue(tc.content); got != tc.want {
			t.Errorf("ShouldOfferContinue(%q)=%v, want %v", tc.content, got, tc.want)
		}
	}
}
