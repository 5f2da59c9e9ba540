package feed

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildLocation(t *testing.T) {
	tests := []struct {
		name string
		item map[string]any
		want string
	}{
		{
			name: "full admin hierarchy with free text",
			item: map[string]any{
				"province":         "กรุงเทพมหานคร",
				"district":         "บางนา",
				"subDistrict":      "บางนาเหนือ",
				"propertyLocation": "ซอยบางนา-ตราด 12",
			},
			want: "กรุงเทพมหานคร, บางนา, บางนาเหนือ | ซอยบางนา-ตราด 12",
		},
		{
			name: "admin hierarchy only",
			item: map[string]any{"province": "ชลบุรี", "district": "ศรีราชา"},
			want: "ชลบุรี, ศรีราชา",
		},
		{
			name: "free text only",
			item: map[string]any{"propertyLocation": "ริมถนนสุขุมวิท"},
			want: "ริมถนนสุขุมวิท",
		},
		{
			name: "legacy location field",
			item: map[string]any{"location": "somewhere"},
			want: "somewhere",
		},
		{
			name: "nothing known",
			item: map[string]any{},
			want: "Unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildLocation(tt.item); got != tt.want {
				t.Errorf("buildLocation = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCombineContact(t *testing.T) {
	tests := []struct {
		name   string
		person string
		phones []string
		want   string
	}{
		{name: "name and phones", person: "K. Somchai", phones: []string{"021234567", "", "0899999999"}, want: "K. Somchai (021234567, 0899999999)"},
		{name: "name only", person: "K. Somchai", want: "K. Somchai"},
		{name: "phones only", phones: []string{"021234567"}, want: "021234567"},
		{name: "nothing", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := combineContact(tt.person, tt.phones...); got != tt.want {
				t.Errorf("combineContact = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGatherImages(t *testing.T) {
	got := gatherImages(
		[]any{
			map[string]any{"url": "https://img/1.jpg"},
			"https://img/2.jpg",
			map[string]any{"name": "no url"},
		},
		map[string]any{"url": "https://img/3.jpg"},
		"https://img/1.jpg",
		nil,
	)
	want := []string{"https://img/1.jpg", "https://img/2.jpg", "https://img/3.jpg", "https://img/1.jpg"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("gatherImages mismatch (-want +got):\n%s", diff)
	}

	deduped := dedupeImages(got)
	wantDeduped := []string{"https://img/1.jpg", "https://img/2.jpg", "https://img/3.jpg"}
	if diff := cmp.Diff(wantDeduped, deduped); diff != "" {
		t.Errorf("dedupeImages mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractNumber(t *testing.T) {
	tests := []struct {
		text string
		want *float64
	}{
		{text: "3 ห้องนอน", want: floatPtr(3)},
		{text: "250.5 ตร.ว.", want: floatPtr(250.5)},
		{text: "studio", want: nil},
		{text: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := extractNumber(tt.text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("extractNumber(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestNormalizeRegularMissingURL(t *testing.T) {
	// No assetNo and no id means no stable identity; the merger drops
	// such records, so normalization must not invent a shared URL.
	got := normalizeRegular(map[string]any{"projectTH": "ไม่มีรหัส"}, regularCategory())
	if got.URL != "" {
		t.Errorf("URL = %q, want empty", got.URL)
	}
}

func TestNormalizeRegularNumericStringPrice(t *testing.T) {
	got := normalizeRegular(map[string]any{
		"assetNo":   "Z9",
		"sellPrice": "1250000",
	}, regularCategory())
	if got.Price != 1250000 {
		t.Errorf("Price = %v, want 1250000", got.Price)
	}
}

func floatPtr(f float64) *float64 { return &f }
