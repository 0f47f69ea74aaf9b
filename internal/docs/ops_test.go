package docs

import (
	"testing"
)

func TestColorNormalized(t *testing.T) {
	cases := []struct {
		in   Color
		want Color
	}{
		{Color{0.2, 0.4, 1.0}, Color{0.2, 0.4, 1.0}},
		{Color{255, 102, 0}, Color{1.0, 0.4, 0}},
		{Color{-0.5, 0.5, 2}, Color{0, 0.5, 2.0 / 255}},
	}
	for _, tc := range cases {
		if got := tc.in.Normalized(); got != tc.want {
			t.Errorf("Normalized(%+v) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestUpdateStyleFieldsMask(t *testing.T) {
	req := UpdateStyle{Start: 1, End: 5, Bold: true, FontSize: 12, Color: &colorHeader}.apiRequest()
	update := req["updateTextStyle"].(map[string]any)
	if got := update["fields"].(string); got != "bold,fontSize,foregroundColor" {
		t.Errorf("fields = %q", got)
	}
	style := update["textStyle"].(map[string]any)
	if _, present := style["italic"]; present {
		t.Error("italic must stay out of a bold-only update")
	}
}

func TestUpdateStyleEmptyMask(t *testing.T) {
	req := UpdateStyle{Start: 0, End: 3}.apiRequest()
	update := req["updateTextStyle"].(map[string]any)
	if got := update["fields"].(string); got != "" {
		t.Errorf("fields = %q, want empty", got)
	}
}

func TestUpdateLinkRequest(t *testing.T) {
	req := UpdateLink{Start: 2, End: 9, URL: "https://x.example"}.apiRequest()
	update := req["updateTextStyle"].(map[string]any)
	if got := update["fields"].(string); got != "link,foregroundColor" {
		t.Errorf("fields = %q", got)
	}
	style := update["textStyle"].(map[string]any)
	link := style["link"].(map[string]any)
	if link["url"] != "https://x.example" {
		t.Errorf("url = %v", link["url"])
	}
}

func TestRequestsPreservesOrder(t *testing.T) {
	ops := []Op{
		InsertText{At: 0, Text: "a"},
		UpdateStyle{Start: 0, End: 1, Bold: true},
		UpdateLink{Start: 0, End: 1, URL: "https://x.example"},
	}
	reqs := Requests(ops)
	if len(reqs) != 3 {
		t.Fatalf("got %d requests, want 3", len(reqs))
	}
	if _, ok := reqs[0]["insertText"]; !ok {
		t.Error("first request is not insertText")
	}
	if _, ok := reqs[1]["updateTextStyle"]; !ok {
		t.Error("second request is not updateTextStyle")
	}
	if _, ok := reqs[2]["updateTextStyle"]; !ok {
		t.Error("third request is not updateTextStyle")
	}
}
