package reply

import "testing"

func TestParseDeletePayload(t *testing.T) {
	cases := []struct {
		data   string
		wantID string
		wantOK bool
	}{
		{data: "delete_42", wantID: "42", wantOK: true},
		{data: "delete_65f0c1a2b3c4d5e6f7a8b9c0", wantID: "65f0c1a2b3c4d5e6f7a8b9c0", wantOK: true},
		{data: "delete_a_b", wantID: "a_b", wantOK: true},
		{data: "delete_", wantOK: false},
		{data: "list_services", wantOK: false},
		{data: "", wantOK: false},
	}

	for _, tc := range cases {
		id, ok := ParseDeletePayload(tc.data)
		if ok != tc.wantOK || id != tc.wantID {
			t.Fatalf("ParseDeletePayload(%q) = (%q, %t), want (%q, %t)", tc.data, id, ok, tc.wantID, tc.wantOK)
		}
	}
}

func TestDeletePayloadRoundTrip(t *testing.T) {
	id, ok := ParseDeletePayload(DeletePayload("17"))
	if !ok || id != "17" {
		t.Fatalf("expected id 17, got %q %t", id, ok)
	}
}

func TestEscapeHelpers(t *testing.T) {
	if got := Bold("<Nails & Co>"); got != "<b>&lt;Nails &amp; Co&gt;</b>" {
		t.Fatalf("unexpected bold: %q", got)
	}
	if got := Code("+380"); got != "<code>+380</code>" {
		t.Fatalf("unexpected code: %q", got)
	}
}

func TestHasKeyboard(t *testing.T) {
	if Text("hi").HasKeyboard() {
		t.Fatalf("plain text must not report a keyboard")
	}
	if (Reply{Keyboard: [][]Button{{}}}).HasKeyboard() {
		t.Fatalf("empty rows must not report a keyboard")
	}
	if !(Reply{Keyboard: [][]Button{{{Text: "x", Data: "y"}}}}).HasKeyboard() {
		t.Fatalf("expected keyboard")
	}
}
