package markup

import "testing"

func TestExtractText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"<b>Gold</b> chest", "Gold chest"},
		{"Fish &amp; Chips", "Fish & Chips"},
		{"a<br>b", "a\nb"},
		{"a<br/>b", "a\nb"},
		{`<span class="x">Caf&eacute;</span>`, "Café"},
		{"keep<script>alert(1)</script> this", "keep this"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExtractText(tt.in); got != tt.want {
			t.Errorf("ExtractText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
