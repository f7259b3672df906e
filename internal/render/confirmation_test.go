package render

import (
	"strings"
	"testing"
)

func baseInput() Input {
	return Input{
		Name:          "Ann",
		CustomerID:    42,
		MoveDate:      "2027-05-01",
		MovingAddress: "Stockholm",
	}
}

func TestConfirmation_Greeting(t *testing.T) {
	html, err := Confirmation(baseInput())
	if err != nil {
		t.Fatalf("Confirmation: %v", err)
	}

	for _, want := range []string{
		"<p>Hello Ann, your booking #42 was created.</p>",
		"<p><strong>Move date:</strong> 2027-05-01</p>",
		"<p><strong>Address:</strong> Stockholm</p>",
		"<h3>Fun Facts About Your New Location</h3>",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("output missing %q:\n%s", want, html)
		}
	}
}

func TestConfirmation_Facts(t *testing.T) {
	tests := []struct {
		name  string
		facts []string
		want  string
	}{
		{"three facts", []string{"A.", "B.", "C."}, "<p>• A.<br>• B.<br>• C.</p>"},
		{"one fact", []string{"Only."}, "<p>• Only.</p>"},
		{"no facts", nil, "<p>" + NoFactsMessage + "</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInput()
			in.Facts = tt.facts
			html, err := Confirmation(in)
			if err != nil {
				t.Fatalf("Confirmation: %v", err)
			}
			if !strings.Contains(html, tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, html)
			}
		})
	}
}

func TestConfirmation_Images(t *testing.T) {
	in := baseInput()
	in.Images = []string{"https://images.example/1.jpg", "https://images.example/2.jpg"}

	html, err := Confirmation(in)
	if err != nil {
		t.Fatalf("Confirmation: %v", err)
	}

	if !strings.Contains(html, "<h3>What Stockholm Looks Like</h3>") {
		t.Errorf("missing images heading:\n%s", html)
	}
	if got := strings.Count(html, `width="180"`); got != 2 {
		t.Errorf("image count = %d, want 2", got)
	}
	if !strings.Contains(html, `<img src="https://images.example/1.jpg" width="180"`) {
		t.Errorf("missing first image:\n%s", html)
	}
	if !strings.Contains(html, `<td align="center">`) {
		t.Errorf("images not centered:\n%s", html)
	}
}

func TestConfirmation_NoImagesNoBlock(t *testing.T) {
	html, err := Confirmation(baseInput())
	if err != nil {
		t.Fatalf("Confirmation: %v", err)
	}
	if strings.Contains(html, "Looks Like") || strings.Contains(html, "<table") {
		t.Errorf("unexpected images block:\n%s", html)
	}
}

func TestConfirmation_EscapesInput(t *testing.T) {
	in := Input{
		Name:          `<script>alert("x")</script>`,
		CustomerID:    1,
		MoveDate:      "2027-05-01",
		MovingAddress: `Main St" onload="evil()`,
		Facts:         []string{"<b>bold</b> & co"},
		Images:        []string{"javascript:alert(1)"},
	}

	html, err := Confirmation(in)
	if err != nil {
		t.Fatalf("Confirmation: %v", err)
	}

	for _, bad := range []string{"<script>", "<b>bold</b>", `" onload="`, "javascript:alert"} {
		if strings.Contains(html, bad) {
			t.Errorf("output contains unescaped %q:\n%s", bad, html)
		}
	}
	if !strings.Contains(html, "&lt;script&gt;") {
		t.Errorf("name not escaped as text:\n%s", html)
	}
	if !strings.Contains(html, "&lt;b&gt;bold&lt;/b&gt; &amp; co") {
		t.Errorf("fact not escaped as text:\n%s", html)
	}
}

func TestConfirmation_Deterministic(t *testing.T) {
	in := baseInput()
	in.Facts = []string{"A.", "B."}
	in.Images = []string{"https://images.example/1.jpg"}

	first, err := Confirmation(in)
	if err != nil {
		t.Fatalf("Confirmation: %v", err)
	}
	for range 5 {
		again, _ := Confirmation(in)
		if again != first {
			t.Fatal("output differs between runs")
		}
	}
}
