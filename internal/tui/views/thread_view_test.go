package views

import "testing"

func TestShouldFollow(t *testing.T) {
	tests := []struct {
		name      string
		offsetRow int
		height    int
		lineCount int
		want      bool
	}{
		{"empty view always follows", 0, 20, 0, true},
		{"viewing the bottom", 80, 20, 100, true},
		{"within the near-bottom threshold", 77, 20, 100, true},
		{"just past the threshold", 76, 20, 100, false},
		{"scrolled far up", 0, 20, 100, false},
		{"history shorter than the viewport", 0, 20, 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := shouldFollow(tt.offsetRow, tt.height, tt.lineCount)
			if got != tt.want {
				t.Errorf("shouldFollow(%d, %d, %d) = %v, want %v",
					tt.offsetRow, tt.height, tt.lineCount, got, tt.want)
			}
		})
	}
}

func TestSanitizeForTerminal(t *testing.T) {
	in := "ok \U0001F44D\U0001F3FB joined‍ pair️"
	want := "ok \U0001F44D joined pair"
	if got := sanitizeForTerminal(in); got != want {
		t.Errorf("sanitizeForTerminal(%q) = %q, want %q", in, got, want)
	}
}
