package facematch

import "testing"

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Honza", "Honza"},
		{"Jiří", "Jiri"},
		{"café", "cafe"},
		{"Žluťoučký kůň", "Zlutoucky kun"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := RemoveDiacritics(tt.input)
			if result != tt.expected {
				t.Errorf("RemoveDiacritics(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestIDFromFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		ascii    bool
		expected string
	}{
		{"plain jpg", "A.jpg", false, "A"},
		{"keeps case", "Ronaldo_Test_1.JPEG", false, "Ronaldo_Test_1"},
		{"strips directories", "uploads/2024/bob.png", false, "bob"},
		{"windows path", `C:\images\alice.jpg`, false, "alice"},
		{"only last extension", "archive.tar.gz", false, "archive.tar"},
		{"no extension", "carol", false, "carol"},
		{"diacritics kept", "Jiří.jpg", false, "Jiří"},
		{"diacritics stripped", "Jiří.jpg", true, "Jiri"},
		{"empty", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IDFromFilename(tt.input, tt.ascii)
			if result != tt.expected {
				t.Errorf("IDFromFilename(%q, %v) = %q, want %q", tt.input, tt.ascii, result, tt.expected)
			}
		})
	}
}
