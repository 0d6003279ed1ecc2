package directory

import "testing"

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		group   string
		want    bool
	}{
		{"Prefix Wildcard Match", "Eng-*", "Eng-Backend", true},
		{"Prefix Wildcard Miss", "Eng-*", "Sales-Ops", false},
		{"Case Insensitive", "eng-*", "ENG-Backend", true},
		{"Star Matches All", "*", "Anything At All", true},
		{"Empty Matches All", "", "Whatever", true},
		{"Exact Literal", "Engineering", "engineering", true},
		{"Exact Literal Miss", "Engineering", "Engineering Team", false},
		{"Suffix Wildcard", "*-Team", "Platform-Team", true},
		{"Middle Wildcard", "Dept-*-EU", "Dept-Sales-EU", true},
		{"Middle Wildcard Miss", "Dept-*-EU", "Dept-Sales-US", false},
		{"Regex Chars Escaped", "A+B*", "A+B-Group", true},
		{"Regex Chars Not Regex", "A+B*", "AAB-Group", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchPattern(tt.pattern, tt.group); got != tt.want {
				t.Errorf("MatchPattern(%q, %q) = %v, want %v", tt.pattern, tt.group, got, tt.want)
			}
		})
	}
}

func TestExtractRoleSlug(t *testing.T) {
	tests := []struct {
		name    string
		group   string
		pattern string
		want    string
	}{
		{"Prefix Strip", "Eng-Backend", "Eng-*", "backend"},
		{"Suffix Strip", "Backend-Team", "*-Team", "backend"},
		{"Both Strip", "App-Admins-Prod", "App-*-Prod", "admins"},
		{"Star Keeps Whole Name", "Engineering", "*", "engineering"},
		{"Literal Exact", "Admins", "admins", "admins"},
		{"Literal Mismatch", "Admins", "operators", ""},
		{"Empty Remainder", "Eng-", "Eng-*", ""},
		{"Empty Pattern", "Anything", "", ""},
		{"Two Wildcards", "A-B-C", "A-*-*", ""},
		{"Case Insensitive Strip", "ENG-Backend", "eng-*", "backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractRoleSlug(tt.group, tt.pattern); got != tt.want {
				t.Errorf("ExtractRoleSlug(%q, %q) = %q, want %q", tt.group, tt.pattern, got, tt.want)
			}
		})
	}
}

func TestLiteralPrefix(t *testing.T) {
	if got := literalPrefix("Eng-*"); got != "Eng-" {
		t.Errorf("literalPrefix = %q", got)
	}
	if got := literalPrefix("*-Team"); got != "" {
		t.Errorf("literalPrefix = %q", got)
	}
	if got := literalPrefix("Engineering"); got != "Engineering" {
		t.Errorf("literalPrefix = %q", got)
	}
}
