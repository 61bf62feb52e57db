package cleaner

import "testing"

func TestClean(t *testing.T) {
	c := New(nil)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "whitespace only",
			input: "   \n\t  ",
			want:  "",
		},
		{
			name:  "single line passthrough",
			input: "123 Main St, Springfield, IL 62704",
			want:  "123 Main St, Springfield, IL 62704",
		},
		{
			name:  "multi-line joined with recipient name dropped",
			input: "John Smith\n123 Main St\nSpringfield, IL 62704",
			want:  "123 Main St, Springfield, IL 62704",
		},
		{
			name:  "first line kept when it has a digit",
			input: "12 Hill Rd\nOakville",
			want:  "12 Hill Rd, Oakville",
		},
		{
			name:  "both lines kept when neither has a digit",
			input: "Acme Corp\nAttn Sales",
			want:  "Acme Corp, Attn Sales",
		},
		{
			name:  "email removed",
			input: "jane@example.com\n456 Oak Ave\nPortland, OR 97205",
			want:  "456 Oak Ave, Portland, OR 97205",
		},
		{
			name:  "phone number removed",
			input: "555-123-4567\n789 Pine Rd\nBoise, ID 83702",
			want:  "789 Pine Rd, Boise, ID 83702",
		},
		{
			name:  "zip plus four survives phone stripping",
			input: "123 Main St\nSpringfield IL 62704-1234",
			want:  "123 Main St, Springfield IL 62704-1234",
		},
		{
			name:  "street suffix run into city gets a comma",
			input: "10 Downing St Westminster",
			want:  "10 Downing St, Westminster",
		},
		{
			name:  "unit token normalized",
			input: "123 Main St Apt 4B Springfield",
			want:  "123 Main St, Apt 4B, Springfield",
		},
		{
			name:  "suite with hash normalized",
			input: "100 Congress Ave Suite #200 Austin",
			want:  "100 Congress Ave, Suite 200, Austin",
		},
		{
			name:  "long region name abbreviated",
			input: "12 Harbor View Rd Charleston South Carolina 29401",
			want:  "12 Harbor View Rd, Charleston SC 29401",
		},
		{
			name:  "australian state uppercased",
			input: "5 George St Sydney nsw 2000",
			want:  "5 George St, Sydney NSW 2000",
		},
		{
			name:  "comma inserted before trailing country",
			input: "22 Baker Street London UK",
			want:  "22 Baker Street, London, UK",
		},
		{
			name:  "comma inserted before trailing european country",
			input: "Karl-Marx-Allee 1\n10178 Berlin Germany",
			want:  "Karl-Marx-Allee 1, 10178 Berlin, Germany",
		},
		{
			name:  "trailing punctuation stripped",
			input: "77 King St W, Toronto, ON,",
			want:  "77 King St W, Toronto, ON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Clean(tt.input); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCleanExtraRegions(t *testing.T) {
	c := New(map[string]string{"Baja California": "BCN"})

	got := c.Clean("Av Reforma 10 Tijuana Baja California")
	want := "Av Reforma 10 Tijuana BCN"
	if got != want {
		t.Errorf("Clean with extra region = %q, want %q", got, want)
	}
}
