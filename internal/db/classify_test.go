package db

import "testing"

func TestClassifyCompleteness(t *testing.T) {
	tests := []struct {
		name   string
		record ShortRecord
		want   string
	}{
		{
			name: "title and transcript",
			record: ShortRecord{
				Title:      "A Short",
				Transcript: "some words",
			},
			want: "full",
		},
		{
			name: "views count as metadata",
			record: ShortRecord{
				Views:      1500,
				Transcript: "some words",
			},
			want: "full",
		},
		{
			name: "metadata without transcript",
			record: ShortRecord{
				Title:       "A Short",
				ReleaseDate: "2024-03-01",
			},
			want: "metadata-only",
		},
		{
			name: "whitespace transcript does not count",
			record: ShortRecord{
				Title:      "A Short",
				Transcript: "   \n",
			},
			want: "metadata-only",
		},
		{
			name: "transcript without metadata",
			record: ShortRecord{
				Transcript: "some words",
			},
			want: "transcript-only",
		},
		{
			name: "url and id alone are not metadata",
			record: ShortRecord{
				VideoID:  "dQw4w9WgXcQ",
				VideoURL: "https://www.youtube.com/shorts/dQw4w9WgXcQ",
			},
			want: "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyCompleteness(tt.record)
			if got != tt.want {
				t.Errorf("ClassifyCompleteness() = %q, want %q", got, tt.want)
			}
		})
	}
}
