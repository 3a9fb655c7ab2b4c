package model

import "testing"

func strPtr(s string) *string { return &s }

func TestDisplayTitle(t *testing.T) {
	tests := []struct {
		name   string
		track  Track
		expect string
	}{
		{"无自定义值时使用原始标题", Track{Title: "Original"}, "Original"},
		{"自定义值优先", Track{Title: "Original", CustomTitle: strPtr("Custom")}, "Custom"},
		{"空自定义值回退到原始标题", Track{Title: "Original", CustomTitle: strPtr("")}, "Original"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.track.DisplayTitle(); got != tt.expect {
				t.Errorf("DisplayTitle() = %q, want %q", got, tt.expect)
			}
		})
	}
}

func TestDisplayArtist(t *testing.T) {
	track := Track{Artist: "Someone", CustomArtist: strPtr("Renamed")}
	if got := track.DisplayArtist(); got != "Renamed" {
		t.Errorf("DisplayArtist() = %q, want %q", got, "Renamed")
	}

	track.CustomArtist = nil
	if got := track.DisplayArtist(); got != "Someone" {
		t.Errorf("DisplayArtist() = %q, want %q", got, "Someone")
	}
}

func TestJobTerminal(t *testing.T) {
	tests := []struct {
		status   JobStatus
		terminal bool
	}{
		{JobStatusPending, false},
		{JobStatusProcessing, false},
		{JobStatusCompleted, true},
		{JobStatusFailed, true},
	}
	for _, tt := range tests {
		job := DownloadJob{Status: tt.status}
		if got := job.Terminal(); got != tt.terminal {
			t.Errorf("Terminal() for %s = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}
