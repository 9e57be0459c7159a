package main

import "testing"

func TestValidateInteropFlags(t *testing.T) {
	tests := []struct {
		name                string
		buildNum            bool
		overrideBuildNumSet bool
		targetVersion       string
		wantErr             bool
	}{
		{"override without target", false, true, "", true},
		{"neither build-num nor target", false, false, "", true},
		{"build-num with override", true, true, "2.0", true},
		{"build-num with target", true, false, "2.0", true},
		{"build-num alone", true, false, "", false},
		{"target alone", false, false, "2.0", false},
		{"override with target", false, true, "2.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateInteropFlags(tt.buildNum, tt.overrideBuildNumSet, tt.targetVersion)
			if tt.wantErr && err == nil {
				t.Fatal("expected an error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}
