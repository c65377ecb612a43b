package capture

import (
	"context"
	"strings"
	"testing"
)

func TestCaptureValidation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"no url", Options{OutputPath: "out.png"}, "URL is required"},
		{"no output", Options{URL: "http://127.0.0.1/"}, "OutputPath is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CaptureTimelinePNG(context.Background(), tt.opts)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestNormalizeDefaults(t *testing.T) {
	o := Options{URL: "http://127.0.0.1/", OutputPath: "out.png", Width: 800}
	if err := o.normalize(); err != nil {
		t.Fatal(err)
	}
	if o.Width != 800 || o.Height != DefaultHeight || o.Timeout != DefaultTimeout {
		t.Errorf("normalized = %+v", o)
	}
}
