package status

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"
)

func TestBanners(t *testing.T) {
	Configure(ColorNever)
	var buf bytes.Buffer
	Output = &buf
	defer func() {
		Output = os.Stderr
		Configure(ColorAuto)
	}()

	tests := []struct {
		name  string
		print func()
		want  string
	}{
		{
			name:  "print",
			print: func() { Print("Building", "%s | %s | %d crates", "platform-console", "debug", 2) },
			want:  "    Building platform-console | debug | 2 crates\n",
		},
		{
			name:  "warn",
			print: func() { Warn("Warning", "`%s` reported warnings", "t") },
			want:  "     Warning `t` reported warnings\n",
		},
		{
			name:  "skip",
			print: func() { Skip("Skipping", "admin tasks") },
			want:  "    Skipping admin tasks\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.print()
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}

	buf.Reset()
	Finished("build", time.Now())
	if !strings.HasPrefix(buf.String(), "    Finished build in 0.") {
		t.Errorf("Finished() = %q", buf.String())
	}
}
