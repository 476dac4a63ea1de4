package classify

import (
	"testing"
	"time"
)

func TestDecide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		local    time.Duration
		remote   time.Duration
		hasLocal bool
		want     Decision
	}{
		{name: "equal", local: time.Hour, remote: time.Hour, hasLocal: true, want: InSync},
		{name: "9.9s apart", local: time.Hour, remote: time.Hour + 9900*time.Millisecond, hasLocal: true, want: InSync},
		{name: "9.9s apart other side", local: time.Hour + 9900*time.Millisecond, remote: time.Hour, hasLocal: true, want: InSync},
		{name: "10s apart", local: time.Hour, remote: time.Hour + 10*time.Second, hasLocal: true, want: Replace},
		{name: "missing remote", local: time.Hour, remote: 0, hasLocal: true, want: Replace},
		{name: "remote only", local: 0, remote: 30 * time.Minute, hasLocal: false, want: DeleteOnly},
		{name: "remote only below tolerance", local: 0, remote: 5 * time.Second, hasLocal: false, want: InSync},
		{name: "nothing", local: 0, remote: 0, hasLocal: false, want: InSync},
	}

	for _, tt := range tests {
		if got := Decide(tt.local, tt.remote, tt.hasLocal); got != tt.want {
			t.Fatalf("%s: expected %s, got %s", tt.name, tt.want, got)
		}
	}
}
