package task

import (
	"testing"

	"github.com/Iron-Ham/pciam/internal/device"
	"github.com/Iron-Ham/pciam/internal/tile"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindAlignment, "alignment"},
		{KindBookkeepingCheck, "bookkeeping_check"},
		{KindCCF, "ccf"},
		{KindBookkeepingDone, "bookkeeping_done"},
		{KindCancel, "cancel"},
		{KindSentinel, "sentinel"},
		{Kind(99), "kind(99)"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}

func TestControlSignalsOutrankBulkWork(t *testing.T) {
	control := []Kind{KindCancel, KindSentinel, KindBookkeepingDone}
	work := []Kind{KindAlignment, KindBookkeepingCheck, KindCCF}

	for _, c := range control {
		if !c.IsControl() {
			t.Errorf("%s.IsControl() = false", c)
		}
		for _, w := range work {
			if w.IsControl() {
				t.Errorf("%s.IsControl() = true", w)
			}
			if !Less(&Task{Kind: c}, &Task{Kind: w}) {
				t.Errorf("Less(%s, %s) = false, control must sort first", c, w)
			}
			if Less(&Task{Kind: w}, &Task{Kind: c}) {
				t.Errorf("Less(%s, %s) = true, bulk work must not preempt control", w, c)
			}
		}
	}
}

func TestControlSignalOrder(t *testing.T) {
	ordered := []Kind{KindCancel, KindSentinel, KindBookkeepingDone, KindAlignment}
	for i := 0; i < len(ordered)-1; i++ {
		a, b := &Task{Kind: ordered[i]}, &Task{Kind: ordered[i+1]}
		if !Less(a, b) {
			t.Errorf("expected %s before %s", ordered[i], ordered[i+1])
		}
	}
}

func TestLessIsIrreflexive(t *testing.T) {
	for k := KindAlignment; k <= KindSentinel; k++ {
		a := &Task{Kind: k}
		if Less(a, a) {
			t.Errorf("Less(%s, %s) = true", k, k)
		}
	}
}

func TestConstructors(t *testing.T) {
	a := tile.New(tile.Spec{ID: "r0c1", Row: 0, Col: 1, Width: 4, Height: 4, Device: 0, FFT: device.Buffer{Device: 0, ID: 1, Len: 12}})
	b := tile.New(tile.Spec{ID: "r0c0", Row: 0, Col: 0, Width: 4, Height: 4, Device: 1, FFT: device.Buffer{Device: 1, ID: 2, Len: 12}})
	peaks := []Peak{{X: 1, Y: 2}}

	req := NewAlignment(a, b, West)
	if req.Kind != KindAlignment || req.Tile != a || req.Neighbor != b || req.Direction != West {
		t.Errorf("NewAlignment() = %+v", req)
	}
	if got := req.String(); got != "alignment(r0c1<-r0c0 west)" {
		t.Errorf("String() = %q", got)
	}

	ccf := NewCCF(a, b, West, peaks, 0, 3)
	if ccf.Kind != KindCCF || ccf.OriginDevice != 0 || ccf.OriginWorker != 3 || len(ccf.Peaks) != 1 {
		t.Errorf("NewCCF() = %+v", ccf)
	}

	bk := NewBookkeepingCheck(a, b, West, peaks)
	if bk.Kind != KindBookkeepingCheck || bk.Tile != a || bk.Neighbor != b {
		t.Errorf("NewBookkeepingCheck() = %+v", bk)
	}

	if got := NewSentinel().String(); got != "sentinel" {
		t.Errorf("sentinel String() = %q", got)
	}
}
