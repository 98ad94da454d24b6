package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Iron-Ham/pciam/internal/event"
	"github.com/Iron-Ham/pciam/internal/task"
	"github.com/Iron-Ham/pciam/internal/taskqueue"
	"github.com/Iron-Ham/pciam/internal/testutil"
)

func TestExecute(t *testing.T) {
	tests := []struct {
		name       string
		devices    []int
		peerAccess bool
		rows, cols int
		// ccfDelay slows the CCF stage so it falls behind the workers.
		ccfDelay time.Duration
	}{
		{name: "single device", devices: []int{0}, rows: 3, cols: 3},
		{name: "devices without peer access", devices: []int{0, 1}, rows: 3, cols: 4},
		{name: "devices with peer access", devices: []int{0, 1, 2}, peerAccess: true, rows: 2, cols: 5},
		{name: "single tile", devices: []int{0, 1}, rows: 1, cols: 1},
		{name: "slow ccf stage", devices: []int{0, 1}, rows: 4, cols: 4, ccfDelay: 2 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := testutil.NewSim(t, tt.devices, tt.peerAccess, 0)
			g := newTestGrid(t, sim, tt.rows, tt.cols, tt.devices)
			bus := event.NewBus(nil)
			sentinels := countSentinels(bus)
			p := newTestPool(t, sim, tt.devices, g, bus)

			var ccf []*task.Task
			requests := Requests(g)
			sum, err := Execute(context.Background(), p, requests, func(c *task.Task) error {
				time.Sleep(tt.ccfDelay)
				ccf = append(ccf, c)
				return nil
			})
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}

			want := tt.rows*(tt.cols-1) + tt.cols*(tt.rows-1)
			if sum.Requests != want || sum.Checks != want || sum.CCF != want || len(ccf) != want {
				t.Errorf("summary = %+v, want %d of each", sum, want)
			}
			if sum.Cancelled || sum.Unprocessed != 0 {
				t.Errorf("cancelled = %v, unprocessed = %d; want a complete run", sum.Cancelled, sum.Unprocessed)
			}
			for _, c := range ccf {
				if len(c.Peaks) > 2 {
					t.Errorf("%s carries %d peaks", c, len(c.Peaks))
				}
			}

			// A request is staged when its neighbor sits on a third device
			// the processing worker cannot read directly.
			var wantStaged int64
			if !tt.peerAccess {
				for _, c := range ccf {
					if c.Tile.Device() != c.Neighbor.Device() && c.OriginDevice != c.Neighbor.Device() {
						wantStaged++
					}
				}
			}
			var staged, aligned int64
			for _, w := range sum.Workers {
				staged += w.Staged
				aligned += w.Aligned
			}
			if aligned != int64(want) {
				t.Errorf("aligned = %d, want %d", aligned, want)
			}
			if staged != wantStaged {
				t.Errorf("staged = %d, want %d", staged, wantStaged)
			}
			if sentinels.byWork != len(tt.devices) {
				t.Errorf("worker sentinels = %d, want %d", sentinels.byWork, len(tt.devices))
			}
			if sim.LiveBuffers() != tt.rows*tt.cols {
				t.Errorf("live buffers = %d, want %d grid tiles", sim.LiveBuffers(), tt.rows*tt.cols)
			}
		})
	}
}

func TestExecuteCCFFailureCancels(t *testing.T) {
	sim := testutil.NewSim(t, []int{0, 1}, false, 0)
	g := newTestGrid(t, sim, 4, 4, []int{0, 1})
	p := newTestPool(t, sim, []int{0, 1}, g, nil)

	errStore := errors.New("disk full")
	sum, err := Execute(context.Background(), p, Requests(g), func(*task.Task) error {
		return errStore
	})
	if !errors.Is(err, errStore) {
		t.Fatalf("Execute() error = %v, want %v", err, errStore)
	}
	if !sum.Cancelled {
		t.Error("run should be cancelled after a ccf failure")
	}
}

func TestConsumeUntilSentinel(t *testing.T) {
	errStop := errors.New("stop")

	tests := []struct {
		name    string
		queued  []*task.Task
		fn      func(*task.Task) error
		ctx     func() context.Context
		wantErr error
		wantN   int
	}{
		{
			name:   "drains work queued behind the sentinel",
			queued: []*task.Task{task.NewBookkeepingDone(), task.NewBookkeepingDone(), task.NewSentinel()},
			wantN:  2,
		},
		{
			name: "derived tasks outlive a later sentinel",
			queued: []*task.Task{
				task.NewCCF(nil, nil, task.West, nil, 0, 0),
				task.NewCCF(nil, nil, task.North, nil, 1, 1),
				task.NewCCF(nil, nil, task.West, nil, 1, 1),
				task.NewSentinel(),
				task.NewSentinel(),
			},
			wantN: 3,
		},
		{
			name:    "callback error stops",
			queued:  []*task.Task{task.NewBookkeepingDone(), task.NewSentinel()},
			fn:      func(*task.Task) error { return errStop },
			wantErr: errStop,
			wantN:   1,
		},
		{
			name: "interruption is not an error",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := taskqueue.New("test")
			for _, tk := range tt.queued {
				q.Put(tk)
			}
			ctx := context.Background()
			if tt.ctx != nil {
				ctx = tt.ctx()
			}
			n := 0
			err := ConsumeUntilSentinel(ctx, q, func(tk *task.Task) error {
				n++
				if tt.fn != nil {
					return tt.fn(tk)
				}
				return nil
			})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if n != tt.wantN {
				t.Errorf("consumed %d, want %d", n, tt.wantN)
			}
		})
	}
}
