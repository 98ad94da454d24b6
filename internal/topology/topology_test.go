package topology

import (
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/Iron-Ham/pciam/internal/device"
)

func mixedSim() *device.Sim {
	// 0 <-> 1 have peer access, 2 is isolated.
	return device.NewSim(&device.TopologyFile{Devices: []device.DeviceSpec{
		{ID: 0, Peers: []int{1}},
		{ID: 1, Peers: []int{0}},
		{ID: 2},
	}})
}

func TestBuild(t *testing.T) {
	sim := mixedSim()
	ctxs := sim.Contexts()

	topo, err := Build(sim, ctxs[0], ctxs)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if got := topo.DirectDevices(); !slices.Equal(got, []int{1}) {
		t.Errorf("DirectDevices() = %v, want [1]", got)
	}
	if got := topo.NonPeerDevices(); !slices.Equal(got, []int{2}) {
		t.Errorf("NonPeerDevices() = %v, want [2]", got)
	}
	if _, ok := topo.Lookup(0); ok {
		t.Error("own device must not have a route")
	}

	via, ok := topo.StagingContext(2)
	if !ok || via.Device != 2 {
		t.Errorf("StagingContext(2) = %v, %v", via, ok)
	}
	if _, ok := topo.StagingContext(1); ok {
		t.Error("direct peer must not need staging")
	}
	if !sim.PeerAccessEnabled(0, 1) {
		t.Error("peer access 0 -> 1 was not enabled")
	}
}

func TestBuildIsIdempotentAcrossWorkers(t *testing.T) {
	sim := mixedSim()
	ctxs := sim.Contexts()

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := Build(sim, ctxs[0], ctxs); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Build() error = %v", err)
	}
	if got := sim.Stats().PeerEnables; got != 1 {
		t.Errorf("PeerEnables = %d, want 1", got)
	}
}

type failingDriver struct {
	*device.Sim
}

func (failingDriver) EnablePeerAccess(device.Context, device.Context) error {
	return errors.New("driver fault")
}

func TestBuildPropagatesEnableFailure(t *testing.T) {
	sim := mixedSim()
	ctxs := sim.Contexts()

	if _, err := Build(failingDriver{sim}, ctxs[0], ctxs); err == nil {
		t.Error("expected error when enabling peer access fails")
	}
}

func TestBuildUnknownPeer(t *testing.T) {
	sim := mixedSim()
	_, err := Build(sim, device.Context{Device: 0}, []device.Context{{Device: 7}})
	if !errors.Is(err, device.ErrUnknownDevice) {
		t.Errorf("Build() error = %v, want ErrUnknownDevice", err)
	}
}
