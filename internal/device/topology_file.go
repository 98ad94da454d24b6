package device

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TopologyFile is the YAML description of a simulated machine.
type TopologyFile struct {
	Devices []DeviceSpec `yaml:"devices"`
}

// DeviceSpec describes one simulated device.
type DeviceSpec struct {
	ID int `yaml:"id"`
	// MemoryMB is the device memory budget. Zero means unlimited.
	MemoryMB int `yaml:"memory_mb,omitempty"`
	// MemoryBytes overrides MemoryMB when set.
	MemoryBytes int64 `yaml:"memory_bytes,omitempty"`
	// Peers lists devices this device can access directly.
	Peers []int `yaml:"peers,omitempty"`
}

// Budget returns the memory budget in bytes, or 0 for unlimited.
func (d DeviceSpec) Budget() int64 {
	if d.MemoryBytes > 0 {
		return d.MemoryBytes
	}
	return int64(d.MemoryMB) << 20
}

// LoadTopologyFile reads a simulator topology from a YAML file.
func LoadTopologyFile(path string) (*TopologyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology file: %w", err)
	}
	return ParseTopology(data)
}

// ParseTopology decodes a simulator topology from YAML.
func ParseTopology(data []byte) (*TopologyFile, error) {
	var tf TopologyFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse topology: %w", err)
	}
	if len(tf.Devices) == 0 {
		return nil, fmt.Errorf("topology declares no devices")
	}
	seen := make(map[int]bool, len(tf.Devices))
	for _, d := range tf.Devices {
		if d.ID < 0 {
			return nil, fmt.Errorf("device id must be non-negative (got: %d)", d.ID)
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("duplicate device id %d", d.ID)
		}
		seen[d.ID] = true
	}
	for _, d := range tf.Devices {
		for _, p := range d.Peers {
			if !seen[p] {
				return nil, fmt.Errorf("device %d lists unknown peer %d", d.ID, p)
			}
		}
	}
	return &tf, nil
}

// Marshal encodes the topology as YAML.
func (tf *TopologyFile) Marshal() ([]byte, error) {
	return yaml.Marshal(tf)
}

// UniformTopology describes n devices with the same budget where every pair
// either has peer access or does not.
func UniformTopology(ids []int, memoryMB int, peerAccess bool) *TopologyFile {
	tf := &TopologyFile{Devices: make([]DeviceSpec, 0, len(ids))}
	for _, id := range ids {
		spec := DeviceSpec{ID: id, MemoryMB: memoryMB}
		if peerAccess {
			for _, other := range ids {
				if other != id {
					spec.Peers = append(spec.Peers, other)
				}
			}
		}
		tf.Devices = append(tf.Devices, spec)
	}
	return tf
}
