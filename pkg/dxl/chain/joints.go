package chain

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/robotalks/dxl.go/pkg/dxl/comm"
)

// Joint names a device on the chain.
type Joint struct {
	Name     string       `yaml:"name"`
	Address  comm.Address `yaml:"id"`
	Velocity int          `yaml:"velocity"`
}

// Joints is the joint description of a robot, e.g.
//
//	velocity: 100
//	joints:
//	  - name: shoulder
//	    id: 1
//	  - name: gripper
//	    id: 7
//	    velocity: 80
type Joints struct {
	Velocity int     `yaml:"velocity"`
	Joints   []Joint `yaml:"joints"`
}

// ParseJoints parses and validates a joint description.
func ParseJoints(data []byte) (*Joints, error) {
	var j Joints
	if err := yaml.UnmarshalStrict(data, &j); err != nil {
		return nil, fmt.Errorf("parse joints: %w", err)
	}
	if err := j.validate(); err != nil {
		return nil, err
	}
	return &j, nil
}

// LoadJoints reads a joint description file.
func LoadJoints(filename string) (*Joints, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseJoints(data)
}

func (j *Joints) validate() error {
	names := make(map[string]bool, len(j.Joints))
	addrs := make(map[comm.Address]bool, len(j.Joints))
	for _, joint := range j.Joints {
		if joint.Name == "" {
			return fmt.Errorf("joint %d has no name", joint.Address)
		}
		if !joint.Address.IsValid() {
			return fmt.Errorf("joint %s: invalid id %d", joint.Name, joint.Address)
		}
		if names[joint.Name] {
			return fmt.Errorf("joint %s defined more than once", joint.Name)
		}
		if addrs[joint.Address] {
			return &DuplicateAddressError{Address: joint.Address}
		}
		names[joint.Name], addrs[joint.Address] = true, true
	}
	return nil
}

// Find looks up a joint by name.
func (j *Joints) Find(name string) (Joint, bool) {
	for _, joint := range j.Joints {
		if joint.Name == name {
			return joint, true
		}
	}
	return Joint{}, false
}

// VelocityOf returns the velocity of a joint, falling back to the
// description wide default.
func (j *Joints) VelocityOf(joint Joint) int {
	if joint.Velocity > 0 {
		return joint.Velocity
	}
	return j.Velocity
}

// Addresses lists all joint addresses in definition order.
func (j *Joints) Addresses() []comm.Address {
	addrs := make([]comm.Address, len(j.Joints))
	for n, joint := range j.Joints {
		addrs[n] = joint.Address
	}
	return addrs
}

// Resolve maps joint names to addresses and their velocities.
// With no names all joints are resolved.
func (j *Joints) Resolve(names ...string) ([]comm.Address, []int, error) {
	if len(names) == 0 {
		for _, joint := range j.Joints {
			names = append(names, joint.Name)
		}
	}
	addrs := make([]comm.Address, 0, len(names))
	velocities := make([]int, 0, len(names))
	for _, name := range names {
		joint, ok := j.Find(name)
		if !ok {
			return nil, nil, fmt.Errorf("unknown joint %q", name)
		}
		addrs = append(addrs, joint.Address)
		velocities = append(velocities, j.VelocityOf(joint))
	}
	return addrs, velocities, nil
}
