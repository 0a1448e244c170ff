package hwface

import "github.com/albenik/go-serial/v2/enumerator"

// ListPorts returns the names of every serial-like device currently
// present, for an operator choosing which six ports to wire into a mesh
// config's serial.devices list.
func ListPorts() ([]string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.Name)
	}
	return names, nil
}
