// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package senxor

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Opener opens a sensor on the port it was registered for.
type Opener func() (Sensor, error)

// Ref references a port a sensor may be connected to.
type Ref struct {
	// Name of the port, e.g. "COM3" or "/dev/ttyACM0".
	Name string
	// Number is used to order auto-detection. Lower is tried first.
	Number int
	// Open is the factory to open the sensor on this port.
	Open Opener
}

// Register registers a port a sensor may be found on.
//
// It is expected to be called by transports during host initialization.
func Register(r *Ref) error {
	if r == nil || len(r.Name) == 0 {
		return errors.New("senxor: can't register a port with no name")
	}
	if r.Open == nil {
		return fmt.Errorf("senxor: can't register port %q with nil Open", r.Name)
	}
	mu.Lock()
	defer mu.Unlock()
	if _, ok := byName[r.Name]; ok {
		return fmt.Errorf("senxor: can't register port %q twice", r.Name)
	}
	byName[r.Name] = r
	return nil
}

// Unregister removes a previously registered port.
func Unregister(name string) error {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := byName[name]; !ok {
		return fmt.Errorf("senxor: can't unregister unknown port %q", name)
	}
	delete(byName, name)
	return nil
}

// All returns a copy of all the registered ports, in auto-detection order.
func All() []*Ref {
	mu.Lock()
	defer mu.Unlock()
	out := make([]*Ref, 0, len(byName))
	for _, r := range byName {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Number != out[j].Number {
			return out[i].Number < out[j].Number
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Open opens the sensor on the named port.
//
// When name is empty, every registered port is tried in order and the first
// one that opens is returned.
func Open(name string) (Sensor, error) {
	if name != "" {
		mu.Lock()
		r, ok := byName[name]
		mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("senxor: unknown port %q", name)
		}
		return r.Open()
	}
	refs := All()
	if len(refs) == 0 {
		return nil, errors.New("senxor: no port registered")
	}
	var errs []string
	for _, r := range refs {
		s, err := r.Open()
		if err == nil {
			return s, nil
		}
		errs = append(errs, fmt.Sprintf("%s: %s", r.Name, err))
	}
	return nil, fmt.Errorf("senxor: no sensor found: %s", strings.Join(errs, "; "))
}

//

var (
	mu     sync.Mutex
	byName = map[string]*Ref{}
)
