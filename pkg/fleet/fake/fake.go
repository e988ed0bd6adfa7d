/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package fake is a deterministic, in-memory stand-in for pkg/fleet, so the
// actuator and control loop can be exercised without a real EC2 account.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/fleet-autoscaler/pkg/fleet"
)

type fleetState struct {
	fleetID        string
	targetCapacity int
	instanceIDs    []string
}

// Fleets is a scripted collection of fleet states keyed the same way a real
// tag selector would resolve them.
type Fleets struct {
	mu     sync.Mutex
	byKey  map[fleet.Key]*fleetState
	// ModifyCalls records every SetTargetCapacity invocation in order, for
	// assertions on actuation ordering and content.
	ModifyCalls []ModifyCall
}

type ModifyCall struct {
	FleetID string
	Target  int
}

func New() *Fleets {
	return &Fleets{byKey: map[fleet.Key]*fleetState{}}
}

// Seed registers a fleet's current observed state under key.
func (f *Fleets) Seed(key fleet.Key, fleetID string, targetCapacity int, instanceIDs []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byKey[key] = &fleetState{fleetID: fleetID, targetCapacity: targetCapacity, instanceIDs: instanceIDs}
}

func (f *Fleets) Describe(_ context.Context, key fleet.Key) (fleet.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.byKey[key]
	if !ok {
		return fleet.Snapshot{}, fmt.Errorf("no managed fleet found for sector %s size %s", key.Sector, key.Size)
	}
	return fleet.Snapshot{
		FleetID:        state.fleetID,
		TargetCapacity: state.targetCapacity,
		InstanceIDs:    append([]string(nil), state.instanceIDs...),
	}, nil
}

func (f *Fleets) SetTargetCapacity(_ context.Context, fleetID string, desired int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ModifyCalls = append(f.ModifyCalls, ModifyCall{FleetID: fleetID, Target: desired})
	for _, state := range f.byKey {
		if state.fleetID == fleetID {
			state.targetCapacity = desired
		}
	}
	return nil
}
