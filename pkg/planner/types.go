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

package planner

import (
	"time"

	"github.com/aws/fleet-autoscaler/pkg/catalog"
	"github.com/aws/fleet-autoscaler/pkg/quantity"
)

// Demand is the total projected resource demand for one sector, summed
// across every pod the demand projector assigned to it.
type Demand struct {
	CPU    quantity.CPU
	Memory quantity.Memory
}

// Instance is a single node backing a fleet, as observed in the current
// cluster snapshot.
type Instance struct {
	NodeName     string
	CordonedByUs bool
	PodCount     int
	CreatedAt    time.Time
}

// FleetState is everything the planner needs to know about one fleet
// (one size within one sector) as of this tick.
type FleetState struct {
	Sector      string
	Size        catalog.Size
	FleetID     string
	MinCapacity int
	// CurrentTarget is the fleet's target capacity as last observed from
	// the cloud fleet API.
	CurrentTarget int
	Instances     []Instance
}

// Action is the kind of node-level change a Decision carries.
type Action string

const (
	ActionNone     Action = "none"
	ActionCordon   Action = "cordon"
	ActionUncordon Action = "uncordon"
)

// NodeAction cordons or uncordons a single named instance.
type NodeAction struct {
	NodeName string
	Action   Action
}

// Decision is the planner's verdict for a single fleet: the target capacity
// it should be driven to, plus the specific node-level cordon/uncordon
// actions needed to get the schedulable count there before the target-
// capacity call is made.
type Decision struct {
	Sector        string
	Size          catalog.Size
	FleetID       string
	DesiredTarget int
	NodeActions   []NodeAction
}

// IsNoop reports whether the decision changes nothing: the target is
// unchanged and no node needs cordoning or uncordoning.
func (d Decision) IsNoop(currentTarget int) bool {
	return d.DesiredTarget == currentTarget && len(d.NodeActions) == 0
}

// SectorInput bundles one sector's demand against its fleets, ready for
// Plan.
type SectorInput struct {
	Name              string
	Kind              catalog.Kind
	Demand            Demand
	OverSubscription  float64
	ReservedCPU       quantity.CPU
	ReservedMemory    quantity.Memory
	SizesDescending   []catalog.Size
	MinCapacityBySize map[catalog.Size]int
	Fleets            map[catalog.Size]FleetState
}
