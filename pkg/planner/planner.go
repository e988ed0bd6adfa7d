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

// Package planner is the decision kernel: given one sector's projected
// demand and the current state of its fleets, it decides the target
// capacity for every fleet in the sector and the node-level cordon/uncordon
// actions needed to reach it. Plan is a pure function of its inputs — it
// carries no state across ticks, so a crash between planning and actuation
// loses nothing but one tick's progress.
package planner

import (
	"math"
	"sort"

	"github.com/aws/fleet-autoscaler/pkg/catalog"
)

// Plan computes the per-fleet decisions for one sector. Sizes with
// unschedulable capacity (reservation consuming the entire nominal size)
// are skipped for packing and reported back as warnings; their fleets are
// still floored to min_capacity.
func Plan(input SectorInput) ([]Decision, []string) {
	var warnings []string

	cpuCapacity := map[catalog.Size]int64{}
	memCapacity := map[catalog.Size]int64{}
	for _, size := range input.SizesDescending {
		cpu, mem, ok, err := catalog.Schedulable(size, input.Kind, input.ReservedCPU, input.ReservedMemory)
		if err != nil {
			warnings = append(warnings, "sector "+input.Name+": "+err.Error())
			continue
		}
		if !ok {
			warnings = append(warnings, "sector "+input.Name+": size "+string(size)+" has no schedulable capacity after reservation")
			continue
		}
		cpuCapacity[size] = int64(cpu)
		memCapacity[size] = int64(mem)
	}

	effCPU := inflate(int64(input.Demand.CPU), input.OverSubscription)
	effMem := inflate(int64(input.Demand.Memory), input.OverSubscription)

	cpuCounts := packBySize(effCPU, input.SizesDescending, cpuCapacity)
	memCounts := packBySize(effMem, input.SizesDescending, memCapacity)

	decisions := make([]Decision, 0, len(input.SizesDescending))
	for _, size := range input.SizesDescending {
		candidate := cpuCounts[size]
		if memCounts[size] > candidate {
			candidate = memCounts[size]
		}
		min := int64(input.MinCapacityBySize[size])
		desired := candidate
		if min > desired {
			desired = min
		}

		fleet := input.Fleets[size]
		decisions = append(decisions, decideFleet(input.Name, size, fleet, int(desired)))
	}

	return decisions, warnings
}

// inflate applies the over-subscription margin and rounds up, so the
// planner never under-provisions for a fractional node's worth of slack.
func inflate(raw int64, overSubscription float64) int64 {
	if raw <= 0 {
		return 0
	}
	return int64(math.Ceil(float64(raw) * (1 + overSubscription)))
}

// packBySize is the greedy bin-packing core. Sizes are visited largest to
// smallest-but-one: at each size, if the remaining demand fits within a
// single node of that size the packer commits exactly one node there and
// stops — it never cascades a remainder down once one node covers it. If a
// single node isn't enough, the packer takes as many full nodes of that
// size as fit and carries the true remainder down to the next smaller
// size. Whatever is left when the smallest configured size is reached is
// absorbed there by ceiling division.
func packBySize(demand int64, sizesDesc []catalog.Size, capacity map[catalog.Size]int64) map[catalog.Size]int64 {
	counts := make(map[catalog.Size]int64, len(sizesDesc))
	for _, size := range sizesDesc {
		counts[size] = 0
	}
	if demand <= 0 || len(sizesDesc) == 0 {
		return counts
	}

	remaining := demand
	last := len(sizesDesc) - 1
	for i := 0; i < last; i++ {
		size := sizesDesc[i]
		cap := capacity[size]
		if cap <= 0 {
			continue
		}
		if remaining <= cap {
			counts[size] = 1
			remaining = 0
			break
		}
		full := remaining / cap
		counts[size] += full
		remaining -= full * cap
		if remaining == 0 {
			break
		}
	}

	if remaining > 0 {
		smallest := sizesDesc[last]
		if cap := capacity[smallest]; cap > 0 {
			counts[smallest] += ceilDiv(remaining, cap)
		}
	}

	return counts
}

func ceilDiv(a, b int64) int64 {
	if b <= 0 || a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// decideFleet turns a desired active-instance count into a Decision: the
// cloud fleet's target capacity, plus whichever cordon or uncordon actions
// are needed to bring the number of schedulable instances in line before
// the target-capacity call lands.
func decideFleet(sector string, size catalog.Size, fleet FleetState, desiredTarget int) Decision {
	active := make([]Instance, 0, len(fleet.Instances))
	cordonedByUs := make([]Instance, 0)
	for _, inst := range fleet.Instances {
		if inst.CordonedByUs {
			cordonedByUs = append(cordonedByUs, inst)
		} else {
			active = append(active, inst)
		}
	}

	var actions []NodeAction
	switch {
	case len(active) > desiredTarget:
		excess := len(active) - desiredTarget
		sort.Slice(active, func(i, j int) bool {
			if active[i].PodCount != active[j].PodCount {
				return active[i].PodCount < active[j].PodCount
			}
			return active[i].CreatedAt.Before(active[j].CreatedAt)
		})
		for i := 0; i < excess && i < len(active); i++ {
			actions = append(actions, NodeAction{NodeName: active[i].NodeName, Action: ActionCordon})
		}

	case len(active) < desiredTarget:
		shortfall := desiredTarget - len(active)
		sort.Slice(cordonedByUs, func(i, j int) bool {
			return cordonedByUs[i].CreatedAt.Before(cordonedByUs[j].CreatedAt)
		})
		for i := 0; i < shortfall && i < len(cordonedByUs); i++ {
			actions = append(actions, NodeAction{NodeName: cordonedByUs[i].NodeName, Action: ActionUncordon})
		}
	}

	return Decision{
		Sector:        sector,
		Size:          size,
		FleetID:       fleet.FleetID,
		DesiredTarget: desiredTarget,
		NodeActions:   actions,
	}
}
