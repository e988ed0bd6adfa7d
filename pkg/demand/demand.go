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

// Package demand is the Demand Projector: it classifies pods into sectors
// by their "sector" node-selector and sums each sector's requested CPU and
// memory.
package demand

import (
	"github.com/samber/lo"

	"github.com/aws/fleet-autoscaler/pkg/cluster"
	"github.com/aws/fleet-autoscaler/pkg/planner"
)

// sectorSelectorKey is the node-selector key pods use to route into a
// sector.
const sectorSelectorKey = "sector"

// Result is one sector's projected demand plus the pods that contributed
// to it, for logging and cordon-candidate pod counting.
type Result struct {
	Demand planner.Demand
	Pods   []cluster.Pod
}

// Project classifies pods against the configured sector names and sums
// each sector's demand exactly (no rounding). Pods whose sector is absent
// or unconfigured are ignored; everything else — Pending, Running, or
// Unknown-treated-as-Running, bound or not — counts.
func Project(pods []cluster.Pod, configuredSectors map[string]struct{}) map[string]Result {
	routed := lo.Filter(pods, func(p cluster.Pod, _ int) bool {
		sector, ok := p.NodeSelector[sectorSelectorKey]
		if !ok {
			return false
		}
		_, configured := configuredSectors[sector]
		return configured
	})

	bySector := lo.GroupBy(routed, func(p cluster.Pod) string {
		return p.NodeSelector[sectorSelectorKey]
	})

	results := make(map[string]Result, len(bySector))
	for sector, sectorPods := range bySector {
		var demand planner.Demand
		for _, p := range sectorPods {
			demand.CPU = demand.CPU.Add(p.CPU)
			demand.Memory = demand.Memory.Add(p.Memory)
		}
		results[sector] = Result{Demand: demand, Pods: sectorPods}
	}
	return results
}

// PodCountByNode counts the pods among result's Pods that are bound to
// each node name, for the planner's cordon-candidate ranking ("fewest
// running pods counted against this sector").
func PodCountByNode(pods []cluster.Pod) map[string]int {
	counts := map[string]int{}
	for _, p := range pods {
		if p.NodeName == "" {
			continue
		}
		counts[p.NodeName]++
	}
	return counts
}
