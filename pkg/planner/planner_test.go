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

package planner_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aws/fleet-autoscaler/pkg/catalog"
	"github.com/aws/fleet-autoscaler/pkg/planner"
	"github.com/aws/fleet-autoscaler/pkg/quantity"
)

func mustCPU(s string) quantity.CPU {
	v, err := quantity.ParseCPU(s)
	Expect(err).NotTo(HaveOccurred())
	return v
}

func mustMem(s string) quantity.Memory {
	v, err := quantity.ParseMemory(s)
	Expect(err).NotTo(HaveOccurred())
	return v
}

func decisionFor(decisions []planner.Decision, size catalog.Size) planner.Decision {
	for _, d := range decisions {
		if d.Size == size {
			return d
		}
	}
	return planner.Decision{}
}

var _ = Describe("Plan", func() {
	It("scales a sector from zero to the smallest covering size", func() {
		input := planner.SectorInput{
			Name:             "primary",
			Kind:             catalog.KindMemory,
			Demand:           planner.Demand{CPU: mustCPU("3"), Memory: mustMem("20Gi")},
			OverSubscription: 0.2,
			ReservedCPU:      mustCPU("1"),
			ReservedMemory:   mustMem("2.5Gi"),
			SizesDescending:  []catalog.Size{catalog.Medium, catalog.Small},
			MinCapacityBySize: map[catalog.Size]int{
				catalog.Small:  0,
				catalog.Medium: 0,
			},
			Fleets: map[catalog.Size]planner.FleetState{
				catalog.Small:  {Sector: "primary", Size: catalog.Small, FleetID: "fleet-small"},
				catalog.Medium: {Sector: "primary", Size: catalog.Medium, FleetID: "fleet-medium"},
			},
		}

		decisions, warnings := planner.Plan(input)
		Expect(warnings).To(BeEmpty())
		Expect(decisionFor(decisions, catalog.Medium).DesiredTarget).To(Equal(1))
		Expect(decisionFor(decisions, catalog.Small).DesiredTarget).To(Equal(0))
	})

	It("floors desired target at min_capacity with no demand", func() {
		input := planner.SectorInput{
			Name:              "coordinate",
			Kind:              catalog.KindMemory,
			Demand:            planner.Demand{},
			OverSubscription:  0,
			SizesDescending:   []catalog.Size{catalog.Small},
			MinCapacityBySize: map[catalog.Size]int{catalog.Small: 2},
			Fleets: map[catalog.Size]planner.FleetState{
				catalog.Small: {Sector: "coordinate", Size: catalog.Small, FleetID: "fleet-small"},
			},
		}

		decisions, _ := planner.Plan(input)
		decision := decisionFor(decisions, catalog.Small)
		Expect(decision.DesiredTarget).To(Equal(2))
		Expect(decision.NodeActions).To(BeEmpty())
	})

	It("cordons the oldest surplus nodes when scaling in", func() {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		input := planner.SectorInput{
			Name:              "primary",
			Kind:              catalog.KindMemory,
			Demand:            planner.Demand{},
			OverSubscription:  0,
			SizesDescending:   []catalog.Size{catalog.Small},
			MinCapacityBySize: map[catalog.Size]int{catalog.Small: 1},
			Fleets: map[catalog.Size]planner.FleetState{
				catalog.Small: {
					Sector: "primary", Size: catalog.Small, FleetID: "fleet-small", CurrentTarget: 3,
					Instances: []planner.Instance{
						{NodeName: "node-a", CreatedAt: now.Add(-3 * time.Hour)},
						{NodeName: "node-b", CreatedAt: now.Add(-2 * time.Hour)},
						{NodeName: "node-c", CreatedAt: now.Add(-1 * time.Hour)},
					},
				},
			},
		}

		decisions, _ := planner.Plan(input)
		decision := decisionFor(decisions, catalog.Small)
		Expect(decision.DesiredTarget).To(Equal(1))
		Expect(decision.NodeActions).To(HaveLen(2))
		names := []string{decision.NodeActions[0].NodeName, decision.NodeActions[1].NodeName}
		Expect(names).To(ConsistOf("node-a", "node-b"))
		for _, a := range decision.NodeActions {
			Expect(a.Action).To(Equal(planner.ActionCordon))
		}
	})

	It("uncordons previously cordoned nodes when demand recovers", func() {
		now := time.Now()
		input := planner.SectorInput{
			Name:              "primary",
			Kind:              catalog.KindMemory,
			Demand:            planner.Demand{CPU: mustCPU("6"), Memory: mustMem("50Gi")},
			OverSubscription:  0,
			SizesDescending:   []catalog.Size{catalog.Small},
			MinCapacityBySize: map[catalog.Size]int{catalog.Small: 1},
			Fleets: map[catalog.Size]planner.FleetState{
				catalog.Small: {
					Sector: "primary", Size: catalog.Small, FleetID: "fleet-small", CurrentTarget: 2,
					Instances: []planner.Instance{
						{NodeName: "node-a", CordonedByUs: true, CreatedAt: now.Add(-2 * time.Hour)},
						{NodeName: "node-b", CordonedByUs: true, CreatedAt: now.Add(-1 * time.Hour)},
					},
				},
			},
		}

		decisions, _ := planner.Plan(input)
		decision := decisionFor(decisions, catalog.Small)
		Expect(decision.DesiredTarget).To(Equal(2))
		Expect(decision.NodeActions).To(HaveLen(2))
		for _, a := range decision.NodeActions {
			Expect(a.Action).To(Equal(planner.ActionUncordon))
		}
	})

	It("binds on whichever dimension needs more nodes", func() {
		input := planner.SectorInput{
			Name:              "primary",
			Kind:              catalog.KindMemory,
			Demand:            planner.Demand{CPU: mustCPU("1"), Memory: mustMem("180Gi")},
			OverSubscription:  0,
			ReservedCPU:       mustCPU("1"),
			ReservedMemory:    mustMem("2.5Gi"),
			SizesDescending:   []catalog.Size{catalog.Medium},
			MinCapacityBySize: map[catalog.Size]int{catalog.Medium: 0},
			Fleets: map[catalog.Size]planner.FleetState{
				catalog.Medium: {Sector: "primary", Size: catalog.Medium, FleetID: "fleet-medium"},
			},
		}

		decisions, _ := planner.Plan(input)
		Expect(decisionFor(decisions, catalog.Medium).DesiredTarget).To(Equal(4))
	})

	It("warns and still floors to min_capacity when reservation exceeds nominal capacity", func() {
		input := planner.SectorInput{
			Name:              "primary",
			Kind:              catalog.KindMemory,
			Demand:            planner.Demand{CPU: mustCPU("1")},
			OverSubscription:  0,
			ReservedCPU:       mustCPU("100"),
			SizesDescending:   []catalog.Size{catalog.XSmall},
			MinCapacityBySize: map[catalog.Size]int{catalog.XSmall: 1},
			Fleets: map[catalog.Size]planner.FleetState{
				catalog.XSmall: {Sector: "primary", Size: catalog.XSmall, FleetID: "fleet-xsmall"},
			},
		}

		decisions, warnings := planner.Plan(input)
		Expect(warnings).NotTo(BeEmpty())
		Expect(decisionFor(decisions, catalog.XSmall).DesiredTarget).To(Equal(1))
	})
})
