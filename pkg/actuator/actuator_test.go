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

package actuator_test

import (
	"context"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/aws/fleet-autoscaler/pkg/actuator"
	"github.com/aws/fleet-autoscaler/pkg/catalog"
	clusterfake "github.com/aws/fleet-autoscaler/pkg/cluster/fake"
	fleetfake "github.com/aws/fleet-autoscaler/pkg/fleet/fake"
	"github.com/aws/fleet-autoscaler/pkg/fleet"
	"github.com/aws/fleet-autoscaler/pkg/cluster"
	"github.com/aws/fleet-autoscaler/pkg/planner"
)

func TestApplyDryRunMakesNoWrites(t *testing.T) {
	g := NewWithT(t)
	clusterFake := clusterfake.New()
	clusterFake.AddNode(cluster.Node{Name: "node-a"})
	fleetFake := fleetfake.New()
	fleetFake.Seed(fleet.Key{Sector: "primary", Size: catalog.Small}, "fleet-small", 1, nil)

	act := actuator.New(clusterFake, fleetFake, false)
	decisions := []planner.Decision{
		{
			Sector: "primary", Size: catalog.Small, FleetID: "fleet-small", DesiredTarget: 2,
			NodeActions: []planner.NodeAction{{NodeName: "node-a", Action: planner.ActionCordon}},
		},
	}

	err := act.Apply(context.Background(), decisions, actuator.CurrentTargets{"fleet-small": 1})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(clusterFake.CordonCalls).To(BeEmpty())
	g.Expect(fleetFake.ModifyCalls).To(BeEmpty())
}

func TestApplyLiveUncordonsCordonsAndSetsTarget(t *testing.T) {
	g := NewWithT(t)
	clusterFake := clusterfake.New()
	clusterFake.AddNode(cluster.Node{Name: "node-a"})
	clusterFake.AddNode(cluster.Node{Name: "node-b", CordonedByUs: true})
	fleetFake := fleetfake.New()
	fleetFake.Seed(fleet.Key{Sector: "primary", Size: catalog.Small}, "fleet-small", 1, nil)

	act := actuator.New(clusterFake, fleetFake, true)
	decisions := []planner.Decision{
		{
			Sector: "primary", Size: catalog.Small, FleetID: "fleet-small", DesiredTarget: 2,
			NodeActions: []planner.NodeAction{
				{NodeName: "node-a", Action: planner.ActionCordon},
				{NodeName: "node-b", Action: planner.ActionUncordon},
			},
		},
	}

	err := act.Apply(context.Background(), decisions, actuator.CurrentTargets{"fleet-small": 1})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(clusterFake.UncordonCalls).To(Equal([]string{"node-b"}))
	g.Expect(clusterFake.CordonCalls).To(Equal([]string{"node-a"}))
	g.Expect(fleetFake.ModifyCalls).To(HaveLen(1))
	g.Expect(fleetFake.ModifyCalls[0].Target).To(Equal(2))
}

func TestApplySkipsTargetCallWhenUnchanged(t *testing.T) {
	g := NewWithT(t)
	clusterFake := clusterfake.New()
	fleetFake := fleetfake.New()
	fleetFake.Seed(fleet.Key{Sector: "primary", Size: catalog.Small}, "fleet-small", 3, nil)

	act := actuator.New(clusterFake, fleetFake, true)
	decisions := []planner.Decision{
		{Sector: "primary", Size: catalog.Small, FleetID: "fleet-small", DesiredTarget: 3},
	}

	err := act.Apply(context.Background(), decisions, actuator.CurrentTargets{"fleet-small": 3})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(fleetFake.ModifyCalls).To(BeEmpty())
}
