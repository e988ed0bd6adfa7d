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

// Package actuator applies a Plan. For every fleet it uncordons before it
// cordons, and only then adjusts target capacity, so schedulable capacity
// never dips below demand mid-tick. Different fleets may be actuated
// concurrently; within one fleet the ordering is strict.
package actuator

import (
	"context"

	"github.com/avast/retry-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	fleeterrors "github.com/aws/fleet-autoscaler/pkg/errors"
	"github.com/aws/fleet-autoscaler/pkg/logging"
	"github.com/aws/fleet-autoscaler/pkg/planner"
)

// ClusterActuator is the node-patch surface the actuator needs.
type ClusterActuator interface {
	Cordon(ctx context.Context, nodeName string) error
	Uncordon(ctx context.Context, nodeName string) error
}

// FleetActuator is the cloud fleet surface the actuator needs.
type FleetActuator interface {
	SetTargetCapacity(ctx context.Context, fleetID string, desired int) error
}

// Actuator wires a ClusterActuator and FleetActuator together and gates
// every write behind Live.
type Actuator struct {
	Cluster ClusterActuator
	Fleet   FleetActuator
	Live    bool
}

func New(cluster ClusterActuator, fleet FleetActuator, live bool) *Actuator {
	return &Actuator{Cluster: cluster, Fleet: fleet, Live: live}
}

// CurrentTargets maps a fleet id to its last-observed target capacity, so
// Apply can skip the target-capacity call entirely when nothing changed.
type CurrentTargets map[string]int

// Apply actuates every decision, dispatching fleets in parallel. Each
// fleet's own writes are best-effort and independent: a failed cordon does
// not prevent the uncordon or target-capacity calls for that same fleet
// from being attempted, and one fleet's failure never blocks another's.
func (a *Actuator) Apply(ctx context.Context, decisions []planner.Decision, currentTargets CurrentTargets) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, decision := range decisions {
		decision := decision
		g.Go(func() error {
			a.applyOne(ctx, decision, currentTargets[decision.FleetID])
			return nil
		})
	}
	return g.Wait()
}

func (a *Actuator) applyOne(ctx context.Context, decision planner.Decision, currentTarget int) {
	ctx = logging.WithFleet(ctx, decision.Sector, string(decision.Size), decision.FleetID)
	logger := logging.FromContext(ctx)

	for _, action := range decision.NodeActions {
		if action.Action == planner.ActionUncordon {
			a.patchNode(ctx, logger, decision, action.NodeName, true)
		}
	}
	for _, action := range decision.NodeActions {
		if action.Action == planner.ActionCordon {
			a.patchNode(ctx, logger, decision, action.NodeName, false)
		}
	}

	if decision.DesiredTarget == currentTarget {
		return
	}
	if !a.Live {
		logger.Info("would modify target capacity", zap.Int("current", currentTarget), zap.Int("desired", decision.DesiredTarget))
		return
	}
	err := retry.Do(func() error {
		return a.Fleet.SetTargetCapacity(ctx, decision.FleetID, decision.DesiredTarget)
	}, retry.Attempts(3), retry.Context(ctx))
	if err != nil {
		logger.Error("modifying target capacity", zap.Error(fleeterrors.NewActuationError(decision.FleetID, "set_target_capacity", err)))
		return
	}
	logger.Info("modified target capacity", zap.Int("previous", currentTarget), zap.Int("desired", decision.DesiredTarget))
}

func (a *Actuator) patchNode(ctx context.Context, logger *zap.Logger, decision planner.Decision, nodeName string, uncordon bool) {
	op := "cordon"
	apply := a.Cluster.Cordon
	verb, verbed := "would cordon", "cordoned"
	if uncordon {
		op = "uncordon"
		apply = a.Cluster.Uncordon
		verb, verbed = "would uncordon", "uncordoned"
	}

	if !a.Live {
		logger.Info(verb, zap.String("node", nodeName))
		return
	}
	err := retry.Do(func() error {
		return apply(ctx, nodeName)
	}, retry.Attempts(3), retry.Context(ctx))
	if err != nil {
		logger.Error("patching node", zap.Error(fleeterrors.NewActuationError(decision.FleetID, op, err)), zap.String("node", nodeName))
		return
	}
	logger.Info(verbed, zap.String("node", nodeName))
}
