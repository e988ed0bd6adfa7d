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

// Package loop is the Control Loop: the outermost scheduler that repeats
// snapshot -> project -> plan -> actuate at a fixed cadence, with error
// isolation per iteration. No state survives across ticks other than the
// immutable Configuration; each tick is a full reconciliation.
package loop

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aws/fleet-autoscaler/pkg/actuator"
	"github.com/aws/fleet-autoscaler/pkg/catalog"
	"github.com/aws/fleet-autoscaler/pkg/cluster"
	"github.com/aws/fleet-autoscaler/pkg/config"
	"github.com/aws/fleet-autoscaler/pkg/demand"
	fleeterrors "github.com/aws/fleet-autoscaler/pkg/errors"
	"github.com/aws/fleet-autoscaler/pkg/fleet"
	"github.com/aws/fleet-autoscaler/pkg/logging"
	"github.com/aws/fleet-autoscaler/pkg/planner"
)

// ClusterReader is the snapshot surface the loop needs from pkg/cluster.
type ClusterReader interface {
	Read(ctx context.Context) (cluster.Snapshot, error)
}

// FleetReader is the snapshot surface the loop needs from pkg/fleet.
type FleetReader interface {
	Describe(ctx context.Context, key fleet.Key) (fleet.Snapshot, error)
}

// Loop owns every collaborator the control loop drives each tick.
type Loop struct {
	Config   *config.Configuration
	Cluster  ClusterReader
	Fleet    FleetReader
	Actuator *actuator.Actuator
	ClusterName string

	// Timeout bounds every external call issued within one tick.
	Timeout time.Duration
}

// Run executes ticks until ctx is cancelled, sleeping SleepIntervalSeconds
// between them. It finishes the current iteration before observing
// cancellation, so no in-flight actuation is interrupted mid-call.
func (l *Loop) Run(ctx context.Context) error {
	interval := time.Duration(l.Config.SleepIntervalSeconds) * time.Second
	for {
		l.tick(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// RunOnce executes exactly one tick, for operational debugging (--once).
func (l *Loop) RunOnce(ctx context.Context) {
	l.tick(ctx)
}

func (l *Loop) tick(ctx context.Context) {
	logger := logging.FromContext(ctx)

	// The tick is detached from ctx's cancellation so a shutdown signal lets
	// it finish; the timeout still bounds every call in it.
	tickCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.tickTimeout())
	defer cancel()

	snapshot, err := l.Cluster.Read(tickCtx)
	if err != nil {
		logger.Error("cluster snapshot failed, skipping tick", zap.Error(fleeterrors.NewSnapshotError("cluster", "", err)))
		return
	}

	configuredSectors := make(map[string]struct{}, len(l.Config.Sectors))
	for name := range l.Config.Sectors {
		configuredSectors[name] = struct{}{}
	}
	projected := demand.Project(snapshot.Pods, configuredSectors)

	sectorNames := make([]string, 0, len(l.Config.Sectors))
	for name := range l.Config.Sectors {
		sectorNames = append(sectorNames, name)
	}
	sort.Strings(sectorNames)

	var allDecisions []planner.Decision
	currentTargets := actuator.CurrentTargets{}

	for _, sectorName := range sectorNames {
		sector := l.Config.Sectors[sectorName]
		sizes := sector.SizesDescending()

		result := projected[sectorName]

		fleetStates, fleetErr := l.readSectorFleets(tickCtx, sectorName, sector, sizes, snapshot, result.Pods)
		if fleetErr != nil {
			logger.Error("sector fleet reads failed", zap.String("sector", sectorName), zap.Error(fleetErr))
		}
		if len(fleetStates) == 0 {
			continue
		}

		minBySize := make(map[catalog.Size]int, len(sizes))
		for _, size := range sizes {
			minBySize[size] = sector.MinCapacity(size)
		}

		input := planner.SectorInput{
			Name:              sectorName,
			Kind:              sector.Kind,
			Demand:            result.Demand,
			OverSubscription:  l.Config.DefaultOverSubscription,
			ReservedCPU:       l.Config.ReservedCPUs,
			ReservedMemory:    l.Config.ReservedMemory,
			SizesDescending:   keysPresent(sizes, fleetStates),
			MinCapacityBySize: minBySize,
			Fleets:            fleetStates,
		}

		decisions, warnings := planner.Plan(input)
		for _, w := range warnings {
			logger.Warn(w)
		}
		for _, d := range decisions {
			currentTargets[d.FleetID] = fleetStates[d.Size].CurrentTarget
		}
		allDecisions = append(allDecisions, decisions...)
	}

	if err := l.Actuator.Apply(tickCtx, allDecisions, currentTargets); err != nil {
		logger.Error("actuation failed", zap.Error(err))
	}
}

// readSectorFleets describes every size configured for sector in parallel,
// accumulating per-fleet errors without letting one missing fleet exclude
// its siblings.
func (l *Loop) readSectorFleets(ctx context.Context, sectorName string, sector config.Sector, sizes []catalog.Size, snapshot cluster.Snapshot, sectorPods []cluster.Pod) (map[catalog.Size]planner.FleetState, error) {
	results := make(map[catalog.Size]planner.FleetState, len(sizes))
	var mu sync.Mutex
	var errs error

	g, gctx := errgroup.WithContext(ctx)
	for _, size := range sizes {
		size := size
		g.Go(func() error {
			key := fleet.Key{Cluster: l.ClusterName, Sector: sectorName, Size: size, Kind: sector.Kind}
			snap, err := l.Fleet.Describe(gctx, key)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierr.Append(errs, fleeterrors.NewSnapshotError("fleet", fmt.Sprintf("%s/%s", sectorName, size), err))
				return nil
			}
			results[size] = planner.FleetState{
				Sector:        sectorName,
				Size:          size,
				FleetID:       snap.FleetID,
				MinCapacity:   sector.MinCapacity(size),
				CurrentTarget: snap.TargetCapacity,
				Instances:     instancesForFleet(snapshot, sectorPods, sectorName, size, snap.InstanceIDs),
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, errs
}

// instancesForFleet determines fleet membership from the cloud's own
// instance set, not node labels alone: a node is only a member if its
// providerID resolves to an instance id DescribeFleetInstances actually
// returned for this fleet. Labels narrow the candidate set (nodes belonging
// to this sector/size at all); instanceIDs is what decides membership, so a
// node the orchestrator still lists but the fleet has already released
// (or hasn't yet attached) is excluded from the planner's view of the fleet.
func instancesForFleet(snapshot cluster.Snapshot, sectorPods []cluster.Pod, sector string, size catalog.Size, instanceIDs []string) []planner.Instance {
	podCounts := demand.PodCountByNode(sectorPods)
	members := make(map[string]bool, len(instanceIDs))
	for _, id := range instanceIDs {
		members[id] = true
	}

	instances := make([]planner.Instance, 0, len(instanceIDs))
	for _, n := range snapshot.Nodes {
		if n.Sector != sector || n.Size != size {
			continue
		}
		if !members[cluster.InstanceID(n.ProviderID)] {
			continue
		}
		instances = append(instances, planner.Instance{
			NodeName:     n.Name,
			CordonedByUs: n.CordonedByUs,
			PodCount:     podCounts[n.Name],
			CreatedAt:    n.CreatedAt,
		})
	}
	return instances
}

func keysPresent(sizes []catalog.Size, present map[catalog.Size]planner.FleetState) []catalog.Size {
	out := make([]catalog.Size, 0, len(sizes))
	for _, s := range sizes {
		if _, ok := present[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (l *Loop) tickTimeout() time.Duration {
	if l.Timeout > 0 {
		return l.Timeout
	}
	interval := time.Duration(l.Config.SleepIntervalSeconds) * time.Second
	if interval <= 0 {
		return 30 * time.Second
	}
	return interval
}
