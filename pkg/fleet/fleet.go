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

// Package fleet is the Fleet Snapshot Reader and the target-capacity half
// of the Actuator: it discovers the cloud fleet backing each configured
// FleetSpec by tag, reads its current target capacity and instance
// membership, and drives target capacity changes.
package fleet

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	gocache "github.com/patrickmn/go-cache"

	"github.com/aws/fleet-autoscaler/pkg/catalog"
)

// FleetIDTTL bounds how long a resolved tag-selector -> fleet-id mapping is
// trusted before the next discovery call re-resolves it. This is a
// discovery cache only: it never holds target capacity or instance data,
// so it cannot make a stale plan look fresh.
const (
	FleetIDTTL             = 5 * time.Minute
	FleetIDCleanupInterval = 10 * time.Minute
)

// API is the subset of the EC2 fleet surface this package consumes,
// narrowed to what the reconciliation engine needs so tests can supply an
// in-memory fake.
type API interface {
	DescribeFleets(context.Context, *ec2.DescribeFleetsInput, ...func(*ec2.Options)) (*ec2.DescribeFleetsOutput, error)
	DescribeFleetInstances(context.Context, *ec2.DescribeFleetInstancesInput, ...func(*ec2.Options)) (*ec2.DescribeFleetInstancesOutput, error)
	ModifyFleet(context.Context, *ec2.ModifyFleetInput, ...func(*ec2.Options)) (*ec2.ModifyFleetOutput, error)
}

// Key identifies one managed fleet by the tags the IaC layer stamps on it.
type Key struct {
	Cluster string
	Sector  string
	Size    catalog.Size
	Kind    catalog.Kind
}

// managedTag is the value the cloud fleet must carry to be considered
// under this system's management; fleets without it are invisible to
// discovery even if every other tag matches.
const managedTag = "terraform"

// Snapshot is one fleet's observed cloud state for this tick.
type Snapshot struct {
	FleetID       string
	TargetCapacity int
	InstanceIDs    []string
}

// Reader discovers and reads fleets. It caches only the tag -> fleet-id
// resolution; target capacity and instance membership are read fresh every
// tick.
type Reader struct {
	api   API
	cache *gocache.Cache
}

func NewReader(api API) *Reader {
	return &Reader{
		api:   api,
		cache: gocache.New(FleetIDTTL, FleetIDCleanupInterval),
	}
}

func cacheKey(key Key) string {
	return fmt.Sprintf("%s:%s:%s:%s", key.Cluster, key.Sector, key.Size, key.Kind)
}

// Describe resolves key to a cloud fleet id (via cache, falling back to a
// DescribeFleets tag query) and returns its current target capacity and
// instance ids. A fleet that cannot be found is reported as an error so the
// caller can exclude it from this tick without failing the rest.
func (r *Reader) Describe(ctx context.Context, key Key) (Snapshot, error) {
	fleetID, err := r.resolve(ctx, key)
	if err != nil {
		return Snapshot{}, err
	}

	out, err := r.api.DescribeFleets(ctx, &ec2.DescribeFleetsInput{FleetIds: []string{fleetID}})
	if err != nil {
		return Snapshot{}, fmt.Errorf("describing fleet %s: %w", fleetID, err)
	}
	if len(out.Fleets) == 0 {
		r.cache.Delete(cacheKey(key))
		return Snapshot{}, fmt.Errorf("fleet %s no longer exists", fleetID)
	}

	instances, err := r.instanceIDs(ctx, fleetID)
	if err != nil {
		return Snapshot{}, err
	}

	target := 0
	if out.Fleets[0].TargetCapacitySpecification != nil && out.Fleets[0].TargetCapacitySpecification.TotalTargetCapacity != nil {
		target = int(*out.Fleets[0].TargetCapacitySpecification.TotalTargetCapacity)
	}

	return Snapshot{FleetID: fleetID, TargetCapacity: target, InstanceIDs: instances}, nil
}

func (r *Reader) resolve(ctx context.Context, key Key) (string, error) {
	if id, ok := r.cache.Get(cacheKey(key)); ok {
		return id.(string), nil
	}

	out, err := r.api.DescribeFleets(ctx, &ec2.DescribeFleetsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("tag:cluster"), Values: []string{key.Cluster}},
			{Name: aws.String("tag:sector"), Values: []string{key.Sector}},
			{Name: aws.String("tag:size"), Values: []string{string(key.Size)}},
			{Name: aws.String("tag:kind"), Values: []string{string(key.Kind)}},
			{Name: aws.String("tag:managed"), Values: []string{managedTag}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("resolving fleet for sector %s size %s: %w", key.Sector, key.Size, err)
	}
	if len(out.Fleets) == 0 {
		return "", fmt.Errorf("no managed fleet found for sector %s size %s", key.Sector, key.Size)
	}
	if len(out.Fleets) > 1 {
		return "", fmt.Errorf("tag selector for sector %s size %s matched %d fleets, expected 1", key.Sector, key.Size, len(out.Fleets))
	}

	id := aws.ToString(out.Fleets[0].FleetId)
	r.cache.Set(cacheKey(key), id, FleetIDTTL)
	return id, nil
}

func (r *Reader) instanceIDs(ctx context.Context, fleetID string) ([]string, error) {
	out, err := r.api.DescribeFleetInstances(ctx, &ec2.DescribeFleetInstancesInput{FleetId: aws.String(fleetID)})
	if err != nil {
		return nil, fmt.Errorf("describing instances for fleet %s: %w", fleetID, err)
	}
	ids := make([]string, 0, len(out.ActiveInstances))
	for _, inst := range out.ActiveInstances {
		ids = append(ids, aws.ToString(inst.InstanceId))
	}
	return ids, nil
}

// SetTargetCapacity drives the fleet's target capacity to desired via
// ModifyFleet. It always issues the call and does not compare desired
// against the last observed target; the actuator skips calling it when the
// plan leaves the target unchanged.
func (r *Reader) SetTargetCapacity(ctx context.Context, fleetID string, desired int) error {
	_, err := r.api.ModifyFleet(ctx, &ec2.ModifyFleetInput{
		FleetId: aws.String(fleetID),
		TargetCapacitySpecification: &ec2types.TargetCapacitySpecificationRequest{
			TotalTargetCapacity: aws.Int32(int32(desired)),
		},
	})
	if err != nil {
		return fmt.Errorf("modifying fleet %s target capacity to %d: %w", fleetID, desired, err)
	}
	return nil
}
