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

// Package fake is a deterministic, in-memory stand-in for pkg/cluster.
package fake

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/fleet-autoscaler/pkg/cluster"
)

// Cluster is a scripted cluster snapshot plus a record of cordon/uncordon
// calls, for assertions in actuator and loop tests.
type Cluster struct {
	mu    sync.Mutex
	nodes map[string]*cluster.Node
	Pods  []cluster.Pod

	CordonCalls   []string
	UncordonCalls []string
}

func New() *Cluster {
	return &Cluster{nodes: map[string]*cluster.Node{}}
}

func (c *Cluster) AddNode(n cluster.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	node := n
	c.nodes[n.Name] = &node
}

func (c *Cluster) Read(context.Context) (cluster.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	nodes := make([]cluster.Node, 0, len(c.nodes))
	for _, n := range c.nodes {
		nodes = append(nodes, *n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return cluster.Snapshot{Nodes: nodes, Pods: append([]cluster.Pod(nil), c.Pods...)}, nil
}

func (c *Cluster) Cordon(_ context.Context, nodeName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.nodes[nodeName]
	if !ok {
		return fmt.Errorf("no such node %s", nodeName)
	}
	node.Schedulable = false
	node.CordonedByUs = true
	c.CordonCalls = append(c.CordonCalls, nodeName)
	return nil
}

func (c *Cluster) Uncordon(_ context.Context, nodeName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.nodes[nodeName]
	if !ok {
		return fmt.Errorf("no such node %s", nodeName)
	}
	node.Schedulable = true
	node.CordonedByUs = false
	c.UncordonCalls = append(c.UncordonCalls, nodeName)
	return nil
}
