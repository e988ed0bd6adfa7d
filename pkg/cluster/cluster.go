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

// Package cluster is the Cluster Snapshot Reader and the node-patch half of
// the Actuator: it lists managed nodes and pods from the orchestrator and
// normalizes them into plain records, and it cordons/uncordons nodes by
// patching spec.unschedulable.
package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	apitypes "k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"

	"github.com/aws/fleet-autoscaler/pkg/catalog"
	"github.com/aws/fleet-autoscaler/pkg/quantity"
)

// CordonedAnnotation marks a node this process cordoned, distinguishing its
// cordons from ones an external operator applied by hand. Only nodes
// carrying this annotation are candidates for this process's uncordon
// intent.
const CordonedAnnotation = "fleet-autoscaler.aws/cordoned-by"

// These are the labels the IaC layer stamps on every node belonging to a
// managed fleet.
const (
	labelCluster = "cluster"
	labelSector  = "sector"
	labelSize    = "size"
	labelKind    = "kind"
	labelFleet   = "fleet"
)

// Node is a managed node's normalized state.
type Node struct {
	Name         string
	ProviderID   string
	Sector       string
	Size         catalog.Size
	Kind         catalog.Kind
	Schedulable  bool
	CordonedByUs bool
	CreatedAt    time.Time
}

// Pod is a normalized pod, already summed across its containers.
type Pod struct {
	Namespace    string
	Name         string
	Phase        corev1.PodPhase
	NodeName     string
	NodeSelector map[string]string
	CPU          quantity.CPU
	Memory       quantity.Memory
}

// Snapshot is one tick's cluster-wide read.
type Snapshot struct {
	Nodes []Node
	Pods  []Pod
}

// Reader lists the managed nodes and all pods from the orchestrator.
type Reader struct {
	clientset kubernetes.Interface
	cluster   string
}

func NewReader(clientset kubernetes.Interface, cluster string) *Reader {
	return &Reader{clientset: clientset, cluster: cluster}
}

// Read returns the current snapshot. A partial failure on either list
// aborts the whole read: the caller must not act on half a snapshot.
func (r *Reader) Read(ctx context.Context) (Snapshot, error) {
	nodeList, err := r.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return Snapshot{}, fmt.Errorf("listing nodes: %w", err)
	}
	podList, err := r.clientset.CoreV1().Pods("").List(ctx, metav1.ListOptions{})
	if err != nil {
		return Snapshot{}, fmt.Errorf("listing pods: %w", err)
	}

	nodes := make([]Node, 0, len(nodeList.Items))
	for _, n := range nodeList.Items {
		node, ok := normalizeNode(n, r.cluster)
		if !ok {
			continue
		}
		nodes = append(nodes, node)
	}

	pods := make([]Pod, 0, len(podList.Items))
	for _, p := range podList.Items {
		if p.Status.Phase == corev1.PodSucceeded || p.Status.Phase == corev1.PodFailed {
			continue
		}
		pods = append(pods, normalizePod(p))
	}

	return Snapshot{Nodes: nodes, Pods: pods}, nil
}

func normalizeNode(n corev1.Node, cluster string) (Node, bool) {
	labels := n.Labels
	if labels[labelCluster] != cluster {
		return Node{}, false
	}
	sector, hasSector := labels[labelSector]
	size, hasSize := labels[labelSize]
	kind, hasKind := labels[labelKind]
	_, hasFleet := labels[labelFleet]
	if !hasSector || !hasSize || !hasKind || !hasFleet {
		return Node{}, false
	}

	_, cordonedByUs := n.Annotations[CordonedAnnotation]

	return Node{
		Name:         n.Name,
		ProviderID:   n.Spec.ProviderID,
		Sector:       sector,
		Size:         catalog.Size(size),
		Kind:         catalog.Kind(kind),
		Schedulable:  !n.Spec.Unschedulable,
		CordonedByUs: cordonedByUs,
		CreatedAt:    n.CreationTimestamp.Time,
	}, true
}

// InstanceID extracts the trailing cloud instance id from a Kubernetes
// providerID, e.g. "aws:///us-west-2a/i-0123456789abcdef0" ->
// "i-0123456789abcdef0". Returns "" if providerID is empty.
func InstanceID(providerID string) string {
	if providerID == "" {
		return ""
	}
	idx := strings.LastIndex(providerID, "/")
	if idx < 0 {
		return providerID
	}
	return providerID[idx+1:]
}

func normalizePod(p corev1.Pod) Pod {
	phase := p.Status.Phase
	var cpu quantity.CPU
	var mem quantity.Memory
	for _, c := range p.Spec.Containers {
		if q, ok := c.Resources.Requests[corev1.ResourceCPU]; ok {
			cpu = cpu.Add(quantity.CPU(q.MilliValue()))
		}
		if q, ok := c.Resources.Requests[corev1.ResourceMemory]; ok {
			mem = mem.Add(quantity.Memory(q.Value()))
		}
	}
	return Pod{
		Namespace:    p.Namespace,
		Name:         p.Name,
		Phase:        phase,
		NodeName:     p.Spec.NodeName,
		NodeSelector: p.Spec.NodeSelector,
		CPU:          cpu,
		Memory:       mem,
	}
}

// unschedulablePatch is the JSON merge patch body for cordoning or
// uncordoning a node.
type unschedulablePatch struct {
	Spec        patchSpec         `json:"spec"`
	Metadata    patchMetadata     `json:"metadata,omitempty"`
}

type patchSpec struct {
	Unschedulable bool `json:"unschedulable"`
}

type patchMetadata struct {
	Annotations map[string]*string `json:"annotations,omitempty"`
}

// Cordon marks nodeName unschedulable and stamps it with CordonedAnnotation
// so a later tick's uncordon-intent step recognizes it as ours.
func (r *Reader) Cordon(ctx context.Context, nodeName string) error {
	body, err := json.Marshal(unschedulablePatch{
		Spec:     patchSpec{Unschedulable: true},
		Metadata: patchMetadata{Annotations: map[string]*string{CordonedAnnotation: strPtr(time.Now().UTC().Format(time.RFC3339))}},
	})
	if err != nil {
		return fmt.Errorf("encoding cordon patch for %s: %w", nodeName, err)
	}
	_, err = r.clientset.CoreV1().Nodes().Patch(ctx, nodeName, apitypes.MergePatchType, body, metav1.PatchOptions{})
	if err != nil {
		return fmt.Errorf("cordoning node %s: %w", nodeName, err)
	}
	return nil
}

// Uncordon marks nodeName schedulable and clears CordonedAnnotation.
func (r *Reader) Uncordon(ctx context.Context, nodeName string) error {
	body, err := json.Marshal(unschedulablePatch{
		Spec:     patchSpec{Unschedulable: false},
		Metadata: patchMetadata{Annotations: map[string]*string{CordonedAnnotation: nil}},
	})
	if err != nil {
		return fmt.Errorf("encoding uncordon patch for %s: %w", nodeName, err)
	}
	_, err = r.clientset.CoreV1().Nodes().Patch(ctx, nodeName, apitypes.MergePatchType, body, metav1.PatchOptions{})
	if err != nil {
		return fmt.Errorf("uncordoning node %s: %w", nodeName, err)
	}
	return nil
}

func strPtr(s string) *string { return &s }
