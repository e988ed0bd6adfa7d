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

// Package catalog is the static fleet catalog: the t-shirt-size table that
// maps a (size, kind) pair to the per-node CPU and memory capacity the
// underlying EC2-style fleet provides, and the reservation math that derives
// schedulable capacity from it.
package catalog

import (
	"fmt"

	"github.com/aws/fleet-autoscaler/pkg/quantity"
)

// Size is a fleet t-shirt size. Sizes order xsmall < small < medium < large
// < xlarge.
type Size string

const (
	XSmall Size = "xsmall"
	Small  Size = "small"
	Medium Size = "medium"
	Large  Size = "large"
	XLarge Size = "xlarge"
)

// Sizes lists every supported size in ascending order.
var Sizes = []Size{XSmall, Small, Medium, Large, XLarge}

var sizeRank = map[Size]int{
	XSmall: 0,
	Small:  1,
	Medium: 2,
	Large:  3,
	XLarge: 4,
}

// Rank returns the size's position in the ascending order, or -1 if it is
// not a recognized size.
func (s Size) Rank() int {
	rank, ok := sizeRank[s]
	if !ok {
		return -1
	}
	return rank
}

func (s Size) Valid() bool {
	_, ok := sizeRank[s]
	return ok
}

// Kind is the instance-family optimization target of a fleet.
type Kind string

const (
	KindMemory Kind = "memory"
	KindCPU    Kind = "cpu"
)

func (k Kind) Valid() bool {
	return k == KindMemory || k == KindCPU
}

// nominal holds the per-node nominal capacity for a (size, kind) pair,
// before reservation. Figures are the fleet catalog's documented t-shirt
// sizes.
type nominal struct {
	cpu quantity.CPU
	mem quantity.Memory
}

var nominalTable = map[Kind]map[Size]nominal{
	KindMemory: {
		XSmall: {cpu: cores(2), mem: gib(15.25)},
		Small:  {cpu: cores(4), mem: gib(30.5)},
		Medium: {cpu: cores(8), mem: gib(61)},
		Large:  {cpu: cores(16), mem: gib(122)},
		XLarge: {cpu: cores(32), mem: gib(244)},
	},
	KindCPU: {
		XSmall: {cpu: cores(4), mem: gib(7.5)},
		Small:  {cpu: cores(8), mem: gib(15)},
		Medium: {cpu: cores(16), mem: gib(30)},
		Large:  {cpu: cores(36), mem: gib(60)},
		XLarge: {cpu: cores(64), mem: gib(144)},
	},
}

func cores(n float64) quantity.CPU { return quantity.CPU(n * 1000) }
func gib(n float64) quantity.Memory {
	return quantity.Memory(n * 1024 * 1024 * 1024)
}

// Nominal returns the per-node CPU and memory capacity for (size, kind)
// before any reservation is subtracted.
func Nominal(size Size, kind Kind) (quantity.CPU, quantity.Memory, error) {
	byKind, ok := nominalTable[kind]
	if !ok {
		return 0, 0, fmt.Errorf("catalog: unknown kind %q", kind)
	}
	n, ok := byKind[size]
	if !ok {
		return 0, 0, fmt.Errorf("catalog: unknown size %q", size)
	}
	return n.cpu, n.mem, nil
}

// Schedulable returns the per-node CPU and memory capacity that remains
// after subtracting the globally reserved CPU and memory. If the reservation
// exceeds the nominal capacity for either dimension, that dimension's
// schedulable capacity is zero and ok is false: such a fleet can never
// satisfy demand, and the caller should warn once per tick.
func Schedulable(size Size, kind Kind, reservedCPU quantity.CPU, reservedMemory quantity.Memory) (cpu quantity.CPU, mem quantity.Memory, ok bool, err error) {
	nomCPU, nomMem, err := Nominal(size, kind)
	if err != nil {
		return 0, 0, false, err
	}
	ok = true
	if reservedCPU >= nomCPU {
		cpu, ok = 0, false
	} else {
		cpu = nomCPU - reservedCPU
	}
	if reservedMemory >= nomMem {
		mem, ok = 0, false
	} else {
		mem = nomMem - reservedMemory
	}
	return cpu, mem, ok, nil
}
