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

package catalog

import (
	"testing"

	. "github.com/onsi/gomega"

	"github.com/aws/fleet-autoscaler/pkg/quantity"
)

func TestNominalMemoryKind(t *testing.T) {
	g := NewWithT(t)
	cpu, mem, err := Nominal(Medium, KindMemory)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cpu.Cores()).To(Equal(8.0))
	g.Expect(mem.String()).To(Equal("61Gi"))
}

func TestNominalUnknown(t *testing.T) {
	g := NewWithT(t)
	_, _, err := Nominal(Size("huge"), KindMemory)
	g.Expect(err).To(HaveOccurred())
}

func TestSchedulableSubtractsReservation(t *testing.T) {
	g := NewWithT(t)
	reservedCPU, _ := quantity.ParseCPU("1")
	reservedMem, _ := quantity.ParseMemory("2.5Gi")

	cpu, mem, ok, err := Schedulable(Small, KindMemory, reservedCPU, reservedMem)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(ok).To(BeTrue())
	g.Expect(cpu.Cores()).To(Equal(3.0))
	g.Expect(mem.String()).To(Equal("28Gi"))
}

func TestSchedulableReservationExceedsCapacity(t *testing.T) {
	g := NewWithT(t)
	reservedCPU, _ := quantity.ParseCPU("100")
	cpu, _, ok, err := Schedulable(XSmall, KindMemory, reservedCPU, 0)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(ok).To(BeFalse())
	g.Expect(cpu).To(Equal(quantity.CPU(0)))
}

func TestSizeRankOrdering(t *testing.T) {
	g := NewWithT(t)
	g.Expect(XSmall.Rank()).To(BeNumerically("<", Small.Rank()))
	g.Expect(Small.Rank()).To(BeNumerically("<", Medium.Rank()))
	g.Expect(Medium.Rank()).To(BeNumerically("<", Large.Rank()))
	g.Expect(Large.Rank()).To(BeNumerically("<", XLarge.Rank()))
}
