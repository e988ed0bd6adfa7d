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

// Package quantity holds the resource arithmetic this system runs on: exact,
// integer CPU and memory quantities parsed from and formatted back to the
// usual Kubernetes-flavored strings ("500m", "2", "2.5Gi", "1500Mi").
//
// CPU is represented internally as milli-cores and Memory as bytes, both
// int64, so totals and comparisons are exact — no floating point drift
// across a sector with thousands of pods.
package quantity

import (
	"fmt"
	"strconv"
	"strings"

	fleeterrors "github.com/aws/fleet-autoscaler/pkg/errors"
)

// CPU is a non-negative quantity of CPU cores, in milli-cores.
type CPU int64

// Memory is a non-negative quantity of memory, in bytes.
type Memory int64

const millisPerCore = 1000

// ParseCPU accepts integer or decimal cores ("2", "0.5") and the milli suffix
// ("500m"). It fails with InvalidQuantity on a non-numeric prefix or an
// unrecognized suffix.
func ParseCPU(s string) (CPU, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fleeterrors.NewInvalidQuantity("cpu", s)
	}
	if strings.HasSuffix(s, "m") {
		digits := strings.TrimSuffix(s, "m")
		milli, err := strconv.ParseInt(digits, 10, 64)
		if err != nil || milli < 0 {
			return 0, fleeterrors.NewInvalidQuantity("cpu", s)
		}
		return CPU(milli), nil
	}
	cores, err := strconv.ParseFloat(s, 64)
	if err != nil || cores < 0 {
		return 0, fleeterrors.NewInvalidQuantity("cpu", s)
	}
	return CPU(roundMilli(cores * millisPerCore)), nil
}

// String renders the canonical form: whole cores print bare ("2"), anything
// else prints in milli-cores ("500m", "2500m").
func (c CPU) String() string {
	if c%millisPerCore == 0 {
		return strconv.FormatInt(int64(c)/millisPerCore, 10)
	}
	return fmt.Sprintf("%dm", int64(c))
}

// Cores returns the quantity as a floating-point core count, for display
// only — never for arithmetic.
func (c CPU) Cores() float64 {
	return float64(c) / millisPerCore
}

// Add returns the exact sum.
func (c CPU) Add(o CPU) CPU { return c + o }

// Cmp returns -1, 0 or 1 as c is less than, equal to, or greater than o.
func (c CPU) Cmp(o CPU) int {
	switch {
	case c < o:
		return -1
	case c > o:
		return 1
	default:
		return 0
	}
}

func (c CPU) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(c.String())), nil
}

func (c *CPU) UnmarshalJSON(data []byte) error {
	s, err := unmarshalJSONString(data)
	if err != nil {
		return err
	}
	parsed, err := ParseCPU(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

const (
	kilo = 1000
	mega = kilo * 1000
	giga = mega * 1000
	tera = giga * 1000

	kibi = 1024
	mebi = kibi * 1024
	gibi = mebi * 1024
	tebi = gibi * 1024
)

var decimalSuffixes = []struct {
	suffix     string
	multiplier int64
}{
	{"Ti", tebi},
	{"Gi", gibi},
	{"Mi", mebi},
	{"Ki", kibi},
	{"T", tera},
	{"G", giga},
	{"M", mega},
	{"K", kilo},
}

// ParseMemory accepts bare bytes and the decimal (K, M, G, T) and binary (Ki,
// Mi, Gi, Ti) SI suffixes. It fails with InvalidQuantity on a non-numeric
// prefix or an unrecognized suffix.
func ParseMemory(s string) (Memory, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fleeterrors.NewInvalidQuantity("memory", s)
	}
	for _, suf := range decimalSuffixes {
		if strings.HasSuffix(s, suf.suffix) {
			digits := strings.TrimSuffix(s, suf.suffix)
			value, err := strconv.ParseFloat(digits, 64)
			if err != nil || value < 0 {
				return 0, fleeterrors.NewInvalidQuantity("memory", s)
			}
			return Memory(roundMilli(value * float64(suf.multiplier))), nil
		}
	}
	bytes, err := strconv.ParseInt(s, 10, 64)
	if err != nil || bytes < 0 {
		return 0, fleeterrors.NewInvalidQuantity("memory", s)
	}
	return Memory(bytes), nil
}

// String renders the canonical form: the largest binary unit that divides
// the value exactly, falling back to bare bytes.
func (m Memory) String() string {
	v := int64(m)
	switch {
	case v != 0 && v%tebi == 0:
		return strconv.FormatInt(v/tebi, 10) + "Ti"
	case v != 0 && v%gibi == 0:
		return strconv.FormatInt(v/gibi, 10) + "Gi"
	case v != 0 && v%mebi == 0:
		return strconv.FormatInt(v/mebi, 10) + "Mi"
	case v != 0 && v%kibi == 0:
		return strconv.FormatInt(v/kibi, 10) + "Ki"
	default:
		return strconv.FormatInt(v, 10)
	}
}

// Add returns the exact sum.
func (m Memory) Add(o Memory) Memory { return m + o }

// Cmp returns -1, 0 or 1 as m is less than, equal to, or greater than o.
func (m Memory) Cmp(o Memory) int {
	switch {
	case m < o:
		return -1
	case m > o:
		return 1
	default:
		return 0
	}
}

func (m Memory) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(m.String())), nil
}

func (m *Memory) UnmarshalJSON(data []byte) error {
	s, err := unmarshalJSONString(data)
	if err != nil {
		return err
	}
	parsed, err := ParseMemory(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// CeilDivInt64 divides a by b, rounding up. Used to translate a total demand
// into a count of uniformly sized nodes. b must be positive.
func CeilDivInt64(a, b int64) int64 {
	if b <= 0 {
		return 0
	}
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func roundMilli(v float64) int64 {
	if v < 0 {
		return 0
	}
	return int64(v + 0.5)
}

func unmarshalJSONString(data []byte) (string, error) {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return "", fmt.Errorf("quantity must be a JSON string: %w", err)
	}
	return s, nil
}
