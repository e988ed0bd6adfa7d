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

package config

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/aws/fleet-autoscaler/pkg/catalog"
)

const validYAML = `
sleep_interval: 30
default_over_subscription: 0.2
reserved_cpus: "1"
reserved_memory: "2.5Gi"
sectors:
  primary:
    kind: memory
    fleets:
      - size: small
        min_capacity: 0
      - size: medium
        min_capacity: 1
`

func TestLoadValid(t *testing.T) {
	g := NewWithT(t)
	path := writeTemp(t, validYAML)

	cfg, err := Load(path)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(cfg.SleepIntervalSeconds).To(Equal(30))
	g.Expect(cfg.Sectors).To(HaveKey("primary"))
	g.Expect(cfg.Sectors["primary"].MinCapacity(catalog.Medium)).To(Equal(1))
	g.Expect(cfg.Sectors["primary"].SizesDescending()).To(Equal([]catalog.Size{catalog.Medium, catalog.Small}))
}

func TestLoadMissingFile(t *testing.T) {
	g := NewWithT(t)
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	g.Expect(err).To(HaveOccurred())
}

func TestValidateRejectsUnknownSize(t *testing.T) {
	g := NewWithT(t)
	cfg := Configuration{
		SleepIntervalSeconds: 1,
		Sectors: map[string]Sector{
			"primary": {Kind: catalog.KindMemory, Fleets: []FleetConfig{{Size: "huge"}}},
		},
	}
	g.Expect(cfg.Validate()).To(HaveOccurred())
}

func TestValidateRejectsDuplicateSize(t *testing.T) {
	g := NewWithT(t)
	cfg := Configuration{
		SleepIntervalSeconds: 1,
		Sectors: map[string]Sector{
			"primary": {
				Kind: catalog.KindMemory,
				Fleets: []FleetConfig{
					{Size: catalog.Small},
					{Size: catalog.Small},
				},
			},
		},
	}
	g.Expect(cfg.Validate()).To(HaveOccurred())
}

func TestValidateRejectsEmptySectors(t *testing.T) {
	g := NewWithT(t)
	cfg := Configuration{SleepIntervalSeconds: 1}
	g.Expect(cfg.Validate()).To(HaveOccurred())
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing temp config: %s", err)
	}
	return path
}
