package state

import (
	"fmt"
	"math/rand/v2"
	"net/netip"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// HostCfg places a single host in the simulation area.
type HostCfg struct {
	Id      NodeId
	X       float64
	Y       float64
	Address netip.Addr `yaml:",omitempty"` // defaults to an address derived from the host index
	Static  bool       `yaml:",omitempty"` // static hosts never move
}

type MobilityCfg struct {
	Speed float64 // distance covered per round, 0 disables mobility
	Pause int     // rounds spent at a waypoint before picking the next one
}

type TrafficCfg struct {
	PacketsPerRound  int     `yaml:"packets_per_round"`
	MaxHops          int     `yaml:"max_hops"`
	HopLatency       float64 `yaml:"hop_latency"`
	PropagationSpeed float64 `yaml:"propagation_speed"`
}

type AdvertCfg struct {
	PeriodicInterval int           `yaml:"periodic_interval"` // rounds between full dumps
	TriggerThreshold int           `yaml:"trigger_threshold"` // changed rows before an incremental update is sent
	TriggerHoldoff   time.Duration `yaml:"trigger_holdoff,omitempty"`
}

// Scenario describes a whole simulation run.
type Scenario struct {
	Name        string
	Seed        uint64
	Rounds      int
	Area        float64 // side length of the square area
	Range       float64 // transmission range
	RandomHosts int     `yaml:"random_hosts,omitempty"` // extra hosts placed at random
	Hosts       []HostCfg
	Graph       []string `yaml:",omitempty"` // if set, only these pairs can ever hear each other
	Mobility    MobilityCfg
	Traffic     TrafficCfg
	Adverts     AdvertCfg
	RoundDelay  time.Duration `yaml:"round_delay,omitempty"`
	LogPath     string        `yaml:"log_path,omitempty"`
	StatsPath   string        `yaml:"stats_path,omitempty"`
}

func ReadScenario(path string) (*Scenario, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc := &Scenario{}
	err = yaml.Unmarshal(file, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scenario %s: %w", path, err)
	}
	return sc, nil
}

func WriteScenario(path string, sc *Scenario) error {
	bytes, err := yaml.Marshal(sc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, bytes, 0600)
}

// ExpandScenario fills in defaults, generates random hosts and assigns
// addresses. It is deterministic for a given seed.
func ExpandScenario(sc *Scenario) {
	if sc.Rounds == 0 {
		sc.Rounds = DefaultRounds
	}
	if sc.Area == 0 {
		sc.Area = DefaultArea
	}
	if sc.Range == 0 {
		sc.Range = DefaultRange
	}
	if sc.Adverts.PeriodicInterval == 0 {
		sc.Adverts.PeriodicInterval = DefaultPeriodicInterval
	}
	if sc.Adverts.TriggerThreshold == 0 {
		sc.Adverts.TriggerThreshold = DefaultTriggerThreshold
	}
	if sc.Adverts.TriggerHoldoff == 0 {
		sc.Adverts.TriggerHoldoff = TriggerHoldoff
	}
	if sc.Traffic.PacketsPerRound == 0 {
		sc.Traffic.PacketsPerRound = DefaultPacketsPerRound
	}
	if sc.Traffic.MaxHops == 0 {
		sc.Traffic.MaxHops = DefaultMaxHops
	}
	if sc.Traffic.HopLatency == 0 {
		sc.Traffic.HopLatency = DefaultHopLatency
	}
	if sc.Traffic.PropagationSpeed == 0 {
		sc.Traffic.PropagationSpeed = DefaultPropagationSpeed
	}
	if sc.RoundDelay == 0 {
		sc.RoundDelay = RoundDelay
	}

	if sc.RandomHosts > 0 {
		rng := rand.New(rand.NewPCG(sc.Seed, uint64(len(sc.Hosts))))
		for i := range sc.RandomHosts {
			sc.Hosts = append(sc.Hosts, HostCfg{
				Id: NodeId(fmt.Sprintf("h%d", i)),
				X:  rng.Float64() * sc.Area,
				Y:  rng.Float64() * sc.Area,
			})
		}
		sc.RandomHosts = 0
	}

	for idx, host := range sc.Hosts {
		if !host.Address.IsValid() {
			host.Address = HostAddress(idx)
		}
		sc.Hosts[idx] = host
	}
}

// HostAddress derives the default address of the idx-th host.
func HostAddress(idx int) netip.Addr {
	n := idx + 1
	return netip.AddrFrom4([4]byte{AddressBase[0], AddressBase[1] + byte(n>>16), byte(n >> 8), byte(n)})
}

func AddrToPrefix(addr netip.Addr) netip.Prefix {
	res, err := addr.Prefix(addr.BitLen())
	if err != nil {
		panic(err)
	}
	return res
}

func (sc *Scenario) HostIds() []NodeId {
	ids := make([]NodeId, 0, len(sc.Hosts))
	for _, h := range sc.Hosts {
		ids = append(ids, h.Id)
	}
	return ids
}

// Links returns the pairs of hosts allowed to hear each other. A nil result
// means every pair is allowed.
func (sc *Scenario) Links() ([]Pair[NodeId, NodeId], error) {
	if len(sc.Graph) == 0 {
		return nil, nil
	}
	return ParseGraph(sc.Graph, sc.HostIds())
}

/*
ParseGraph expands a list of graph lines into host pairs.

	Group1 = h1, h2, h3       // defines a group, groups may reference other groups
	Group1, h4                // every member of Group1 is linked to h4
	Group1, Group1            // every member of Group1 is linked to every other member
*/
func ParseGraph(graph []string, nodes []NodeId) ([]Pair[NodeId, NodeId], error) {
	groups := make(map[string][]string)
	pairings := make([][]string, 0)

	for _, line := range graph {
		line = strings.ToLower(strings.TrimSpace(line))
		if line == "" {
			continue
		}
		if name, members, ok := strings.Cut(line, "="); ok {
			name = strings.TrimSpace(name)
			if strings.Contains(members, "=") {
				return nil, fmt.Errorf("invalid graph: %s. group definition must contain one '='", line)
			}
			if slices.Contains(nodes, NodeId(name)) {
				return nil, fmt.Errorf("group name must not be a node name: %s", name)
			}
			if _, ok := groups[name]; ok {
				return nil, fmt.Errorf("duplicate group name: %s", name)
			}
			groups[name] = splitSymbols(members)
			if len(groups[name]) == 0 {
				return nil, fmt.Errorf(`node/group list must not be empty`)
			}
			continue
		}
		names := splitSymbols(line)
		if len(names) < 2 {
			return nil, fmt.Errorf("invalid pairing, %v", names)
		}
		pairings = append(pairings, names)
	}

	if len(groups) == 0 && len(pairings) == 0 {
		return nil, fmt.Errorf(`node/group list must not be empty`)
	}

	var expand func(sym string, path []string) ([]NodeId, error)
	expand = func(sym string, path []string) ([]NodeId, error) {
		if slices.Contains(nodes, NodeId(sym)) {
			return []NodeId{NodeId(sym)}, nil
		}
		members, ok := groups[sym]
		if !ok {
			return nil, fmt.Errorf(`%s is not a valid node/group`, sym)
		}
		if slices.Contains(path, sym) {
			cycle := slices.Clone(path)
			slices.Sort(cycle)
			return nil, fmt.Errorf("cycle detected in graph: %v", cycle)
		}
		out := make([]NodeId, 0)
		for _, m := range members {
			x, err := expand(m, append(path, sym))
			if err != nil {
				return nil, err
			}
			out = append(out, x...)
		}
		slices.Sort(out)
		return slices.Compact(out), nil
	}

	// groups are validated even when no pairing uses them
	for name := range groups {
		if _, err := expand(name, nil); err != nil {
			return nil, err
		}
	}

	result := make([]Pair[NodeId, NodeId], 0)
	for _, names := range pairings {
		for i := range names {
			x, err := expand(names[i], nil)
			if err != nil {
				return nil, err
			}
			for j := i + 1; j < len(names); j++ {
				y, err := expand(names[j], nil)
				if err != nil {
					return nil, err
				}
				for _, a := range x {
					for _, b := range y {
						if a != b {
							result = append(result, MakeSortedPair(a, b))
						}
					}
				}
			}
		}
	}
	SortPairs(result)
	return slices.Compact(result), nil
}

func splitSymbols(s string) []string {
	out := make([]string, 0)
	for _, x := range strings.Split(s, ",") {
		x = strings.TrimSpace(x)
		if x != "" {
			out = append(out, x)
		}
	}
	return out
}
