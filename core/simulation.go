package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/netip"
	"os"
	"time"

	"github.com/encodeous/dsdvsim/perf"
	"github.com/encodeous/dsdvsim/state"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

var ErrSimulationComplete = errors.New("simulation complete")

// Simulation drives the hosts of a scenario round by round. It only runs on
// the main loop.
type Simulation struct {
	*state.State
	Hosts   []*Host
	Stats   *perf.StatisticsHandler
	index   map[state.NodeId]*Host
	allowed map[state.Pair[state.NodeId, state.NodeId]]struct{}
	rng     *rand.Rand
	holdoff *ttlcache.Cache[state.NodeId, int]
}

type hostObserver struct {
	s  *state.State
	id state.NodeId
}

func (o hostObserver) Log(event TableEvent, desc string, args ...any) {
	o.s.Log.Debug(fmt.Sprintf("%s %s", event.String(), desc), append([]any{"host", o.id}, args...)...)
}

func (s *Simulation) Init(st *state.State) error {
	err := s.setup(st)
	if err != nil {
		return err
	}
	st.Log.Info("simulation ready", "name", st.Name, "hosts", len(s.Hosts), "rounds", st.Rounds)
	st.RepeatTask(func(st *state.State) error {
		return s.Step()
	}, st.RoundDelay)
	return nil
}

func (s *Simulation) setup(st *state.State) error {
	s.State = st
	s.Stats = perf.NewStatisticsHandler()
	s.index = make(map[state.NodeId]*Host)
	s.rng = rand.New(rand.NewPCG(st.Seed, st.Seed^0x9e3779b97f4a7c15))

	links, err := st.Links()
	if err != nil {
		return err
	}
	if links != nil {
		s.allowed = make(map[state.Pair[state.NodeId, state.NodeId]]struct{})
		for _, l := range links {
			s.allowed[l] = struct{}{}
		}
	}

	if st.Adverts.TriggerHoldoff > 0 {
		s.holdoff = ttlcache.New[state.NodeId, int](
			ttlcache.WithTTL[state.NodeId, int](st.Adverts.TriggerHoldoff),
			ttlcache.WithDisableTouchOnHit[state.NodeId, int](),
		)
	}

	for _, cfg := range st.Hosts {
		h := NewHost(cfg)
		if state.DBG_log_table {
			h.Table.SetObserver(hostObserver{st, h.Id})
		}
		h.waypoint = s.randomPosition()
		s.Hosts = append(s.Hosts, h)
		s.index[h.Id] = h
	}
	return nil
}

func (s *Simulation) Cleanup(st *state.State) error {
	if s.Stats == nil {
		return nil
	}
	st.Log.Info("simulation finished", "rounds", st.Round)
	if st.Out != nil {
		_, err := fmt.Fprint(st.Out, s.Stats.String())
		if err != nil {
			return err
		}
	}
	if st.StatsPath != "" {
		bytes, err := json.MarshalIndent(s.Stats.Snapshot(), "", "  ")
		if err != nil {
			return err
		}
		err = os.WriteFile(st.StatsPath, bytes, 0600)
		if err != nil {
			return fmt.Errorf("failed to write stats: %w", err)
		}
		st.Log.Info("stats written", "path", st.StatsPath)
	}
	return nil
}

func (s *Simulation) Host(id state.NodeId) *Host {
	return s.index[id]
}

func (s *Simulation) addrOf(id state.NodeId) (netip.Addr, bool) {
	h, ok := s.index[id]
	if !ok {
		return netip.Addr{}, false
	}
	return h.Addr, true
}

func (s *Simulation) randomPosition() Position {
	return Position{s.rng.Float64() * s.Area, s.rng.Float64() * s.Area}
}

// CanHear reports whether a and b are within range of each other and
// allowed to communicate by the scenario graph.
func (s *Simulation) CanHear(a, b *Host) bool {
	if s.allowed != nil {
		if _, ok := s.allowed[state.MakeSortedPair(a.Id, b.Id)]; !ok {
			return false
		}
	}
	return a.DistanceTo(b) <= s.Range
}

// Step runs one round of the simulation.
func (s *Simulation) Step() error {
	start := time.Now()
	for _, h := range s.Hosts {
		h.move(s.Mobility.Speed, s.Mobility.Pause, s.randomPosition)
	}
	s.updateLinks()
	for idx, h := range s.Hosts {
		s.advertise(idx, h)
	}
	for _, h := range s.Hosts {
		h.RebuildForwarding(s.addrOf)
	}
	for range s.Traffic.PacketsPerRound {
		s.sendRandomPacket()
	}
	s.Round++
	perf.RoundLatency.Add(float64(time.Since(start).Microseconds()))

	if s.Round >= s.Rounds {
		s.Cancel(ErrSimulationComplete)
	}
	return nil
}

func (s *Simulation) updateLinks() {
	for i, a := range s.Hosts {
		for _, b := range s.Hosts[i+1:] {
			hear := s.CanHear(a, b)
			was := a.IsNeighbour(b.Id)
			switch {
			case was && !hear:
				a.LinkLost(b.Id)
				b.LinkLost(a.Id)
				if state.DBG_log_links {
					s.Log.Debug("link down", "a", a.Id, "b", b.Id, "round", s.Round)
				}
			case !was && hear:
				a.Neighbours[b.Id] = struct{}{}
				b.Neighbours[a.Id] = struct{}{}
				if state.DBG_log_links {
					s.Log.Debug("link up", "a", a.Id, "b", b.Id, "round", s.Round)
				}
			}
		}
	}
}

// advertise sends a full dump on the host's periodic schedule, or an
// incremental update when the table asks for one.
func (s *Simulation) advertise(idx int, h *Host) {
	var adv *RoutingTable
	periodic := (s.Round+idx)%s.Adverts.PeriodicInterval == 0
	if periodic {
		h.Table.AdvanceSeqno()
		h.Table.GetChanges()
		adv = h.Table.Snapshot()
	} else if h.Table.BrokenLinks() || h.Table.NumberOfChanges() >= s.Adverts.TriggerThreshold {
		if s.holdoff != nil && s.holdoff.Get(h.Id) != nil {
			return
		}
		adv = h.Table.GetChanges()
		if s.holdoff != nil {
			s.holdoff.Set(h.Id, s.Round, ttlcache.DefaultTTL)
		}
	}
	if adv == nil {
		return
	}

	s.Stats.AddRoutingPackets(1)
	perf.AdvertsPerSecond.Add(1)
	perf.RowsPerAdvert.Add(float64(adv.Len()))
	if state.DBG_log_adverts {
		s.Log.Debug("advertise", "host", h.Id, "periodic", periodic, "rows", adv.Len(), "round", s.Round)
	}
	for _, other := range s.Hosts {
		if other != h && h.IsNeighbour(other.Id) {
			other.Receive(h, adv)
		}
	}
	h.Table.ClearBrokenLinks()
}

func (s *Simulation) sendRandomPacket() {
	if len(s.Hosts) < 2 {
		return
	}
	src := s.Hosts[s.rng.IntN(len(s.Hosts))]
	dst := s.Hosts[s.rng.IntN(len(s.Hosts))]
	if src == dst {
		return
	}
	s.SendPacket(src, dst)
}

// SendPacket forwards a data packet hop by hop and records the outcome.
func (s *Simulation) SendPacket(src, dst *Host) bool {
	id := uuid.New()
	s.Stats.SendDataPacket()

	cur := src
	hops := 0
	delay := 0.0
	for cur != dst {
		reason := ""
		var next *Host
		if hops >= s.Traffic.MaxHops {
			reason = "hop limit reached"
		} else if nh, ok := cur.NextHopFor(dst.Addr); !ok {
			reason = "no route"
		} else if next = s.index[nh]; next == nil || !cur.IsNeighbour(nh) {
			reason = "next hop unreachable"
		}
		if reason != "" {
			s.Stats.DropDataPacket()
			if state.DBG_log_packets {
				s.Log.Debug("packet dropped", "id", id, "src", src.Id, "dst", dst.Id, "at", cur.Id, "hops", hops, "reason", reason)
			}
			return false
		}
		delay += s.Traffic.HopLatency
		if s.Traffic.PropagationSpeed > 0 {
			delay += cur.DistanceTo(next) / s.Traffic.PropagationSpeed
		}
		cur = next
		hops++
	}
	s.Stats.AddPacketArrival(delay)
	if state.DBG_log_packets {
		s.Log.Debug("packet arrived", "id", id, "src", src.Id, "dst", dst.Id, "hops", hops, "delay", delay)
	}
	return true
}
