package state

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
)

var ErrInvalidScenario = errors.New("invalid scenario")

var namePattern, _ = regexp.Compile("^[0-9a-z._-]+$")

func PathValidator(s string) error {
	_, err := os.Stat(path.Dir(s))
	if err != nil {
		return err
	}
	_, err = filepath.Abs(s)
	return err
}

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

// ScenarioValidator checks an expanded scenario.
func ScenarioValidator(sc *Scenario) error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidScenario, fmt.Sprintf(format, args...))
	}
	if len(sc.Hosts) < 2 {
		return invalid("at least 2 hosts are required, got %d", len(sc.Hosts))
	}
	if sc.Rounds < 1 {
		return invalid("rounds must be positive")
	}
	if sc.Area <= 0 || sc.Range <= 0 {
		return invalid("area and range must be positive")
	}
	if sc.Mobility.Speed < 0 || sc.Mobility.Pause < 0 {
		return invalid("mobility speed and pause must not be negative")
	}
	if sc.Adverts.PeriodicInterval < 1 || sc.Adverts.TriggerThreshold < 1 {
		return invalid("periodic_interval and trigger_threshold must be positive")
	}
	if sc.Traffic.PacketsPerRound < 0 || sc.Traffic.MaxHops < 1 {
		return invalid("packets_per_round must not be negative and max_hops must be positive")
	}
	if sc.Traffic.HopLatency <= 0 && sc.Traffic.PropagationSpeed <= 0 {
		return invalid("a packet must take time to arrive, set hop_latency or propagation_speed")
	}

	ids := make(map[NodeId]struct{})
	for _, host := range sc.Hosts {
		if err := NameValidator(string(host.Id)); err != nil {
			return invalid("%v", err)
		}
		if _, ok := ids[host.Id]; ok {
			return invalid("duplicate host %s", host.Id)
		}
		ids[host.Id] = struct{}{}
		if host.X < 0 || host.Y < 0 || host.X > sc.Area || host.Y > sc.Area {
			return invalid("host %s is outside of the area", host.Id)
		}
	}

	addrs := make(map[string]NodeId)
	for _, host := range sc.Hosts {
		if !host.Address.IsValid() {
			continue
		}
		if other, ok := addrs[host.Address.String()]; ok {
			return invalid("hosts %s and %s share address %s", other, host.Id, host.Address)
		}
		addrs[host.Address.String()] = host.Id
	}

	if _, err := sc.Links(); err != nil {
		return invalid("%v", err)
	}

	if sc.LogPath != "" {
		if err := PathValidator(sc.LogPath); err != nil {
			return err
		}
	}
	return nil
}
