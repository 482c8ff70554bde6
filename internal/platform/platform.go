package platform

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/determined-ai/schedsim/pkg/actor"
)

// HostStateChanged is told to every subscriber when a host is turned on or off.
type HostStateChanged struct {
	Host string
	On   bool
}

// Platform is the read-mostly view of the simulated hardware consumed by the scheduling core.
type Platform interface {
	Hosts() []Host
	Host(name string) (Host, bool)
	IsHostOn(name string) bool
	TurnOnHost(name string) error
	TurnOffHost(name string) error
	TimeToTransfer(source, destination string, bytes float64) (float64, error)
	Subscribe(ref *actor.Ref)
	Unsubscribe(ref *actor.Ref)
}

// Link is a network link with a latency in seconds and a bandwidth in bytes per second.
type Link struct {
	Latency   float64 `json:"latency"`
	Bandwidth Bytes   `json:"bandwidth"`
}

type route struct {
	source, destination string
}

const routeCacheSize = 1024

// Simple is an in-memory platform. Transfers between two hosts use the route declared for the
// pair, in either direction, or the default link.
type Simple struct {
	system *actor.System

	hosts       []Host
	byName      map[string]int
	off         map[string]bool
	links       map[route]Link
	defaultLink Link
	routes      *lru.Cache[route, Link]
	subscribers []*actor.Ref
}

// NewSimple returns a platform over the hosts, in the provided order, with every host on.
func NewSimple(system *actor.System, hosts []Host, defaultLink Link) (*Simple, error) {
	if len(hosts) == 0 {
		return nil, errors.New("a platform needs at least one host")
	}
	cache, err := lru.New[route, Link](routeCacheSize)
	if err != nil {
		return nil, err
	}
	p := &Simple{
		system:      system,
		hosts:       slices.Clone(hosts),
		byName:      make(map[string]int, len(hosts)),
		off:         make(map[string]bool),
		links:       make(map[route]Link),
		defaultLink: defaultLink,
		routes:      cache,
	}
	for i, h := range hosts {
		if _, ok := p.byName[h.Name]; ok {
			return nil, errors.Errorf("duplicate host name %s", h.Name)
		}
		p.byName[h.Name] = i
	}
	return p, nil
}

// AddRoute declares the link used between two hosts.
func (p *Simple) AddRoute(source, destination string, link Link) {
	p.links[route{source, destination}] = link
	p.routes.Purge()
}

// Hosts returns every host in declaration order.
func (p *Simple) Hosts() []Host {
	return slices.Clone(p.hosts)
}

// Host looks a host up by name.
func (p *Simple) Host(name string) (Host, bool) {
	i, ok := p.byName[name]
	if !ok {
		return Host{}, false
	}
	return p.hosts[i], true
}

// IsHostOn returns true if the host exists and is on.
func (p *Simple) IsHostOn(name string) bool {
	_, ok := p.byName[name]
	return ok && !p.off[name]
}

// TurnOnHost turns a host on and notifies subscribers.
func (p *Simple) TurnOnHost(name string) error {
	return p.setHostState(name, true)
}

// TurnOffHost turns a host off and notifies subscribers.
func (p *Simple) TurnOffHost(name string) error {
	return p.setHostState(name, false)
}

func (p *Simple) setHostState(name string, on bool) error {
	if _, ok := p.byName[name]; !ok {
		return errors.Errorf("unknown host %s", name)
	}
	if p.IsHostOn(name) == on {
		return nil
	}
	if on {
		delete(p.off, name)
	} else {
		p.off[name] = true
	}
	for _, ref := range p.subscribers {
		p.system.Tell(ref, HostStateChanged{Host: name, On: on})
	}
	return nil
}

// TimeToTransfer returns the simulated duration of moving bytes between two hosts. A transfer
// on a single host costs nothing.
func (p *Simple) TimeToTransfer(source, destination string, bytes float64) (float64, error) {
	if !p.IsHostOn(source) || !p.IsHostOn(destination) {
		return 0, errors.Errorf("no route between %s and %s", source, destination)
	}
	if source == destination {
		return 0, nil
	}
	link := p.resolve(source, destination)
	if link.Bandwidth <= 0 {
		return link.Latency, nil
	}
	return link.Latency + bytes/float64(link.Bandwidth), nil
}

func (p *Simple) resolve(source, destination string) Link {
	key := route{source, destination}
	if link, ok := p.routes.Get(key); ok {
		return link
	}
	link, ok := p.links[key]
	if !ok {
		link, ok = p.links[route{destination, source}]
	}
	if !ok {
		link = p.defaultLink
	}
	p.routes.Add(key, link)
	return link
}

// Subscribe registers an actor for HostStateChanged notifications.
func (p *Simple) Subscribe(ref *actor.Ref) {
	if !slices.Contains(p.subscribers, ref) {
		p.subscribers = append(p.subscribers, ref)
	}
}

// Unsubscribe removes an actor from the notification list.
func (p *Simple) Unsubscribe(ref *actor.Ref) {
	if i := slices.Index(p.subscribers, ref); i >= 0 {
		p.subscribers = slices.Delete(p.subscribers, i, i+1)
	}
}
