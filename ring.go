package memcache

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/hexwren/memcache/internal"
)

// Node is one ring member: a server label and the engine driving its
// connection.
type Node struct {
	Addr   string
	Client *Client
}

// Selector maps a key to a node index.
type Selector interface {
	Pick(key string, numNodes int) int
}

// pointsPerNode is the continuum density for the ketama-style selector.
const pointsPerNode = 160

// ContinuumSelector hashes each node onto many points of a circle and sends
// a key to the owner of the first point at or after the key's hash. Adding
// or removing a node only remaps the keys on its own arc.
type ContinuumSelector struct {
	points []continuumPoint
}

type continuumPoint struct {
	hash uint64
	node int
}

// NewContinuumSelector builds a continuum over the given node labels.
func NewContinuumSelector(addrs []string) *ContinuumSelector {
	points := make([]continuumPoint, 0, len(addrs)*pointsPerNode)
	for i, addr := range addrs {
		for p := 0; p < pointsPerNode; p++ {
			h := xxh3.HashString(addr + "-" + strconv.Itoa(p))
			points = append(points, continuumPoint{hash: h, node: i})
		}
	}
	sort.Slice(points, func(a, b int) bool { return points[a].hash < points[b].hash })
	return &ContinuumSelector{points: points}
}

func (s *ContinuumSelector) Pick(key string, numNodes int) int {
	if len(s.points) == 0 {
		return 0
	}
	h := xxh3.HashString(key)
	idx := sort.Search(len(s.points), func(i int) bool { return s.points[i].hash >= h })
	if idx == len(s.points) {
		idx = 0
	}
	return s.points[idx].node
}

// JumpSelector routes with Google's jump consistent hash. Cheaper than the
// continuum and perfectly balanced, but only stable when nodes are appended
// or removed at the tail.
type JumpSelector struct{}

func (JumpSelector) Pick(key string, numNodes int) int {
	return internal.JumpHash(xxh3.HashString(key), numNodes)
}

// Ring shards keys over several independent engines. Each node's engine is
// only ever used from one goroutine at a time by the ring's own fan-out, but
// the ring itself is safe for concurrent use only if each call works a
// disjoint set of nodes, so callers wanting full concurrency serialize per
// ring, exactly as they would per Client.
type Ring struct {
	nodes    []Node
	selector Selector
}

// RingOption configures a Ring.
type RingOption func(*Ring)

// WithSelector overrides the default continuum selector.
func WithSelector(s Selector) RingOption {
	return func(r *Ring) { r.selector = s }
}

// NewRing builds a ring over the given nodes.
func NewRing(nodes []Node, opts ...RingOption) (*Ring, error) {
	if len(nodes) == 0 {
		return nil, errors.New("ring needs at least one node")
	}
	r := &Ring{nodes: nodes}
	for _, opt := range opts {
		opt(r)
	}
	if r.selector == nil {
		addrs := make([]string, len(nodes))
		for i, n := range nodes {
			addrs[i] = n.Addr
		}
		r.selector = NewContinuumSelector(addrs)
	}
	return r, nil
}

// Pick returns the engine owning key.
func (r *Ring) Pick(key string) *Client {
	return r.nodes[r.selector.Pick(key, len(r.nodes))].Client
}

// Get retrieves key from its owning node.
func (r *Ring) Get(ctx context.Context, key string) (Item, error) {
	return r.Pick(key).Get(ctx, key)
}

// Set stores item on its owning node.
func (r *Ring) Set(ctx context.Context, item Item) error {
	return r.Pick(item.Key).Set(ctx, item)
}

// Delete removes key from its owning node.
func (r *Ring) Delete(ctx context.Context, key string) error {
	return r.Pick(key).Delete(ctx, key)
}

// GetMulti groups keys by owning node, fans the per-node retrievals out
// concurrently and returns the hits in the order the keys were requested.
func (r *Ring) GetMulti(ctx context.Context, keys ...string) ([]Item, error) {
	perNode := make(map[int][]string)
	for _, key := range keys {
		n := r.selector.Pick(key, len(r.nodes))
		perNode[n] = append(perNode[n], key)
	}

	var mu sync.Mutex
	found := make(map[string]Item, len(keys))

	g, ctx := errgroup.WithContext(ctx)
	for node, nodeKeys := range perNode {
		g.Go(func() error {
			items, err := r.nodes[node].Client.GetMulti(ctx, nodeKeys...)
			if err != nil {
				return errors.Wrapf(err, "node %s", r.nodes[node].Addr)
			}
			mu.Lock()
			for _, item := range items {
				found[item.Key] = item
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(found))
	for _, key := range keys {
		if item, ok := found[key]; ok {
			items = append(items, item)
		}
	}
	return items, nil
}
