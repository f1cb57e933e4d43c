package zookeeper

import (
	"fmt"
	"path"
	"sync"

	"github.com/go-zookeeper/zk"
)

// memClient 是内存中的 ZooKeeper 节点树，删除节点时触发 ExistsW 注册的 watch
type memClient struct {
	mu          sync.Mutex
	nodes       map[string]bool
	seq         map[string]int
	watches     map[string][]chan zk.Event
	sessions    int
	childrenErr error
}

func newMemClient() *memClient {
	return &memClient{
		nodes:   map[string]bool{},
		seq:     map[string]int{},
		watches: map[string][]chan zk.Event{},
	}
}

func (m *memClient) Exists(p string) (bool, *zk.Stat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nodes[p], &zk.Stat{}, nil
}

func (m *memClient) ExistsW(p string) (bool, *zk.Stat, <-chan zk.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan zk.Event, 1)
	if m.nodes[p] {
		m.watches[p] = append(m.watches[p], ch)
	}
	return m.nodes[p], &zk.Stat{}, ch, nil
}

func (m *memClient) Create(p string, _ []byte, _ int32, _ []zk.ACL) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nodes[p] {
		return "", zk.ErrNodeExists
	}
	m.nodes[p] = true
	return p, nil
}

func (m *memClient) CreateProtectedEphemeralSequential(p string, _ []byte, _ []zk.ACL) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir, prefix := path.Split(p)
	m.sessions++
	name := fmt.Sprintf("%s_c_%04x-%s%010d", dir, 0xffff-m.sessions, prefix, m.seq[dir])
	m.seq[dir]++
	m.nodes[name] = true
	return name, nil
}

func (m *memClient) Children(p string) ([]string, *zk.Stat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.childrenErr != nil {
		return nil, nil, m.childrenErr
	}
	var children []string
	for node := range m.nodes {
		if path.Dir(node) == p {
			children = append(children, path.Base(node))
		}
	}
	return children, &zk.Stat{}, nil
}

func (m *memClient) Delete(p string, _ int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.nodes[p] {
		return zk.ErrNoNode
	}
	delete(m.nodes, p)
	for _, ch := range m.watches[p] {
		ch <- zk.Event{Type: zk.EventNodeDeleted, Path: p}
	}
	delete(m.watches, p)
	return nil
}

func (m *memClient) childCount(p string) int {
	children, _, _ := m.Children(p)
	return len(children)
}
