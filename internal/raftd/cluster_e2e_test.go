package raftd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	docker_network "github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
)

// testKVNode is one container in the e2e cluster, grounded on the
// teacher's testRaftNode from raft-server/server_e2e_test.go.
type testKVNode struct {
	id        uint64
	container testcontainers.Container
	hostAddr  string
}

func (n *testKVNode) put(key, value string) error {
	req, err := http.NewRequest(http.MethodPut, fmt.Sprintf("http://%s/kv/%s", n.hostAddr, key),
		strings.NewReader(fmt.Sprintf("%q", value)))
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("put failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (n *testKVNode) get(key string) (string, error) {
	resp, err := http.Get(fmt.Sprintf("http://%s/kv/%s", n.hostAddr, key))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("get failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(string(body)), `"`), nil
}

type testKVCluster struct {
	t       *testing.T
	ctx     context.Context
	nodes   []*testKVNode
	network *testcontainers.DockerNetwork
}

func newE2eCluster(t *testing.T, ctx context.Context, size int) (*testKVCluster, error) {
	net, err := docker_network.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start docker network: %w", err)
	}

	c := &testKVCluster{t: t, ctx: ctx, network: net}

	for id := 1; id <= size; id++ {
		node, err := c.startNode(uint64(id), size)
		if err != nil {
			c.shutdown()
			return nil, fmt.Errorf("failed to start node %d: %w", id, err)
		}
		c.nodes = append(c.nodes, node)
	}

	return c, nil
}

func (c *testKVCluster) startNode(id uint64, size int) (*testKVNode, error) {
	cfg := buildClusterConfigYAML(id, size)

	req := testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "raftkv:latest",
			Name:         fmt.Sprintf("raftkv-node-%d", id),
			ExposedPorts: []string{"8000/tcp"},
			Env:          map[string]string{"RAFTKV_CONFIG": cfg},
			Networks:     []string{c.network.Name},
			WaitingFor: wait.ForHTTP("/kv/missing").
				WithPort("8000/tcp").
				WithStatusCodeMatcher(func(status int) bool { return status == http.StatusNotFound }).
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	}

	container, err := testcontainers.GenericContainer(c.ctx, req)
	if err != nil {
		return nil, err
	}

	hostPort, err := container.MappedPort(c.ctx, "8000")
	if err != nil {
		_ = container.Terminate(c.ctx)
		return nil, err
	}
	host, err := container.Host(c.ctx)
	if err != nil {
		_ = container.Terminate(c.ctx)
		return nil, err
	}

	return &testKVNode{
		id:        id,
		container: container,
		hostAddr:  fmt.Sprintf("%s:%s", host, hostPort.Port()),
	}, nil
}

func buildClusterConfigYAML(id uint64, size int) string {
	var peers strings.Builder
	for i := 1; i <= size; i++ {
		fmt.Fprintf(&peers, "    - id: %d\n      address: \"raftkv-node-%d:8000\"\n", i, i)
	}
	return fmt.Sprintf(`node:
  id: %d
  address: "raftkv-node-%d:8000"
  data_dir: "/data"
cluster:
  peers:
%s
raft:
  election_tick: 10
  heartbeat_tick: 1
  max_inflight_msgs: 256
  pre_vote: true
  check_quorum: true
`, id, id, peers.String())
}

func (c *testKVCluster) shutdown() {
	for _, n := range c.nodes {
		if n.container != nil {
			_ = n.container.Terminate(c.ctx)
		}
	}
	if c.network != nil {
		_ = c.network.Remove(c.ctx)
	}
}

// TestCluster_PutReplicatesToEveryNode boots a 3-node cluster, proposes a
// Put against an arbitrary node (the host loop forwards it to the leader
// internally if needed), and asserts the value reads back everywhere once
// replication catches up.
func TestCluster_PutReplicatesToEveryNode(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e cluster test in short mode")
	}

	ctx := context.Background()
	cluster, err := newE2eCluster(t, ctx, 3)
	require.NoError(t, err)
	defer cluster.shutdown()

	require.NoError(t, cluster.nodes[0].put("greeting", "hello-raft"))

	require.Eventually(t, func() bool {
		for _, n := range cluster.nodes {
			val, err := n.get("greeting")
			if err != nil || val != "hello-raft" {
				return false
			}
		}
		return true
	}, 15*time.Second, 200*time.Millisecond, "value did not replicate to every node")
}
