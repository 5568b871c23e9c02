package controller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/component"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/eventbus"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/ledger"
)

func testSigner(t *testing.T) ledger.Signer {
	t.Helper()
	s, err := ledger.NewEd25519SignerFromSeed("controller-test", make([]byte, 32))
	require.NoError(t, err)
	return s
}

type countingComponent struct {
	desc   component.Descriptor
	ticks  int
}

func (c *countingComponent) Descriptor() component.Descriptor { return c.desc }
func (c *countingComponent) Initialize(ctx context.Context) error { return nil }
func (c *countingComponent) Update(ctx context.Context, dt time.Duration) error {
	c.ticks++
	return nil
}
func (c *countingComponent) Shutdown(ctx context.Context) error { return nil }

func TestControllerRunsUpdateLoopAtConfiguredRate(t *testing.T) {
	bus := eventbus.New(eventbus.DefaultCapacity, nil)
	registry := component.NewRegistry(bus, nil)

	comp := &countingComponent{desc: component.Descriptor{Name: "test-component"}}
	_, err := registry.Register(context.Background(), comp)
	require.NoError(t, err)

	cfg := Config{ProcessingRateHz: 100, DifficultyBits: 1}
	c := New(cfg, registry, nil, nil, nil, nil, bus, nil)

	c.Start(context.Background())
	time.Sleep(150 * time.Millisecond)
	c.Stop()

	assert.Greater(t, comp.ticks, 0)
}

func TestControllerConsensusMonitorDetectsValidChain(t *testing.T) {
	signer := testSigner(t)
	cfg := ledger.DefaultConfig()
	cfg.DifficultyBits = 1
	chain := ledger.New(cfg, signer, nil, nil)

	ctrl := New(Config{DifficultyBits: 1}, nil, chain, nil, nil, nil, nil, nil)
	ctrl.checkConsensus(context.Background())
}

func TestControllerStopIsIdempotentWithoutStart(t *testing.T) {
	c := New(DefaultConfig(), nil, nil, nil, nil, nil, nil, nil)
	c.Stop()
}

func TestControllerStartTwiceIsNoop(t *testing.T) {
	bus := eventbus.New(eventbus.DefaultCapacity, nil)
	c := New(DefaultConfig(), nil, nil, nil, nil, nil, bus, nil)
	c.Start(context.Background())
	c.Start(context.Background())
	c.Stop()
}
