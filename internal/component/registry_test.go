package component

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeComponent struct {
	desc        Descriptor
	initErr     error
	updateErr   error
	shutdownErr error
	updates     int
	shutdowns   int
}

func (f *fakeComponent) Descriptor() Descriptor { return f.desc }
func (f *fakeComponent) Initialize(ctx context.Context) error {
	return f.initErr
}
func (f *fakeComponent) Update(ctx context.Context, dt time.Duration) error {
	f.updates++
	return f.updateErr
}
func (f *fakeComponent) Shutdown(ctx context.Context) error {
	f.shutdowns++
	return f.shutdownErr
}

func TestRegisterTransitionsToOnline(t *testing.T) {
	r := NewRegistry(nil, nil)
	c := &fakeComponent{desc: Descriptor{Name: "lidar", Capabilities: []string{"sensor"}}}

	id, err := r.Register(context.Background(), c)
	require.NoError(t, err)

	h, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, StateOnline, h.State)
}

func TestRegisterInitializeFailureStaysOffline(t *testing.T) {
	r := NewRegistry(nil, nil)
	c := &fakeComponent{desc: Descriptor{Name: "broken"}, initErr: errors.New("boom")}

	id, err := r.Register(context.Background(), c)
	require.Error(t, err)

	h, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, StateOffline, h.State)
}

func TestUpdateAllDegradesThenErrors(t *testing.T) {
	r := NewRegistry(nil, nil)
	c := &fakeComponent{desc: Descriptor{Name: "flaky"}, updateErr: errors.New("fault")}
	id, err := r.Register(context.Background(), c)
	require.NoError(t, err)

	r.UpdateAll(context.Background(), time.Millisecond)
	h, _ := r.Get(id)
	assert.Equal(t, StateDegraded, h.State)

	r.UpdateAll(context.Background(), time.Millisecond)
	h, _ = r.Get(id)
	assert.Equal(t, StateError, h.State)

	// Once in Error state the component is out of rotation: further
	// UpdateAll calls must not invoke Update again.
	updatesAtError := c.updates
	r.UpdateAll(context.Background(), time.Millisecond)
	assert.Equal(t, updatesAtError, c.updates)
}

func TestUpdateAllRecoversFromDegraded(t *testing.T) {
	r := NewRegistry(nil, nil)
	c := &fakeComponent{desc: Descriptor{Name: "recovers"}}
	id, err := r.Register(context.Background(), c)
	require.NoError(t, err)

	c.updateErr = errors.New("transient")
	r.UpdateAll(context.Background(), time.Millisecond)
	h, _ := r.Get(id)
	assert.Equal(t, StateDegraded, h.State)

	c.updateErr = nil
	r.UpdateAll(context.Background(), time.Millisecond)
	h, _ = r.Get(id)
	assert.Equal(t, StateOnline, h.State)
}

func TestByTypeFiltersByCapability(t *testing.T) {
	r := NewRegistry(nil, nil)
	_, err := r.Register(context.Background(), &fakeComponent{desc: Descriptor{Name: "lidar", Capabilities: []string{"sensor", "lidar"}}})
	require.NoError(t, err)
	_, err = r.Register(context.Background(), &fakeComponent{desc: Descriptor{Name: "gateway", Capabilities: []string{"security"}}})
	require.NoError(t, err)

	sensors := r.ByType("sensor")
	require.Len(t, sensors, 1)
	assert.Equal(t, "lidar", sensors[0].Descriptor.Name)
}

type orderRecordingComponent struct {
	fakeComponent
	name  string
	order *[]string
}

func (o *orderRecordingComponent) Shutdown(ctx context.Context) error {
	*o.order = append(*o.order, o.name)
	return o.fakeComponent.Shutdown(ctx)
}

func TestShutdownAllReverseOrder(t *testing.T) {
	r := NewRegistry(nil, nil)
	var shutdownOrder []string

	mk := func(name string) *orderRecordingComponent {
		return &orderRecordingComponent{
			fakeComponent: fakeComponent{desc: Descriptor{Name: name}},
			name:          name,
			order:         &shutdownOrder,
		}
	}

	for _, name := range []string{"a", "b", "c"} {
		_, err := r.Register(context.Background(), mk(name))
		require.NoError(t, err)
	}

	errs := r.ShutdownAll(context.Background())
	assert.Empty(t, errs)
	assert.Equal(t, []string{"c", "b", "a"}, shutdownOrder)
}
