package errorfabric

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/aelyidse/XY-28C-Sentinel-sub000/infrastructure/errors"
	"github.com/aelyidse/XY-28C-Sentinel-sub000/internal/eventbus"
)

func TestClassifyRefinesUnknownByMessage(t *testing.T) {
	c := Classify(errors.New("connection reset by peer"))
	require.NotNil(t, c)
	assert.Equal(t, cerrors.CategoryNetwork, c.Category)

	c = Classify(errors.New("invalid parameter: altitude"))
	require.NotNil(t, c)
	assert.Equal(t, cerrors.CategorySoftware, c.Category)
}

func TestClassifyPassesThroughAlreadyClassified(t *testing.T) {
	original := cerrors.New(cerrors.CategorySensor, cerrors.SeverityWarning, "dropout")
	c := Classify(original)
	assert.Equal(t, cerrors.CategorySensor, c.Category)
}

func TestDispatchStopsChainOnConsumed(t *testing.T) {
	f := New(nil, nil)
	var calledSecond bool

	f.RegisterHandler(cerrors.CategorySensor, func(ctx context.Context, err *cerrors.ClassifiedError) bool {
		return true
	})
	f.RegisterHandler(cerrors.CategorySensor, func(ctx context.Context, err *cerrors.ClassifiedError) bool {
		calledSecond = true
		return false
	})

	f.Dispatch(context.Background(), cerrors.New(cerrors.CategorySensor, cerrors.SeverityWarning, "test"))
	assert.False(t, calledSecond, "second handler must not run once the first consumed the error")
}

func TestDispatchCriticalEmitsSystemFailureEvenIfConsumed(t *testing.T) {
	bus := eventbus.New(16, nil)
	f := New(bus, nil)

	f.RegisterHandler(cerrors.CategoryHardware, func(ctx context.Context, err *cerrors.ClassifiedError) bool {
		return true
	})

	f.Dispatch(context.Background(), cerrors.New(cerrors.CategoryHardware, cerrors.SeverityCritical, "fault"))
	assert.Equal(t, 1, bus.QueueLen())
}

func TestRecoverUsesNetworkDefaultRetry(t *testing.T) {
	f := New(nil, nil)
	attempts := 0

	err := f.Recover(context.Background(), cerrors.New(cerrors.CategoryNetwork, cerrors.SeverityError, "dial failed"),
		"peer-1", func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("still failing")
			}
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRecoverFallsBackToOperationWhenNoStrategy(t *testing.T) {
	f := New(nil, nil)
	var called bool

	err := f.Recover(context.Background(), cerrors.New(cerrors.CategorySoftware, cerrors.SeverityError, "oops"),
		"component-x", func(ctx context.Context) error {
			called = true
			return nil
		})

	require.NoError(t, err)
	assert.True(t, called)
}

func TestRecoverBlockchainOpensCircuitAfterRepeatedFailures(t *testing.T) {
	f := New(nil, nil)
	failing := func(ctx context.Context) error { return errors.New("swap failed") }

	var lastErr error
	for i := 0; i < 3; i++ {
		lastErr = f.Recover(context.Background(), cerrors.ConsensusFailure("no valid candidate"), "consensus_monitor", failing)
		assert.EqualError(t, lastErr, "swap failed")
	}

	// The third failure reached ConsensusRecoveryConfig's 3-failure
	// threshold and opened the breaker: the fourth attempt is refused
	// without invoking operation.
	var invoked bool
	lastErr = f.Recover(context.Background(), cerrors.ConsensusFailure("no valid candidate"), "consensus_monitor",
		func(ctx context.Context) error {
			invoked = true
			return nil
		})
	assert.False(t, invoked, "circuit breaker must short-circuit instead of invoking operation again")
	assert.Error(t, lastErr)
}

func TestRecoverHonorsOriginSpecificOverride(t *testing.T) {
	f := New(nil, nil)
	var usedOverride bool

	f.RegisterRecovery(cerrors.CategorySensor, "lidar-1", func(ctx context.Context, err *cerrors.ClassifiedError, operation func(context.Context) error) error {
		usedOverride = true
		return operation(ctx)
	})

	err := f.Recover(context.Background(), cerrors.New(cerrors.CategorySensor, cerrors.SeverityWarning, "dropout"),
		"lidar-1", func(ctx context.Context) error { return nil })

	require.NoError(t, err)
	assert.True(t, usedOverride)
}
