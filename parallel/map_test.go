package parallel

import (
	"context"
	"fmt"
	"runtime"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPreservesOrder(t *testing.T) {
	for _, limit := range []int{1, 2, 24, 1000} {
		out, err := Map(1000, limit, func(i int) (int, error) {
			if i%7 == 0 {
				runtime.Gosched()
			}
			return i * i, nil
		})
		require.NoError(t, err)
		require.Len(t, out, 1000)
		for i, v := range out {
			assert.Equal(t, i*i, v)
		}
	}
}

func TestMapLowestError(t *testing.T) {
	errBad := errors.New("bad")
	for _, limit := range []int{1, 2, 8, 100} {
		for run := 0; run < 20; run++ {
			_, err := Map(300, limit, func(i int) (struct{}, error) {
				if i == 17 || i == 40 || i == 299 {
					return struct{}{}, errors.Wrap(errBad, fmt.Sprint(i))
				}
				return struct{}{}, nil
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, errBad))
			assert.Equal(t, "17: bad", err.Error(), "limit %d", limit)
		}
	}
}

func TestMapEmpty(t *testing.T) {
	out, err := Map(0, 4, func(i int) (int, error) { return i, nil })
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMapContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, limit := range []int{1, 4} {
		_, err := MapContext(ctx, 10, limit, func(i int) (int, error) { return i, nil })
		assert.ErrorIs(t, err, context.Canceled)
	}
}
