package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorAggregator(t *testing.T) {
	ea := NewErrorAggregator()
	assert.False(t, ea.HasErrors())
	assert.Equal(t, "", ea.Error())
	assert.Equal(t, "All 3 domains succeeded", ea.Summary(3))

	ea.Add(nil)
	assert.Equal(t, 0, ea.Count())

	ea.Add(errors.New("first"))
	assert.Equal(t, "first", ea.Error())

	ea.Add(errors.New("second"))
	assert.Equal(t, 2, ea.Count())
	assert.Contains(t, ea.Error(), "2 domains failed")
	assert.Contains(t, ea.Error(), "  1. first")
	assert.Contains(t, ea.Error(), "  2. second")
	assert.Equal(t, "2/4 domains failed (50.0% failure rate)", ea.Summary(4))

	errs := ea.Errors()
	errs[0] = nil
	assert.NotNil(t, ea.Errors()[0])
}

func TestErrorAggregatorConcurrentAdd(t *testing.T) {
	ea := NewErrorAggregator()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ea.Add(fmt.Errorf("domain %d", i))
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, ea.Count())
}

func TestDomainErrorUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := &DomainError{Domain: "example.com", State: StatePersisting, Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "example.com: persisting: disk full", err.Error())
}
