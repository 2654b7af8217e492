package pipeline

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIndex_AdmitRejectsNearDuplicates(t *testing.T) {
	t.Parallel()

	idx := NewIndex(5)
	require.True(t, idx.Admit(Hash(0x0f0f0f0f0f0f0f0f)))

	// Within threshold of the first hash.
	require.False(t, idx.Admit(Hash(0x0f0f0f0f0f0f0f0e)))
	// Far away.
	require.True(t, idx.Admit(Hash(0xf0f0f0f0f0f0f0f0)))
	require.Equal(t, 2, idx.Len())
}

func TestIndex_AdmitExactThreshold(t *testing.T) {
	t.Parallel()

	idx := NewIndex(5)
	require.True(t, idx.Admit(Hash(0)))
	// Distance exactly 5 is still a duplicate.
	require.False(t, idx.Admit(Hash(0x1f)))
	// Distance 6 is distinct.
	require.True(t, idx.Admit(Hash(0x3f)))
}

func TestIndex_Seed(t *testing.T) {
	t.Parallel()

	idx := NewIndex(5)
	idx.Seed(map[string]struct{}{
		"00000000000000ff": {},
		"garbage":          {}, // unparseable entries are skipped
	}, zap.NewNop())
	require.Equal(t, 1, idx.Len())
	require.False(t, idx.Admit(Hash(0xff)))
}

// Concurrent Admit calls with the same hash must admit it exactly once.
func TestIndex_AdmitConcurrent(t *testing.T) {
	t.Parallel()

	idx := NewIndex(5)
	const workers = 32

	var wg sync.WaitGroup
	admitted := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			admitted <- idx.Admit(Hash(0xdeadbeef))
		}()
	}
	wg.Wait()
	close(admitted)

	wins := 0
	for ok := range admitted {
		if ok {
			wins++
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 1, idx.Len())
}

func TestURLSet(t *testing.T) {
	t.Parallel()

	s := NewURLSet()
	require.False(t, s.Contains("https://a.example/x.jpg"))
	s.Add("https://a.example/x.jpg")
	require.True(t, s.Contains("https://a.example/x.jpg"))

	s.AddAll(map[string]struct{}{"https://b.example/y.jpg": {}})
	require.Equal(t, 2, s.Len())

	dropped := s.Clear()
	require.Equal(t, 2, dropped)
	require.Equal(t, 0, s.Len())
}

func TestURLSet_ConcurrentAdd(t *testing.T) {
	t.Parallel()

	s := NewURLSet()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Add(fmt.Sprintf("https://example.com/%d.jpg", n))
		}(i)
	}
	wg.Wait()
	require.Equal(t, 16, s.Len())
}
