package evcompat_test

import (
	"bytes"
	"os"
	"syscall"
	"testing"
	"time"

	evcompat "github.com/joeycumines/go-evcompat"
	"github.com/joeycumines/go-evcompat/netpoll"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// initNetpoll stands up the process-wide base over a real netpoll driver,
// tearing everything down (and checking for leaked goroutines) when the
// test ends.
func initNetpoll(t *testing.T, opts ...netpoll.Option) (*evcompat.Base, *bytes.Buffer) {
	t.Helper()
	evcompat.ResetForTesting()
	t.Cleanup(func() {
		goleak.VerifyNone(t,
			goleak.IgnoreTopFunction("os/signal.signal_recv"),
			goleak.IgnoreTopFunction("os/signal.loop"),
		)
	})
	drv, err := netpoll.New(opts...)
	require.NoError(t, err)
	var buf bytes.Buffer
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(&buf), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(stumpy.L.LevelDebug()),
	).Logger()
	b := evcompat.Initialize(drv, evcompat.WithLogger(logger))
	t.Cleanup(func() {
		require.NoError(t, b.Loop().Close())
		evcompat.ResetForTesting()
	})
	return b, &buf
}

func TestInitialize_netpoll(t *testing.T) {
	b, buf := initNetpoll(t)
	require.Same(t, b, evcompat.CurrentBase())
	require.Equal(t, "2.1.12-stable", b.VersionString())
	require.Contains(t, []string{"epoll", "kqueue", "poll"}, b.Method())
	v, s := b.RuntimeVersion()
	require.Equal(t, evcompat.MakeVersion(2, 1, 12), v)
	require.Equal(t, "2.1.12-stable", s)

	out := buf.String()
	require.Contains(t, out, `"lvl":"notice"`)
	require.Contains(t, out, `"version":"2.1.12-stable"`)
	require.Contains(t, out, `"method":"`+b.Method()+`"`)
	require.Contains(t, out, `"msg":"initialized event driver"`)

	// A current driver passes both health checks without a word.
	buf.Reset()
	require.Equal(t, evcompat.Finding{}, b.CheckKnownIssues(b.Method(), true))
	b.CheckHeaderCompatibility()
	require.Empty(t, buf.String())
}

func TestPeriodicTimer_nativeCadence(t *testing.T) {
	b, _ := initNetpoll(t)
	const interval = 20 * time.Millisecond
	var n int
	start := time.Now()
	tm, err := evcompat.NewPeriodicTimer(b, interval, func(*evcompat.PeriodicTimer) {
		n++
		if n == 3 {
			require.NoError(t, b.LoopExit(0))
		}
	})
	require.NoError(t, err)
	defer tm.Free()
	require.NoError(t, b.Loop().Dispatch())
	require.Equal(t, 3, n)
	require.GreaterOrEqual(t, time.Since(start), 2*interval)
}

func TestPeriodicTimer_emulatedCadence(t *testing.T) {
	b, _ := initNetpoll(t, netpoll.WithGeneration(netpoll.GenerationClassic))
	require.Equal(t, "1.4.13-stable", b.VersionString())
	const interval = 20 * time.Millisecond
	var n int
	start := time.Now()
	tm, err := evcompat.NewPeriodicTimer(b, interval, func(*evcompat.PeriodicTimer) {
		n++
		if n == 3 {
			require.NoError(t, b.LoopExit(0))
		}
	})
	require.NoError(t, err)
	defer tm.Free()
	require.NoError(t, b.Loop().Dispatch())
	require.Equal(t, 3, n)
	require.GreaterOrEqual(t, time.Since(start), 2*interval)
}

func TestPeriodicTimer_freeStopsDispatch(t *testing.T) {
	b, _ := initNetpoll(t)
	var n int
	var tm *evcompat.PeriodicTimer
	tm, err := evcompat.NewPeriodicTimer(b, 10*time.Millisecond, func(*evcompat.PeriodicTimer) {
		n++
		tm.Free()
	})
	require.NoError(t, err)
	// With the only registration gone, dispatch runs out of work by itself.
	require.NoError(t, b.Loop().Dispatch())
	require.Equal(t, 1, n)
}

func TestTimerEvent_oneShot(t *testing.T) {
	b, _ := initNetpoll(t)
	var fired int
	ev, err := evcompat.NewTimerEvent(b, func(fd int, what evcompat.EventMask) {
		require.Equal(t, -1, fd)
		require.Equal(t, evcompat.EvTimeout, what)
		fired++
	})
	require.NoError(t, err)
	defer ev.Free()
	require.NoError(t, ev.Add(10*time.Millisecond))
	require.NoError(t, b.Loop().Dispatch())
	require.Equal(t, 1, fired)
}

func TestSignalEvent_delivery(t *testing.T) {
	b, _ := initNetpoll(t)
	var got []int
	ev, err := evcompat.NewSignalEvent(b, syscall.SIGUSR2, func(fd int, what evcompat.EventMask) {
		require.Equal(t, evcompat.EvSignal, what)
		got = append(got, fd)
		require.NoError(t, b.LoopExit(0))
	})
	require.NoError(t, err)
	defer ev.Free()
	require.NoError(t, ev.Add(-1))
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR2))
	require.NoError(t, b.Loop().Dispatch())
	require.Equal(t, []int{int(syscall.SIGUSR2)}, got)
}
