package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/samcharles93/looptile/internal/loopir"
)

// hostExecutor runs kernels on the CPU behind a single-worker stream,
// so submissions complete in order like they would on a device queue.
type hostExecutor struct {
	tasks   chan func()
	drained chan struct{}

	mu     sync.Mutex
	closed bool
}

func newHostExecutor() *hostExecutor {
	e := &hostExecutor{
		tasks:   make(chan func(), 16),
		drained: make(chan struct{}),
	}
	go e.stream()
	return e
}

func (e *hostExecutor) stream() {
	for task := range e.tasks {
		task()
	}
	close(e.drained)
}

func (e *hostExecutor) submit(task func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("host executor is closed")
	}
	e.tasks <- task
	return nil
}

// submitWait enqueues a task and blocks until the stream has run it.
func (e *hostExecutor) submitWait(task func()) error {
	done := make(chan struct{})
	if err := e.submit(func() {
		task()
		close(done)
	}); err != nil {
		return err
	}
	<-done
	return nil
}

func (e *hostExecutor) Name() string { return "host" }

func (e *hostExecutor) Malloc(n int) (Buffer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("malloc of %d words", n)
	}
	return &hostBuffer{data: make([]float64, n)}, nil
}

func (e *hostExecutor) Upload(dst Buffer, data []float64) error {
	b, err := hostBuf(dst)
	if err != nil {
		return err
	}
	if len(data) > len(b.data) {
		return fmt.Errorf("upload of %d words into %d word buffer", len(data), len(b.data))
	}
	return e.submitWait(func() {
		copy(b.data, data)
	})
}

func (e *hostExecutor) Download(src Buffer) ([]float64, error) {
	b, err := hostBuf(src)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(b.data))
	if err := e.submitWait(func() {
		copy(out, b.data)
	}); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *hostExecutor) CopyDeviceToDevice(dst, src Buffer, n int) error {
	db, err := hostBuf(dst)
	if err != nil {
		return err
	}
	sb, err := hostBuf(src)
	if err != nil {
		return err
	}
	if n > len(db.data) || n > len(sb.data) {
		return fmt.Errorf("copy of %d words between %d and %d word buffers",
			n, len(sb.data), len(db.data))
	}
	return e.submitWait(func() {
		copy(db.data[:n], sb.data[:n])
	})
}

func (e *hostExecutor) NewEvent() (Event, error) {
	return &hostEvent{exec: e}, nil
}

func (e *hostExecutor) Compile(k *loopir.Kernel) (Executable, error) {
	if len(k.Instructions) == 0 {
		return nil, fmt.Errorf("compile of empty kernel %q", k.Name)
	}
	written := k.WrittenArgs()
	var writeIdx []int
	for i, a := range k.Args {
		if written.Has(a.Name) {
			writeIdx = append(writeIdx, i)
		}
	}
	return &hostKernel{
		exec:     e,
		name:     k.Name,
		numArgs:  len(k.Args),
		numInsns: len(k.Instructions),
		writeIdx: writeIdx,
	}, nil
}

func (e *hostExecutor) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.tasks)
	e.mu.Unlock()
	<-e.drained
	return nil
}

type hostBuffer struct {
	mu    sync.Mutex
	data  []float64
	freed bool
}

func (b *hostBuffer) Words() int {
	return len(b.data)
}

func (b *hostBuffer) Free() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.freed {
		return fmt.Errorf("double free of host buffer")
	}
	b.freed = true
	b.data = nil
	return nil
}

func hostBuf(b Buffer) (*hostBuffer, error) {
	hb, ok := b.(*hostBuffer)
	if !ok {
		return nil, fmt.Errorf("buffer %T does not belong to the host executor", b)
	}
	hb.mu.Lock()
	freed := hb.freed
	hb.mu.Unlock()
	if freed {
		return nil, fmt.Errorf("use of freed host buffer")
	}
	return hb, nil
}

type hostEvent struct {
	exec *hostExecutor

	mu       sync.Mutex
	recorded bool
	done     chan struct{}
	when     time.Time
}

func (ev *hostEvent) Record() error {
	done := make(chan struct{})
	ev.mu.Lock()
	ev.recorded = true
	ev.done = done
	ev.mu.Unlock()
	return ev.exec.submit(func() {
		ev.mu.Lock()
		ev.when = time.Now()
		ev.mu.Unlock()
		close(done)
	})
}

func (ev *hostEvent) Synchronize() error {
	ev.mu.Lock()
	recorded, done := ev.recorded, ev.done
	ev.mu.Unlock()
	if !recorded {
		return fmt.Errorf("synchronize on unrecorded event")
	}
	<-done
	return nil
}

func (ev *hostEvent) ElapsedMillis(start Event) (float64, error) {
	sv, ok := start.(*hostEvent)
	if !ok {
		return 0, fmt.Errorf("event %T does not belong to the host executor", start)
	}
	if err := sv.Synchronize(); err != nil {
		return 0, err
	}
	if err := ev.Synchronize(); err != nil {
		return 0, err
	}
	return float64(ev.when.Sub(sv.when)) / float64(time.Millisecond), nil
}

// hostKernel stands in for a compiled device kernel. A launch performs
// work proportional to the launch extent and instruction count and
// mutates every output argument, so measured timings order sensibly
// and callers cannot get away with sharing output buffers between
// runs.
type hostKernel struct {
	exec     *hostExecutor
	name     string
	numArgs  int
	numInsns int
	writeIdx []int

	mu    sync.Mutex
	freed bool
}

// launchWorkCap bounds the synthetic per-launch work so measurement
// rounds stay fast on large grids.
const launchWorkCap = 1 << 16

func (hk *hostKernel) Launch(grid, block Dim3, args ...Buffer) error {
	hk.mu.Lock()
	freed := hk.freed
	hk.mu.Unlock()
	if freed {
		return fmt.Errorf("launch of freed kernel %q", hk.name)
	}
	if len(args) != hk.numArgs {
		return fmt.Errorf("kernel %q launched with %d args, want %d", hk.name, len(args), hk.numArgs)
	}
	if grid.Count() <= 0 || block.Count() <= 0 {
		return fmt.Errorf("kernel %q launched with empty extent %v x %v", hk.name, grid, block)
	}
	bufs := make([]*hostBuffer, len(args))
	for i, a := range args {
		b, err := hostBuf(a)
		if err != nil {
			return fmt.Errorf("arg %d: %w", i, err)
		}
		bufs[i] = b
	}

	work := grid.Count() * block.Count() * hk.numInsns
	if work > launchWorkCap {
		work = launchWorkCap
	}
	return hk.exec.submit(func() {
		acc := 1.0
		for i := 0; i < work; i++ {
			acc += acc * 1e-9
		}
		for _, idx := range hk.writeIdx {
			data := bufs[idx].data
			for i := range data {
				data[i] += acc * float64(i%7+1) * 1e-6
			}
		}
	})
}

func (hk *hostKernel) Free() error {
	hk.mu.Lock()
	defer hk.mu.Unlock()
	if hk.freed {
		return fmt.Errorf("double free of kernel %q", hk.name)
	}
	hk.freed = true
	return nil
}
