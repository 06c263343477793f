package workerpool

import (
	"fmt"
	"sync"
)

// Task is one unit of work. Tasks sharing a Key never run concurrently,
// including across overlapping Do calls on the same Pool.
type Task struct {
	Key string
	Run func() error
}

// Pool bounds in-flight tasks and serializes tasks per key.
type Pool struct {
	limit int

	mu   sync.Mutex
	keys map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func New(limit int) *Pool {
	if limit <= 0 {
		limit = 16
	}
	return &Pool{
		limit: limit,
		keys:  make(map[string]*keyLock),
	}
}

// Do runs every task and blocks until all finish. The returned slice is
// aligned with tasks; a recovered panic is reported as an error.
func (p *Pool) Do(tasks []Task) []error {
	errs := make([]error, len(tasks))
	sem := make(chan struct{}, p.limit)
	var wg sync.WaitGroup

	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t Task) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			l := p.acquire(t.Key)
			defer p.release(t.Key, l)

			errs[i] = run(t.Run)
		}(i, t)
	}

	wg.Wait()
	return errs
}

func run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return fn()
}

func (p *Pool) acquire(key string) *keyLock {
	p.mu.Lock()
	l := p.keys[key]
	if l == nil {
		l = &keyLock{}
		p.keys[key] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return l
}

func (p *Pool) release(key string, l *keyLock) {
	l.mu.Unlock()

	p.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(p.keys, key)
	}
	p.mu.Unlock()
}
