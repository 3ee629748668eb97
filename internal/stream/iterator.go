package stream

// Iterator is the finite, forward-only pull-iterator facade over the
// final enriched stream, spec.md §4.5. Go has no native generator syntax,
// so a pull-closure stands in for it, the idiomatic shape used across the
// retrieval pack wherever a blocking read replaces a language-level
// iterator (e.g. the teacher's dblevel cursor reads). Each call returns
// the next BlockExtra, or ok=false at end-of-stream, or a non-nil error if
// the pipeline failed.
type Iterator func() (be *BlockExtra, ok bool, err error)

// NewIterator adapts a channel of enriched blocks plus a one-shot error
// channel (closed after at most one send, by internal/pipeline) into an
// Iterator.
func NewIterator(blocks <-chan *BlockExtra, errCh <-chan error) Iterator {
	return func() (*BlockExtra, bool, error) {
		be, ok := <-blocks
		if ok {
			return be, true, nil
		}
		if err, ok := <-errCh; ok && err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
}

// FanOut hands each BlockExtra pulled from it to one worker of a bounded
// pool, the "thread-safe handle" spec.md §9 describes for consumers who
// want to parallelize downstream of the (necessarily sequential)
// PrevoutJoiner. Grounded on the teacher's internal/indexer.Builder
// semaphore-gated worker-goroutine pattern.
func FanOut(it Iterator, workers int, handle func(*BlockExtra) error) error {
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	errCh := make(chan error, workers)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			be, ok, err := it()
			if err != nil {
				errCh <- err
				return
			}
			if !ok {
				return
			}
			sem <- struct{}{}
			go func(be *BlockExtra) {
				defer func() { <-sem }()
				if err := handle(be); err != nil {
					select {
					case errCh <- err:
					default:
					}
				}
			}(be)
		}
	}()

	<-done
	// Drain the semaphore to confirm every dispatched handler has
	// returned before reporting completion.
	for i := 0; i < workers; i++ {
		sem <- struct{}{}
	}

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}
