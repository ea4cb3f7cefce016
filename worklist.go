package reach

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// limits tracks the iteration and wall-clock caps of one worklist run.
type limits struct {
	max      int
	timeout  time.Duration
	start    time.Time
	deadline time.Time
}

func (s *session) newLimits() limits {
	l := limits{max: s.engine.maxIterations, timeout: s.engine.timeout, start: time.Now()}
	if l.timeout > 0 {
		l.deadline = l.start.Add(l.timeout)
	}
	return l
}

// check fails when processing next more queries would pass a cap.
func (l limits) check(processed, next, pending int) error {
	if processed+next > l.max {
		return &OverflowError{Limit: l.max, Timeout: l.timeout, Processed: processed, Pending: pending, Elapsed: time.Since(l.start)}
	}
	if !l.deadline.IsZero() && time.Now().After(l.deadline) {
		return &OverflowError{Limit: l.max, Timeout: l.timeout, Processed: processed, Pending: pending, Elapsed: time.Since(l.start)}
	}
	return nil
}

// enqueue adds the queries not yet seen to queue.
func (s *session) enqueue(queue []Query, qs ...Query) []Query {
	for _, q := range qs {
		if s.queries.add(q) {
			s.metrics.QueriesEnqueued.Inc()
			queue = append(queue, q)
		}
	}
	return queue
}

// runSequential drains a FIFO queue, scanning every file in canonical
// order for each query.
func (s *session) runSequential(ctx context.Context, seeds []Query) error {
	lim := s.newLimits()
	queue := s.enqueue(nil, seeds...)

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := lim.check(len(s.processed), 1, len(queue)); err != nil {
			return err
		}

		q := queue[0]
		queue = queue[1:]
		s.processed = append(s.processed, q)
		s.metrics.QueriesProcessed.Inc()

		for _, entry := range s.index.order {
			queue = s.enqueue(queue, s.scan(entry, q)...)
		}
		s.logger.Debug("query processed", "name", q.Name, "origin", s.relPath(q.Origin), "pending", len(queue))
	}
	return nil
}

// runWaves processes all pending queries as one wave. Files are scanned
// concurrently, each by a single goroutine; discoveries are merged in file
// order once the whole wave is done.
func (s *session) runWaves(ctx context.Context, seeds []Query) error {
	lim := s.newLimits()
	wave := s.enqueue(nil, seeds...)
	files := s.index.order

	for len(wave) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := lim.check(len(s.processed), len(wave), len(wave)); err != nil {
			return err
		}

		found := make([][]Query, len(files))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.engine.workers)
		for i, entry := range files {
			g.Go(func() error {
				for _, q := range wave {
					if err := gctx.Err(); err != nil {
						return err
					}
					found[i] = append(found[i], s.scan(entry, q)...)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		s.processed = append(s.processed, wave...)
		s.metrics.QueriesProcessed.Add(float64(len(wave)))
		s.waves++
		s.metrics.Waves.Inc()

		var next []Query
		for _, qs := range found {
			next = s.enqueue(next, qs...)
		}
		s.logger.Debug("wave processed", "wave", s.waves, "queries", len(wave), "next", len(next))
		wave = next
	}
	return nil
}
