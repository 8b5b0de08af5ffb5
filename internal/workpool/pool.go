// Package workpool runs independent per-item tasks on a bounded set of
// goroutines and returns their results in input order.
package workpool

import (
	"context"
	"sort"
	"sync"
)

// Task processes one item. It must not depend on other items' results.
type Task[T, R any] func(ctx context.Context, index int, item T) R

// Pool runs tasks on a fixed number of workers.
type Pool[T, R any] struct {
	workers int
	task    Task[T, R]
	// cancelled builds the result reported for items that were never started
	// because ctx was done.
	cancelled func(item T, err error) R
}

// New creates a pool with the given number of workers (minimum 1).
func New[T, R any](workers int, task func(ctx context.Context, index int, item T) R, cancelled func(item T, err error) R) *Pool[T, R] {
	if workers <= 0 {
		workers = 1
	}
	return &Pool[T, R]{workers: workers, task: task, cancelled: cancelled}
}

// Workers returns the configured concurrency.
func (p *Pool[T, R]) Workers() int { return p.workers }

// Execute runs the task over items and waits for all of them.
// The returned results maintain the same order as the input items, and
// there is exactly one result per item even when ctx is cancelled.
func (p *Pool[T, R]) Execute(ctx context.Context, items []T) []R {
	if len(items) == 0 {
		return []R{}
	}

	// One worker runs inline: no goroutines, strictly sequential.
	if p.workers == 1 {
		results := make([]R, len(items))
		for i, item := range items {
			if err := ctx.Err(); err != nil {
				results[i] = p.cancelled(item, err)
				continue
			}
			results[i] = p.task(ctx, i, item)
		}
		return results
	}

	jobsChan := make(chan jobWithIndex[T], len(items))
	resultsChan := make(chan resultWithIndex[R], len(items))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go p.worker(ctx, jobsChan, resultsChan, &wg)
	}

	for i, item := range items {
		jobsChan <- jobWithIndex[T]{item: item, index: i}
	}
	close(jobsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	collected := make([]resultWithIndex[R], 0, len(items))
	for r := range resultsChan {
		collected = append(collected, r)
	}

	// Sort results by their original index to maintain order
	sort.Slice(collected, func(i, j int) bool {
		return collected[i].index < collected[j].index
	})

	results := make([]R, len(collected))
	for i, r := range collected {
		results[i] = r.result
	}
	return results
}

type jobWithIndex[T any] struct {
	item  T
	index int
}

type resultWithIndex[R any] struct {
	result R
	index  int
}

// worker drains the jobs channel. Once ctx is done the remaining jobs are
// still consumed so every item gets a result.
func (p *Pool[T, R]) worker(ctx context.Context, jobsChan <-chan jobWithIndex[T], resultsChan chan<- resultWithIndex[R], wg *sync.WaitGroup) {
	defer wg.Done()

	for job := range jobsChan {
		if err := ctx.Err(); err != nil {
			resultsChan <- resultWithIndex[R]{result: p.cancelled(job.item, err), index: job.index}
			continue
		}
		resultsChan <- resultWithIndex[R]{result: p.task(ctx, job.index, job.item), index: job.index}
	}
}
