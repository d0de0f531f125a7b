// pkg/silver/worker.go
package silver

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/edulake/pipeline/pkg/model"
	"github.com/edulake/pipeline/pkg/registry"
)

// entityJob is one unit of fan-out work.
type entityJob struct {
	entity registry.Entity
	table  *model.Table
}

// entityResult carries an outcome or error back through the fan-in.
type entityResult struct {
	outcome *entityOutcome
	err     error
}

// evaluateAll runs rule evaluation for every standardized entity across a
// bounded worker pool. Workers only compute; nothing here touches the
// store, so no handle sharing occurs between goroutines. The fan-in
// barrier completes before any result is returned.
func (s *Stage) evaluateAll(ctx context.Context, runID string, standardized map[string]*model.Table) ([]*entityOutcome, error) {
	jobs := make([]entityJob, 0, len(standardized))
	for name, table := range standardized {
		entity, ok := s.registry.Entity(name)
		if !ok {
			// Resolve already vetted the name; guard anyway.
			continue
		}
		jobs = append(jobs, entityJob{entity: entity, table: table})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].entity.Name < jobs[j].entity.Name })

	workerCount := s.workerCount
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if workerCount > len(jobs) {
		workerCount = len(jobs)
	}
	if workerCount < 1 {
		workerCount = 1
	}

	// Cross-entity silver rules may look up sibling tables from the
	// same batch; the map is read-only during fan-out.
	jobCh := make(chan entityJob, len(jobs))
	resultCh := make(chan entityResult, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for job := range jobCh {
				if err := ctx.Err(); err != nil {
					resultCh <- entityResult{err: err}
					continue
				}
				outcome, err := s.process(runID, job.entity, job.table, standardized)
				if err != nil {
					s.logger.Error("Entity evaluation failed",
						zap.Int("worker", workerID),
						zap.String("entity", job.entity.Name),
						zap.Error(err))
				}
				resultCh <- entityResult{outcome: outcome, err: err}
			}
		}(i)
	}

	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)

	wg.Wait()
	close(resultCh)

	outcomes := make([]*entityOutcome, 0, len(jobs))
	for res := range resultCh {
		if res.err != nil {
			return nil, res.err
		}
		outcomes = append(outcomes, res.outcome)
	}
	return outcomes, nil
}
