package pool

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/atomic"
)

var (
	metricQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quilldb",
		Name:      "work_queue_length",
		Help:      "Current length of the work queue.",
	})
	metricQueueMax = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quilldb",
		Name:      "work_queue_max",
		Help:      "Maximum number of items in the work queue.",
	})
)

type JobFunc func(payload interface{}) (interface{}, error)

type job struct {
	payload interface{}
	fn      JobFunc
	index   int

	wg      *sync.WaitGroup
	results []interface{}
	err     *atomic.Error
}

type Config struct {
	MaxWorkers int `yaml:"max_workers"`
	QueueDepth int `yaml:"queue_depth"`
}

// Pool runs independent jobs over a bounded set of workers.  Unlike a
// first-result pool, every job's result is collected and returned in payload
// order.
type Pool struct {
	cfg  *Config
	size *atomic.Int32

	workQueue chan *job
}

func New(cfg *Config) *Pool {
	if cfg == nil {
		cfg = defaultConfig()
	}

	q := make(chan *job, cfg.QueueDepth)
	p := &Pool{
		cfg:       cfg,
		workQueue: q,
		size:      atomic.NewInt32(0),
	}

	for i := 0; i < cfg.MaxWorkers; i++ {
		go p.worker(q)
	}

	metricQueueMax.Set(float64(cfg.QueueDepth))

	return p
}

// RunJobs executes fn for every payload and returns the results in payload
// order.  When jobs fail, the job error stored last is returned alongside
// whatever results completed.
func (p *Pool) RunJobs(payloads []interface{}, fn JobFunc) ([]interface{}, error) {
	totalJobs := len(payloads)

	// sanity check before we even attempt to start adding jobs
	if int(p.size.Load())+totalJobs > p.cfg.QueueDepth {
		return nil, errors.Errorf("queue doesn't have room for %d jobs", totalJobs)
	}

	results := make([]interface{}, totalJobs)
	wg := &sync.WaitGroup{}
	jobErr := atomic.NewError(nil)

	wg.Add(totalJobs)
	for i, payload := range payloads {
		j := &job{
			fn:      fn,
			payload: payload,
			index:   i,
			wg:      wg,
			results: results,
			err:     jobErr,
		}

		select {
		case p.workQueue <- j:
			p.size.Inc()
			metricQueueLength.Set(float64(p.size.Load()))
		default:
			wg.Done()
			jobErr.Store(errors.New("failed to add a job, queue is full"))
		}
	}

	wg.Wait()
	return results, jobErr.Load()
}

func (p *Pool) Shutdown() {
	close(p.workQueue)
}

func (p *Pool) worker(q <-chan *job) {
	for j := range q {
		p.size.Dec()
		metricQueueLength.Set(float64(p.size.Load()))

		res, err := j.fn(j.payload)
		if err != nil {
			j.err.Store(err)
		} else {
			j.results[j.index] = res
		}
		j.wg.Done()
	}
}

// default is modest concurrency; batch query fan-out rarely needs more
func defaultConfig() *Config {
	return &Config{
		MaxWorkers: 8,
		QueueDepth: 1024,
	}
}
