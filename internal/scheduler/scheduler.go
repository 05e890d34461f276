package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/utils"
)

type Scheduler struct {
	parameters  *Parameters
	catalog     *Catalog
	windowStart time.Time
	windowEnd   time.Time
	logger      *slog.Logger
	observer    Observer
	clock       Clock
	qualifies   SurgeonQualifier
}

type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

func WithObserver(observer Observer) Option {
	return func(s *Scheduler) { s.observer = observer }
}

// WithClock 注入当前时间，影响“当天不能早于现在”的规则
func WithClock(clock Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

func WithSurgeonQualifier(qualifies SurgeonQualifier) Option {
	return func(s *Scheduler) { s.qualifies = qualifies }
}

func New(parameters *Parameters, input *CatalogInput, windowStart, windowEnd time.Time, opts ...Option) (*Scheduler, error) {
	if err := parameters.Validate(); err != nil {
		return nil, err
	}
	if err := utils.ValidateScheduleWindow(windowStart, windowEnd); err != nil {
		return nil, err
	}

	catalog, err := NewCatalog(input)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		parameters:  parameters,
		catalog:     catalog,
		windowStart: windowStart,
		windowEnd:   windowEnd,
		logger:      slog.Default(),
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *Scheduler) Catalog() *Catalog {
	return s.catalog
}

func (s *Scheduler) rng() *rand.Rand {
	seed := s.parameters.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// newSearch 组装禁忌搜索需要的所有组件
func (s *Scheduler) newSearch(rng *rand.Rand) (*TabuSearch, error) {
	dayEnd, err := utils.ParseTimeOfDay(s.parameters.DayEnd)
	if err != nil {
		return nil, err
	}

	finder := NewTimeSlotFinder(s.catalog, s.clock)
	checker := NewFeasibilityChecker(s.catalog)
	p := s.parameters

	return &TabuSearch{
		params:      p,
		checker:     checker,
		evaluator:   NewSolutionEvaluator(s.catalog, p.Weights, dayEnd),
		neighbors:   NewNeighborhoodGenerator(s.catalog, finder, checker, int(p.SampleSize), int(p.Workers), s.qualifies),
		initializer: NewInitializer(s.catalog, finder, checker, s.windowStart, s.windowEnd),
		tabu:        NewTabuList(p.TabuTenure, p.MinTenure, p.MaxTenure, p.FrequencyThreshold, rng),
		rng:         rng,
		observer:    s.observer,
		logger:      s.logger,
		windowStart: s.windowStart,
		windowEnd:   s.windowEnd,
	}, nil
}

// Schedule 先用贪心算法构造初始排班，再进行禁忌搜索
func (s *Scheduler) Schedule(ctx context.Context) (*Result, error) {
	rng := s.rng()
	search, err := s.newSearch(rng)
	if err != nil {
		return nil, err
	}

	initial, err := search.initializer.Build(rng, false)
	if err != nil {
		return nil, fmt.Errorf("无法构造初始排班: %w", err)
	}

	return s.run(ctx, search, initial)
}

// Optimize 从外部给定的初始排班开始搜索
func (s *Scheduler) Optimize(ctx context.Context, initial Schedule) (*Result, error) {
	search, err := s.newSearch(s.rng())
	if err != nil {
		return nil, err
	}

	return s.run(ctx, search, initial)
}

func (s *Scheduler) run(ctx context.Context, search *TabuSearch, initial Schedule) (*Result, error) {
	result, err := search.Search(ctx, initial)
	if err != nil {
		return nil, err
	}

	// 最后再检查一遍结果是否满足所有硬约束
	if err := search.checker.Validate(result.Best); err != nil {
		return nil, fmt.Errorf("排班结果不满足硬约束: %w", err)
	}
	result.Best = result.Best.Sorted()

	return result, nil
}
