package scheduler

import (
	"math/rand"
	"sync"
)

// TabuList 记录最近执行过的变换及其剩余禁忌期。
// 读操作可以在生成邻域时并发调用，写操作只由搜索主循环调用。
type TabuList struct {
	mu                 sync.RWMutex
	entries            map[Move]int32
	frequency          map[Move]int32 // 长期记忆，Clear 不会清空
	tenure             int32
	minTenure          int32
	maxTenure          int32
	frequencyThreshold int32
	progressScale      float64
	rng                *rand.Rand
}

func NewTabuList(tenure, minTenure, maxTenure, frequencyThreshold int32, rng *rand.Rand) *TabuList {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	return &TabuList{
		entries:            make(map[Move]int32),
		frequency:          make(map[Move]int32),
		tenure:             tenure,
		minTenure:          minTenure,
		maxTenure:          maxTenure,
		frequencyThreshold: frequencyThreshold,
		progressScale:      1,
		rng:                rng,
	}
}

// Add 使用默认禁忌期（或 [minTenure, maxTenure] 内的随机禁忌期）登记一次变换，
// 经常出现的变换会获得更长的禁忌期
func (t *TabuList) Add(move Move) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.frequency[move]++

	tenure := t.tenure
	if t.maxTenure > t.minTenure {
		tenure = t.minTenure + t.rng.Int31n(t.maxTenure-t.minTenure+1)
	}
	if t.frequencyThreshold > 0 {
		tenure += t.frequency[move] / t.frequencyThreshold
	}
	if t.progressScale < 1 && tenure > 0 {
		tenure = max(1, int32(float64(tenure)*t.progressScale))
	}

	t.set(move, tenure)
}

func (t *TabuList) AddWithTenure(move Move, tenure int32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.frequency[move]++
	t.set(move, tenure)
}

// set 调用方需要持有写锁，禁忌期不大于 0 的变换不会被记录
func (t *TabuList) set(move Move, tenure int32) {
	if tenure <= 0 {
		delete(t.entries, move)
		return
	}
	t.entries[move] = tenure
}

func (t *TabuList) IsTabu(move Move) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.entries[move] > 0
}

func (t *TabuList) Tenure(move Move) int32 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.entries[move]
}

func (t *TabuList) Frequency(move Move) int32 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.frequency[move]
}

// DecrementAll 所有禁忌期减一，减到 0 的变换被移除
func (t *TabuList) DecrementAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for move, tenure := range t.entries {
		if tenure <= 1 {
			delete(t.entries, move)
			continue
		}
		t.entries[move] = tenure - 1
	}
}

// IncreaseAll 统一延长所有禁忌期，用于分散搜索
func (t *TabuList) IncreaseAll(delta int32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for move, tenure := range t.entries {
		t.set(move, tenure+delta)
	}
}

// AdjustForProgress 在搜索进度超过 75% 后按比例缩短新登记的禁忌期
func (t *TabuList) AdjustForProgress(progress float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case progress <= 0.75:
		t.progressScale = 1
	case progress >= 1:
		t.progressScale = 0.25
	default:
		t.progressScale = 1 - 3*(progress-0.75)
	}
}

func (t *TabuList) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = make(map[Move]int32)
}

func (t *TabuList) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.entries)
}
