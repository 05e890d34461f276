package scheduler

import (
	"math/rand"
	"sort"
	"time"

	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/domain"
)

// Clock 返回当前时间，测试中可以注入固定时间
type Clock func() time.Time

// overlaps 判断两个半开区间 [s1, e1) 与 [s2, e2) 是否重叠
func overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// unixMinute 将时间转换为分钟级别的整数，用于构造可比较的 Move
func unixMinute(t time.Time) int64 {
	return t.Unix() / 60
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func timeOfDay(t time.Time) time.Duration {
	return t.Sub(startOfDay(t))
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func sortByStart(items []domain.Assignment) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].StartTime.Equal(items[j].StartTime) {
			return items[i].SurgeryID < items[j].SurgeryID
		}
		return items[i].StartTime.Before(items[j].StartTime)
	})
}

// roomAssignments 返回某个手术室中的所有安排，exclude 中的手术会被忽略
func roomAssignments(schedule Schedule, roomID int64, exclude ...int64) []domain.Assignment {
	items := make([]domain.Assignment, 0)

outer:
	for _, a := range schedule {
		if a.RoomID != roomID {
			continue
		}
		for _, id := range exclude {
			if a.SurgeryID == id {
				continue outer
			}
		}
		items = append(items, a)
	}

	return items
}

// sampleIndices 从 [0, n) 中随机不重复地选出至多 k 个下标
func sampleIndices(rng *rand.Rand, n, k int) []int {
	if n <= 0 || k <= 0 {
		return nil
	}
	return rng.Perm(n)[:min(n, k)]
}
