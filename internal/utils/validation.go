package utils

import (
	"fmt"
	"time"

	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/domain"
)

// ParseTimeOfDay 解析 15:04:05 或 15:04 格式的时间，返回距离当天午夜的时长
func ParseTimeOfDay(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	for _, layout := range []string{"15:04:05", "15:04"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second, nil
		}
	}

	return 0, fmt.Errorf("时间 %q 的格式错误", s)
}

func ValidateOperatingRoom(room *domain.OperatingRoom) error {
	if room.ID == 0 {
		return fmt.Errorf("手术室 %q 缺少 ID", room.Name)
	}
	if _, err := ParseTimeOfDay(room.OperationalStartTime); err != nil {
		return fmt.Errorf("手术室 %d 的开放时间格式错误: %w", room.ID, err)
	}

	return nil
}

func ValidateSurgery(surgery *domain.Surgery) error {
	if surgery.ID == 0 {
		return fmt.Errorf("手术 %q 缺少 ID", surgery.Name)
	}
	if surgery.DurationMinutes <= 0 {
		return fmt.Errorf("手术 %d 的时长必须大于 0", surgery.ID)
	}

	return nil
}

func ValidateSetupTime(st domain.SetupTime) error {
	if st.SetupMinutes < 0 {
		return fmt.Errorf("手术类型 %d 到 %d 的准备时间不能为负数", st.FromTypeID, st.ToTypeID)
	}

	return nil
}

func ValidateEquipment(e domain.Equipment) error {
	if e.Kind == "" {
		return fmt.Errorf("器械 %d 缺少类别", e.ID)
	}
	if e.Inventory < 0 {
		return fmt.Errorf("器械 %q 的库存不能为负数", e.Kind)
	}

	return nil
}

// ValidateScheduleWindow 检查排班时间窗口，允许长度为 0 的窗口
func ValidateScheduleWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("排班时间窗口不能为空")
	}
	if end.Before(start) {
		return fmt.Errorf("排班时间窗口的结束时间不能早于开始时间")
	}

	return nil
}
