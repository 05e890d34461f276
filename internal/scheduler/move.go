package scheduler

import (
	"fmt"

	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/domain"
)

type MoveKind string

const (
	MoveKindRoom        MoveKind = "move_room"
	MoveKindSwap        MoveKind = "swap"
	MoveKindShift       MoveKind = "shift_time"
	MoveKindSurgeon     MoveKind = "change_surgeon"
	MoveKindReschedule  MoveKind = "reschedule"
	MoveKindConsolidate MoveKind = "consolidate"
)

// Move 描述一次邻域变换，所有实现都只包含可比较的字段，可以直接作为 map 的键
type Move interface {
	Kind() MoveKind
	isMove()
}

// 时间字段均为分钟级 Unix 时间戳

type RoomMove struct {
	SurgeryID int64
	RoomID    int64
	Start     int64
}

// SwapMove 对两台手术的顺序不敏感，需要通过 NewSwapMove 构造
type SwapMove struct {
	FirstSurgeryID  int64
	FirstRoomID     int64
	FirstStart      int64
	SecondSurgeryID int64
	SecondRoomID    int64
	SecondStart     int64
}

type ShiftMove struct {
	SurgeryID int64
	RoomID    int64
	Start     int64
}

type SurgeonMove struct {
	SurgeryID int64
	SurgeonID int64
}

type RescheduleMove struct {
	SurgeryID int64
	RoomID    int64
	Start     int64
	SlotLabel string
}

type ConsolidateMove struct {
	SurgeryID int64
	RoomID    int64
	Start     int64
}

func (RoomMove) Kind() MoveKind        { return MoveKindRoom }
func (SwapMove) Kind() MoveKind        { return MoveKindSwap }
func (ShiftMove) Kind() MoveKind       { return MoveKindShift }
func (SurgeonMove) Kind() MoveKind     { return MoveKindSurgeon }
func (RescheduleMove) Kind() MoveKind  { return MoveKindReschedule }
func (ConsolidateMove) Kind() MoveKind { return MoveKindConsolidate }

func (RoomMove) isMove()        {}
func (SwapMove) isMove()        {}
func (ShiftMove) isMove()       {}
func (SurgeonMove) isMove()     {}
func (RescheduleMove) isMove()  {}
func (ConsolidateMove) isMove() {}

// NewSwapMove 按手术 ID 排序，保证 (a, b) 和 (b, a) 得到同一个 Move
func NewSwapMove(a, b domain.Assignment) SwapMove {
	if b.SurgeryID < a.SurgeryID {
		a, b = b, a
	}

	return SwapMove{
		FirstSurgeryID:  a.SurgeryID,
		FirstRoomID:     a.RoomID,
		FirstStart:      unixMinute(a.StartTime),
		SecondSurgeryID: b.SurgeryID,
		SecondRoomID:    b.RoomID,
		SecondStart:     unixMinute(b.StartTime),
	}
}

// MovedSurgeries 返回一次变换涉及的手术
func MovedSurgeries(m Move) []int64 {
	switch mv := m.(type) {
	case RoomMove:
		return []int64{mv.SurgeryID}
	case SwapMove:
		return []int64{mv.FirstSurgeryID, mv.SecondSurgeryID}
	case ShiftMove:
		return []int64{mv.SurgeryID}
	case SurgeonMove:
		return []int64{mv.SurgeryID}
	case RescheduleMove:
		return []int64{mv.SurgeryID}
	case ConsolidateMove:
		return []int64{mv.SurgeryID}
	default:
		return nil
	}
}

func (m RoomMove) String() string {
	return fmt.Sprintf("move_room(surgery=%d, room=%d, start=%d)", m.SurgeryID, m.RoomID, m.Start)
}

func (m SwapMove) String() string {
	return fmt.Sprintf("swap(%d<->%d)", m.FirstSurgeryID, m.SecondSurgeryID)
}

func (m ShiftMove) String() string {
	return fmt.Sprintf("shift_time(surgery=%d, start=%d)", m.SurgeryID, m.Start)
}

func (m SurgeonMove) String() string {
	return fmt.Sprintf("change_surgeon(surgery=%d, surgeon=%d)", m.SurgeryID, m.SurgeonID)
}

func (m RescheduleMove) String() string {
	return fmt.Sprintf("reschedule(surgery=%d, slot=%s)", m.SurgeryID, m.SlotLabel)
}

func (m ConsolidateMove) String() string {
	return fmt.Sprintf("consolidate(surgery=%d, room=%d, start=%d)", m.SurgeryID, m.RoomID, m.Start)
}
