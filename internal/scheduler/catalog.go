package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/utils"
)

const (
	// 手术结束后固定的清洁时间
	CleanupBuffer = 15 * time.Minute
	// 没有前序手术或准备时间矩阵中查不到时使用的准备时间
	DefaultSetupTime = 15 * time.Minute
)

var (
	ErrNoSurgeries = errors.New("手术目录为空")
	ErrNoRooms     = errors.New("手术室目录为空")
)

// CatalogInput 是构造 Catalog 所需的全部原始数据
type CatalogInput struct {
	Surgeries    []*domain.Surgery             `json:"surgeries"`
	Rooms        []*domain.OperatingRoom       `json:"rooms"`
	Surgeons     []*domain.Surgeon             `json:"surgeons"`
	SetupTimes   []domain.SetupTime            `json:"setupTimes"`
	Equipment    []domain.Equipment            `json:"equipment"`
	Requirements []domain.EquipmentRequirement `json:"requirements"`
	Preferences  []domain.SurgeonPreference    `json:"preferences"`
}

type SetupMatrix struct {
	entries map[[2]int64]time.Duration
}

func NewSetupMatrix(setupTimes []domain.SetupTime) *SetupMatrix {
	m := &SetupMatrix{
		entries: make(map[[2]int64]time.Duration, len(setupTimes)),
	}
	for _, st := range setupTimes {
		m.entries[[2]int64{st.FromTypeID, st.ToTypeID}] = time.Duration(st.SetupMinutes) * time.Minute
	}
	return m
}

// Lookup 查询两种手术类型之间的准备时间，查不到时返回 DefaultSetupTime
func (m *SetupMatrix) Lookup(fromType, toType int64) time.Duration {
	if m == nil {
		return DefaultSetupTime
	}
	if d, ok := m.entries[[2]int64{fromType, toType}]; ok {
		return d
	}
	return DefaultSetupTime
}

// Catalog 是排班过程中只读的查询结构，可以被多个 goroutine 同时读取
type Catalog struct {
	surgeries           map[int64]*domain.Surgery
	rooms               map[int64]*domain.OperatingRoom
	roomIDs             []int64
	roomStarts          map[int64]time.Duration
	surgeons            map[int64]*domain.Surgeon
	surgeonIDs          []int64
	setup               *SetupMatrix
	inventory           map[string]int32
	typeRequirements    map[int64]map[string]int32
	surgeryRequirements map[int64]map[string]int32
	preferences         map[int64][]domain.SurgeonPreference
}

func NewCatalog(input *CatalogInput) (*Catalog, error) {
	if input == nil || len(input.Surgeries) == 0 {
		return nil, ErrNoSurgeries
	}
	if len(input.Rooms) == 0 {
		return nil, ErrNoRooms
	}

	c := &Catalog{
		surgeries:           make(map[int64]*domain.Surgery, len(input.Surgeries)),
		rooms:               make(map[int64]*domain.OperatingRoom, len(input.Rooms)),
		roomStarts:          make(map[int64]time.Duration, len(input.Rooms)),
		surgeons:            make(map[int64]*domain.Surgeon, len(input.Surgeons)),
		setup:               NewSetupMatrix(input.SetupTimes),
		inventory:           make(map[string]int32),
		typeRequirements:    make(map[int64]map[string]int32),
		surgeryRequirements: make(map[int64]map[string]int32),
		preferences:         make(map[int64][]domain.SurgeonPreference),
	}

	for _, room := range input.Rooms {
		if err := utils.ValidateOperatingRoom(room); err != nil {
			return nil, err
		}
		// 上面已经校验过格式，这里不会出错
		start, _ := utils.ParseTimeOfDay(room.OperationalStartTime)
		c.rooms[room.ID] = room
		c.roomStarts[room.ID] = start
	}
	c.roomIDs = lo.Keys(c.rooms)
	sort.Slice(c.roomIDs, func(i, j int) bool { return c.roomIDs[i] < c.roomIDs[j] })

	surgeonSet := make(map[int64]struct{})
	for _, surgeon := range input.Surgeons {
		c.surgeons[surgeon.ID] = surgeon
		if surgeon.IsActive {
			surgeonSet[surgeon.ID] = struct{}{}
		}
	}

	for _, surgery := range input.Surgeries {
		if err := utils.ValidateSurgery(surgery); err != nil {
			return nil, err
		}
		if _, exists := c.surgeries[surgery.ID]; exists {
			return nil, fmt.Errorf("手术 %d 在目录中重复出现", surgery.ID)
		}
		c.surgeries[surgery.ID] = surgery

		if surgery.SurgeonID != 0 {
			surgeonSet[surgery.SurgeonID] = struct{}{}
		}

		requirements, err := decodeEquipmentPayload(surgery.Equipment)
		if err != nil {
			return nil, fmt.Errorf("手术 %d 的器械需求格式错误: %w", surgery.ID, err)
		}
		if requirements != nil {
			c.surgeryRequirements[surgery.ID] = requirements
		}
	}
	c.surgeonIDs = lo.Keys(surgeonSet)
	sort.Slice(c.surgeonIDs, func(i, j int) bool { return c.surgeonIDs[i] < c.surgeonIDs[j] })

	for _, st := range input.SetupTimes {
		if err := utils.ValidateSetupTime(st); err != nil {
			return nil, err
		}
	}

	for _, e := range input.Equipment {
		if err := utils.ValidateEquipment(e); err != nil {
			return nil, err
		}
		// 同一类别的器械库存累加
		c.inventory[e.Kind] += e.Inventory
	}

	for _, req := range input.Requirements {
		if _, exists := c.typeRequirements[req.SurgeryTypeID]; !exists {
			c.typeRequirements[req.SurgeryTypeID] = make(map[string]int32)
		}
		c.typeRequirements[req.SurgeryTypeID][req.Kind] += req.Quantity
	}

	for _, pref := range input.Preferences {
		c.preferences[pref.SurgeonID] = append(c.preferences[pref.SurgeonID], pref)
	}

	return c, nil
}

// decodeEquipmentPayload 将 {"kind": 数量} 形式的器械需求解码，数量可以是任意数值类型或数字字符串
func decodeEquipmentPayload(payload map[string]any) (map[string]int32, error) {
	if len(payload) == 0 {
		return nil, nil
	}

	var out map[string]int32
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(payload); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *Catalog) Surgery(id int64) (*domain.Surgery, bool) {
	s, ok := c.surgeries[id]
	return s, ok
}

// Surgeries 按 ID 升序返回所有手术
func (c *Catalog) Surgeries() []*domain.Surgery {
	surgeries := lo.Values(c.surgeries)
	sort.Slice(surgeries, func(i, j int) bool { return surgeries[i].ID < surgeries[j].ID })
	return surgeries
}

func (c *Catalog) SurgeryType(id int64) (int64, bool) {
	s, ok := c.surgeries[id]
	if !ok {
		return 0, false
	}
	return s.TypeID, true
}

func (c *Catalog) Room(id int64) (*domain.OperatingRoom, bool) {
	r, ok := c.rooms[id]
	return r, ok
}

func (c *Catalog) RoomIDs() []int64 {
	return c.roomIDs
}

// RoomStart 返回手术室每天开放的时间距离午夜的偏移
func (c *Catalog) RoomStart(roomID int64) (time.Duration, bool) {
	d, ok := c.roomStarts[roomID]
	return d, ok
}

func (c *Catalog) Surgeon(id int64) (*domain.Surgeon, bool) {
	s, ok := c.surgeons[id]
	return s, ok
}

func (c *Catalog) SurgeonIDs() []int64 {
	return c.surgeonIDs
}

func (c *Catalog) Setup() *SetupMatrix {
	return c.setup
}

// SurgeonFor 返回某个安排实际的主刀医生，安排中指定的医生优先，返回 0 表示无法确定
func (c *Catalog) SurgeonFor(a domain.Assignment) int64 {
	if a.SurgeonID != 0 {
		return a.SurgeonID
	}
	if s, ok := c.surgeries[a.SurgeryID]; ok {
		return s.SurgeonID
	}
	return 0
}

// Requirements 返回某台手术的器械需求，单台手术的配置优先于按类型的配置
func (c *Catalog) Requirements(surgeryID int64) map[string]int32 {
	if req, ok := c.surgeryRequirements[surgeryID]; ok {
		return req
	}
	s, ok := c.surgeries[surgeryID]
	if !ok {
		return nil
	}
	return c.typeRequirements[s.TypeID]
}

func (c *Catalog) Inventory(kind string) (int32, bool) {
	n, ok := c.inventory[kind]
	return n, ok
}

func (c *Catalog) Preferences(surgeonID int64) []domain.SurgeonPreference {
	return c.preferences[surgeonID]
}
