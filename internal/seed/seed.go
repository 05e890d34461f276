package seed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/repository"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/scheduler"
)

// urgencyHook 允许在 JSON 中用 "low" / "medium" / "high" 表示紧急程度
func urgencyHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(domain.UrgencyLevel(0)) || from.Kind() != reflect.String {
		return data, nil
	}
	return domain.ParseUrgencyLevel(data.(string))
}

// DecodeCatalog 把 JSON 解析出的通用结构转换为目录数据，数字字段也接受字符串形式
func DecodeCatalog(raw map[string]any) (*scheduler.CatalogInput, error) {
	input := &scheduler.CatalogInput{}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			urgencyHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
		Result: input,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, err
	}

	return input, nil
}

// LoadCatalogFile 从 JSON 文件读取目录数据
func LoadCatalogFile(path string) (*scheduler.CatalogInput, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	raw := map[string]any{}
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("无法解析文件 %s: %w", path, err)
	}

	return DecodeCatalog(raw)
}

// ImportCatalog 把文件中的目录写入数据库。文件中的 ID 只用于表达引用关系，
// 写入后医生和手术室会得到数据库分配的新 ID。
func ImportCatalog(r *repository.Repository, input *scheduler.CatalogInput) error {
	surgeonIDs := make(map[int64]int64, len(input.Surgeons))
	for _, surgeon := range input.Surgeons {
		fileID := surgeon.ID
		if err := r.CreateSurgeon(surgeon); err != nil {
			return fmt.Errorf("插入医生 %s 失败: %w", surgeon.FullName, err)
		}
		surgeonIDs[fileID] = surgeon.ID
	}
	slog.Info("插入医生成功", slog.Int("count", len(input.Surgeons)))

	roomIDs := make(map[int64]int64, len(input.Rooms))
	for _, room := range input.Rooms {
		fileID := room.ID
		if err := r.CreateOperatingRoom(room); err != nil {
			return fmt.Errorf("插入手术室 %s 失败: %w", room.Name, err)
		}
		roomIDs[fileID] = room.ID
	}
	slog.Info("插入手术室成功", slog.Int("count", len(input.Rooms)))

	for _, pref := range input.Preferences {
		id, ok := surgeonIDs[pref.SurgeonID]
		if !ok {
			slog.Error("偏好引用了不存在的医生", slog.Int64("surgeon_id", pref.SurgeonID))
			continue
		}
		pref.SurgeonID = id

		// 手术室偏好的值是手术室 ID，同样需要换成数据库中的 ID
		if pref.Attribute == domain.PreferenceRoom {
			fileRoomID, err := strconv.ParseInt(pref.Value, 10, 64)
			if err == nil && roomIDs[fileRoomID] != 0 {
				pref.Value = strconv.FormatInt(roomIDs[fileRoomID], 10)
			}
		}

		if err := r.CreateSurgeonPreference(&pref); err != nil {
			return fmt.Errorf("插入医生偏好失败: %w", err)
		}
	}

	for _, surgery := range input.Surgeries {
		if surgery.SurgeonID != 0 {
			surgery.SurgeonID = surgeonIDs[surgery.SurgeonID]
		}
		if err := r.CreateSurgery(surgery); err != nil {
			return fmt.Errorf("插入手术 %s 失败: %w", surgery.Name, err)
		}
	}
	slog.Info("插入手术成功", slog.Int("count", len(input.Surgeries)))

	if err := r.UpsertSetupTimes(input.SetupTimes); err != nil {
		return fmt.Errorf("插入准备时间矩阵失败: %w", err)
	}

	for i := range input.Equipment {
		if err := r.CreateEquipment(&input.Equipment[i]); err != nil {
			return fmt.Errorf("插入器械失败: %w", err)
		}
	}
	for i := range input.Requirements {
		if err := r.UpsertEquipmentRequirement(&input.Requirements[i]); err != nil {
			return fmt.Errorf("插入器械需求失败: %w", err)
		}
	}

	slog.Info("插入数据完成")
	return nil
}
