package utils

import (
	"fmt"
	"math/rand"

	"github.com/mozillazg/go-pinyin"
	"github.com/sysu-ecnc-dev/or-scheduler/backend/internal/domain"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

func GenerateRandomChineseName() string {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

var digits = "0123456789"

// GenerateMailboxFromChineseName 用姓名的拼音缩写加上随机数字生成邮箱前缀
func GenerateMailboxFromChineseName(chineseName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	mailbox := ""

	for _, py := range pinyinArray {
		length := rand.Intn(len(py)) + 1
		mailbox += py[:length]
	}

	digitsLength := rand.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		mailbox += string(digits[rand.Intn(len(digits))])
	}

	return mailbox
}

func GenerateRandomSurgeon(emailDomainName string) *domain.Surgeon {
	fullName := GenerateRandomChineseName()

	return &domain.Surgeon{
		FullName: fullName,
		Email:    GenerateMailboxFromChineseName(fullName) + "@" + emailDomainName,
		IsActive: true,
	}
}

var roomStartTimes = []string{"07:00:00", "07:30:00", "08:00:00", "08:30:00"}

func GenerateRandomOperatingRoom(index int) *domain.OperatingRoom {
	return &domain.OperatingRoom{
		Name:                 fmt.Sprintf("%d 号手术室", index),
		OperationalStartTime: roomStartTimes[rand.Intn(len(roomStartTimes))],
	}
}

var surgeryNames = []string{
	"阑尾切除术", "胆囊切除术", "疝修补术", "甲状腺切除术", "膝关节置换术",
	"髋关节置换术", "冠状动脉搭桥术", "白内障摘除术", "剖宫产术", "腰椎融合术",
}

var urgencies = []domain.UrgencyLevel{
	domain.UrgencyLow,
	domain.UrgencyMedium,
	domain.UrgencyHigh,
}

// GenerateRandomSurgery 随机生成一台手术，surgeonIDs 为空时不指定主刀医生
func GenerateRandomSurgery(typeCount int, surgeonIDs []int64) *domain.Surgery {
	typeID := int64(rand.Intn(typeCount) + 1)

	surgery := &domain.Surgery{
		Name:            surgeryNames[int(typeID-1)%len(surgeryNames)],
		TypeID:          typeID,
		DurationMinutes: int32(30 + 15*rand.Intn(13)), // 30 ~ 210 分钟
		Urgency:         urgencies[rand.Intn(len(urgencies))],
	}

	if len(surgeonIDs) > 0 {
		surgery.SurgeonID = surgeonIDs[rand.Intn(len(surgeonIDs))]
	}

	return surgery
}

// GenerateRandomSetupMatrix 生成完整的准备时间矩阵，同类型之间的切换时间更短
func GenerateRandomSetupMatrix(typeCount int) []domain.SetupTime {
	matrix := make([]domain.SetupTime, 0, typeCount*typeCount)

	for from := 1; from <= typeCount; from++ {
		for to := 1; to <= typeCount; to++ {
			minutes := int32(5 * (rand.Intn(9) + 2)) // 10 ~ 50 分钟
			if from == to {
				minutes = int32(5 * (rand.Intn(2) + 1))
			}

			matrix = append(matrix, domain.SetupTime{
				FromTypeID:   int64(from),
				ToTypeID:     int64(to),
				SetupMinutes: minutes,
			})
		}
	}

	return matrix
}
